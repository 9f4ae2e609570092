package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned for lookups that match no row.
var ErrNotFound = errors.New("not found")

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- users / profile records ---

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, display_name, organization, password_hash, role)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, user.ID, user.Email, user.DisplayName, user.Organization, user.PasswordHash, user.Role)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, email, display_name, organization, password_hash, role, created_at, updated_at
		FROM users WHERE id = $1
	`, id))
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, email, display_name, organization, password_hash, role, created_at, updated_at
		FROM users WHERE LOWER(email) = LOWER($1)
	`, email))
}

func (s *PostgresStore) scanUser(row *sql.Row) (User, error) {
	var user User
	err := row.Scan(&user.ID, &user.Email, &user.DisplayName, &user.Organization,
		&user.PasswordHash, &user.Role, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("scan user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) UpdateUserProfile(ctx context.Context, id, displayName, organization string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET display_name = $2, organization = $3, updated_at = now()
		WHERE id = $1
	`, id, displayName, organization)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1
	`, id, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- refresh sessions (Postgres fallback when Redis is unconfigured) ---

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id = $2, expires_at = $3
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id FROM refresh_sessions
		WHERE token_hash = $1 AND expires_at > now()
	`, tokenHash).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("lookup refresh session: %w", err)
	}
	return s.GetUserByID(ctx, userID)
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM refresh_sessions WHERE token_hash = $1`, tokenHash); err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

// --- contract drafting progress snapshots ---

func (s *PostgresStore) SaveProgress(ctx context.Context, progress ContractProgress) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contract_progress (contract_id, user_id, title, template_id, variant, snapshot, plain_text)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (contract_id) DO UPDATE SET
			user_id = $2, title = $3, template_id = $4, variant = $5,
			snapshot = $6, plain_text = $7, updated_at = now()
	`, progress.ContractID, progress.UserID, progress.Title, progress.TemplateID,
		progress.Variant, []byte(progress.Snapshot), progress.PlainText)
	if err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetProgress(ctx context.Context, contractID string) (ContractProgress, error) {
	var progress ContractProgress
	var snapshot []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT contract_id, user_id, title, template_id, variant, snapshot, plain_text, created_at, updated_at
		FROM contract_progress WHERE contract_id = $1
	`, contractID).Scan(&progress.ContractID, &progress.UserID, &progress.Title,
		&progress.TemplateID, &progress.Variant, &snapshot, &progress.PlainText,
		&progress.CreatedAt, &progress.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ContractProgress{}, ErrNotFound
	}
	if err != nil {
		return ContractProgress{}, fmt.Errorf("get progress: %w", err)
	}
	progress.Snapshot = snapshot
	return progress, nil
}

func (s *PostgresStore) ListProgress(ctx context.Context, userID string) ([]ContractProgress, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT contract_id, user_id, title, template_id, variant, created_at, updated_at
		FROM contract_progress WHERE user_id = $1
		ORDER BY updated_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	defer rows.Close()

	var out []ContractProgress
	for rows.Next() {
		var p ContractProgress
		if err := rows.Scan(&p.ContractID, &p.UserID, &p.Title, &p.TemplateID,
			&p.Variant, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeleteProgress(ctx context.Context, contractID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM contract_progress WHERE contract_id = $1`, contractID); err != nil {
		return fmt.Errorf("delete progress: %w", err)
	}
	return nil
}
