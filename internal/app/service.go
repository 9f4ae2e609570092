package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"lexdraft/api/internal/auth"
	"lexdraft/api/internal/authpw"
	"lexdraft/api/internal/config"
	"lexdraft/api/internal/contract"
	"lexdraft/api/internal/export"
	"lexdraft/api/internal/rbac"
	"lexdraft/api/internal/revision"
	"lexdraft/api/internal/search"
	"lexdraft/api/internal/store"
	"lexdraft/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Role         string
	ExpiresAt    time.Time
}

// EditSession is the in-memory drafting state for one contract. The document
// holds the cell list; Flat and Sections drive the section-visibility preview;
// AdHoc clauses are appended as a numbered list after the template body.
type EditSession struct {
	UserID   string
	Title    string
	Doc      *contract.Document
	Flat     string
	Sections []contract.TemplateSection
	AdHoc    []contract.AdHocClause
}

type CellPatch struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
	Visible *bool   `json:"visible"`
}

type dataStore interface {
	GetUserByID(ctx context.Context, id string) (store.User, error)
	SaveProgress(ctx context.Context, progress store.ContractProgress) error
	GetProgress(ctx context.Context, contractID string) (store.ContractProgress, error)
	ListProgress(ctx context.Context, userID string) ([]store.ContractProgress, error)
	DeleteProgress(ctx context.Context, contractID string) error
	Ping(ctx context.Context) error
}

type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type renumberLocker interface {
	AcquireRenumberLock(ctx context.Context, contractID string) (bool, error)
	ReleaseRenumberLock(ctx context.Context, contractID string) error
}

type assistant interface {
	SuggestClause(ctx context.Context, description string) (string, error)
	RewriteClause(ctx context.Context, clauseText, instruction string) (string, error)
	Renumber(ctx context.Context, text string) (string, error)
}

type speaker interface {
	Speak(ctx context.Context, text string) (string, error)
}

type opportunityClient interface {
	List(ctx context.Context) (json.RawMessage, error)
	Detail(ctx context.Context, id string) (json.RawMessage, error)
	GetProgress(ctx context.Context, id string) (json.RawMessage, error)
	InsertProgress(ctx context.Context, id string, payload json.RawMessage) (json.RawMessage, error)
}

type searchIndex interface {
	Search(q search.Query) search.Response
	IndexContract(c search.ContractRecord)
	DeleteContract(id string)
}

type revisionLog interface {
	Commit(contractID string, snap revision.Snapshot, author, message string) (store.CommitInfo, error)
	History(contractID string, limit int) ([]store.CommitInfo, error)
	GetByHash(contractID, hash string) (revision.Snapshot, error)
}

type exporter interface {
	Export(ctx context.Context, req export.Request, view export.ContractView) (*export.Result, error)
}

// Collaborators are the optional backing services. Nil entries disable the
// corresponding endpoints (503) or fall back to an in-process substitute.
type Collaborators struct {
	Sessions      sessionStore
	Locker        renumberLocker
	Auth          *authpw.Service
	Assistant     assistant
	Speaker       speaker
	Opportunities opportunityClient
	Search        searchIndex
	Revisions     revisionLog
	Exporter      exporter
}

type Service struct {
	cfg           config.Config
	store         dataStore
	sessions      sessionStore
	locker        renumberLocker
	authpw        *authpw.Service
	assistant     assistant
	speaker       speaker
	opportunities opportunityClient
	search        searchIndex
	revisions     revisionLog
	exporter      exporter

	editMu sync.Mutex
	edits  map[string]*EditSession
}

func New(cfg config.Config, dataStore *store.PostgresStore, c Collaborators) *Service {
	s := &Service{
		cfg:           cfg,
		store:         dataStore,
		sessions:      c.Sessions,
		locker:        c.Locker,
		authpw:        c.Auth,
		assistant:     c.Assistant,
		speaker:       c.Speaker,
		opportunities: c.Opportunities,
		search:        c.Search,
		revisions:     c.Revisions,
		exporter:      c.Exporter,
		edits:         make(map[string]*EditSession),
	}
	if s.sessions == nil {
		s.sessions = dataStore
	}
	if s.locker == nil {
		s.locker = newMemoryLocker()
	}
	return s
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// ── Auth and session lifecycle ──

func (s *Service) SignUp(ctx context.Context, email, password, displayName string) (Session, error) {
	if s.authpw == nil {
		return Session{}, domainError(http.StatusServiceUnavailable, "AUTH_UNAVAILABLE", "Authentication service not configured", nil)
	}
	user, err := s.authpw.SignUp(ctx, authpw.SignUpRequest{
		Email:       email,
		Password:    password,
		DisplayName: displayName,
	})
	if err != nil {
		if errors.Is(err, authpw.ErrEmailTaken) {
			return Session{}, domainError(http.StatusConflict, "EMAIL_EXISTS", "Email already registered", nil)
		}
		return Session{}, domainError(http.StatusBadRequest, "SIGNUP_FAILED", err.Error(), nil)
	}
	return s.issueSession(ctx, user)
}

func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	if s.authpw == nil {
		return Session{}, domainError(http.StatusServiceUnavailable, "AUTH_UNAVAILABLE", "Authentication service not configured", nil)
	}
	user, err := s.authpw.SignIn(ctx, email, password)
	if err != nil {
		return Session{}, domainError(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	ref, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	// The session store only records the user id; pull the fresh profile so
	// rotated tokens pick up role changes.
	user, err := s.store.GetUserByID(ctx, ref.ID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:   user.ID,
		Email: user.Email,
		Name:  user.DisplayName,
		Role:  user.Role,
		JTI:   jti,
		Exp:   expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Role:         user.Role,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		UserID:    claims.Sub,
		UserName:  claims.Name,
		Role:      claims.Role,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

// ── Profile ──

func (s *Service) Profile(ctx context.Context, session Session) (map[string]any, error) {
	user, err := s.store.GetUserByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainError(http.StatusNotFound, "NOT_FOUND", "User not found", nil)
		}
		return nil, err
	}
	return userPayload(user), nil
}

func (s *Service) UpdateProfile(ctx context.Context, session Session, displayName, organization string) (map[string]any, error) {
	if s.authpw == nil {
		return nil, domainError(http.StatusServiceUnavailable, "AUTH_UNAVAILABLE", "Authentication service not configured", nil)
	}
	user, err := s.authpw.UpdateProfile(ctx, session.UserID, displayName, organization)
	if err != nil {
		return nil, err
	}
	return userPayload(user), nil
}

func (s *Service) ChangePassword(ctx context.Context, session Session, current, next string) error {
	if s.authpw == nil {
		return domainError(http.StatusServiceUnavailable, "AUTH_UNAVAILABLE", "Authentication service not configured", nil)
	}
	if err := s.authpw.ChangePassword(ctx, session.UserID, current, next); err != nil {
		if errors.Is(err, authpw.ErrInvalidCredentials) {
			return domainError(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Current password is incorrect", nil)
		}
		return domainError(http.StatusBadRequest, "PASSWORD_CHANGE_FAILED", err.Error(), nil)
	}
	return nil
}

func userPayload(user store.User) map[string]any {
	return map[string]any{
		"userId":       user.ID,
		"email":        user.Email,
		"displayName":  user.DisplayName,
		"organization": user.Organization,
		"role":         user.Role,
	}
}

// ── Templates and contract generation ──

func (s *Service) Templates(ctx context.Context) map[string]any {
	templates := contract.Templates()
	items := make([]map[string]any, 0, len(templates))
	for _, t := range templates {
		items = append(items, map[string]any{
			"id":       t.ID,
			"name":     t.Name,
			"variants": t.Variants,
			"fields":   t.Fields,
		})
	}
	return map[string]any{"templates": items}
}

func (s *Service) GenerateContract(ctx context.Context, session Session, templateID, variant, title string, fields map[string]string) (map[string]any, error) {
	tpl, ok := contract.Lookup(templateID)
	if !ok {
		return nil, domainError(http.StatusNotFound, "TEMPLATE_NOT_FOUND", "Unknown template", nil)
	}
	if variant == "" {
		variant = tpl.Variants[0]
	}
	if !containsString(tpl.Variants, variant) {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Unknown template variant", map[string]any{"variants": tpl.Variants})
	}
	if fields == nil {
		fields = map[string]string{}
	}
	if strings.TrimSpace(title) == "" {
		title = tpl.Name
	}

	contractID := util.NewID("con")
	doc := contract.NewDocument(contractID, nil)
	doc.Generate(tpl, fields, variant)

	flat := tpl.FlatText(fields, variant)
	edit := &EditSession{
		UserID:   session.UserID,
		Title:    title,
		Doc:      doc,
		Flat:     flat,
		Sections: contract.ExtractSections(flat),
	}

	s.editMu.Lock()
	s.edits[contractID] = edit
	s.editMu.Unlock()

	return s.contractPayload(contractID, edit), nil
}

// RegenerateContract rebuilds the cell list from scratch, discarding every
// edit. This is the template/variant switch path; callers confirm first.
func (s *Service) RegenerateContract(ctx context.Context, session Session, contractID, variant string, fields map[string]string) (map[string]any, error) {
	edit, err := s.editSession(ctx, contractID, session)
	if err != nil {
		return nil, err
	}

	s.editMu.Lock()
	defer s.editMu.Unlock()

	tpl, ok := contract.Lookup(edit.Doc.TemplateID)
	if !ok {
		return nil, domainError(http.StatusConflict, "TEMPLATE_NOT_FOUND", "Contract references an unknown template", nil)
	}
	if variant == "" {
		variant = edit.Doc.Variant
	}
	if fields == nil {
		fields = edit.Doc.Fields
	}
	edit.Doc.Generate(tpl, fields, variant)
	flat := tpl.FlatText(fields, variant)
	edit.Flat = flat
	edit.Sections = contract.ExtractSections(flat)
	edit.AdHoc = nil

	return s.contractPayload(contractID, edit), nil
}

func (s *Service) GetContract(ctx context.Context, session Session, contractID string) (map[string]any, error) {
	edit, err := s.editSession(ctx, contractID, session)
	if err != nil {
		return nil, err
	}
	s.editMu.Lock()
	defer s.editMu.Unlock()
	return s.contractPayload(contractID, edit), nil
}

func (s *Service) ListContracts(ctx context.Context, session Session) (map[string]any, error) {
	items, err := s.store.ListProgress(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	contracts := make([]map[string]any, 0, len(items))
	for _, p := range items {
		contracts = append(contracts, map[string]any{
			"contractId": p.ContractID,
			"title":      p.Title,
			"templateId": p.TemplateID,
			"variant":    p.Variant,
			"updatedAt":  p.UpdatedAt,
		})
	}
	return map[string]any{"contracts": contracts}, nil
}

func (s *Service) SaveContract(ctx context.Context, session Session, contractID, title string) (map[string]any, error) {
	edit, err := s.editSession(ctx, contractID, session)
	if err != nil {
		return nil, err
	}

	s.editMu.Lock()
	if strings.TrimSpace(title) != "" {
		edit.Title = title
	}
	snap := s.snapshot(contractID, edit)
	plain := plainText(edit.Doc.VisibleCells())
	s.editMu.Unlock()

	raw, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := s.store.SaveProgress(ctx, store.ContractProgress{
		ContractID: contractID,
		UserID:     session.UserID,
		Title:      snap.Title,
		TemplateID: snap.TemplateID,
		Variant:    snap.Variant,
		Snapshot:   raw,
		PlainText:  plain,
	}); err != nil {
		return nil, err
	}

	payload := map[string]any{"contractId": contractID, "saved": true}
	if s.revisions != nil {
		commit, err := s.revisions.Commit(contractID, snap, session.UserName, "Save "+snap.Title)
		if err != nil {
			return nil, fmt.Errorf("commit revision: %w", err)
		}
		payload["commit"] = commit
	}

	if s.search != nil {
		s.search.IndexContract(search.ContractRecord{
			ID:         contractID,
			Title:      snap.Title,
			Body:       plain,
			TemplateID: snap.TemplateID,
			Variant:    snap.Variant,
			UserID:     session.UserID,
		})
	}
	return payload, nil
}

func (s *Service) DeleteContract(ctx context.Context, session Session, contractID string) error {
	if _, err := s.editSession(ctx, contractID, session); err != nil {
		return err
	}
	if err := s.store.DeleteProgress(ctx, contractID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	s.editMu.Lock()
	delete(s.edits, contractID)
	s.editMu.Unlock()
	if s.search != nil {
		s.search.DeleteContract(contractID)
	}
	return nil
}

// ── Cell operations ──

func (s *Service) AddCell(ctx context.Context, session Session, contractID, ref, title, content string) (map[string]any, error) {
	edit, err := s.editSession(ctx, contractID, session)
	if err != nil {
		return nil, err
	}
	s.editMu.Lock()
	defer s.editMu.Unlock()
	cell := contract.NewCell(title, content)
	if ref == "" {
		ref = contract.AtEnd
	}
	edit.Doc.InsertCell(ref, cell)
	return map[string]any{"cell": cell, "cells": edit.Doc.Cells()}, nil
}

func (s *Service) UpdateCell(ctx context.Context, session Session, contractID, cellID string, patch CellPatch) (map[string]any, error) {
	edit, err := s.editSession(ctx, contractID, session)
	if err != nil {
		return nil, err
	}
	s.editMu.Lock()
	defer s.editMu.Unlock()
	if !hasCell(edit.Doc, cellID) {
		return nil, domainError(http.StatusNotFound, "CELL_NOT_FOUND", "Unknown cell", nil)
	}
	if patch.Content != nil {
		edit.Doc.SetContent(cellID, *patch.Content)
	}
	if patch.Title != nil {
		edit.Doc.SetTitle(cellID, *patch.Title)
	}
	if patch.Visible != nil {
		edit.Doc.SetVisibility(cellID, *patch.Visible)
	}
	return map[string]any{"cells": edit.Doc.Cells()}, nil
}

func (s *Service) MoveCell(ctx context.Context, session Session, contractID, cellID, direction string) (map[string]any, error) {
	edit, err := s.editSession(ctx, contractID, session)
	if err != nil {
		return nil, err
	}
	dir := contract.Direction(direction)
	if dir != contract.MoveUp && dir != contract.MoveDown {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "direction must be 'up' or 'down'", nil)
	}
	s.editMu.Lock()
	defer s.editMu.Unlock()
	if !hasCell(edit.Doc, cellID) {
		return nil, domainError(http.StatusNotFound, "CELL_NOT_FOUND", "Unknown cell", nil)
	}
	edit.Doc.MoveCell(cellID, dir)
	return map[string]any{"cells": edit.Doc.Cells()}, nil
}

func (s *Service) DeleteCell(ctx context.Context, session Session, contractID, cellID string) (map[string]any, error) {
	edit, err := s.editSession(ctx, contractID, session)
	if err != nil {
		return nil, err
	}
	s.editMu.Lock()
	defer s.editMu.Unlock()
	if !hasCell(edit.Doc, cellID) {
		return nil, domainError(http.StatusNotFound, "CELL_NOT_FOUND", "Unknown cell", nil)
	}
	edit.Doc.DeleteCell(cellID)
	return map[string]any{"cells": edit.Doc.Cells()}, nil
}

// ── Renumbering ──

// Renumber asks the model to rewrite every visible cell's numbering in one
// pass. At most one reconciliation runs per contract; the document mutates
// only when the rewritten text splits back into exactly the visible cells.
func (s *Service) Renumber(ctx context.Context, session Session, contractID string) (map[string]any, error) {
	if s.assistant == nil {
		return nil, domainError(http.StatusServiceUnavailable, "AI_UNAVAILABLE", "AI assistant not configured", nil)
	}
	edit, err := s.editSession(ctx, contractID, session)
	if err != nil {
		return nil, err
	}

	acquired, err := s.locker.AcquireRenumberLock(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, domainError(http.StatusConflict, "RENUMBER_IN_FLIGHT", "A renumbering pass is already running for this contract", nil)
	}
	defer func() {
		_ = s.locker.ReleaseRenumberLock(context.WithoutCancel(ctx), contractID)
	}()

	renumberer := contract.NewRenumberer(s.assistant)

	s.editMu.Lock()
	defer s.editMu.Unlock()
	if err := renumberer.Run(ctx, edit.Doc); err != nil {
		if errors.Is(err, contract.ErrStructureNotPreserved) {
			return nil, domainError(http.StatusUnprocessableEntity, "STRUCTURE_NOT_PRESERVED", "The rewritten text did not preserve the cell structure; no changes were applied", nil)
		}
		return nil, domainError(http.StatusBadGateway, "AI_UPSTREAM", "The AI service failed; no changes were applied", nil)
	}
	return map[string]any{"cells": edit.Doc.Cells()}, nil
}

// ── AI assistance and speech ──

func (s *Service) SuggestClause(ctx context.Context, description string) (map[string]any, error) {
	if s.assistant == nil {
		return nil, domainError(http.StatusServiceUnavailable, "AI_UNAVAILABLE", "AI assistant not configured", nil)
	}
	if strings.TrimSpace(description) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "description is required", nil)
	}
	text, err := s.assistant.SuggestClause(ctx, description)
	if err != nil {
		return nil, domainError(http.StatusBadGateway, "AI_UPSTREAM", "The AI service failed", nil)
	}
	return map[string]any{"text": text}, nil
}

func (s *Service) RewriteClause(ctx context.Context, clauseText, instruction string) (map[string]any, error) {
	if s.assistant == nil {
		return nil, domainError(http.StatusServiceUnavailable, "AI_UNAVAILABLE", "AI assistant not configured", nil)
	}
	if strings.TrimSpace(clauseText) == "" || strings.TrimSpace(instruction) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "text and instruction are required", nil)
	}
	text, err := s.assistant.RewriteClause(ctx, clauseText, instruction)
	if err != nil {
		return nil, domainError(http.StatusBadGateway, "AI_UPSTREAM", "The AI service failed", nil)
	}
	return map[string]any{"text": text}, nil
}

func (s *Service) Speak(ctx context.Context, text string) (map[string]any, error) {
	if s.speaker == nil {
		return nil, domainError(http.StatusServiceUnavailable, "SPEECH_UNAVAILABLE", "Speech service not configured", nil)
	}
	if strings.TrimSpace(text) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "text is required", nil)
	}
	audio, err := s.speaker.Speak(ctx, text)
	if err != nil {
		return nil, domainError(http.StatusBadGateway, "SPEECH_UPSTREAM", "The speech service failed", nil)
	}
	return map[string]any{"audio": audio}, nil
}

// ── Section preview flow ──

func (s *Service) Preview(ctx context.Context, session Session, contractID string) (map[string]any, error) {
	edit, err := s.editSession(ctx, contractID, session)
	if err != nil {
		return nil, err
	}
	s.editMu.Lock()
	defer s.editMu.Unlock()
	return map[string]any{
		"contractId": contractID,
		"sections":   sectionPayload(edit.Sections),
		"adHoc":      edit.AdHoc,
		"text":       contract.RenderVisible(edit.Flat, edit.Sections, edit.AdHoc),
	}, nil
}

func (s *Service) SetSectionVisibility(ctx context.Context, session Session, contractID, sectionID string, visible bool) (map[string]any, error) {
	edit, err := s.editSession(ctx, contractID, session)
	if err != nil {
		return nil, err
	}
	s.editMu.Lock()
	defer s.editMu.Unlock()
	found := false
	for i := range edit.Sections {
		if edit.Sections[i].ID == sectionID {
			edit.Sections[i].Visible = visible
			found = true
			break
		}
	}
	if !found {
		return nil, domainError(http.StatusNotFound, "SECTION_NOT_FOUND", "Unknown section", nil)
	}
	return map[string]any{
		"sections": sectionPayload(edit.Sections),
		"text":     contract.RenderVisible(edit.Flat, edit.Sections, edit.AdHoc),
	}, nil
}

func (s *Service) AddAdHocClause(ctx context.Context, session Session, contractID, text string) (map[string]any, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "text is required", nil)
	}
	edit, err := s.editSession(ctx, contractID, session)
	if err != nil {
		return nil, err
	}
	s.editMu.Lock()
	defer s.editMu.Unlock()
	clause := contract.AdHocClause{ID: util.NewID("adhoc"), Text: strings.TrimSpace(text)}
	edit.AdHoc = append(edit.AdHoc, clause)
	return map[string]any{
		"clause": clause,
		"adHoc":  edit.AdHoc,
		"text":   contract.RenderVisible(edit.Flat, edit.Sections, edit.AdHoc),
	}, nil
}

func sectionPayload(sections []contract.TemplateSection) []map[string]any {
	items := make([]map[string]any, 0, len(sections))
	for _, sec := range sections {
		items = append(items, map[string]any{
			"id":      sec.ID,
			"title":   sec.Title,
			"visible": sec.Visible,
		})
	}
	return items
}

// ── Revision history ──

func (s *Service) History(ctx context.Context, session Session, contractID string, limit int) (map[string]any, error) {
	if s.revisions == nil {
		return nil, domainError(http.StatusServiceUnavailable, "REVISIONS_UNAVAILABLE", "Revision history not configured", nil)
	}
	if _, err := s.editSession(ctx, contractID, session); err != nil {
		return nil, err
	}
	commits, err := s.revisions.History(contractID, limit)
	if err != nil {
		if errors.Is(err, revision.ErrNoHistory) {
			return map[string]any{"commits": []store.CommitInfo{}}, nil
		}
		return nil, err
	}
	return map[string]any{"commits": commits}, nil
}

func (s *Service) RevisionByHash(ctx context.Context, session Session, contractID, hash string) (map[string]any, error) {
	if s.revisions == nil {
		return nil, domainError(http.StatusServiceUnavailable, "REVISIONS_UNAVAILABLE", "Revision history not configured", nil)
	}
	if _, err := s.editSession(ctx, contractID, session); err != nil {
		return nil, err
	}
	snap, err := s.revisions.GetByHash(contractID, hash)
	if err != nil {
		return nil, domainError(http.StatusNotFound, "REVISION_NOT_FOUND", "Unknown revision", nil)
	}
	return map[string]any{"snapshot": snap}, nil
}

// ── Export ──

func (s *Service) Export(ctx context.Context, session Session, contractID, format string) (*export.Result, error) {
	if s.exporter == nil {
		return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Export service not configured", nil)
	}
	f := export.Format(format)
	if f != export.FormatPDF && f != export.FormatDOCX {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "format must be 'pdf' or 'docx'", nil)
	}
	edit, err := s.editSession(ctx, contractID, session)
	if err != nil {
		return nil, err
	}

	s.editMu.Lock()
	view := export.ContractView{
		Title:   edit.Title,
		Variant: edit.Doc.Variant,
		Author:  session.UserName,
	}
	if tpl, ok := contract.Lookup(edit.Doc.TemplateID); ok {
		view.TemplateName = tpl.Name
	}
	for _, c := range edit.Doc.VisibleCells() {
		view.Cells = append(view.Cells, export.CellView{Title: c.Title, Content: c.Content})
	}
	s.editMu.Unlock()

	result, err := s.exporter.Export(ctx, export.Request{ContractID: contractID, Format: f}, view)
	if err != nil {
		if errors.Is(err, export.ErrDOCXDependencyMissing) {
			return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "DOCX conversion is not available on this host", nil)
		}
		return nil, err
	}
	return result, nil
}

// ── Opportunity proxies ──

func (s *Service) Opportunities(ctx context.Context) (json.RawMessage, error) {
	return s.opportunityCall(ctx, func(c opportunityClient) (json.RawMessage, error) {
		return c.List(ctx)
	})
}

func (s *Service) OpportunityDetail(ctx context.Context, id string) (json.RawMessage, error) {
	return s.opportunityCall(ctx, func(c opportunityClient) (json.RawMessage, error) {
		return c.Detail(ctx, id)
	})
}

func (s *Service) OpportunityProgress(ctx context.Context, id string) (json.RawMessage, error) {
	return s.opportunityCall(ctx, func(c opportunityClient) (json.RawMessage, error) {
		return c.GetProgress(ctx, id)
	})
}

func (s *Service) SaveOpportunityProgress(ctx context.Context, id string, payload json.RawMessage) (json.RawMessage, error) {
	return s.opportunityCall(ctx, func(c opportunityClient) (json.RawMessage, error) {
		return c.InsertProgress(ctx, id, payload)
	})
}

func (s *Service) opportunityCall(ctx context.Context, call func(opportunityClient) (json.RawMessage, error)) (json.RawMessage, error) {
	if s.opportunities == nil {
		return nil, domainError(http.StatusServiceUnavailable, "OPPORTUNITY_UNAVAILABLE", "Opportunity service not configured", nil)
	}
	payload, err := call(s.opportunities)
	if err != nil {
		return nil, domainError(http.StatusBadGateway, "OPPORTUNITY_UPSTREAM", "The opportunity service failed", nil)
	}
	return payload, nil
}

// ── Search ──

func (s *Service) Search(ctx context.Context, session Session, text, filterType string, limit, offset int) (search.Response, error) {
	if s.search == nil {
		return search.Response{}, domainError(http.StatusServiceUnavailable, "SEARCH_UNAVAILABLE", "Search not configured", nil)
	}
	return s.search.Search(search.Query{
		Text:         text,
		FilterType:   search.ResultType(filterType),
		FilterUserID: session.UserID,
		Limit:        limit,
		Offset:       offset,
	}), nil
}

// ── Edit session management ──

// editSession returns the live session, reviving one from saved progress when
// the server restarted since the contract was last touched.
func (s *Service) editSession(ctx context.Context, contractID string, session Session) (*EditSession, error) {
	s.editMu.Lock()
	edit, ok := s.edits[contractID]
	s.editMu.Unlock()
	if ok {
		if edit.UserID != session.UserID && !s.Can(session.Role, rbac.ActionAdmin) {
			return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
		}
		return edit, nil
	}

	progress, err := s.store.GetProgress(ctx, contractID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Unknown contract", nil)
		}
		return nil, err
	}
	if progress.UserID != session.UserID && !s.Can(session.Role, rbac.ActionAdmin) {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}

	var snap revision.Snapshot
	if err := json.Unmarshal(progress.Snapshot, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	doc := contract.NewDocument(contractID, snap.Cells)
	doc.TemplateID = snap.TemplateID
	doc.Variant = snap.Variant
	doc.Fields = snap.Fields

	edit = &EditSession{
		UserID: progress.UserID,
		Title:  progress.Title,
		Doc:    doc,
	}
	// Section visibility is session-scoped; a revived session starts with the
	// template's full flat text and every section visible.
	if tpl, ok := contract.Lookup(snap.TemplateID); ok {
		edit.Flat = tpl.FlatText(snap.Fields, snap.Variant)
		edit.Sections = contract.ExtractSections(edit.Flat)
	}

	s.editMu.Lock()
	if existing, ok := s.edits[contractID]; ok {
		edit = existing
	} else {
		s.edits[contractID] = edit
	}
	s.editMu.Unlock()
	return edit, nil
}

func (s *Service) snapshot(contractID string, edit *EditSession) revision.Snapshot {
	return revision.Snapshot{
		ContractID: contractID,
		Title:      edit.Title,
		TemplateID: edit.Doc.TemplateID,
		Variant:    edit.Doc.Variant,
		Fields:     edit.Doc.Fields,
		Cells:      edit.Doc.Cells(),
	}
}

func (s *Service) contractPayload(contractID string, edit *EditSession) map[string]any {
	return map[string]any{
		"contractId": contractID,
		"title":      edit.Title,
		"templateId": edit.Doc.TemplateID,
		"variant":    edit.Doc.Variant,
		"fields":     edit.Doc.Fields,
		"cells":      edit.Doc.Cells(),
	}
}

func hasCell(doc *contract.Document, id string) bool {
	for _, c := range doc.Cells() {
		if c.ID == id {
			return true
		}
	}
	return false
}

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// plainText flattens visible cell HTML into the text kept for search.
func plainText(cells []contract.Cell) string {
	var parts []string
	for _, c := range cells {
		text := strings.TrimSpace(html.UnescapeString(htmlTagPattern.ReplaceAllString(c.Content, " ")))
		if c.Title != "" {
			text = c.Title + " " + text
		}
		if text != "" {
			parts = append(parts, strings.Join(strings.Fields(text), " "))
		}
	}
	return strings.Join(parts, "\n")
}

func containsString(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

// memoryLocker is the single-process fallback when Redis is not configured.
type memoryLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func newMemoryLocker() *memoryLocker {
	return &memoryLocker{held: make(map[string]bool)}
}

func (l *memoryLocker) AcquireRenumberLock(ctx context.Context, contractID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[contractID] {
		return false, nil
	}
	l.held[contractID] = true
	return true, nil
}

func (l *memoryLocker) ReleaseRenumberLock(ctx context.Context, contractID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, contractID)
	return nil
}
