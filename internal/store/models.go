package store

import (
	"encoding/json"
	"time"
)

// User is the small profile record exposed to the editor.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	Organization string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ContractProgress is a serialized snapshot of a drafting session. The
// snapshot is the whole cell list plus template metadata; PlainText is the
// stripped text kept for full-text search.
type ContractProgress struct {
	ContractID string
	UserID     string
	Title      string
	TemplateID string
	Variant    string
	Snapshot   json.RawMessage
	PlainText  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CommitInfo describes one revision of a contract's history.
type CommitInfo struct {
	Hash    string    `json:"hash"`
	Message string    `json:"message"`
	Author  string    `json:"author"`
	When    time.Time `json:"when"`
}
