package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"lexdraft/api/internal/auth"
	"lexdraft/api/internal/config"
	"lexdraft/api/internal/contract"
	"lexdraft/api/internal/export"
	"lexdraft/api/internal/store"
)

type fakeStore struct {
	users    map[string]store.User
	progress map[string]store.ContractProgress
	sessions map[string]string // token hash -> user id
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users: map[string]store.User{
			"user_1": {ID: "user_1", Email: "ada@example.com", DisplayName: "Ada", Role: "editor"},
		},
		progress: make(map[string]store.ContractProgress),
		sessions: make(map[string]string),
	}
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (store.User, error) {
	user, ok := f.users[id]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return user, nil
}

func (f *fakeStore) SaveProgress(_ context.Context, p store.ContractProgress) error {
	f.progress[p.ContractID] = p
	return nil
}

func (f *fakeStore) GetProgress(_ context.Context, contractID string) (store.ContractProgress, error) {
	p, ok := f.progress[contractID]
	if !ok {
		return store.ContractProgress{}, store.ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) ListProgress(_ context.Context, userID string) ([]store.ContractProgress, error) {
	var items []store.ContractProgress
	for _, p := range f.progress {
		if p.UserID == userID {
			items = append(items, p)
		}
	}
	return items, nil
}

func (f *fakeStore) DeleteProgress(_ context.Context, contractID string) error {
	delete(f.progress, contractID)
	return nil
}

func (f *fakeStore) Ping(context.Context) error { return nil }

func (f *fakeStore) SaveRefreshSession(_ context.Context, tokenHash, userID string, _ time.Time) error {
	f.sessions[tokenHash] = userID
	return nil
}

func (f *fakeStore) LookupRefreshSession(_ context.Context, tokenHash string) (store.User, error) {
	userID, ok := f.sessions[tokenHash]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return store.User{ID: userID}, nil
}

func (f *fakeStore) RevokeRefreshSession(_ context.Context, tokenHash string) error {
	delete(f.sessions, tokenHash)
	return nil
}

type fakeAssistant struct {
	renumber func(ctx context.Context, text string) (string, error)
}

func (f *fakeAssistant) SuggestClause(_ context.Context, description string) (string, error) {
	return "Suggested clause for: " + description, nil
}

func (f *fakeAssistant) RewriteClause(_ context.Context, text, _ string) (string, error) {
	return "Rewritten: " + text, nil
}

func (f *fakeAssistant) Renumber(ctx context.Context, text string) (string, error) {
	if f.renumber != nil {
		return f.renumber(ctx, text)
	}
	return text, nil
}

func testConfig() config.Config {
	return config.Config{
		JWTSecret:  "test-secret",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: time.Hour,
	}
}

func newTestService(fs *fakeStore, c Collaborators) *Service {
	s := &Service{
		cfg:           testConfig(),
		store:         fs,
		sessions:      fs,
		locker:        newMemoryLocker(),
		assistant:     c.Assistant,
		speaker:       c.Speaker,
		opportunities: c.Opportunities,
		search:        c.Search,
		revisions:     c.Revisions,
		exporter:      c.Exporter,
		edits:         make(map[string]*EditSession),
	}
	if c.Locker != nil {
		s.locker = c.Locker
	}
	return s
}

func editorToken(t *testing.T) string {
	t.Helper()
	token, err := auth.IssueToken([]byte("test-secret"), auth.Claims{
		Sub:  "user_1",
		Name: "Ada",
		Role: "editor",
		JTI:  "jti_test",
		Exp:  time.Now().Add(15 * time.Minute).Unix(),
	})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func doRequest(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return payload
}

func generateContract(t *testing.T, handler http.Handler, token string) (string, []any) {
	t.Helper()
	rec := doRequest(t, handler, http.MethodPost, "/api/contracts/generate", token, map[string]any{
		"templateId": "service_agreement",
		"variant":    "individual",
		"title":      "Test Agreement",
		"fields":     map[string]string{"client_name": "Acme Ltd"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("generate status = %d body=%s", rec.Code, rec.Body.String())
	}
	payload := decodeResponse(t, rec)
	contractID, _ := payload["contractId"].(string)
	if contractID == "" {
		t.Fatal("generate returned no contractId")
	}
	cells, _ := payload["cells"].([]any)
	if len(cells) == 0 {
		t.Fatal("generate returned no cells")
	}
	return contractID, cells
}

func TestHealth(t *testing.T) {
	handler := NewHTTPServer(newTestService(newFakeStore(), Collaborators{}), "*").Handler()
	rec := doRequest(t, handler, http.MethodGet, "/api/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	handler := NewHTTPServer(newTestService(newFakeStore(), Collaborators{}), "*").Handler()
	rec := doRequest(t, handler, http.MethodGet, "/api/contracts", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestGenerateAndCellOps(t *testing.T) {
	handler := NewHTTPServer(newTestService(newFakeStore(), Collaborators{}), "*").Handler()
	token := editorToken(t)
	contractID, cells := generateContract(t, handler, token)

	// Add a cell at the end.
	rec := doRequest(t, handler, http.MethodPost, "/api/contracts/"+contractID+"/cells", token, map[string]any{
		"title":   "Extra Clause",
		"content": "<p>Additional terms.</p>",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add cell status = %d body=%s", rec.Code, rec.Body.String())
	}
	payload := decodeResponse(t, rec)
	updated, _ := payload["cells"].([]any)
	if len(updated) != len(cells)+1 {
		t.Fatalf("cells after add = %d, want %d", len(updated), len(cells)+1)
	}

	// Hide the first cell.
	first := cells[0].(map[string]any)
	firstID := first["id"].(string)
	rec = doRequest(t, handler, http.MethodPatch, "/api/contracts/"+contractID+"/cells/"+firstID, token, map[string]any{
		"visible": false,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d body=%s", rec.Code, rec.Body.String())
	}
	payload = decodeResponse(t, rec)
	for _, raw := range payload["cells"].([]any) {
		cell := raw.(map[string]any)
		if cell["id"] == firstID && cell["visible"] != false {
			t.Fatal("cell still visible after hide")
		}
	}

	// Unknown cell is a 404.
	rec = doRequest(t, handler, http.MethodDelete, "/api/contracts/"+contractID+"/cells/cell_missing", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("delete unknown cell status = %d, want 404", rec.Code)
	}
}

func TestMoveCellBoundary(t *testing.T) {
	handler := NewHTTPServer(newTestService(newFakeStore(), Collaborators{}), "*").Handler()
	token := editorToken(t)
	contractID, cells := generateContract(t, handler, token)

	first := cells[0].(map[string]any)
	firstID := first["id"].(string)

	// First visible cell cannot move up; the order stays put.
	rec := doRequest(t, handler, http.MethodPost, "/api/contracts/"+contractID+"/cells/"+firstID+"/move", token, map[string]any{
		"direction": "up",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("move status = %d body=%s", rec.Code, rec.Body.String())
	}
	payload := decodeResponse(t, rec)
	after := payload["cells"].([]any)
	if after[0].(map[string]any)["id"] != firstID {
		t.Fatal("first cell moved above the top boundary")
	}

	rec = doRequest(t, handler, http.MethodPost, "/api/contracts/"+contractID+"/cells/"+firstID+"/move", token, map[string]any{
		"direction": "sideways",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid direction status = %d, want 422", rec.Code)
	}
}

func TestRenumberHappyPath(t *testing.T) {
	assistant := &fakeAssistant{
		renumber: func(_ context.Context, text string) (string, error) {
			parts := strings.Split(text, contract.CellDelimiter)
			for i := range parts {
				parts[i] = fmt.Sprintf("%d. %s", i+1, parts[i])
			}
			return strings.Join(parts, contract.CellDelimiter), nil
		},
	}
	handler := NewHTTPServer(newTestService(newFakeStore(), Collaborators{Assistant: assistant}), "*").Handler()
	token := editorToken(t)
	contractID, _ := generateContract(t, handler, token)

	rec := doRequest(t, handler, http.MethodPost, "/api/contracts/"+contractID+"/renumber", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("renumber status = %d body=%s", rec.Code, rec.Body.String())
	}
	payload := decodeResponse(t, rec)
	first := payload["cells"].([]any)[0].(map[string]any)
	if !strings.HasPrefix(first["content"].(string), "1. ") {
		t.Errorf("first cell content = %q, want renumbered prefix", first["content"])
	}
}

func TestRenumberStructureNotPreserved(t *testing.T) {
	assistant := &fakeAssistant{
		renumber: func(context.Context, string) (string, error) {
			return "collapsed into one blob", nil
		},
	}
	handler := NewHTTPServer(newTestService(newFakeStore(), Collaborators{Assistant: assistant}), "*").Handler()
	token := editorToken(t)
	contractID, before := generateContract(t, handler, token)

	rec := doRequest(t, handler, http.MethodPost, "/api/contracts/"+contractID+"/renumber", token, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("renumber status = %d, want 422", rec.Code)
	}
	payload := decodeResponse(t, rec)
	if payload["code"] != "STRUCTURE_NOT_PRESERVED" {
		t.Errorf("code = %v", payload["code"])
	}

	// All-or-nothing: no cell changed.
	rec = doRequest(t, handler, http.MethodGet, "/api/contracts/"+contractID, token, nil)
	after := decodeResponse(t, rec)["cells"].([]any)
	if len(after) != len(before) {
		t.Fatalf("cell count changed: %d -> %d", len(before), len(after))
	}
	for i := range before {
		b := before[i].(map[string]any)
		a := after[i].(map[string]any)
		if b["content"] != a["content"] {
			t.Fatalf("cell %d mutated after failed renumber", i)
		}
	}
}

func TestRenumberUpstreamFailure(t *testing.T) {
	assistant := &fakeAssistant{
		renumber: func(context.Context, string) (string, error) {
			return "", errors.New("model offline")
		},
	}
	handler := NewHTTPServer(newTestService(newFakeStore(), Collaborators{Assistant: assistant}), "*").Handler()
	token := editorToken(t)
	contractID, _ := generateContract(t, handler, token)

	rec := doRequest(t, handler, http.MethodPost, "/api/contracts/"+contractID+"/renumber", token, nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("renumber status = %d, want 502", rec.Code)
	}
}

func TestRenumberInFlight(t *testing.T) {
	locker := newMemoryLocker()
	assistant := &fakeAssistant{}
	handler := NewHTTPServer(newTestService(newFakeStore(), Collaborators{Assistant: assistant, Locker: locker}), "*").Handler()
	token := editorToken(t)
	contractID, _ := generateContract(t, handler, token)

	if ok, _ := locker.AcquireRenumberLock(context.Background(), contractID); !ok {
		t.Fatal("could not pre-acquire lock")
	}
	rec := doRequest(t, handler, http.MethodPost, "/api/contracts/"+contractID+"/renumber", token, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("renumber status = %d, want 409", rec.Code)
	}
	payload := decodeResponse(t, rec)
	if payload["code"] != "RENUMBER_IN_FLIGHT" {
		t.Errorf("code = %v", payload["code"])
	}
}

func TestRenumberWithoutAssistant(t *testing.T) {
	handler := NewHTTPServer(newTestService(newFakeStore(), Collaborators{}), "*").Handler()
	token := editorToken(t)
	contractID, _ := generateContract(t, handler, token)

	rec := doRequest(t, handler, http.MethodPost, "/api/contracts/"+contractID+"/renumber", token, nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("renumber status = %d, want 503", rec.Code)
	}
}

func TestSaveAndReload(t *testing.T) {
	fs := newFakeStore()
	service := newTestService(fs, Collaborators{})
	handler := NewHTTPServer(service, "*").Handler()
	token := editorToken(t)
	contractID, cells := generateContract(t, handler, token)

	rec := doRequest(t, handler, http.MethodPut, "/api/contracts/"+contractID, token, map[string]any{
		"title": "Renamed Agreement",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("save status = %d body=%s", rec.Code, rec.Body.String())
	}

	// A fresh service over the same store revives the session from the snapshot.
	revived := NewHTTPServer(newTestService(fs, Collaborators{}), "*").Handler()
	rec = doRequest(t, revived, http.MethodGet, "/api/contracts/"+contractID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("reload status = %d body=%s", rec.Code, rec.Body.String())
	}
	payload := decodeResponse(t, rec)
	if payload["title"] != "Renamed Agreement" {
		t.Errorf("title = %v", payload["title"])
	}
	if got := len(payload["cells"].([]any)); got != len(cells) {
		t.Errorf("cells after reload = %d, want %d", got, len(cells))
	}
}

func TestSectionPreviewFlow(t *testing.T) {
	handler := NewHTTPServer(newTestService(newFakeStore(), Collaborators{}), "*").Handler()
	token := editorToken(t)
	contractID, _ := generateContract(t, handler, token)

	rec := doRequest(t, handler, http.MethodGet, "/api/contracts/"+contractID+"/preview", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("preview status = %d body=%s", rec.Code, rec.Body.String())
	}
	payload := decodeResponse(t, rec)
	sections := payload["sections"].([]any)
	if len(sections) == 0 {
		t.Fatal("preview returned no sections")
	}
	first := sections[0].(map[string]any)
	sectionID := first["id"].(string)

	rec = doRequest(t, handler, http.MethodPatch, "/api/contracts/"+contractID+"/sections/"+sectionID, token, map[string]any{
		"visible": false,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle status = %d body=%s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, handler, http.MethodPost, "/api/contracts/"+contractID+"/clauses", token, map[string]any{
		"text": "The parties agree to arbitrate disputes in London.",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("ad-hoc status = %d body=%s", rec.Code, rec.Body.String())
	}
	payload = decodeResponse(t, rec)
	text := payload["text"].(string)
	if !strings.Contains(text, contract.AdHocHeading) {
		t.Error("rendered text missing ad-hoc heading")
	}
	if !strings.Contains(text, "1. The parties agree") {
		t.Error("rendered text missing numbered ad-hoc clause")
	}
	if strings.Contains(text, "SECTION_START") {
		t.Error("rendered text leaked section markers")
	}
}

func TestExportPDFDownload(t *testing.T) {
	handler := NewHTTPServer(newTestService(newFakeStore(), Collaborators{Exporter: export.NewService()}), "*").Handler()
	token := editorToken(t)
	contractID, _ := generateContract(t, handler, token)

	rec := doRequest(t, handler, http.MethodPost, "/api/contracts/"+contractID+"/export", token, map[string]any{
		"format": "pdf",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d body=%s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "application/pdf" {
		t.Errorf("content type = %q", got)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Error("body is not a PDF")
	}
}

func TestOpportunityUnavailable(t *testing.T) {
	handler := NewHTTPServer(newTestService(newFakeStore(), Collaborators{}), "*").Handler()
	token := editorToken(t)
	rec := doRequest(t, handler, http.MethodGet, "/api/opportunities", token, nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestSuggestWithoutAssistant(t *testing.T) {
	handler := NewHTTPServer(newTestService(newFakeStore(), Collaborators{}), "*").Handler()
	token := editorToken(t)
	rec := doRequest(t, handler, http.MethodPost, "/api/ai/suggest", token, map[string]any{"description": "indemnity"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestViewerCannotWrite(t *testing.T) {
	fs := newFakeStore()
	fs.users["user_2"] = store.User{ID: "user_2", DisplayName: "Vee", Role: "viewer"}
	handler := NewHTTPServer(newTestService(fs, Collaborators{}), "*").Handler()

	viewerToken, err := auth.IssueToken([]byte("test-secret"), auth.Claims{
		Sub:  "user_2",
		Name: "Vee",
		Role: "viewer",
		JTI:  "jti_viewer",
		Exp:  time.Now().Add(15 * time.Minute).Unix(),
	})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	rec := doRequest(t, handler, http.MethodPost, "/api/contracts/generate", viewerToken, map[string]any{
		"templateId": "mutual_nda",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}
