package opportunity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDetailPassThrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/opportunities/detail" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["opportunityId"] != "opp-1" {
			t.Errorf("opportunityId = %v", body["opportunityId"])
		}
		w.Write([]byte(`{"id":"opp-1","client":{"name":"Acme"}}`))
	}))
	defer server.Close()

	raw, err := NewClient(server.URL).Detail(context.Background(), "opp-1")
	if err != nil {
		t.Fatalf("Detail: %v", err)
	}
	if !strings.Contains(string(raw), `"Acme"`) {
		t.Errorf("payload not passed through opaquely: %s", raw)
	}
}

func TestListErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewClient(server.URL).List(context.Background())
	if err == nil || !strings.Contains(err.Error(), "status 502") {
		t.Errorf("expected status error, got %v", err)
	}
}

func TestInsertProgressForwardsPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			OpportunityID string          `json:"opportunityId"`
			Payload       json.RawMessage `json:"payload"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.OpportunityID != "opp-2" {
			t.Errorf("opportunityId = %q", body.OpportunityID)
		}
		if !strings.Contains(string(body.Payload), `"cells"`) {
			t.Errorf("payload not forwarded: %s", body.Payload)
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	payload := json.RawMessage(`{"cells":[{"id":"a"}]}`)
	if _, err := NewClient(server.URL).InsertProgress(context.Background(), "opp-2", payload); err != nil {
		t.Fatalf("InsertProgress: %v", err)
	}
}
