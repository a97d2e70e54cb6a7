package profile

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/lumen/backend/internal/model/chat"
	"github.com/zhouzirui/lumen/backend/internal/model/profile"
)

func TestGetProfileReturnsWelcomeTurn(t *testing.T) {
	active, ok := profile.NewMemoryStore(profile.Seed()).FindByID(profile.DefaultID)
	if !ok {
		t.Fatalf("default profile missing")
	}

	r := chi.NewRouter()
	New(active).RegisterRoutes(r)

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if strings.Contains(resp.Body.String(), active.SystemPrompt) {
		t.Fatalf("system prompt must not be exposed")
	}

	var payload Response
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Profile.ID != profile.DefaultID {
		t.Fatalf("expected profile %s, got %s", profile.DefaultID, payload.Profile.ID)
	}
	if payload.Welcome.Role != chat.RoleAssistant || payload.Welcome.Content != active.WelcomeMessage {
		t.Fatalf("unexpected welcome turn: %+v", payload.Welcome)
	}
}
