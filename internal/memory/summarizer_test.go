package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/opalchat/opal/internal/chat"
	"github.com/opalchat/opal/internal/db"
	"github.com/opalchat/opal/internal/db/migrations"
	"github.com/opalchat/opal/internal/logging"
)

func newTestStore(t *testing.T) *db.Store {
	t.Helper()
	logging.Disable()
	migrations.QuietMode = true

	store, err := db.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// fakeCompletions serves an OpenAI-compatible completions endpoint that
// returns canned message contents, one per call.
func fakeCompletions(t *testing.T, calls *atomic.Int32, responses ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1)) - 1
		if n >= len(responses) {
			t.Errorf("unexpected completion call %d", n)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"choices":[{"message":{"role":"assistant","content":%s}}]}`,
			mustJSONString(responses[n]))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func mustJSONString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func seedConversation(t *testing.T, store *db.Store, sessionID string, turns int) {
	t.Helper()
	ctx := context.Background()
	if _, err := store.CreateSession(ctx, sessionID, "m"); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < turns; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		blob := chat.EncodeUserPayload(fmt.Sprintf("message %d", i), nil)
		id := fmt.Sprintf("msg-%d", i)
		if _, err := store.AppendMessage(ctx, id, sessionID, role, blob); err != nil {
			t.Fatal(err)
		}
	}
}

func TestRegenerateUpdatesProfile(t *testing.T) {
	store := newTestStore(t)
	seedConversation(t, store, "s1", 4)

	var calls atomic.Int32
	srv := fakeCompletions(t, &calls, `{"name":"Ada","occupation":"engineer"}`)

	s := NewSummarizer(store, "test-key", srv.URL, "test-model", 2000)
	if err := s.Regenerate(context.Background(), "s1"); err != nil {
		t.Fatalf("regenerate failed: %v", err)
	}

	if got := calls.Load(); got != 1 {
		t.Errorf("completion calls = %d, want 1", got)
	}
	profile, _ := store.GetProfileJSON(context.Background())
	if profile != `{"name":"Ada","occupation":"engineer"}` {
		t.Errorf("profile = %q", profile)
	}
}

func TestRegenerateIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	seedConversation(t, store, "s1", 4)

	var calls atomic.Int32
	srv := fakeCompletions(t, &calls, `{"name":"Ada"}`, `{"name":"Ada"}`)

	s := NewSummarizer(store, "test-key", srv.URL, "test-model", 2000)
	for i := 0; i < 2; i++ {
		if err := s.Regenerate(context.Background(), "s1"); err != nil {
			t.Fatalf("regenerate %d failed: %v", i, err)
		}
	}

	profile, _ := store.GetProfileJSON(context.Background())
	if profile != `{"name":"Ada"}` {
		t.Errorf("profile = %q after repeated regeneration", profile)
	}
}

func TestRegenerateSkipsShortConversations(t *testing.T) {
	store := newTestStore(t)
	seedConversation(t, store, "s1", 3)

	var calls atomic.Int32
	srv := fakeCompletions(t, &calls)

	s := NewSummarizer(store, "test-key", srv.URL, "test-model", 2000)
	if err := s.Regenerate(context.Background(), "s1"); err != nil {
		t.Fatalf("regenerate failed: %v", err)
	}

	if got := calls.Load(); got != 0 {
		t.Errorf("completion calls = %d, want 0", got)
	}
	profile, _ := store.GetProfileJSON(context.Background())
	if profile != "{}" {
		t.Errorf("profile = %q, want untouched {}", profile)
	}
}

func TestRegenerateShrinksOversizedProfile(t *testing.T) {
	store := newTestStore(t)
	seedConversation(t, store, "s1", 4)

	oversized := `{"biography":"a very long story about the user that goes on and on"}`
	shrunk := `{"bio":"short"}`

	var calls atomic.Int32
	srv := fakeCompletions(t, &calls, oversized, shrunk)

	s := NewSummarizer(store, "test-key", srv.URL, "test-model", 30)
	if err := s.Regenerate(context.Background(), "s1"); err != nil {
		t.Fatalf("regenerate failed: %v", err)
	}

	if got := calls.Load(); got != 2 {
		t.Errorf("completion calls = %d, want 2 (update + shrink)", got)
	}
	profile, _ := store.GetProfileJSON(context.Background())
	if profile != shrunk {
		t.Errorf("profile = %q, want %q", profile, shrunk)
	}
}

func TestRegenerateRejectsInvalidJSON(t *testing.T) {
	store := newTestStore(t)
	seedConversation(t, store, "s1", 4)
	if err := store.UpdateProfileJSON(context.Background(), `{"kept":"yes"}`); err != nil {
		t.Fatal(err)
	}

	var calls atomic.Int32
	srv := fakeCompletions(t, &calls, "Sorry, I cannot produce JSON today.")

	s := NewSummarizer(store, "test-key", srv.URL, "test-model", 2000)
	if err := s.Regenerate(context.Background(), "s1"); err == nil {
		t.Fatal("expected error for non-JSON summarizer output")
	}

	profile, _ := store.GetProfileJSON(context.Background())
	if profile != `{"kept":"yes"}` {
		t.Errorf("profile = %q, want prior profile preserved", profile)
	}
}
