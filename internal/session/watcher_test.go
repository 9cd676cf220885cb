package session

import (
	"context"
	"testing"
	"time"
)

func TestWatcher_PicksUpExternalLogin(t *testing.T) {
	idp := newFakeIdP(t)
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	m := NewManager(idp.client(), store)

	w := NewWatcher(m)
	if err := w.Start(); err != nil {
		t.Fatalf("Failed to start watcher: %v", err)
	}
	defer w.Stop()

	// Simulate `auth login` in another process.
	external := &Session{
		AccessToken: "external-token",
		Subject:     "bob@example.com",
		ExpiresAt:   time.Now().Add(time.Hour),
	}
	if err := store.Save(external); err != nil {
		t.Fatalf("Failed to save session: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		token, err := m.EnsureValid(context.Background())
		if err == nil && token == "external-token" {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("Watcher did not pick up the externally written session")
}

func TestWatcher_StartStopIdempotent(t *testing.T) {
	idp := newFakeIdP(t)
	m := newTestManager(t, idp)

	w := NewWatcher(m)
	if err := w.Start(); err != nil {
		t.Fatalf("Failed to start watcher: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Second start must be a no-op: %v", err)
	}
	w.Stop()
	w.Stop()
}
