package api

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/erazemk/zaloga/internal/auth"
	"github.com/erazemk/zaloga/internal/backend/local"
	"github.com/erazemk/zaloga/internal/blob"
	"github.com/erazemk/zaloga/internal/db"
	"github.com/erazemk/zaloga/internal/inventory"
)

type countingGauge struct {
	mu sync.Mutex
	n  int
}

func (g *countingGauge) SessionOpened() { g.mu.Lock(); g.n++; g.mu.Unlock() }
func (g *countingGauge) SessionClosed() { g.mu.Lock(); g.n--; g.mu.Unlock() }

func (g *countingGauge) value() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n
}

func newTestSessions(t *testing.T) (*Sessions, *countingGauge, *time.Time) {
	t.Helper()
	svc := local.NewService(db.NewTestDB(t), blob.NewMemory(""))
	m := &countingGauge{}
	s := NewSessions(svc, inventory.Options{}, m)
	t.Cleanup(s.Close)

	now := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	return s, m, &now
}

func addSession(t *testing.T, s *Sessions, email, jti string, expires time.Time) *auth.Claims {
	t.Helper()
	sess, id, err := s.Login(context.Background(), email, "secret1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	claims := &auth.Claims{
		UID:   id.UID,
		Email: id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	s.Add(claims, sess)
	return claims
}

func TestSweepClosesExpiredSessions(t *testing.T) {
	s, m, now := newTestSessions(t)

	addSession(t, s, "ana@example.com", "short", now.Add(time.Hour))
	addSession(t, s, "bor@example.com", "long", now.Add(24*time.Hour))
	if s.Len() != 2 {
		t.Fatalf("expected 2 sessions, got %d", s.Len())
	}

	*now = now.Add(2 * time.Hour)
	s.Sweep(context.Background())

	if s.Len() != 1 {
		t.Fatalf("expected 1 session after sweep, got %d", s.Len())
	}
	s.mu.Lock()
	_, ok := s.byJTI["long"]
	s.mu.Unlock()
	if !ok {
		t.Error("expected unexpired session kept")
	}
	if got := m.value(); got != 1 {
		t.Errorf("expected gauge 1, got %d", got)
	}
}

func TestGetSweepsExpiredSessions(t *testing.T) {
	s, _, now := newTestSessions(t)

	addSession(t, s, "ana@example.com", "short", now.Add(time.Hour))
	long := addSession(t, s, "bor@example.com", "long", now.Add(24*time.Hour))

	*now = now.Add(2 * time.Hour)
	if _, err := s.Get(context.Background(), long); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if s.Len() != 1 {
		t.Errorf("expected expired session swept on Get, got %d sessions", s.Len())
	}
}

func TestRunStopsWithContext(t *testing.T) {
	s, _, _ := newTestSessions(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
