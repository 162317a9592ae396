package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/erazemk/zaloga/internal/auth"
	"github.com/erazemk/zaloga/internal/backend/local"
	"github.com/erazemk/zaloga/internal/inventory"
	"github.com/erazemk/zaloga/internal/model"
)

// SessionGauge counts open sessions.
type SessionGauge interface {
	SessionOpened()
	SessionClosed()
}

type nopGauge struct{}

func (nopGauge) SessionOpened() {}
func (nopGauge) SessionClosed() {}

// Session is one signed-in browser: an inventory client on its own backend
// connection.
type Session struct {
	Client  *inventory.Client
	expires time.Time
}

// Sessions holds one Session per token, keyed by the token's JTI.
type Sessions struct {
	svc   *local.Service
	opts  inventory.Options
	gauge SessionGauge
	now   func() time.Time

	mu    sync.Mutex
	byJTI map[string]*Session
}

// NewSessions returns an empty registry. gauge may be nil.
func NewSessions(svc *local.Service, opts inventory.Options, gauge SessionGauge) *Sessions {
	if gauge == nil {
		gauge = nopGauge{}
	}
	return &Sessions{
		svc:   svc,
		opts:  opts,
		gauge: gauge,
		now:   time.Now,
		byJTI: make(map[string]*Session),
	}
}

// Login signs in on a fresh connection, registering the account if needed.
// The session is not tracked until Add.
func (s *Sessions) Login(ctx context.Context, email, password string) (*Session, model.Identity, error) {
	client := inventory.NewClient(s.svc.Connect(), s.opts)
	id, err := client.Login(ctx, email, password)
	if err != nil {
		client.Close()
		return nil, model.Identity{}, err
	}
	return &Session{Client: client}, id, nil
}

// Add tracks sess under the token's JTI until the token expires.
func (s *Sessions) Add(claims *auth.Claims, sess *Session) {
	sess.expires = claims.ExpiresAt.Time

	s.mu.Lock()
	expired := s.sweepLocked()
	s.byJTI[claims.ID] = sess
	s.mu.Unlock()

	s.gauge.SessionOpened()
	s.closeAll(context.Background(), expired)
}

// Get returns the session of a verified token. A token issued before a
// restart gets a new session for the same user.
func (s *Sessions) Get(ctx context.Context, claims *auth.Claims) (*Session, error) {
	s.mu.Lock()
	expired := s.sweepLocked()
	sess, ok := s.byJTI[claims.ID]
	s.mu.Unlock()
	s.closeAll(ctx, expired)
	if ok {
		return sess, nil
	}

	conn := s.svc.Connect()
	if _, err := conn.Restore(ctx, claims.UID); err != nil {
		return nil, err
	}
	sess = &Session{Client: inventory.NewClient(conn, s.opts), expires: claims.ExpiresAt.Time}

	s.mu.Lock()
	if existing, ok := s.byJTI[claims.ID]; ok {
		s.mu.Unlock()
		sess.Client.Close()
		return existing, nil
	}
	s.byJTI[claims.ID] = sess
	s.mu.Unlock()

	s.gauge.SessionOpened()
	return sess, nil
}

// Remove signs the session out and forgets it.
func (s *Sessions) Remove(ctx context.Context, jti string) {
	s.mu.Lock()
	sess, ok := s.byJTI[jti]
	delete(s.byJTI, jti)
	s.mu.Unlock()
	if ok {
		s.closeAll(ctx, []*Session{sess})
	}
}

// Sweep closes every session whose token has expired.
func (s *Sessions) Sweep(ctx context.Context) {
	s.mu.Lock()
	expired := s.sweepLocked()
	s.mu.Unlock()
	s.closeAll(ctx, expired)
}

// Run sweeps expired sessions every interval until ctx is done.
func (s *Sessions) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Len returns the number of tracked sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byJTI)
}

// Close drops every session.
func (s *Sessions) Close() {
	s.mu.Lock()
	all := make([]*Session, 0, len(s.byJTI))
	for jti, sess := range s.byJTI {
		all = append(all, sess)
		delete(s.byJTI, jti)
	}
	s.mu.Unlock()
	s.closeAll(context.Background(), all)
}

func (s *Sessions) sweepLocked() []*Session {
	now := s.now()
	var expired []*Session
	for jti, sess := range s.byJTI {
		if !sess.expires.IsZero() && now.After(sess.expires) {
			expired = append(expired, sess)
			delete(s.byJTI, jti)
		}
	}
	return expired
}

func (s *Sessions) closeAll(ctx context.Context, sessions []*Session) {
	for _, sess := range sessions {
		if err := sess.Client.Logout(ctx); err != nil {
			slog.Warn("signing out session", "error", err)
		}
		sess.Client.Close()
		s.gauge.SessionClosed()
	}
}
