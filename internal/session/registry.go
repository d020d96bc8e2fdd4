package session

import (
	"context"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/vigyl/internal/cache"
	"github.com/sells-group/vigyl/internal/generate"
	"github.com/sells-group/vigyl/internal/model"
)

// Registry tracks the live controller of each signed-in user.
type Registry struct {
	gen   *generate.Orchestrator
	cache *cache.Adapter

	mu       sync.Mutex
	sessions map[string]*Controller
}

// NewRegistry creates an empty registry.
func NewRegistry(gen *generate.Orchestrator, adapter *cache.Adapter) *Registry {
	return &Registry{
		gen:      gen,
		cache:    adapter,
		sessions: make(map[string]*Controller),
	}
}

// Open is the authentication hook: it resolves the user's owner, creates and
// mounts a controller, and registers it. A user who already has a live
// controller gets it back unchanged.
func (r *Registry) Open(ctx context.Context, profile model.Profile) (*Controller, error) {
	if strings.TrimSpace(profile.UserID) == "" {
		return nil, eris.Wrap(model.ErrInvalidProfile, "session: open: missing userId")
	}

	r.mu.Lock()
	if c, ok := r.sessions[profile.UserID]; ok {
		r.mu.Unlock()
		return c, nil
	}
	r.mu.Unlock()

	sess, err := r.cache.Resolve(ctx, profile.UserID)
	if err != nil {
		return nil, eris.Wrap(err, "session: open")
	}

	c := New(r.gen, r.cache, sess, profile)

	r.mu.Lock()
	if existing, ok := r.sessions[profile.UserID]; ok {
		r.mu.Unlock()
		return existing, nil
	}
	r.sessions[profile.UserID] = c
	r.mu.Unlock()

	if _, err := c.Mount(ctx); err != nil {
		r.Close(profile.UserID)
		return nil, eris.Wrap(err, "session: mount")
	}
	return c, nil
}

// Get returns the live controller for userID.
func (r *Registry) Get(userID string) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.sessions[userID]
	return c, ok
}

// Close is the sign-out hook. It reports whether a session was open.
func (r *Registry) Close(userID string) bool {
	r.mu.Lock()
	c, ok := r.sessions[userID]
	delete(r.sessions, userID)
	r.mu.Unlock()

	if ok {
		c.Close()
	}
	return ok
}

// CloseAll closes every session, for shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*Controller)
	r.mu.Unlock()

	for _, c := range all {
		c.Close()
	}
	zap.L().Info("closed all sessions", zap.Int("count", len(all)))
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
