// Package cache is the read/write boundary for the per-owner intelligence
// snapshot. It enforces the single-writer rule: only the owning user's
// session may persist, team members read the owner's row.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/vigyl/internal/merge"
	"github.com/sells-group/vigyl/internal/model"
	"github.com/sells-group/vigyl/internal/store"
)

// ErrReadOnly is returned when a team member session attempts a write.
var ErrReadOnly = errors.New("cache: session is read-only")

// DefaultCASRetries bounds the read-modify-write loop in PersistDelta.
const DefaultCASRetries = 3

// Session is an authenticated user resolved to the cache row they read.
type Session struct {
	UserID       string `json:"userId"`
	OwnerID      string `json:"ownerId"`
	IsTeamMember bool   `json:"isTeamMember"`
}

// CanWrite reports whether the session owns its cache row.
func (s Session) CanWrite() bool {
	return !s.IsTeamMember && s.OwnerID != "" && s.OwnerID == s.UserID
}

// Adapter wraps a Store with owner resolution, pipeline overlay and
// merge-and-save persistence.
type Adapter struct {
	store      store.Store
	casRetries int
	now        func() time.Time
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithCASRetries sets how many times PersistDelta retries on a version
// conflict.
func WithCASRetries(n int) Option {
	return func(a *Adapter) {
		if n > 0 {
			a.casRetries = n
		}
	}
}

// WithClock overrides the time source used for UpdatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

// New creates an Adapter over st.
func New(st store.Store, opts ...Option) *Adapter {
	a := &Adapter{store: st, casRetries: DefaultCASRetries, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Resolve maps a session user to their effective owner.
func (a *Adapter) Resolve(ctx context.Context, userID string) (Session, error) {
	if userID == "" {
		return Session{}, eris.New("cache: user id is required")
	}
	m, err := a.store.ResolveOwner(ctx, userID)
	if err != nil {
		return Session{}, eris.Wrap(err, "cache: resolve owner")
	}
	return Session{UserID: m.UserID, OwnerID: m.OwnerID, IsTeamMember: m.IsTeamMember}, nil
}

// Load returns the owner's snapshot with pipeline edits overlaid, or nil when
// the owner has never generated.
func (a *Adapter) Load(ctx context.Context, sess Session) (*model.Snapshot, error) {
	snap, err := a.store.LoadSnapshot(ctx, sess.OwnerID)
	if err != nil {
		return nil, eris.Wrap(err, "cache: load")
	}
	if snap == nil {
		return nil, nil
	}

	edits, err := a.store.ListPipeline(ctx, sess.OwnerID)
	if err != nil {
		return nil, eris.Wrap(err, "cache: load pipeline")
	}
	snap.Prospects = merge.ApplyPipeline(snap.Prospects, edits)
	return snap, nil
}

// Pipeline returns the owner's stored pipeline edits.
func (a *Adapter) Pipeline(ctx context.Context, sess Session) ([]model.PipelineEdit, error) {
	edits, err := a.store.ListPipeline(ctx, sess.OwnerID)
	return edits, eris.Wrap(err, "cache: list pipeline")
}

// PersistDelta applies delta to the owner's stored snapshot and saves it.
// Team member sessions are rejected with ErrReadOnly. Repeated calls with
// the same delta leave the same stored state.
func (a *Adapter) PersistDelta(ctx context.Context, sess Session, delta model.SnapshotDelta) (*model.Snapshot, error) {
	if !sess.CanWrite() {
		zap.L().Warn("cache: rejected write from non-owner session",
			zap.String("user_id", sess.UserID),
			zap.String("owner_id", sess.OwnerID),
		)
		return nil, ErrReadOnly
	}

	var lastErr error
	for attempt := 0; attempt <= a.casRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "cache: persist")
		}

		current, err := a.store.LoadSnapshot(ctx, sess.OwnerID)
		if err != nil {
			return nil, eris.Wrap(err, "cache: persist load")
		}
		var expected int64
		if current != nil {
			expected = current.Version
		}

		next := merge.ApplyDelta(current, sess.OwnerID, delta, a.now())
		version, err := a.store.CompareAndSwapSnapshot(ctx, next, expected)
		if err == nil {
			next.Version = version
			return next, nil
		}
		if !errors.Is(err, store.ErrVersionConflict) {
			return nil, eris.Wrap(err, "cache: persist save")
		}

		lastErr = err
		zap.L().Debug("cache: version conflict, retrying",
			zap.String("owner_id", sess.OwnerID),
			zap.Int("attempt", attempt+1),
		)
	}
	return nil, eris.Wrapf(lastErr, "cache: persist gave up after %d attempts", a.casRetries+1)
}

// SavePipeline records a user pipeline edit for the owner.
func (a *Adapter) SavePipeline(ctx context.Context, sess Session, edit model.PipelineEdit) (model.PipelineEdit, error) {
	if !sess.CanWrite() {
		return model.PipelineEdit{}, ErrReadOnly
	}
	if edit.Stage != "" && !edit.Stage.Valid() {
		return model.PipelineEdit{}, eris.Errorf("cache: unknown pipeline stage %q", edit.Stage)
	}
	if edit.Stage == "" {
		edit.Stage = model.StageResearching
	}
	edit.UpdatedAt = a.now().UTC()
	if err := a.store.SavePipeline(ctx, sess.OwnerID, edit); err != nil {
		return model.PipelineEdit{}, eris.Wrap(err, "cache: save pipeline")
	}
	return edit, nil
}
