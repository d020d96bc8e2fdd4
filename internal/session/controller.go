// Package session holds the per-session presentation state: which data the
// dashboard shows, whether it is loading or refreshing, and the AI impact
// run in flight. A Controller lives from authentication to sign-out.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/vigyl/internal/cache"
	"github.com/sells-group/vigyl/internal/generate"
	"github.com/sells-group/vigyl/internal/merge"
	"github.com/sells-group/vigyl/internal/model"
	"github.com/sells-group/vigyl/internal/persona"
)

// State is the presentation state of a controller.
type State string

const (
	StateEmpty             State = "EMPTY"
	StateLoadingForeground State = "LOADING_FOREGROUND"
	StateSeed              State = "HAS_DATA_SEED"
	StateCached            State = "HAS_DATA_CACHED"
	StateFresh             State = "HAS_DATA_FRESH"
)

var (
	// ErrClosed is returned by a controller after Close.
	ErrClosed = errors.New("session: closed")
	// ErrUnknownIndustry is returned when an industry id is not in the snapshot.
	ErrUnknownIndustry = errors.New("session: unknown industry")
	// ErrUnknownProspect is returned when a prospect id is not in the snapshot.
	ErrUnknownProspect = errors.New("session: unknown prospect")
)

const saveFailedNotice = "Your latest intelligence could not be saved. It will be retried on the next refresh."

// View is the read model the UI renders. It is a copy and safe to keep.
type View struct {
	Data                   *model.Snapshot     `json:"data"`
	Loading                bool                `json:"loading"`
	Error                  string              `json:"error,omitempty"`
	HasData                bool                `json:"hasData"`
	IsBackgroundRefreshing bool                `json:"isBackgroundRefreshing"`
	IsUsingSeedData        bool                `json:"isUsingSeedData"`
	State                  State               `json:"state"`
	Generating             bool                `json:"generating"`
	Progress               *generate.Progress  `json:"progress,omitempty"`
	Notice                 string              `json:"notice,omitempty"`
	Labels                 persona.Labels      `json:"labels"`
	ReadOnly               bool                `json:"readOnly"`
	Tasks                  []generate.TaskInfo `json:"tasks,omitempty"`
}

// Controller is the explicit session context. It owns the snapshot shown to
// one user, drives refreshes and AI impact runs, and publishes every
// committed step so the UI reflects the latest state at each boundary.
type Controller struct {
	gen     *generate.Orchestrator
	cache   *cache.Adapter
	sess    cache.Session
	profile model.Profile
	labels  persona.Labels
	log     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	state        State
	data         *model.Snapshot
	edits        []model.PipelineEdit
	usingSeed    bool
	loading      bool
	bgRefreshing bool
	generating   bool
	progress     *generate.Progress
	errMsg       string
	notice       string
	mounted      bool
	closed       bool
	refreshTask  *generate.Task
	impactTask   *generate.Task
}

// New creates a controller for an authenticated session. Nothing is loaded
// until Mount.
func New(gen *generate.Orchestrator, adapter *cache.Adapter, sess cache.Session, profile model.Profile) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		gen:     gen,
		cache:   adapter,
		sess:    sess,
		profile: profile,
		labels:  persona.Lookup(profile.Persona).Labels,
		log: zap.L().With(
			zap.String("component", "session"),
			zap.String("user_id", sess.UserID),
			zap.String("owner_id", sess.OwnerID),
		),
		ctx:    ctx,
		cancel: cancel,
		state:  StateEmpty,
	}
}

// Session returns the resolved owner session.
func (c *Controller) Session() cache.Session {
	return c.sess
}

// Profile returns the profile generation runs with.
func (c *Controller) Profile() model.Profile {
	return c.profile
}

// Mount loads the cached snapshot and starts the first generation. With a
// cache hit the cached data is shown and a background refresh starts; with a
// miss the seed fallback is shown and a foreground generation starts. Team
// members never generate, so for them the returned task is nil. Mounting
// twice returns the refresh started by the first call.
func (c *Controller) Mount(ctx context.Context) (*generate.Task, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if c.mounted {
		t := c.refreshTask
		c.mu.Unlock()
		return t, nil
	}
	c.mounted = true
	c.state = StateLoadingForeground
	c.mu.Unlock()

	snap, edits, err := c.loadCache(ctx)

	c.mu.Lock()
	if err != nil {
		c.log.Warn("cache load failed, showing seed data", zap.Error(err))
		c.notice = "Saved intelligence could not be loaded. Showing reference data."
	}
	c.edits = edits
	if snap.HasData() {
		snap.Industries = merge.Industries(c.gen.Catalog().Industries(), snap.Industries)
		c.data = snap
		c.usingSeed = false
		c.state = StateCached
	} else {
		c.activateSeedLocked(snap)
	}
	c.log.Info("session mounted",
		zap.String("state", string(c.state)),
		zap.Bool("team_member", c.sess.IsTeamMember),
	)
	c.mu.Unlock()

	if !c.sess.CanWrite() {
		return nil, nil
	}
	return c.Refresh()
}

func (c *Controller) loadCache(ctx context.Context) (*model.Snapshot, []model.PipelineEdit, error) {
	snap, err := c.cache.Load(ctx, c.sess)
	if err != nil {
		return nil, nil, err
	}
	edits, err := c.cache.Pipeline(ctx, c.sess)
	if err != nil {
		return snap, nil, err
	}
	return snap, edits, nil
}

// activateSeedLocked shows the seed fallback. AI impact results already
// stored in cached survive on top of it.
func (c *Controller) activateSeedLocked(cached *model.Snapshot) {
	seedSnap := c.gen.Catalog().Snapshot(c.sess.OwnerID)
	seedSnap.Prospects = merge.ApplyPipeline(seedSnap.Prospects, c.edits)
	if cached != nil {
		seedSnap.AIImpact = append([]model.AIImpactAnalysis(nil), cached.AIImpact...)
		seedSnap.Version = cached.Version
	}
	c.data = seedSnap
	c.usingSeed = true
	c.state = StateSeed
}

// Refresh starts a full generation: foreground while only seed data (or
// nothing) is shown, background once real data exists. A refresh already in
// flight is returned instead of starting another. Team members get
// cache.ErrReadOnly.
func (c *Controller) Refresh() (*generate.Task, error) {
	if !c.sess.CanWrite() {
		return nil, cache.ErrReadOnly
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if c.loading || c.bgRefreshing {
		return c.refreshTask, nil
	}

	mode := generate.ModeBackground
	if c.data == nil || c.usingSeed {
		mode = generate.ModeForeground
	}
	if mode == generate.ModeForeground {
		c.loading = true
		c.errMsg = ""
		if c.data == nil {
			c.state = StateLoadingForeground
		}
	} else {
		c.bgRefreshing = true
	}

	c.refreshTask = generate.StartTask(c.ctx, "refresh_"+mode.String(), func(ctx context.Context) error {
		return c.runRefresh(ctx, mode)
	})
	return c.refreshTask, nil
}

func (c *Controller) runRefresh(ctx context.Context, mode generate.Mode) error {
	defer func() {
		c.mu.Lock()
		c.loading = false
		c.bgRefreshing = false
		c.mu.Unlock()
	}()

	intel, err := c.gen.GenerateFull(ctx, c.profile, mode)
	if err != nil {
		c.mu.Lock()
		if mode == generate.ModeForeground || errors.Is(err, model.ErrInvalidProfile) {
			c.errMsg = generate.UserMessage(err)
			if c.data == nil {
				c.activateSeedLocked(nil)
			}
		} else {
			c.notice = generate.UserMessage(err)
		}
		c.mu.Unlock()
		return err
	}

	saveErr := c.commit(ctx, model.SnapshotDelta{
		Industries: intel.Industries,
		Signals:    intel.Signals,
		Prospects:  intel.Prospects,
	})

	c.mu.Lock()
	c.state = StateFresh
	c.usingSeed = false
	c.errMsg = ""
	if saveErr != nil {
		c.notice = saveFailedNotice
	} else if mode == generate.ModeBackground {
		c.notice = ""
	}
	c.mu.Unlock()
	return nil
}

// commit persists delta and updates the live snapshot. When persistence
// fails the delta is still applied in memory so the user sees the result.
//
// While seed data is shown the delta is applied on top of the seed view, and
// a delta that writes prospects, signals or industries carries the seed
// values for the lists it leaves nil so the stored row is complete.
func (c *Controller) commit(ctx context.Context, delta model.SnapshotDelta) error {
	c.mu.Lock()
	onSeed := c.usingSeed && c.data != nil
	if onSeed {
		delta = withSeedBase(delta, c.data)
	}
	c.mu.Unlock()

	saved, err := c.cache.PersistDelta(ctx, c.sess, delta)
	if err != nil {
		c.log.Error("persist snapshot delta failed", zap.Error(err))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	var next *model.Snapshot
	switch {
	case err != nil:
		next = merge.ApplyDelta(c.data, c.sess.OwnerID, delta, time.Now())
	case onSeed && c.usingSeed:
		next = merge.ApplyDelta(c.data, c.sess.OwnerID, delta, saved.UpdatedAt)
		next.AIImpact = saved.AIImpact
		next.Version = saved.Version
	case c.data != nil && !c.usingSeed && saved.Version < c.data.Version:
		// A later commit already landed.
		next = merge.ApplyDelta(c.data, c.sess.OwnerID, delta, time.Now())
	default:
		next = saved
	}
	next.Prospects = merge.ApplyPipeline(next.Prospects, c.edits)
	c.data = next
	return err
}

// withSeedBase fills the nil lists of a data-bearing delta from the seed
// view. Deltas that only carry AI impact results are returned unchanged.
func withSeedBase(delta model.SnapshotDelta, seedView *model.Snapshot) model.SnapshotDelta {
	if delta.Industries == nil && delta.Signals == nil && delta.Prospects == nil {
		return delta
	}
	if delta.Industries == nil {
		delta.Industries = model.CloneIndustries(seedView.Industries)
	}
	if delta.Signals == nil {
		delta.Signals = append([]model.Signal{}, seedView.Signals...)
	}
	if delta.Prospects == nil {
		delta.Prospects = append([]model.Prospect{}, seedView.Prospects...)
	}
	return delta
}

// GenerateAIImpact starts an AI impact run over subset, or over every
// industry in the snapshot when subset is empty. While a run is in flight a
// second call changes nothing and returns the running task with false.
func (c *Controller) GenerateAIImpact(subset []string) (*generate.Task, bool) {
	if len(subset) == 0 {
		subset = nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, false
	}
	if !c.sess.CanWrite() {
		c.log.Warn("AI impact requested by read-only session")
		return nil, false
	}
	if c.generating {
		return c.impactTask, false
	}

	job := generate.ImpactJob{Profile: c.profile, Subset: subset}
	if c.data != nil {
		job.Industries = model.CloneIndustries(c.data.Industries)
		job.Existing = append([]model.AIImpactAnalysis(nil), c.data.AIImpact...)
	} else {
		job.Industries = c.gen.Catalog().Industries()
	}

	c.generating = true
	c.progress = nil
	c.errMsg = ""

	sink := &impactSink{c: c, replace: !job.Resume()}
	c.impactTask = generate.StartTask(c.ctx, "ai_impact", func(ctx context.Context) error {
		defer func() {
			c.mu.Lock()
			c.generating = false
			c.progress = nil
			c.mu.Unlock()
		}()

		report, err := c.gen.RunAIImpact(ctx, job, sink)
		if err != nil {
			c.mu.Lock()
			c.errMsg = generate.UserMessage(err)
			c.mu.Unlock()
			return err
		}
		c.log.Info("AI impact run complete",
			zap.Strings("completed", report.Completed),
			zap.Strings("failed", report.Failed),
		)
		return nil
	})
	return c.impactTask, true
}

// impactSink publishes AI impact progress and partial results into the
// controller. A full run replaces the stored list with its accumulator; a
// resume run upserts.
type impactSink struct {
	c       *Controller
	replace bool
}

func (s *impactSink) Progress(p generate.Progress) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	s.c.progress = &p
}

func (s *impactSink) Publish(ctx context.Context, results []model.AIImpactAnalysis) error {
	return s.c.commit(ctx, model.SnapshotDelta{
		AIImpact:        append([]model.AIImpactAnalysis(nil), results...),
		ReplaceAIImpact: s.replace,
	})
}

// ExpandProspects asks for more prospects in one industry and commits the
// appended list. It returns how many new prospects were added.
func (c *Controller) ExpandProspects(ctx context.Context, industryID string) (int, error) {
	if !c.sess.CanWrite() {
		return 0, cache.ErrReadOnly
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, ErrClosed
	}
	industry, ok := c.data.Industry(industryID)
	var existing []model.Prospect
	if c.data != nil {
		existing = append(existing, c.data.Prospects...)
	}
	c.mu.Unlock()
	if !ok {
		return 0, eris.Wrapf(ErrUnknownIndustry, "session: expand %s", industryID)
	}

	prospects, added, err := c.gen.Expand(ctx, c.profile, industry, existing)
	if err != nil {
		return 0, err
	}
	if added == 0 {
		return 0, nil
	}
	if err := c.commit(ctx, model.SnapshotDelta{Prospects: prospects}); err != nil {
		return added, eris.Wrap(err, "session: save expanded prospects")
	}
	return added, nil
}

// UpdatePipeline records a user edit to a prospect's stage or notes and
// overlays it on the live snapshot. The edit survives regeneration.
func (c *Controller) UpdatePipeline(ctx context.Context, edit model.PipelineEdit) (model.PipelineEdit, error) {
	if !c.sess.CanWrite() {
		return model.PipelineEdit{}, cache.ErrReadOnly
	}

	c.mu.Lock()
	prospect, ok := c.findProspectLocked(edit.ProspectID)
	c.mu.Unlock()
	if !ok {
		return model.PipelineEdit{}, eris.Wrapf(ErrUnknownProspect, "session: pipeline %s", edit.ProspectID)
	}
	if strings.TrimSpace(edit.CompanyName) == "" {
		edit.CompanyName = prospect.CompanyName
	}
	if edit.CRMID == "" {
		edit.CRMID = prospect.CRMID
	}

	saved, err := c.cache.SavePipeline(ctx, c.sess, edit)
	if err != nil {
		return model.PipelineEdit{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.edits = upsertEdit(c.edits, saved)
	if c.data != nil {
		next := c.data.Clone()
		next.Prospects = merge.ApplyPipeline(next.Prospects, c.edits)
		c.data = next
	}
	return saved, nil
}

// Prospect returns the prospect with the given id as currently shown, with
// pipeline edits applied.
func (c *Controller) Prospect(id string) (model.Prospect, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.findProspectLocked(id)
}

func (c *Controller) findProspectLocked(id string) (model.Prospect, bool) {
	if c.data == nil {
		return model.Prospect{}, false
	}
	for _, p := range c.data.Prospects {
		if p.ID == id {
			return p, true
		}
	}
	return model.Prospect{}, false
}

func upsertEdit(edits []model.PipelineEdit, e model.PipelineEdit) []model.PipelineEdit {
	out := append([]model.PipelineEdit(nil), edits...)
	for n := range out {
		if out[n].ProspectID == e.ProspectID {
			out[n] = e
			return out
		}
	}
	return append(out, e)
}

// View returns a consistent copy of the presentation state.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		Data:                   c.data.Clone(),
		Loading:                c.loading || c.state == StateLoadingForeground,
		Error:                  c.errMsg,
		HasData:                c.data.HasData(),
		IsBackgroundRefreshing: c.bgRefreshing,
		IsUsingSeedData:        c.usingSeed,
		State:                  c.state,
		Generating:             c.generating,
		Notice:                 c.notice,
		Labels:                 c.labels,
		ReadOnly:               !c.sess.CanWrite(),
	}
	if c.progress != nil {
		p := *c.progress
		v.Progress = &p
	}
	for _, t := range []*generate.Task{c.refreshTask, c.impactTask} {
		if t != nil {
			v.Tasks = append(v.Tasks, t.Info())
		}
	}
	return v
}

// DismissNotice clears the informational banner.
func (c *Controller) DismissNotice() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notice = ""
}

// Close tears the session down and cancels any work in flight. Running
// tasks stop at their next context check.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.log.Info("session closed")
}
