package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/vigyl/internal/model"
	"github.com/sells-group/vigyl/internal/store"
)

var testNow = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func newTestAdapter(t *testing.T) (*Adapter, *store.SQLiteStore) {
	t.Helper()
	st := newTestStore(t)
	return New(st, WithClock(func() time.Time { return testNow })), st
}

// conflictStore fails the first n compare-and-swap calls.
type conflictStore struct {
	store.Store
	failures int
	calls    int
}

func (c *conflictStore) CompareAndSwapSnapshot(ctx context.Context, snap *model.Snapshot, expected int64) (int64, error) {
	c.calls++
	if c.calls <= c.failures {
		return 0, store.ErrVersionConflict
	}
	return c.Store.CompareAndSwapSnapshot(ctx, snap, expected)
}

func impact(id string, rate float64) model.AIImpactAnalysis {
	return model.AIImpactAnalysis{IndustryID: id, AutomationRate: rate}
}

func TestSession_CanWrite(t *testing.T) {
	assert.True(t, Session{UserID: "u", OwnerID: "u"}.CanWrite())
	assert.False(t, Session{UserID: "m", OwnerID: "u", IsTeamMember: true}.CanWrite())
	assert.False(t, Session{UserID: "m", OwnerID: "u"}.CanWrite())
	assert.False(t, Session{}.CanWrite())
}

func TestAdapter_Resolve(t *testing.T) {
	a, st := newTestAdapter(t)
	ctx := context.Background()
	require.NoError(t, st.AddTeamMember(ctx, "boss", "alice"))

	sess, err := a.Resolve(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, Session{UserID: "alice", OwnerID: "boss", IsTeamMember: true}, sess)

	sess, err = a.Resolve(ctx, "boss")
	require.NoError(t, err)
	assert.True(t, sess.CanWrite())

	_, err = a.Resolve(ctx, "")
	assert.Error(t, err)
}

func TestAdapter_LoadMissing(t *testing.T) {
	a, _ := newTestAdapter(t)
	snap, err := a.Load(context.Background(), Session{UserID: "u", OwnerID: "u"})
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestAdapter_PersistDelta_RejectsTeamMember(t *testing.T) {
	a, st := newTestAdapter(t)
	ctx := context.Background()
	member := Session{UserID: "alice", OwnerID: "boss", IsTeamMember: true}

	_, err := a.PersistDelta(ctx, member, model.SnapshotDelta{Signals: []model.Signal{{ID: "s"}}})
	assert.ErrorIs(t, err, ErrReadOnly)

	snap, err := st.LoadSnapshot(ctx, "boss")
	require.NoError(t, err)
	assert.Nil(t, snap, "nothing written")
}

func TestAdapter_PersistDelta_MergeAndSave(t *testing.T) {
	a, _ := newTestAdapter(t)
	ctx := context.Background()
	owner := Session{UserID: "u1", OwnerID: "u1"}

	saved, err := a.PersistDelta(ctx, owner, model.SnapshotDelta{
		Industries: []model.Industry{{ID: "ind-1", Slug: "a", Name: "A"}},
		Signals:    []model.Signal{{ID: "s1"}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), saved.Version)
	assert.True(t, testNow.Equal(saved.UpdatedAt))

	_, err = a.PersistDelta(ctx, owner, model.SnapshotDelta{AIImpact: []model.AIImpactAnalysis{impact("ind-1", 10)}})
	require.NoError(t, err)
	_, err = a.PersistDelta(ctx, owner, model.SnapshotDelta{AIImpact: []model.AIImpactAnalysis{impact("ind-1", 20), impact("ind-2", 5)}})
	require.NoError(t, err)

	got, err := a.Load(ctx, owner)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Len(t, got.Industries, 1, "untouched fields kept")
	assert.Len(t, got.Signals, 1)
	require.Len(t, got.AIImpact, 2)
	assert.InDelta(t, 20, got.AIImpact[0].AutomationRate, 0)
	assert.Equal(t, int64(3), got.Version)
}

func TestAdapter_PersistDelta_Idempotent(t *testing.T) {
	a, _ := newTestAdapter(t)
	ctx := context.Background()
	owner := Session{UserID: "u1", OwnerID: "u1"}
	delta := model.SnapshotDelta{AIImpact: []model.AIImpactAnalysis{impact("ind-1", 10)}}

	first, err := a.PersistDelta(ctx, owner, delta)
	require.NoError(t, err)
	second, err := a.PersistDelta(ctx, owner, delta)
	require.NoError(t, err)

	assert.Equal(t, first.AIImpact, second.AIImpact)
}

func TestAdapter_PersistDelta_RetriesConflict(t *testing.T) {
	cs := &conflictStore{Store: newTestStore(t), failures: 2}
	a := New(cs, WithCASRetries(3), WithClock(func() time.Time { return testNow }))

	saved, err := a.PersistDelta(context.Background(), Session{UserID: "u", OwnerID: "u"},
		model.SnapshotDelta{Signals: []model.Signal{{ID: "s"}}})
	require.NoError(t, err)
	assert.Equal(t, 3, cs.calls)
	assert.Equal(t, int64(1), saved.Version)
}

func TestAdapter_PersistDelta_GivesUp(t *testing.T) {
	cs := &conflictStore{Store: newTestStore(t), failures: 10}
	a := New(cs, WithCASRetries(2))

	_, err := a.PersistDelta(context.Background(), Session{UserID: "u", OwnerID: "u"},
		model.SnapshotDelta{Signals: []model.Signal{{ID: "s"}}})
	assert.ErrorIs(t, err, store.ErrVersionConflict)
	assert.Equal(t, 3, cs.calls)
}

func TestAdapter_PipelineOverlay(t *testing.T) {
	a, _ := newTestAdapter(t)
	ctx := context.Background()
	owner := Session{UserID: "u1", OwnerID: "u1"}

	_, err := a.PersistDelta(ctx, owner, model.SnapshotDelta{Prospects: []model.Prospect{
		{ID: "p1", CompanyName: "Acme", PipelineStage: model.StageResearching},
	}})
	require.NoError(t, err)

	edit, err := a.SavePipeline(ctx, owner, model.PipelineEdit{ProspectID: "p1", CompanyName: "Acme", Stage: model.StageMeetingScheduled, Notes: "Thu 3pm"})
	require.NoError(t, err)
	assert.True(t, testNow.Equal(edit.UpdatedAt))

	// Regeneration replaces the prospect with a new id; the edit follows the company name.
	_, err = a.PersistDelta(ctx, owner, model.SnapshotDelta{Prospects: []model.Prospect{
		{ID: "p1-regen", CompanyName: "ACME", PipelineStage: model.StageResearching},
	}})
	require.NoError(t, err)

	got, err := a.Load(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, model.StageMeetingScheduled, got.Prospects[0].PipelineStage)
	assert.Equal(t, "Thu 3pm", got.Prospects[0].Notes)
}

func TestAdapter_SavePipeline_Rules(t *testing.T) {
	a, _ := newTestAdapter(t)
	ctx := context.Background()

	_, err := a.SavePipeline(ctx, Session{UserID: "m", OwnerID: "o", IsTeamMember: true}, model.PipelineEdit{ProspectID: "p"})
	assert.ErrorIs(t, err, ErrReadOnly)

	_, err = a.SavePipeline(ctx, Session{UserID: "o", OwnerID: "o"}, model.PipelineEdit{ProspectID: "p", Stage: "negotiating"})
	assert.Error(t, err)

	edit, err := a.SavePipeline(ctx, Session{UserID: "o", OwnerID: "o"}, model.PipelineEdit{ProspectID: "p"})
	require.NoError(t, err)
	assert.Equal(t, model.StageResearching, edit.Stage)
}
