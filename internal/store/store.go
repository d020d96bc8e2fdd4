// Package store persists cached intelligence snapshots, team membership and
// user pipeline edits.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/vigyl/internal/model"
)

// ErrVersionConflict is returned by CompareAndSwapSnapshot when the stored
// version no longer matches the caller's.
var ErrVersionConflict = errors.New("store: snapshot version conflict")

// Membership is the result of resolving a session user to the owner of the
// cache row they read.
type Membership struct {
	UserID       string `json:"userId"`
	OwnerID      string `json:"ownerId"`
	IsTeamMember bool   `json:"isTeamMember"`
}

// Store defines the persistence interface for the intelligence cache.
type Store interface {
	// Snapshots. LoadSnapshot returns nil, nil when the owner has no row.
	// CompareAndSwapSnapshot writes snap when the stored version equals
	// expected (0 means "no row yet") and returns the new version.
	LoadSnapshot(ctx context.Context, ownerID string) (*model.Snapshot, error)
	CompareAndSwapSnapshot(ctx context.Context, snap *model.Snapshot, expected int64) (int64, error)

	// Membership
	ResolveOwner(ctx context.Context, userID string) (Membership, error)
	AddTeamMember(ctx context.Context, ownerID, memberID string) error

	// Pipeline edits
	ListPipeline(ctx context.Context, ownerID string) ([]model.PipelineEdit, error)
	SavePipeline(ctx context.Context, ownerID string, edit model.PipelineEdit) error

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// snapshotData is the JSON document stored in the data column.
type snapshotData struct {
	Industries []model.Industry         `json:"industries"`
	Signals    []model.Signal           `json:"signals"`
	Prospects  []model.Prospect         `json:"prospects"`
	AIImpact   []model.AIImpactAnalysis `json:"aiImpact"`
}

func encodeSnapshot(snap *model.Snapshot) ([]byte, error) {
	b, err := json.Marshal(snapshotData{
		Industries: snap.Industries,
		Signals:    snap.Signals,
		Prospects:  snap.Prospects,
		AIImpact:   snap.AIImpact,
	})
	return b, eris.Wrap(err, "store: marshal snapshot")
}

func decodeSnapshot(ownerID string, data []byte, version int64, updatedAt time.Time) (*model.Snapshot, error) {
	var d snapshotData
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, eris.Wrapf(err, "store: unmarshal snapshot for %s", ownerID)
	}
	return &model.Snapshot{
		OwnerID:    ownerID,
		Industries: d.Industries,
		Signals:    d.Signals,
		Prospects:  d.Prospects,
		AIImpact:   d.AIImpact,
		UpdatedAt:  updatedAt.UTC(),
		Version:    version,
	}, nil
}

func validateMember(ownerID, memberID string) error {
	if ownerID == "" || memberID == "" {
		return eris.New("store: owner and member ids are required")
	}
	if ownerID == memberID {
		return eris.Errorf("store: %s cannot be a member of their own team", ownerID)
	}
	return nil
}
