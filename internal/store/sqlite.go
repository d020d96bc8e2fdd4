package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/vigyl/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It backs local and
// single-node deployments.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS snapshots (
	owner_id   TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	version    INTEGER NOT NULL DEFAULT 1,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS team_members (
	user_id    TEXT PRIMARY KEY,
	owner_id   TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_team_members_owner ON team_members(owner_id);

CREATE TABLE IF NOT EXISTS prospect_pipeline (
	owner_id     TEXT NOT NULL,
	prospect_id  TEXT NOT NULL,
	company_name TEXT NOT NULL DEFAULT '',
	stage        TEXT NOT NULL,
	notes        TEXT NOT NULL DEFAULT '',
	crm_id       TEXT NOT NULL DEFAULT '',
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (owner_id, prospect_id)
);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) clock() time.Time {
	return s.now().UTC()
}

func (s *SQLiteStore) LoadSnapshot(ctx context.Context, ownerID string) (*model.Snapshot, error) {
	var (
		data      string
		version   int64
		updatedAt time.Time
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT data, version, updated_at FROM snapshots WHERE owner_id = ?`,
		ownerID,
	).Scan(&data, &version, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: load snapshot %s", ownerID)
	}
	return decodeSnapshot(ownerID, []byte(data), version, updatedAt)
}

func (s *SQLiteStore) CompareAndSwapSnapshot(ctx context.Context, snap *model.Snapshot, expected int64) (int64, error) {
	data, err := encodeSnapshot(snap)
	if err != nil {
		return 0, err
	}
	now := s.clock()

	var res sql.Result
	if expected == 0 {
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO snapshots (owner_id, data, version, updated_at) VALUES (?, ?, 1, ?) ON CONFLICT (owner_id) DO NOTHING`,
			snap.OwnerID, string(data), now,
		)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE snapshots SET data = ?, version = version + 1, updated_at = ? WHERE owner_id = ? AND version = ?`,
			string(data), now, snap.OwnerID, expected,
		)
	}
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: save snapshot %s", snap.OwnerID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return 0, ErrVersionConflict
	}
	return expected + 1, nil
}

func (s *SQLiteStore) ResolveOwner(ctx context.Context, userID string) (Membership, error) {
	var ownerID string
	err := s.db.QueryRowContext(ctx,
		`SELECT owner_id FROM team_members WHERE user_id = ?`,
		userID,
	).Scan(&ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return Membership{UserID: userID, OwnerID: userID}, nil
	}
	if err != nil {
		return Membership{}, eris.Wrapf(err, "sqlite: resolve owner %s", userID)
	}
	return Membership{UserID: userID, OwnerID: ownerID, IsTeamMember: true}, nil
}

func (s *SQLiteStore) AddTeamMember(ctx context.Context, ownerID, memberID string) error {
	if err := validateMember(ownerID, memberID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO team_members (user_id, owner_id, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET owner_id = excluded.owner_id`,
		memberID, ownerID, s.clock(),
	)
	return eris.Wrapf(err, "sqlite: add team member %s", memberID)
}

func (s *SQLiteStore) ListPipeline(ctx context.Context, ownerID string) ([]model.PipelineEdit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT prospect_id, company_name, stage, notes, crm_id, updated_at FROM prospect_pipeline WHERE owner_id = ? ORDER BY updated_at`,
		ownerID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list pipeline %s", ownerID)
	}
	defer rows.Close() //nolint:errcheck

	var edits []model.PipelineEdit
	for rows.Next() {
		var (
			e     model.PipelineEdit
			stage string
		)
		if err := rows.Scan(&e.ProspectID, &e.CompanyName, &stage, &e.Notes, &e.CRMID, &e.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan pipeline edit")
		}
		e.Stage = model.PipelineStage(stage)
		edits = append(edits, e)
	}
	return edits, eris.Wrap(rows.Err(), "sqlite: iterate pipeline")
}

func (s *SQLiteStore) SavePipeline(ctx context.Context, ownerID string, edit model.PipelineEdit) error {
	if edit.ProspectID == "" {
		return eris.New("sqlite: pipeline edit requires a prospect id")
	}
	updated := edit.UpdatedAt
	if updated.IsZero() {
		updated = s.clock()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO prospect_pipeline (owner_id, prospect_id, company_name, stage, notes, crm_id, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (owner_id, prospect_id) DO UPDATE SET
		   company_name = excluded.company_name,
		   stage = excluded.stage,
		   notes = excluded.notes,
		   crm_id = CASE WHEN excluded.crm_id = '' THEN prospect_pipeline.crm_id ELSE excluded.crm_id END,
		   updated_at = excluded.updated_at`,
		ownerID, edit.ProspectID, edit.CompanyName, string(edit.Stage), edit.Notes, edit.CRMID, updated.UTC(),
	)
	return eris.Wrapf(err, "sqlite: save pipeline %s/%s", ownerID, edit.ProspectID)
}
