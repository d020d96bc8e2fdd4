package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/vigyl/internal/db"
	"github.com/sells-group/vigyl/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
	now     func() time.Time
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"load_snapshot":   `SELECT data, version, updated_at FROM snapshots WHERE owner_id = $1`,
	"insert_snapshot": `INSERT INTO snapshots (owner_id, data, version, updated_at) VALUES ($1, $2, 1, $3) ON CONFLICT (owner_id) DO NOTHING`,
	"update_snapshot": `UPDATE snapshots SET data = $1, version = version + 1, updated_at = $2 WHERE owner_id = $3 AND version = $4`,
	"resolve_owner":   `SELECT owner_id FROM team_members WHERE user_id = $1`,
	"list_pipeline":   `SELECT prospect_id, company_name, stage, notes, crm_id, updated_at FROM prospect_pipeline WHERE owner_id = $1 ORDER BY updated_at`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close, now: time.Now}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS snapshots (
	owner_id   TEXT PRIMARY KEY,
	data       JSONB NOT NULL,
	version    BIGINT NOT NULL DEFAULT 1,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS team_members (
	user_id    TEXT PRIMARY KEY,
	owner_id   TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_team_members_owner ON team_members(owner_id);

CREATE TABLE IF NOT EXISTS prospect_pipeline (
	owner_id     TEXT NOT NULL,
	prospect_id  TEXT NOT NULL,
	company_name TEXT NOT NULL DEFAULT '',
	stage        TEXT NOT NULL,
	notes        TEXT NOT NULL DEFAULT '',
	crm_id       TEXT NOT NULL DEFAULT '',
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (owner_id, prospect_id)
);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) clock() time.Time {
	if s.now == nil {
		return time.Now().UTC()
	}
	return s.now().UTC()
}

func (s *PostgresStore) LoadSnapshot(ctx context.Context, ownerID string) (*model.Snapshot, error) {
	var (
		data      []byte
		version   int64
		updatedAt time.Time
	)
	err := s.pool.QueryRow(ctx,
		`SELECT data, version, updated_at FROM snapshots WHERE owner_id = $1`,
		ownerID,
	).Scan(&data, &version, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: load snapshot %s", ownerID)
	}
	return decodeSnapshot(ownerID, data, version, updatedAt)
}

func (s *PostgresStore) CompareAndSwapSnapshot(ctx context.Context, snap *model.Snapshot, expected int64) (int64, error) {
	data, err := encodeSnapshot(snap)
	if err != nil {
		return 0, err
	}
	now := s.clock()

	if expected == 0 {
		tag, err := s.pool.Exec(ctx,
			`INSERT INTO snapshots (owner_id, data, version, updated_at) VALUES ($1, $2, 1, $3) ON CONFLICT (owner_id) DO NOTHING`,
			snap.OwnerID, data, now,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: insert snapshot %s", snap.OwnerID)
		}
		if tag.RowsAffected() == 0 {
			return 0, ErrVersionConflict
		}
		return 1, nil
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE snapshots SET data = $1, version = version + 1, updated_at = $2 WHERE owner_id = $3 AND version = $4`,
		data, now, snap.OwnerID, expected,
	)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: update snapshot %s", snap.OwnerID)
	}
	if tag.RowsAffected() == 0 {
		return 0, ErrVersionConflict
	}
	return expected + 1, nil
}

func (s *PostgresStore) ResolveOwner(ctx context.Context, userID string) (Membership, error) {
	var ownerID string
	err := s.pool.QueryRow(ctx,
		`SELECT owner_id FROM team_members WHERE user_id = $1`,
		userID,
	).Scan(&ownerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Membership{UserID: userID, OwnerID: userID}, nil
	}
	if err != nil {
		return Membership{}, eris.Wrapf(err, "postgres: resolve owner %s", userID)
	}
	return Membership{UserID: userID, OwnerID: ownerID, IsTeamMember: true}, nil
}

func (s *PostgresStore) AddTeamMember(ctx context.Context, ownerID, memberID string) error {
	if err := validateMember(ownerID, memberID); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO team_members (user_id, owner_id, created_at) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET owner_id = EXCLUDED.owner_id`,
		memberID, ownerID, s.clock(),
	)
	return eris.Wrapf(err, "postgres: add team member %s", memberID)
}

func (s *PostgresStore) ListPipeline(ctx context.Context, ownerID string) ([]model.PipelineEdit, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT prospect_id, company_name, stage, notes, crm_id, updated_at FROM prospect_pipeline WHERE owner_id = $1 ORDER BY updated_at`,
		ownerID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list pipeline %s", ownerID)
	}
	defer rows.Close()

	var edits []model.PipelineEdit
	for rows.Next() {
		var (
			e     model.PipelineEdit
			stage string
		)
		if err := rows.Scan(&e.ProspectID, &e.CompanyName, &stage, &e.Notes, &e.CRMID, &e.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan pipeline edit")
		}
		e.Stage = model.PipelineStage(stage)
		edits = append(edits, e)
	}
	return edits, eris.Wrap(rows.Err(), "postgres: iterate pipeline")
}

func (s *PostgresStore) SavePipeline(ctx context.Context, ownerID string, edit model.PipelineEdit) error {
	if edit.ProspectID == "" {
		return eris.New("postgres: pipeline edit requires a prospect id")
	}
	updated := edit.UpdatedAt
	if updated.IsZero() {
		updated = s.clock()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO prospect_pipeline (owner_id, prospect_id, company_name, stage, notes, crm_id, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (owner_id, prospect_id) DO UPDATE SET
		   company_name = EXCLUDED.company_name,
		   stage = EXCLUDED.stage,
		   notes = EXCLUDED.notes,
		   crm_id = CASE WHEN EXCLUDED.crm_id = '' THEN prospect_pipeline.crm_id ELSE EXCLUDED.crm_id END,
		   updated_at = EXCLUDED.updated_at`,
		ownerID, edit.ProspectID, edit.CompanyName, string(edit.Stage), edit.Notes, edit.CRMID, updated,
	)
	return eris.Wrapf(err, "postgres: save pipeline %s/%s", ownerID, edit.ProspectID)
}
