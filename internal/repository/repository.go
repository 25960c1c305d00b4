// Package repository provides typed access to the two dispatcher databases:
// mvp (sources catalog and process queue replica) and pd (process audit and
// assignment). All operations are context-aware single queries; streaming
// reads hand back lazy cursors so large result sets are pulled row by row.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	// Register the MySQL driver. Both production pools speak MySQL; the
	// schema uses INT UNSIGNED, BINARY(16) and TIMESTAMP(3) columns.
	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Config carries the connection settings for both pools.
type Config struct {
	MVPDatabaseURL string
	PDDatabaseURL  string

	// MaxConnections caps open connections per pool.
	MaxConnections int
}

// Repository owns the two connection pools. It is safe for concurrent use;
// pool-internal locking is the driver's concern.
type Repository struct {
	mvp *sqlx.DB
	pd  *sqlx.DB
}

// New opens and pings both pools. Either pool failing to connect fails
// construction; a half-connected repository is never returned.
func New(ctx context.Context, cfg Config) (*Repository, error) {
	mvp, err := openPool(ctx, cfg.MVPDatabaseURL, cfg.MaxConnections)
	if err != nil {
		return nil, fmt.Errorf("connect mvp database: %w", err)
	}

	pd, err := openPool(ctx, cfg.PDDatabaseURL, cfg.MaxConnections)
	if err != nil {
		// Don't leak the pool that did come up.
		_ = mvp.Close()
		return nil, fmt.Errorf("connect pd database: %w", err)
	}

	return &Repository{mvp: mvp, pd: pd}, nil
}

// newFromDBs wires pre-built pools. Test seam; production construction
// goes through New.
func newFromDBs(mvp, pd *sqlx.DB) *Repository {
	return &Repository{mvp: mvp, pd: pd}
}

func openPool(ctx context.Context, dsn string, maxConns int) (*sqlx.DB, error) {
	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(maxConns)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Close releases both pools.
func (r *Repository) Close() error {
	return errors.Join(r.mvp.Close(), r.pd.Close())
}

// StreamActiveSourceIDs returns a cursor over the IDs of sources whose
// status is 'run', in database order.
func (r *Repository) StreamActiveSourceIDs(ctx context.Context) (*SourceIDRows, error) {
	const op = "stream active source ids"

	rows, err := r.mvp.QueryxContext(ctx, `SELECT id FROM sources WHERE status = 'run'`)
	if err != nil {
		return nil, &DBError{Op: op, Err: err}
	}
	return &SourceIDRows{rows: rows, op: op}, nil
}

// LatestProcess returns the newest process row for the source by created_at,
// across all states, or nil when the source has no processes yet.
func (r *Repository) LatestProcess(ctx context.Context, sourceID uint32) (*ProcessRow, error) {
	const op = "latest process"

	var row ProcessRow
	err := r.pd.GetContext(ctx, &row, `
		SELECT uuid, source_id, state, mode, supervisor_id, created_at
		FROM dispatcher_processes
		WHERE source_id = ?
		ORDER BY created_at DESC
		LIMIT 1`,
		sourceID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &DBError{Op: op, Err: err}
	}
	return &row, nil
}

// StreamClaimableSourceIDs returns a cursor over source IDs that have a
// claimable process for the supervisor: created/pending rows nobody owns,
// or error rows owned by this supervisor. Ordered by created_at ascending
// so the oldest work is offered first. The query does not deduplicate;
// callers must tolerate repeated IDs.
func (r *Repository) StreamClaimableSourceIDs(ctx context.Context, supervisorID uuid.UUID, limit int) (*SourceIDRows, error) {
	const op = "stream claimable source ids"

	rows, err := r.mvp.QueryxContext(ctx, `
		SELECT source_id FROM dispatcher_processes
		WHERE (state IN (?, ?) AND supervisor_id IS NULL)
		   OR (state = ? AND supervisor_id = ?)
		ORDER BY created_at ASC
		LIMIT ?`,
		StateCreated, StatePending, StateError, supervisorID[:], limit,
	)
	if err != nil {
		return nil, &DBError{Op: op, Err: err}
	}
	return &SourceIDRows{rows: rows, op: op}, nil
}

// StreamClaimableProcesses returns a cursor over the oldest created/pending
// rows for the source, up to limit.
func (r *Repository) StreamClaimableProcesses(ctx context.Context, sourceID uint32, limit int) (*ProcessRows, error) {
	const op = "stream claimable processes"

	rows, err := r.mvp.QueryxContext(ctx, `
		SELECT uuid, source_id, state, mode, supervisor_id, created_at
		FROM dispatcher_processes
		WHERE source_id = ? AND state IN (?, ?)
		ORDER BY created_at ASC
		LIMIT ?`,
		sourceID, StateCreated, StatePending, limit,
	)
	if err != nil {
		return nil, &DBError{Op: op, Err: err}
	}
	return &ProcessRows{rows: rows, op: op}, nil
}

// InsertProcess writes a new process row with a fresh v4 UUID and returns
// that UUID. State and mode are write-once; created_at is filled by the
// database.
func (r *Repository) InsertProcess(ctx context.Context, sourceID uint32, state State, mode Mode) (uuid.UUID, error) {
	const op = "insert process"

	id := uuid.New()
	_, err := r.pd.ExecContext(ctx, `
		INSERT INTO dispatcher_processes (uuid, source_id, state, mode)
		VALUES (?, ?, ?, ?)`,
		id[:], sourceID, state, uint8(mode),
	)
	if err != nil {
		return uuid.Nil, &DBError{Op: op, Err: err}
	}
	return id, nil
}

// AssignProcess sets the supervisor and state of the row identified by id
// in one atomic write.
func (r *Repository) AssignProcess(ctx context.Context, id, supervisorID uuid.UUID, state State) error {
	const op = "assign process"

	_, err := r.pd.ExecContext(ctx, `
		UPDATE dispatcher_processes
		SET supervisor_id = ?, state = ?
		WHERE uuid = ?`,
		supervisorID[:], state, id[:],
	)
	if err != nil {
		return &DBError{Op: op, Err: err}
	}
	return nil
}
