// Package dispatch implements the dispatcher core: the scheduling loop
// that creates at most one process per source per Europe/Berlin calendar
// day, and the assignment protocol that hands unfinished processes to
// supervisors. Both sides funnel through a per-source keyed mutex so their
// critical sections never interleave on the same source.
package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mvplabs/process-dispatcher/internal/keyedmutex"
	"github.com/mvplabs/process-dispatcher/internal/repository"
	"github.com/mvplabs/process-dispatcher/internal/shutdown"
)

// assignCandidateLimit bounds how many candidate sources one assignment
// request inspects before giving up.
const assignCandidateLimit = 10

// lockCleanupInterval is the cadence of the keyed-mutex janitor. Cleanup
// only bounds memory, so the exact value is uncritical.
const lockCleanupInterval = 30 * time.Second

// defaultRelaunchPause separates scheduling cycles so an instantly-empty
// sources stream does not turn the relaunch loop into a busy spin.
const defaultRelaunchPause = time.Second

// SourceIDStream is a pull cursor over source IDs. Errors surface inline
// via Err after Next returns false.
type SourceIDStream interface {
	Next() bool
	ID() uint32
	Err() error
	Close() error
}

// ProcessStream is a pull cursor over process rows.
type ProcessStream interface {
	Next() bool
	Row() repository.ProcessRow
	Err() error
	Close() error
}

// Repository is the persistence surface the dispatcher needs. Satisfied by
// the adapter over repository.Repository; faked in tests.
type Repository interface {
	StreamActiveSourceIDs(ctx context.Context) (SourceIDStream, error)
	LatestProcess(ctx context.Context, sourceID uint32) (*repository.ProcessRow, error)
	StreamClaimableSourceIDs(ctx context.Context, supervisorID uuid.UUID, limit int) (SourceIDStream, error)
	StreamClaimableProcesses(ctx context.Context, sourceID uint32, limit int) (ProcessStream, error)
	InsertProcess(ctx context.Context, sourceID uint32, state repository.State, mode repository.Mode) (uuid.UUID, error)
	AssignProcess(ctx context.Context, id, supervisorID uuid.UUID, state repository.State) error
}

// Dispatcher owns the scheduling loop and the assignment protocol.
// It is safe for concurrent use: the scheduler task and any number of
// HTTP-driven assignment calls may run at once.
type Dispatcher struct {
	repo  Repository
	locks *keyedmutex.KeyedMutex[uint32]
	scope *shutdown.Scope

	// now is the clock used for the same-day rule. A field so tests can
	// pin the calendar.
	now func() time.Time

	// relaunchPause separates scheduling cycles. Tests shrink it.
	relaunchPause time.Duration
}

// New builds a Dispatcher around the given repository and cancellation
// scope.
func New(repo Repository, scope *shutdown.Scope) *Dispatcher {
	return &Dispatcher{
		repo:          repo,
		locks:         keyedmutex.New[uint32](),
		scope:         scope,
		now:           time.Now,
		relaunchPause: defaultRelaunchPause,
	}
}

// NewWithRepository wires a production repository through the stream
// adapter.
func NewWithRepository(repo *repository.Repository, scope *shutdown.Scope) *Dispatcher {
	return New(repoAdapter{repo}, scope)
}

// RunLockJanitor reclaims dead keyed-mutex entries every 30 seconds until
// ctx ends or the scope fires. Always returns nil: janitor exit is part of
// normal shutdown, not a failure.
func (d *Dispatcher) RunLockJanitor(ctx context.Context) error {
	ticker := time.NewTicker(lockCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-d.scope.Done():
			return nil
		case <-ticker.C:
			d.locks.Cleanup()
		}
	}
}

// repoAdapter lifts the concrete repository cursors into the package
// interfaces.
type repoAdapter struct {
	r *repository.Repository
}

func (a repoAdapter) StreamActiveSourceIDs(ctx context.Context) (SourceIDStream, error) {
	return a.r.StreamActiveSourceIDs(ctx)
}

func (a repoAdapter) LatestProcess(ctx context.Context, sourceID uint32) (*repository.ProcessRow, error) {
	return a.r.LatestProcess(ctx, sourceID)
}

func (a repoAdapter) StreamClaimableSourceIDs(ctx context.Context, supervisorID uuid.UUID, limit int) (SourceIDStream, error) {
	return a.r.StreamClaimableSourceIDs(ctx, supervisorID, limit)
}

func (a repoAdapter) StreamClaimableProcesses(ctx context.Context, sourceID uint32, limit int) (ProcessStream, error) {
	return a.r.StreamClaimableProcesses(ctx, sourceID, limit)
}

func (a repoAdapter) InsertProcess(ctx context.Context, sourceID uint32, state repository.State, mode repository.Mode) (uuid.UUID, error) {
	return a.r.InsertProcess(ctx, sourceID, state, mode)
}

func (a repoAdapter) AssignProcess(ctx context.Context, id, supervisorID uuid.UUID, state repository.State) error {
	return a.r.AssignProcess(ctx, id, supervisorID, state)
}
