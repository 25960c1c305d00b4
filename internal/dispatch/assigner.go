package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mvplabs/process-dispatcher/internal/logging"
	"github.com/mvplabs/process-dispatcher/internal/repository"
)

// AssignedProcess is the claim returned to a supervisor after a successful
// assignment.
type AssignedProcess struct {
	ID           uuid.UUID
	SourceID     uint32
	State        repository.State
	Mode         repository.Mode
	CreatedAt    time.Time
	SupervisorID uuid.UUID
}

// MarshalJSON renders the wire shape supervisors consume: hyphenated
// UUIDs, the mode's display name, and created_at as milliseconds since the
// Unix epoch.
func (a AssignedProcess) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID           string `json:"id"`
		SourceID     uint32 `json:"source_id"`
		State        string `json:"state"`
		Mode         string `json:"mode"`
		CreatedAt    int64  `json:"created_at"`
		SupervisorID string `json:"supervisor_id"`
	}{
		ID:           a.ID.String(),
		SourceID:     a.SourceID,
		State:        a.State.String(),
		Mode:         a.Mode.String(),
		CreatedAt:    a.CreatedAt.UnixMilli(),
		SupervisorID: a.SupervisorID.String(),
	})
}

// AssignProcess finds one claimable process for the supervisor and
// atomically transitions it to processing. Returns nil without error when
// nothing is claimable right now.
//
// Candidates are offered oldest-first by the repository; for each one the
// per-source keyed mutex is taken, so a concurrent scheduler insert or a
// competing assignment on the same source is serialized and the loser
// simply observes the row as already taken and moves on. Duplicate
// candidate IDs (the query does not deduplicate) are harmless for the same
// reason.
func (d *Dispatcher) AssignProcess(ctx context.Context, supervisorID uuid.UUID) (*AssignedProcess, error) {
	logging.Logger().Info("searching for a process to assign", "supervisor_id", supervisorID)

	sources, err := d.repo.StreamClaimableSourceIDs(ctx, supervisorID, assignCandidateLimit)
	if err != nil {
		return nil, err
	}
	defer sources.Close()

	for sources.Next() {
		claim, err := d.claimFromSource(ctx, sources.ID(), supervisorID)
		if err != nil {
			return nil, err
		}
		if claim != nil {
			return claim, nil
		}
	}
	if err := sources.Err(); err != nil {
		return nil, err
	}

	logging.Logger().Info("no claimable process found", "supervisor_id", supervisorID)
	return nil, nil
}

// claimFromSource attempts to claim the oldest claimable process of one
// source while holding its keyed mutex. Returns nil when the source has
// nothing claimable after all.
func (d *Dispatcher) claimFromSource(ctx context.Context, sourceID uint32, supervisorID uuid.UUID) (*AssignedProcess, error) {
	handle := d.locks.Acquire(sourceID)
	if err := handle.Lock(ctx); err != nil {
		return nil, fmt.Errorf("lock source %d: %w", sourceID, err)
	}
	defer handle.Unlock()

	processes, err := d.repo.StreamClaimableProcesses(ctx, sourceID, 1)
	if err != nil {
		return nil, err
	}
	defer processes.Close()

	for processes.Next() {
		row := processes.Row()
		state := repository.MustParseState(row.State.String())
		mode := repository.MustParseMode(uint8(row.Mode))

		// The candidate query ran before we held the lock; the row may
		// have been taken (or finished) in between. Re-check under the
		// lock and walk on instead of fighting over it.
		if state.Terminal() || row.Assigned() {
			logging.Logger().Debug("candidate process no longer claimable",
				"process_id", row.UUID, "source_id", sourceID, "state", state.String())
			continue
		}

		logging.Logger().Info("assigning process",
			"process_id", row.UUID, "source_id", sourceID,
			"state", state.String(), "mode", mode.String())

		if err := d.repo.AssignProcess(ctx, row.UUID, supervisorID, repository.StateProcessing); err != nil {
			return nil, err
		}

		return &AssignedProcess{
			ID:           row.UUID,
			SourceID:     row.SourceID,
			State:        repository.StateProcessing,
			Mode:         mode,
			CreatedAt:    mustParseDBTime(row.CreatedAt),
			SupervisorID: supervisorID,
		}, nil
	}
	if err := processes.Err(); err != nil {
		return nil, err
	}

	logging.Logger().Debug("no claimable process for source", "source_id", sourceID)
	return nil, nil
}
