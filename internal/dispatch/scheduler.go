package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mvplabs/process-dispatcher/internal/logging"
	"github.com/mvplabs/process-dispatcher/internal/repository"
	"github.com/mvplabs/process-dispatcher/internal/shutdown"
)

// Run drives the scheduling relaunch loop until the cancellation scope
// fires. A failed cycle is logged and relaunched after the pause. There is
// no backoff: during a database outage the loop keeps retrying at the
// pause cadence and the log stays busy.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		err := d.prepareSchedule(ctx)
		switch {
		case errors.Is(err, shutdown.ErrTerminating):
			logging.Logger().Info("scheduler: shutdown signal received, leaving the relaunch loop")
			return nil
		case err != nil:
			logging.Logger().Error("scheduler: cycle failed", "error", err)
		default:
			logging.Logger().Debug("scheduler: cycle completed")
		}

		select {
		case <-d.scope.Done():
			logging.Logger().Info("scheduler: shutdown signal received, leaving the relaunch loop")
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.relaunchPause):
		}
	}
}

// prepareSchedule performs one scheduling cycle: stream every active
// source and ensure each has its process for the current Berlin day.
//
// Per-source failures do not abort the cycle; they are logged and the
// stream moves on. Cancellation is the exception and unwinds immediately.
func (d *Dispatcher) prepareSchedule(ctx context.Context) error {
	logging.Logger().Info("preparing schedule")

	// The stream outlives any single Guard call, so it is opened on a
	// scope-derived context; a signal cancels the underlying query and
	// unblocks any pending pull.
	streamCtx, stop := d.scope.Context(ctx)
	defer stop()

	stream, err := shutdown.Guard(ctx, d.scope, "scheduler: open sources stream",
		func(context.Context) (SourceIDStream, error) {
			return d.repo.StreamActiveSourceIDs(streamCtx)
		})
	if err != nil {
		return err
	}
	defer stream.Close()

	for {
		sourceID, ok, err := d.nextSourceID(ctx, stream)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		if err := d.processSource(streamCtx, sourceID); err != nil {
			if errors.Is(err, shutdown.ErrTerminating) {
				return err
			}
			logging.Logger().Error("scheduler: processing source failed", "source_id", sourceID, "error", err)
		}
	}
}

// nextSourceID pulls one ID from the stream under the cancellation guard.
func (d *Dispatcher) nextSourceID(ctx context.Context, stream SourceIDStream) (uint32, bool, error) {
	type pull struct {
		id uint32
		ok bool
	}
	res, err := shutdown.Guard(ctx, d.scope, "scheduler: next source id",
		func(context.Context) (pull, error) {
			if stream.Next() {
				return pull{id: stream.ID(), ok: true}, nil
			}
			return pull{}, stream.Err()
		})
	return res.id, res.ok, err
}

// processSource applies the same-day rule to one source and inserts a new
// regular process when the rule allows it. The keyed mutex serializes this
// against assignment traffic for the same source.
func (d *Dispatcher) processSource(ctx context.Context, sourceID uint32) error {
	logging.Logger().Log(ctx, logging.LevelTrace, "processing source", "source_id", sourceID)

	handle := d.locks.Acquire(sourceID)
	if err := shutdown.Do(ctx, d.scope, "scheduler: lock source", func(c context.Context) error {
		return handle.Lock(c)
	}); err != nil {
		return err
	}
	defer handle.Unlock()

	latest, err := shutdown.Guard(ctx, d.scope, "scheduler: latest process",
		func(c context.Context) (*repository.ProcessRow, error) {
			return d.repo.LatestProcess(c, sourceID)
		})
	if err != nil {
		return err
	}

	if latest != nil {
		state := repository.MustParseState(latest.State.String())

		if !state.Terminal() {
			logging.Logger().Log(ctx, logging.LevelTrace,
				"skipping source: an active process already exists",
				"source_id", sourceID, "state", state.String())
			return nil
		}

		createdAt := mustParseDBTime(latest.CreatedAt)
		if sameBerlinDay(createdAt, d.now()) {
			logging.Logger().Log(ctx, logging.LevelTrace,
				"skipping source: a finished process already exists for today",
				"source_id", sourceID, "created_at", latest.CreatedAt)
			return nil
		}
	}

	id, err := shutdown.Guard(ctx, d.scope, "scheduler: insert process",
		func(c context.Context) (uuid.UUID, error) {
			return d.repo.InsertProcess(c, sourceID, repository.StateCreated, repository.ModeRegular)
		})
	if err != nil {
		return err
	}

	logging.Logger().Info("created new regular process", "process_id", id, "source_id", sourceID)
	return nil
}
