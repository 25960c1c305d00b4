package dispatch

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/mvplabs/process-dispatcher/internal/repository"
)

// sliceSourceStream serves a fixed list of source IDs.
type sliceSourceStream struct {
	ids []uint32
	i   int
	cur uint32
	err error
}

func (s *sliceSourceStream) Next() bool {
	if s.err != nil || s.i >= len(s.ids) {
		return false
	}
	s.cur = s.ids[s.i]
	s.i++
	return true
}

func (s *sliceSourceStream) ID() uint32   { return s.cur }
func (s *sliceSourceStream) Err() error   { return s.err }
func (s *sliceSourceStream) Close() error { return nil }

// sliceProcessStream serves a fixed list of process rows.
type sliceProcessStream struct {
	rows []repository.ProcessRow
	i    int
	cur  repository.ProcessRow
}

func (s *sliceProcessStream) Next() bool {
	if s.i >= len(s.rows) {
		return false
	}
	s.cur = s.rows[s.i]
	s.i++
	return true
}

func (s *sliceProcessStream) Row() repository.ProcessRow { return s.cur }
func (s *sliceProcessStream) Err() error                 { return nil }
func (s *sliceProcessStream) Close() error               { return nil }

type insertCall struct {
	sourceID uint32
	state    repository.State
	mode     repository.Mode
}

type assignCall struct {
	id           uuid.UUID
	supervisorID uuid.UUID
	state        repository.State
}

// fakeRepo is an in-memory Repository for exercising the dispatcher
// without a database. Zero value is usable; all fields are optional.
type fakeRepo struct {
	mu sync.Mutex

	activeSources []uint32
	candidates    []uint32
	latest        map[uint32]*repository.ProcessRow
	claimable     map[uint32][]repository.ProcessRow

	// latestErrFor injects a LatestProcess failure for one source.
	latestErrFor map[uint32]error

	inserted []insertCall
	assigned []assignCall
}

func (f *fakeRepo) StreamActiveSourceIDs(context.Context) (SourceIDStream, error) {
	return &sliceSourceStream{ids: f.activeSources}, nil
}

func (f *fakeRepo) LatestProcess(_ context.Context, sourceID uint32) (*repository.ProcessRow, error) {
	if err := f.latestErrFor[sourceID]; err != nil {
		return nil, err
	}
	row, ok := f.latest[sourceID]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (f *fakeRepo) StreamClaimableSourceIDs(_ context.Context, _ uuid.UUID, limit int) (SourceIDStream, error) {
	ids := f.candidates
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return &sliceSourceStream{ids: ids}, nil
}

func (f *fakeRepo) StreamClaimableProcesses(_ context.Context, sourceID uint32, limit int) (ProcessStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rows := f.claimable[sourceID]
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return &sliceProcessStream{rows: append([]repository.ProcessRow(nil), rows...)}, nil
}

func (f *fakeRepo) InsertProcess(_ context.Context, sourceID uint32, state repository.State, mode repository.Mode) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.inserted = append(f.inserted, insertCall{sourceID: sourceID, state: state, mode: mode})
	return uuid.New(), nil
}

func (f *fakeRepo) AssignProcess(_ context.Context, id, supervisorID uuid.UUID, state repository.State) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.assigned = append(f.assigned, assignCall{id: id, supervisorID: supervisorID, state: state})

	// Mirror the write so a later claim attempt sees the row as taken.
	for sourceID, rows := range f.claimable {
		for i := range rows {
			if rows[i].UUID == id {
				rows[i].State = state
				rows[i].SupervisorID = supervisorID[:]
				f.claimable[sourceID] = rows
			}
		}
	}
	return nil
}

func (f *fakeRepo) insertCalls() []insertCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]insertCall(nil), f.inserted...)
}

func (f *fakeRepo) assignCalls() []assignCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]assignCall(nil), f.assigned...)
}
