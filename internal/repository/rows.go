package repository

import (
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ProcessRow mirrors one dispatcher_processes row.
//
// CreatedAt is kept in the database's own format, "2006-01-02 15:04:05"
// with optional milliseconds in UTC, and parsed only at the point of a
// calendar comparison, so the raw value round-trips losslessly.
type ProcessRow struct {
	UUID     uuid.UUID `db:"uuid"`
	SourceID uint32    `db:"source_id"`
	State    State     `db:"state"`
	Mode     Mode      `db:"mode"`

	// SupervisorID is the raw BINARY(16) column; nil while unassigned.
	SupervisorID []byte `db:"supervisor_id"`

	CreatedAt string `db:"created_at"`
}

// Assigned reports whether a supervisor owns this row.
func (p *ProcessRow) Assigned() bool {
	return len(p.SupervisorID) > 0
}

// SourceIDRows is a lazy cursor over source IDs. Usage follows sql.Rows:
// call Next until it returns false, then check Err, and always Close.
type SourceIDRows struct {
	rows *sqlx.Rows
	op   string

	id  uint32
	err error
}

// Next advances to the next ID. It returns false on exhaustion or error;
// Err distinguishes the two.
func (s *SourceIDRows) Next() bool {
	if s.err != nil {
		return false
	}
	if !s.rows.Next() {
		return false
	}
	if err := s.rows.Scan(&s.id); err != nil {
		s.err = err
		return false
	}
	return true
}

// ID returns the row produced by the last successful Next.
func (s *SourceIDRows) ID() uint32 {
	return s.id
}

// Err returns the first error hit while streaming, wrapped as a DBError.
func (s *SourceIDRows) Err() error {
	if s.err != nil {
		return &DBError{Op: s.op, Err: s.err}
	}
	if err := s.rows.Err(); err != nil {
		return &DBError{Op: s.op, Err: err}
	}
	return nil
}

// Close releases the cursor. Safe to call more than once.
func (s *SourceIDRows) Close() error {
	return s.rows.Close()
}

// ProcessRows is a lazy cursor over full process rows.
type ProcessRows struct {
	rows *sqlx.Rows
	op   string

	row ProcessRow
	err error
}

// Next advances to the next row. It returns false on exhaustion or error;
// Err distinguishes the two.
func (p *ProcessRows) Next() bool {
	if p.err != nil {
		return false
	}
	if !p.rows.Next() {
		return false
	}
	p.row = ProcessRow{}
	if err := p.rows.StructScan(&p.row); err != nil {
		p.err = err
		return false
	}
	return true
}

// Row returns the row produced by the last successful Next.
func (p *ProcessRows) Row() ProcessRow {
	return p.row
}

// Err returns the first error hit while streaming, wrapped as a DBError.
func (p *ProcessRows) Err() error {
	if p.err != nil {
		return &DBError{Op: p.op, Err: p.err}
	}
	if err := p.rows.Err(); err != nil {
		return &DBError{Op: p.op, Err: err}
	}
	return nil
}

// Close releases the cursor. Safe to call more than once.
func (p *ProcessRows) Close() error {
	return p.rows.Close()
}
