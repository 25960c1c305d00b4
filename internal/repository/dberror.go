package repository

import "fmt"

// DBError wraps any database-layer failure (connection, query or row
// decoding) and names the repository operation it came from. There is no
// in-repo retry; callers decide whether a failure is fatal.
type DBError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *DBError) Error() string {
	return fmt.Sprintf("db %s: %v", e.Op, e.Err)
}

// Unwrap exposes the driver error for errors.Is/As inspection.
func (e *DBError) Unwrap() error {
	return e.Err
}
