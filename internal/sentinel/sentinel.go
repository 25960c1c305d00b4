package sentinel

// Compile-time check that Error implements the error interface.
var _ error = Error("")

// Error is a string-backed error type that can be declared const.
// errors.New returns a pointer and forces a var declaration; a const
// sentinel cannot be reassigned, so errors.Is comparisons through
// wrapped chains stay stable for the lifetime of the process.
type Error string

// Error implements the error interface.
func (e Error) Error() string {
	return string(e)
}
