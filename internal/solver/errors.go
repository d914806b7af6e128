package solver

import "errors"

// Error kinds per spec.md §7. InvalidInput and a jump-table
// construction failure are fatal at startup; CurveOperationFailed also
// wraps accelerator Init and RunStep failures, which end a GPU run (the
// CPU walker path has no error return); AcceleratorIntegrityFailure is
// a warning; IOError on checkpoint I/O is logged and the run continues.
var (
	ErrInvalidInput         = errors.New("solver: invalid input")
	ErrCurveOperationFailed = errors.New("solver: curve operation failed")
	ErrAcceleratorIntegrity = errors.New("solver: accelerator integrity self-test failed")
	ErrIO                   = errors.New("solver: checkpoint I/O failed")
)
