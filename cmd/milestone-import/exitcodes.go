package main

// Exit codes of milestone-import. Row-level rejections alone exit 0 unless
// --fail-on-reject is set.
const (
	exitOK = 0
	// exitFailure is used for errors without a code of their own, cancellation included.
	exitFailure = 1
	// exitBadInput: missing or unrecognizable header row, unreadable workbook.
	exitBadInput = 2
	// exitUsage: bad flags or an actor that fails validation.
	exitUsage = 3
	// exitStoreUnavailable: Postgres could not be reached or read.
	exitStoreUnavailable = 4
	// exitStoreWrite: at least one row failed to write.
	exitStoreWrite = 5
	// exitRejected: rows were rejected and --fail-on-reject is set.
	exitRejected = 6
)

// cliError attaches an exit code to err.
type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string { return e.err.Error() }

func (e *cliError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &cliError{code: code, err: err}
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ce *cliError
	if as(err, &ce) {
		return ce.code
	}
	return exitFailure
}
