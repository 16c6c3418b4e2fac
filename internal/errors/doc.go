// Package errors provides error handling conventions for the pnpm-catalog CLI.
//
// The package re-exports the constructors of github.com/cockroachdb/errors so
// callers get stack-carrying wrapped errors from a single import, defines
// sentinel errors for common failure conditions, and an ExitError type for
// CLI exit code handling.
//
// # Exit Codes
//
//   - ExitSuccess (0): Command completed successfully
//   - ExitUser (1): User-related error (invalid input, configuration, etc.)
//   - ExitSystem (2): System-related error (I/O, permissions, etc.)
//
// # ExitError
//
// [ExitError] wraps an underlying error with an exit code and optional
// suggestion. It supports unwrapping via [errors.Is] and [errors.As]:
//
//	err := errors.NewUserError(backup.ErrBackupNotFound, "Run: pnpm-catalog undo --list")
//	var exitErr *errors.ExitError
//	if errors.As(err, &exitErr) {
//	    os.Exit(exitErr.Code)
//	}
package errors
