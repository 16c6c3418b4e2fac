// Package logging provides structured logging for the pnpm-catalog CLI using slog.
//
// The package supports a colorized text handler for terminals, JSON output,
// fan-out to several handlers (used by --log-file), verbosity mapping for
// repeated -v flags, and helpers for carrying a logger on a context.
//
// # Basic Usage
//
//	logger := logging.New(logging.Config{
//		Level:  slog.LevelInfo,
//		Format: logging.FormatText,
//		Output: os.Stderr,
//	})
//	logger.Info("backup created", "id", manifest.ID)
//
// # Testing
//
// For tests, use [ForTest] to capture log output via the testing framework:
//
//	mgr := backup.NewManager(root, backup.WithLogger(logging.ForTest(t)))
package logging
