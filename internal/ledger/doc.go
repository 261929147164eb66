// Package ledger records optimization runs in a SQLite database so the
// history command can list past runs and the images that failed in them.
package ledger
