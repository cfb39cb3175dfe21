// Package sqlstore is a database/sql CredentialStore for Postgres (pgx) and
// SQLite (modernc.org/sqlite).
//
// The schema ships as embedded goose migrations and is applied by [Open] or
// [Store.Migrate]. Emails and usernames are matched through normalized
// columns with UNIQUE constraints, so a concurrent duplicate loses at the
// database and surfaces as [domain.ErrDuplicateAccount]. Update is a
// compare-and-swap on the version column.
package sqlstore
