// Package sqlstore is the relational todo store. It runs on MySQL, PostgreSQL
// or SQLite through database/sql, applies the embedded goose migrations for
// the selected dialect and maps stored status integers back to domain
// statuses using the configured encoding.
package sqlstore
