// Package postgres provides a PostgreSQL-backed attempt store for
// multi-node deployments that already run Postgres.
//
// Every write is a compare-and-set on the version column (INSERT ... ON
// CONFLICT DO NOTHING for the first failure, UPDATE ... WHERE version = $n
// afterwards). A zero row count means another writer committed first and the
// read-modify-write is retried up to the configured budget. A fresh insert
// starts from a random version, so a writer that read the row before a Reset
// cannot match the row inserted after it.
//
// Rows are never deleted by Update; Sweep removes rows whose reclaimable_at
// has passed.
package postgres
