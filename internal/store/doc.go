// Package store persists finished call records. The default backend is a
// local SQLite database; Noop discards records for deployments that do
// not keep call history.
package store
