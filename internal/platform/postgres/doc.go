// Package postgres provides the PostgreSQL implementation of
// task.ProgressStore. It handles the connection, the schema migrations
// embedded in the binary, query execution and the mapping between
// progress records and database rows.
package postgres
