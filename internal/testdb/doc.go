//go:build integration

// Package testdb provides PostgreSQL helpers for integration tests.
//
// Tests run against the database named by CHUNKGEN_TEST_DATABASE_URL (or
// DATABASE_URL) and are skipped when neither is set. The schema is brought
// up with the embedded migrations once per process, and each test runs in
// a transaction that is rolled back when it completes, so tests can run
// in parallel without interfering with each other:
//
//	func TestSomething(t *testing.T) {
//		t.Parallel()
//		db := testdb.Open(t)
//		testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
//			s := postgres.NewProgressStore(tx)
//			// ...
//		})
//	}
package testdb
