// Package bmdtest provides an in-memory SQLite copy of the BUERO schema
// with a small fixed data set, for tests that run the real query
// definitions end to end.
package bmdtest

import (
	"database/sql"
	_ "embed"
	"testing"

	_ "github.com/mattn/go-sqlite3" // SQLite driver for testing
)

// Driver is the database/sql driver name of the fixture
const Driver = "sqlite3"

//go:embed buero.sql
var bueroSQL string

// Fixture facts used by assertions
const (
	// BirthdayDate is a day with two birthday clients (KL2000001, KL2000003)
	BirthdayDate = "2026-10-17"

	ClientMax      = "KL2000001"
	ClientErika    = "KL2000002"
	ClientHans     = "KL2000003"
	ClientLeapDay  = "KL2000004"
	ClientNoDOB    = "KL2000005"
	CompanyID      = int64(1)
	FristID        = int64(4711)
	EmployeeSophie = "MA0000001"
	EmployeeBernd  = "MA0000002"
	EmployeeLisa   = "MA0000003"

	// SalutationFreifeld is the free field holding Max's salutation
	SalutationFreifeld = "Briefanrede"
)

// Open returns a database with BUERO attached and seeded. It is closed
// when the test ends.
func Open(t testing.TB) *sql.DB {
	t.Helper()

	db, err := sql.Open(Driver, ":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	// ATTACH and :memory: are per connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(`ATTACH DATABASE ':memory:' AS BUERO`); err != nil {
		t.Fatalf("Failed to attach BUERO: %v", err)
	}
	if _, err := db.Exec(bueroSQL); err != nil {
		t.Fatalf("Failed to seed BUERO: %v", err)
	}

	return db
}
