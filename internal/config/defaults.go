// Package config contains compile-time defaults for bmdq.
// Everything here can be overridden from .bmdq.yaml or BMDQ_* variables.
package config

import "time"

// =============================================================================
// CONFIG SOURCES
// =============================================================================

const (
	// ConfigName is the config file name without extension, searched in
	// ., $HOME and $HOME/.config/bmdq
	ConfigName = ".bmdq"

	// EnvPrefix prefixes every environment override (BMDQ_DATABASE_DSN)
	EnvPrefix = "BMDQ"
)

// DotEnvFiles are loaded in order; later files override earlier ones
var DotEnvFiles = []string{".env", ".env.local"}

// =============================================================================
// DATABASE DEFAULTS
// =============================================================================

const (
	// DBDriver is the database/sql driver; BMD runs on SQL Server
	DBDriver = "sqlserver"

	// DBMaxOpenConns is maximum open connections in the pool
	DBMaxOpenConns = 4

	// DBMaxIdleConns is maximum idle connections in the pool
	DBMaxIdleConns = 2

	// DBConnMaxLifetime is how long a connection can be reused
	DBConnMaxLifetime = 5 * time.Minute

	// DBConnMaxIdleTime is how long an idle connection is kept
	DBConnMaxIdleTime = 1 * time.Minute

	// DBQueryTimeout bounds a single CLI command's database work (0 = none)
	DBQueryTimeout = 2 * time.Minute

	// DBConnectTimeout bounds the initial ping
	DBConnectTimeout = 10 * time.Second
)

// =============================================================================
// BIRTHDAY PRODUCER DEFAULTS
// =============================================================================

const (
	// BirthdaysSachbearbeiter picks the client's main case handler
	BirthdaysSachbearbeiter = "HAUPT"

	// BirthdaysEmployeeMode uses the case handler only
	BirthdaysEmployeeMode = "DEFAULT"
)
