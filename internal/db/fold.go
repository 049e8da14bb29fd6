package db

import (
	"database/sql/driver"
	"strings"

	"modernc.org/sqlite"
)

// UnicodeLower names a SQLite function that lower-cases text with Go's
// Unicode case mapping. SQLite's built-in LOWER only folds ASCII letters.
const UnicodeLower = "unicode_lower"

func init() {
	sqlite.MustRegisterDeterministicScalarFunction(UnicodeLower, 1, unicodeLower)
}

func unicodeLower(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}

// LowerFunc returns the SQL function that folds case for the given
// database/sql driver name. MySQL and PostgreSQL fold Unicode with LOWER.
func LowerFunc(driverName string) string {
	if driverName == "sqlite" {
		return UnicodeLower
	}
	return "LOWER"
}
