package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// dialect holds the handful of places where SQLite and PostgreSQL disagree.
// Queries themselves are shared: both accept $N placeholders, ON CONFLICT
// upserts and RETURNING.
type dialect struct {
	name      string
	driver    string
	schema    []string
	forUpdate string
	txOptions *sql.TxOptions
	uniqueErr func(error) bool
	timeArg   func(time.Time) any
	dateArg   func(time.Time) any
}

var postgresDialect = dialect{
	name:      "postgres",
	driver:    "pgx",
	schema:    postgresSchema,
	forUpdate: " FOR UPDATE",
	txOptions: &sql.TxOptions{Isolation: sql.LevelSerializable},
	uniqueErr: isPostgresUniqueViolation,
	timeArg: func(t time.Time) any {
		return t.UTC()
	},
	dateArg: func(t time.Time) any {
		return t.UTC()
	},
}

var sqliteDialect = dialect{
	name:      "sqlite",
	driver:    "sqlite",
	schema:    sqliteSchema,
	uniqueErr: isSQLiteUniqueViolation,
	timeArg: func(t time.Time) any {
		return t.UTC().Format(time.RFC3339Nano)
	},
	dateArg: func(t time.Time) any {
		return t.UTC().Format(dateLayout)
	},
}

const dateLayout = "2006-01-02"

func isPostgresUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isSQLiteUniqueViolation(err error) bool {
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

// sqliteDSN turns a file path into a DSN with the pragmas the ledger relies
// on. Paths that already carry a query string are passed through.
func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// parseStoredTime accepts what either driver hands back once scanned into a
// string: RFC 3339 for timestamps (PostgreSQL values are converted by
// database/sql) or a bare date for SQLite due dates.
func parseStoredTime(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, dateLayout} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized stored time %q", raw)
}

func placeholders(start int, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(parts, ",")
}
