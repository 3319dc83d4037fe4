package db

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/tomfle18/aiostreams/internal/logger"
)

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

var log = logger.Scoped("db")

var (
	db      *sql.DB
	dialect Dialect
)

const CurrentTimestamp = "CURRENT_TIMESTAMP"

func GetDialect() Dialect {
	return dialect
}

// Open connects using the DATABASE_URI scheme: sqlite:// or postgres(ql)://.
func Open(uri string) (*sql.DB, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid database uri: %w", err)
	}

	switch u.Scheme {
	case "sqlite", "sqlite3":
		dsn := strings.TrimPrefix(uri, u.Scheme+"://")
		if !strings.Contains(dsn, "?") {
			dsn += "?_journal_mode=WAL&_busy_timeout=5000"
		}
		db, err = sql.Open("sqlite3", dsn)
		dialect = DialectSQLite
		if err == nil {
			db.SetMaxOpenConns(1)
		}
	case "postgres", "postgresql":
		db, err = sql.Open("pgx", uri)
		dialect = DialectPostgres
	default:
		return nil, errors.New("unsupported database scheme: " + u.Scheme)
	}
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	log.Info("connected", "dialect", dialect)
	return db, nil
}

func Close() error {
	if db == nil {
		return nil
	}
	return db.Close()
}

// adaptQuery rewrites `?` placeholders to `$n` for postgres.
func adaptQuery(query string) string {
	if dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func Exec(query string, args ...any) (sql.Result, error) {
	return db.Exec(adaptQuery(query), args...)
}

func Query(query string, args ...any) (*sql.Rows, error) {
	return db.Query(adaptQuery(query), args...)
}

func QueryRow(query string, args ...any) *sql.Row {
	return db.QueryRow(adaptQuery(query), args...)
}

func Begin() (*sql.Tx, error) {
	return db.Begin()
}

func JoinColumnNames(columns ...string) string {
	return strings.Join(columns, ", ")
}

// Timestamp survives both sqlite text storage and postgres timestamptz.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		t.Time = time.Time{}
	case time.Time:
		t.Time = v
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	case int64:
		t.Time = time.Unix(v, 0)
	default:
		return fmt.Errorf("unsupported timestamp type: %T", value)
	}
	return nil
}

func (t *Timestamp) parse(value string) error {
	for _, layout := range []string{"2006-01-02 15:04:05.999999999", time.RFC3339Nano, time.RFC3339, time.DateTime, "2006-01-02 15:04:05.999999999-07:00"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unsupported timestamp value: %q", value)
}

func (t Timestamp) Value() (driver.Value, error) {
	// sqlite stores text; this layout compares lexically with the
	// output of CURRENT_TIMESTAMP.
	if dialect == DialectSQLite {
		return t.UTC().Format("2006-01-02 15:04:05.999"), nil
	}
	return t.Time, nil
}
