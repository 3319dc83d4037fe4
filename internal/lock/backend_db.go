package lock

import (
	"context"
	"database/sql"
	"time"

	"github.com/tomfle18/aiostreams/internal/db"
)

const TableName = "distributed_lock"

var Column = struct {
	Key       string
	Owner     string
	Result    string
	IsErr     string
	ExpiresAt string
}{
	Key:       "key",
	Owner:     "owner",
	Result:    "result",
	IsErr:     "is_err",
	ExpiresAt: "expires_at",
}

// dbBackend claims keys with insert-if-absent rows and has waiters poll
// for the stored result. It works on any shared database, at the cost
// of RetryInterval latency.
type dbBackend struct{}

var query_sweep = `DELETE FROM "` + TableName + `" WHERE "` + Column.ExpiresAt + `" < ` + db.CurrentTimestamp

// Prune drops expired lock rows.
func Prune() (int64, error) {
	res, err := db.Exec(query_sweep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

var query_acquire = `INSERT INTO "` + TableName + `" ("` + Column.Key + `", "` + Column.Owner + `", "` + Column.ExpiresAt + `") VALUES (?, ?, ?) ON CONFLICT ("` + Column.Key + `") DO NOTHING`

func (b *dbBackend) acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	// Expired rows are swept here instead of waiting for the prune
	// worker, so a crashed producer never blocks a key for long.
	if _, err := db.Exec(query_sweep); err != nil {
		return false, err
	}
	res, err := db.Exec(query_acquire, key, owner, db.Timestamp{Time: time.Now().Add(ttl)})
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

var query_publish = `UPDATE "` + TableName + `" SET "` + Column.Result + `" = ?, "` + Column.IsErr + `" = ? WHERE "` + Column.Key + `" = ? AND "` + Column.Owner + `" = ?`

func (b *dbBackend) publish(ctx context.Context, key, owner string, payload []byte, ttl time.Duration) error {
	_, err := db.Exec(query_publish, string(payload), false, key, owner)
	return err
}

var query_poll = `SELECT "` + Column.Result + `" FROM "` + TableName + `" WHERE "` + Column.Key + `" = ? AND "` + Column.ExpiresAt + `" > ` + db.CurrentTimestamp

func (b *dbBackend) wait(ctx context.Context, key string, opts *Options) ([]byte, bool, error) {
	timeout := time.NewTimer(opts.Timeout)
	defer timeout.Stop()
	ticker := time.NewTicker(opts.RetryInterval)
	defer ticker.Stop()

	for {
		var result sql.NullString
		err := db.QueryRow(query_poll, key).Scan(&result)
		switch {
		case err == sql.ErrNoRows:
			return nil, true, nil
		case err != nil:
			return nil, false, err
		case result.Valid:
			return []byte(result.String), false, nil
		}

		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-ticker.C:
		case <-timeout.C:
			return nil, false, ErrLockTimeout
		}
	}
}
