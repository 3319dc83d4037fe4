package kv

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/tomfle18/aiostreams/internal/db"
)

const TableName = "kv"

var Column = struct {
	Type      string
	Key       string
	Value     string
	ExpiresAt string
	CAt       string
}{
	Type:      "t",
	Key:       "k",
	Value:     "v",
	ExpiresAt: "expires_at",
	CAt:       "cat",
}

type KVStoreConfig struct {
	Type string
	// Zero means rows never expire.
	ExpiresIn time.Duration
}

// KVStore is a typed namespace over the shared kv table.
type KVStore[V any] struct {
	t         string
	expiresIn time.Duration
}

func NewKVStore[V any](conf *KVStoreConfig) *KVStore[V] {
	if conf.Type == "" {
		panic("kv store type cannot be empty")
	}
	return &KVStore[V]{t: conf.Type, expiresIn: conf.ExpiresIn}
}

var query_get = `SELECT v FROM ` + TableName + ` WHERE t = ? AND k = ? AND (expires_at IS NULL OR expires_at > ` + db.CurrentTimestamp + `)`

func (s *KVStore[V]) Get(key string, value *V) (bool, error) {
	var blob string
	if err := db.QueryRow(query_get, s.t, key).Scan(&blob); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal([]byte(blob), value); err != nil {
		return false, err
	}
	return true, nil
}

var query_set = `INSERT INTO ` + TableName + ` (t, k, v, expires_at) VALUES (?, ?, ?, ?) ON CONFLICT (t, k) DO UPDATE SET v = EXCLUDED.v, expires_at = EXCLUDED.expires_at`

func (s *KVStore[V]) Set(key string, value V) error {
	return s.SetWithExpiry(key, value, s.expiresIn)
}

func (s *KVStore[V]) SetWithExpiry(key string, value V, expiresIn time.Duration) error {
	blob, err := json.Marshal(value)
	if err != nil {
		return err
	}
	var expiresAt any
	if expiresIn > 0 {
		expiresAt = db.Timestamp{Time: time.Now().Add(expiresIn)}
	}
	_, err = db.Exec(query_set, s.t, key, string(blob), expiresAt)
	return err
}

var query_del = `DELETE FROM ` + TableName + ` WHERE t = ? AND k = ?`

func (s *KVStore[V]) Del(key string) error {
	_, err := db.Exec(query_del, s.t, key)
	return err
}

var query_prune = `DELETE FROM ` + TableName + ` WHERE expires_at IS NOT NULL AND expires_at < ` + db.CurrentTimestamp

// Prune drops expired rows across every namespace.
func Prune() (int64, error) {
	res, err := db.Exec(query_prune)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
