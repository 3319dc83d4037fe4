// Package userdata manages encrypted per-user configurations stored in
// the user table.
package userdata

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"encoding/json"
	"strconv"

	"github.com/google/uuid"

	"github.com/tomfle18/aiostreams/core"
	"github.com/tomfle18/aiostreams/internal/db"
	"github.com/tomfle18/aiostreams/internal/logger"
)

var log = logger.Scoped("userdata")

const TableName = "user"

var Column = struct {
	UUID         string
	PasswordHash string
	Config       string
	ConfigSalt   string
	CAt          string
	UAt          string
	AAt          string
}{
	UUID:         "uuid",
	PasswordHash: "password_hash",
	Config:       "config",
	ConfigSalt:   "config_salt",
	CAt:          "cat",
	UAt:          "uat",
	AAt:          "aat",
}

type User struct {
	UUID         string
	PasswordHash string
	Config       string
	ConfigSalt   string
}

func hashPassword(password, salt string) string {
	sum := sha256.Sum256([]byte(salt + ":" + password))
	return core.Base64Encode(string(sum[:]))
}

func newSalt() string {
	salt := make([]byte, 16)
	rand.Read(salt)
	return core.Base64Encode(string(salt))
}

var query_create = `INSERT INTO "` + TableName + `" ("` + Column.UUID + `", "` + Column.PasswordHash + `", "` + Column.Config + `", "` + Column.ConfigSalt + `") VALUES (?, ?, ?, ?)`

// Create stores a new user; the config ciphertext is sealed with the
// user's password so the server cannot read it without a request.
func Create(conf *Config, password string) (string, error) {
	if err := conf.Validate(); err != nil {
		return "", err
	}
	blob, err := json.Marshal(conf)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	salt := newSalt()
	ciphertext, err := core.Encrypt(password+salt, string(blob))
	if err != nil {
		return "", err
	}
	if _, err := db.Exec(query_create, id, hashPassword(password, salt), ciphertext, salt); err != nil {
		return "", err
	}
	log.Info("created user", "uuid", id)
	return id, nil
}

var query_get = `SELECT "` + db.JoinColumnNames(Column.UUID, Column.PasswordHash, Column.Config, Column.ConfigSalt) + `" FROM "` + TableName + `" WHERE "` + Column.UUID + `" = ?`

func get(id string) (*User, error) {
	row := db.QueryRow(query_get, id)
	user := User{}
	if err := row.Scan(&user.UUID, &user.PasswordHash, &user.Config, &user.ConfigSalt); err != nil {
		if err == sql.ErrNoRows {
			return nil, core.NewError(core.ErrorCodeUnauthorized, "unknown user")
		}
		return nil, err
	}
	return &user, nil
}

var query_touch = `UPDATE "` + TableName + `" SET "` + Column.AAt + `" = ` + db.CurrentTimestamp + ` WHERE "` + Column.UUID + `" = ?`

// Resolve authenticates and decrypts one user's configuration, and
// touches accessed_at.
func Resolve(id, password string) (*Config, error) {
	user, err := get(id)
	if err != nil {
		return nil, err
	}
	expected := hashPassword(password, user.ConfigSalt)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(user.PasswordHash)) != 1 {
		return nil, core.NewError(core.ErrorCodeUnauthorized, "invalid password")
	}
	plaintext, err := core.Decrypt(password+user.ConfigSalt, user.Config)
	if err != nil {
		return nil, core.NewError(core.ErrorCodeUnauthorized, "failed to unseal configuration").WithCause(err)
	}
	conf := Config{}
	if err := json.Unmarshal([]byte(plaintext), &conf); err != nil {
		return nil, core.NewError(core.ErrorCodeInvalidConfig, "stored configuration is corrupt").WithCause(err)
	}
	if _, err := db.Exec(query_touch, id); err != nil {
		log.Warn("failed to touch accessed_at", "error", err, "uuid", id)
	}
	return &conf, nil
}

var query_update = `UPDATE "` + TableName + `" SET "` + Column.Config + `" = ?, "` + Column.UAt + `" = ` + db.CurrentTimestamp + ` WHERE "` + Column.UUID + `" = ?`

// Sync re-seals an updated configuration under the same password.
func Sync(id, password string, conf *Config) error {
	if err := conf.Validate(); err != nil {
		return err
	}
	user, err := get(id)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(hashPassword(password, user.ConfigSalt)), []byte(user.PasswordHash)) != 1 {
		return core.NewError(core.ErrorCodeUnauthorized, "invalid password")
	}
	blob, err := json.Marshal(conf)
	if err != nil {
		return err
	}
	ciphertext, err := core.Encrypt(password+user.ConfigSalt, string(blob))
	if err != nil {
		return err
	}
	_, err = db.Exec(query_update, ciphertext, id)
	return err
}

// Prune removes users not seen for PRUNE_MAX_DAYS days.
func Prune(maxDays int) (int64, error) {
	query := `DELETE FROM "` + TableName + `" WHERE "` + Column.AAt + `" < `
	if db.GetDialect() == db.DialectPostgres {
		query += `now() - interval '` + strconv.Itoa(maxDays) + ` days'`
	} else {
		query += `datetime('now', '-` + strconv.Itoa(maxDays) + ` days')`
	}
	res, err := db.Exec(query)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
