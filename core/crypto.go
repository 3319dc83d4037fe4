package core

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
)

// EncryptedPrefix tags ciphertext so boundaries can tell an already
// encrypted value from plaintext.
const EncryptedPrefix = "aioenc:"

func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, EncryptedPrefix)
}

func newGCM(secret string) (cipher.AEAD, error) {
	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func Encrypt(secret, value string) (string, error) {
	if secret == "" {
		return "", errors.New("missing encryption secret")
	}
	gcm, err := newGCM(secret)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, []byte(value), nil)
	return EncryptedPrefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

func Decrypt(secret, value string) (string, error) {
	if secret == "" {
		return "", errors.New("missing encryption secret")
	}
	value = strings.TrimPrefix(value, EncryptedPrefix)
	sealed, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return "", err
	}
	gcm, err := newGCM(secret)
	if err != nil {
		return "", err
	}
	if len(sealed) < gcm.NonceSize() {
		return "", errors.New("malformed ciphertext")
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func Base64Encode(value string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(value))
}

func Base64Decode(value string) (string, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		// tolerate std encoding with padding
		if b, serr := base64.StdEncoding.DecodeString(value); serr == nil {
			return string(b), nil
		}
		return "", err
	}
	return string(decoded), nil
}
