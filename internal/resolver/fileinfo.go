package resolver

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/anacrolix/torrent/metainfo"

	"github.com/tomfle18/aiostreams/core"
	"github.com/tomfle18/aiostreams/internal/config"
	"github.com/tomfle18/aiostreams/internal/stream"
)

// FileInfo is the stable wire payload carried inside playback urls.
type FileInfo struct {
	Type         string   `json:"type"`
	Hash         string   `json:"hash,omitempty"`
	Index        int      `json:"index"`
	Sources      []string `json:"sources,omitempty"`
	Filename     string   `json:"filename,omitempty"`
	NZB          string   `json:"nzb,omitempty"`
	CacheAndPlay bool     `json:"cacheAndPlay,omitempty"`
}

const (
	FileTypeTorrent = "torrent"
	FileTypeUsenet  = "usenet"
)

func (fi *FileInfo) Encode() string {
	blob, _ := json.Marshal(fi)
	return core.Base64Encode(string(blob))
}

func DecodeFileInfo(encoded string) (*FileInfo, error) {
	blob, err := core.Base64Decode(encoded)
	if err != nil {
		// Players sometimes re-encode path segments with std padding.
		raw, serr := base64.StdEncoding.DecodeString(encoded)
		if serr != nil {
			return nil, core.NewError(core.ErrorCodeBadRequest, "invalid file info").WithCause(err)
		}
		blob = string(raw)
	}
	fi := &FileInfo{}
	if err := json.Unmarshal([]byte(blob), fi); err != nil {
		return nil, core.NewError(core.ErrorCodeBadRequest, "invalid file info payload").WithCause(err)
	}
	if fi.Type == FileTypeTorrent && fi.Hash == "" {
		return nil, core.NewError(core.ErrorCodeBadRequest, "file info is missing torrent hash")
	}
	return fi, nil
}

// Magnet builds the magnet uri for the torrent, carrying over any
// tracker sources the addon advertised.
func (fi *FileInfo) Magnet() (string, error) {
	infoHash := metainfo.Hash{}
	if err := infoHash.FromHexString(strings.ToLower(fi.Hash)); err != nil {
		return "", core.NewError(core.ErrorCodeStoreMagnetInvalid, "invalid info hash").WithCause(err)
	}
	m := metainfo.Magnet{InfoHash: infoHash}
	for _, source := range fi.Sources {
		if tracker, ok := strings.CutPrefix(source, "tracker:"); ok {
			m.Trackers = append(m.Trackers, tracker)
		}
	}
	return m.String(), nil
}

// StoreAuth decrypts from the opaque ciphertext playback urls carry.
type StoreAuth struct {
	ID         stream.ServiceID `json:"id"`
	Credential string           `json:"credential"`
}

func (a *StoreAuth) Encrypt() (string, error) {
	blob, err := json.Marshal(a)
	if err != nil {
		return "", err
	}
	return core.Encrypt(config.InternalSecret, string(blob))
}

func DecryptStoreAuth(ciphertext string) (*StoreAuth, error) {
	plaintext, err := core.Decrypt(config.InternalSecret, ciphertext)
	if err != nil {
		return nil, core.NewError(core.ErrorCodeUnauthorized, "invalid playback auth").WithCause(err)
	}
	auth := &StoreAuth{}
	if err := json.Unmarshal([]byte(plaintext), auth); err != nil {
		return nil, core.NewError(core.ErrorCodeUnauthorized, "invalid playback auth payload").WithCause(err)
	}
	if forced := config.ForcedServiceAPIKey(string(auth.ID)); forced != "" {
		auth.Credential = forced
	}
	if auth.Credential == "" {
		auth.Credential = config.DefaultServiceAPIKey(string(auth.ID))
	}
	if auth.ID == "" || auth.Credential == "" {
		return nil, core.NewError(core.ErrorCodeUnauthorized, "missing service credential")
	}
	return auth, nil
}
