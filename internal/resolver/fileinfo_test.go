package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomfle18/aiostreams/core"
)

func TestFileInfo_EncodeDecode(t *testing.T) {
	fi := &FileInfo{
		Type:         FileTypeTorrent,
		Hash:         "dd8255ecdc7ca55fb0bbf81323d87062db1f6d1c",
		Index:        2,
		Sources:      []string{"tracker:udp://tracker.example.com:1337", "dht:node"},
		Filename:     "Movie.2020.1080p.mkv",
		CacheAndPlay: true,
	}
	decoded, err := DecodeFileInfo(fi.Encode())
	require.NoError(t, err)
	assert.Equal(t, fi, decoded)
}

func TestDecodeFileInfo_Invalid(t *testing.T) {
	for _, tc := range []struct {
		name    string
		encoded string
	}{
		{name: "not base64", encoded: "%%%"},
		{name: "not json", encoded: core.Base64Encode("not json")},
		{name: "missing torrent hash", encoded: core.Base64Encode(`{"type":"torrent","index":0}`)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeFileInfo(tc.encoded)
			require.Error(t, err)
			assert.EqualValues(t, core.ErrorCodeBadRequest, core.AsError(err).Code)
		})
	}
}

func TestFileInfo_Magnet(t *testing.T) {
	fi := &FileInfo{
		Type:    FileTypeTorrent,
		Hash:    "DD8255ECDC7CA55FB0BBF81323D87062DB1F6D1C",
		Sources: []string{"tracker:udp://tracker.example.com:1337", "dht:node"},
	}
	magnet, err := fi.Magnet()
	require.NoError(t, err)
	assert.Contains(t, magnet, "magnet:?xt=urn:btih:dd8255ecdc7ca55fb0bbf81323d87062db1f6d1c")
	assert.Contains(t, magnet, "tracker.example.com")
	assert.NotContains(t, magnet, "dht:node")
}

func TestFileInfo_Magnet_InvalidHash(t *testing.T) {
	_, err := (&FileInfo{Type: FileTypeTorrent, Hash: "zz"}).Magnet()
	require.Error(t, err)
	assert.EqualValues(t, core.ErrorCodeStoreMagnetInvalid, core.AsError(err).Code)
}

func TestDecryptStoreAuth_RejectsGarbage(t *testing.T) {
	_, err := DecryptStoreAuth("not-a-ciphertext")
	require.Error(t, err)
	assert.EqualValues(t, core.ErrorCodeUnauthorized, core.AsError(err).Code)
}
