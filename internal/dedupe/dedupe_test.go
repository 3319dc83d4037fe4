package dedupe

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tomfle18/aiostreams/internal/parser"
	"github.com/tomfle18/aiostreams/internal/stream"
)

func debridStream(id, hash, addonId string, service stream.ServiceID, cached bool) *stream.ParsedStream {
	return &stream.ParsedStream{
		ID:      id,
		Type:    stream.TypeDebrid,
		Addon:   stream.Addon{InstanceID: addonId, Name: addonId},
		Torrent: &stream.Torrent{InfoHash: hash},
		Service: &stream.Service{ID: service, Cached: cached},
		URL:     "https://example.com/" + id,
	}
}

func ids(streams []*stream.ParsedStream) []string {
	out := []string{}
	for _, s := range streams {
		out = append(out, s.ID)
	}
	return out
}

var testOrder = &Order{
	Services: []stream.ServiceID{stream.ServiceRealDebrid, stream.ServiceTorBox},
	Addons:   []string{"a1", "a2"},
}

func TestDeduplicate_Disabled(t *testing.T) {
	streams := []*stream.ParsedStream{
		debridStream("s1", "aaa", "a1", stream.ServiceRealDebrid, true),
		debridStream("s2", "aaa", "a2", stream.ServiceRealDebrid, true),
	}
	assert.Equal(t, []string{"s1", "s2"}, ids(Deduplicate(streams, &Config{}, testOrder)))
	assert.Equal(t, []string{"s1", "s2"}, ids(Deduplicate(streams, &Config{
		Keys:  []Key{KeyInfoHash},
		Modes: map[stream.Type]Mode{stream.TypeDebrid: ModeDisabled},
	}, testOrder)))
}

func TestDeduplicate_SingleResult(t *testing.T) {
	conf := &Config{
		Keys:  []Key{KeyInfoHash},
		Modes: map[stream.Type]Mode{stream.TypeDebrid: ModeSingleResult},
	}

	// Service rank wins over input position.
	streams := []*stream.ParsedStream{
		debridStream("s1", "aaa", "a2", stream.ServiceTorBox, true),
		debridStream("s2", "aaa", "a1", stream.ServiceRealDebrid, true),
		debridStream("s3", "bbb", "a1", stream.ServiceTorBox, true),
	}
	assert.Equal(t, []string{"s2", "s3"}, ids(Deduplicate(streams, conf, testOrder)))
}

func TestDeduplicate_SingleResult_AddonTieBreak(t *testing.T) {
	conf := &Config{
		Keys:  []Key{KeyInfoHash},
		Modes: map[stream.Type]Mode{stream.TypeDebrid: ModeSingleResult},
	}
	streams := []*stream.ParsedStream{
		debridStream("s1", "aaa", "a2", stream.ServiceRealDebrid, true),
		debridStream("s2", "aaa", "a1", stream.ServiceRealDebrid, true),
	}
	assert.Equal(t, []string{"s2"}, ids(Deduplicate(streams, conf, testOrder)))
}

func TestDeduplicate_PerService(t *testing.T) {
	conf := &Config{
		Keys:  []Key{KeyInfoHash},
		Modes: map[stream.Type]Mode{stream.TypeDebrid: ModePerService},
	}
	streams := []*stream.ParsedStream{
		debridStream("s1", "aaa", "a1", stream.ServiceRealDebrid, true),
		debridStream("s2", "aaa", "a2", stream.ServiceRealDebrid, true),
		debridStream("s3", "aaa", "a2", stream.ServiceTorBox, true),
	}
	assert.Equal(t, []string{"s1", "s3"}, ids(Deduplicate(streams, conf, testOrder)))
}

func TestDeduplicate_MultiGroup(t *testing.T) {
	makeStreams := func() []*stream.ParsedStream {
		return []*stream.ParsedStream{
			debridStream("rd-cached", "aaa", "a1", stream.ServiceRealDebrid, true),
			debridStream("rd-uncached", "aaa", "a1", stream.ServiceRealDebrid, false),
			debridStream("tb-uncached", "aaa", "a1", stream.ServiceTorBox, false),
		}
	}

	conf := func(behaviour MultiGroupBehaviour) *Config {
		return &Config{
			Keys:       []Key{KeyInfoHash},
			Modes:      map[stream.Type]Mode{stream.TypeDebrid: ModePerService},
			MultiGroup: behaviour,
		}
	}

	// keep_all: per-service mode still collapses within each service.
	assert.Equal(t, []string{"rd-cached", "tb-uncached"},
		ids(Deduplicate(makeStreams(), conf(MultiGroupKeepAll), testOrder)))

	// aggressive: any cached copy evicts every uncached one.
	assert.Equal(t, []string{"rd-cached"},
		ids(Deduplicate(makeStreams(), conf(MultiGroupAggressive), testOrder)))

	// conservative: only services that have a cached copy drop their
	// uncached variants; torbox keeps its only copy.
	assert.Equal(t, []string{"rd-cached", "tb-uncached"},
		ids(Deduplicate(makeStreams(), conf(MultiGroupConservative), testOrder)))
}

func TestDeduplicate_SmartDetect(t *testing.T) {
	withFile := func(id, addonId, title, group string) *stream.ParsedStream {
		s := debridStream(id, "", addonId, stream.ServiceRealDebrid, true)
		s.Torrent = nil
		s.File = &parser.ParsedFile{
			Title:        title,
			Year:         "2020",
			Resolution:   "1080p",
			Quality:      "BluRay",
			Encode:       "x265",
			ReleaseGroup: group,
		}
		return s
	}
	conf := &Config{
		Keys:  []Key{KeySmartDetect},
		Modes: map[stream.Type]Mode{stream.TypeDebrid: ModeSingleResult},
	}

	streams := []*stream.ParsedStream{
		withFile("s1", "a2", "The Movie", "GRP"),
		withFile("s2", "a1", "The.Movie", "GRP"),
		withFile("s3", "a1", "The Movie", "OTHER"),
	}
	// Punctuation-insensitive title match collapses s1/s2; a different
	// release group stays separate.
	assert.Equal(t, []string{"s2", "s3"}, ids(Deduplicate(streams, conf, testOrder)))
}

func TestDeduplicate_ErrorStreamsUntouched(t *testing.T) {
	errStream := &stream.ParsedStream{
		ID:    "err",
		Type:  stream.TypeError,
		Addon: stream.Addon{InstanceID: "a1"},
		Error: &stream.Error{Title: "boom"},
	}
	streams := []*stream.ParsedStream{
		errStream,
		debridStream("s1", "aaa", "a1", stream.ServiceRealDebrid, true),
		debridStream("s2", "aaa", "a2", stream.ServiceRealDebrid, true),
	}
	conf := &Config{
		Keys:  []Key{KeyInfoHash},
		Modes: map[stream.Type]Mode{stream.TypeDebrid: ModeSingleResult},
	}
	assert.Equal(t, []string{"err", "s1"}, ids(Deduplicate(streams, conf, testOrder)))
}

func TestDeduplicate_Idempotent(t *testing.T) {
	conf := &Config{
		Keys:  []Key{KeyInfoHash, KeyFilename},
		Modes: map[stream.Type]Mode{stream.TypeDebrid: ModeSingleResult},
	}
	streams := []*stream.ParsedStream{
		debridStream("s1", "aaa", "a1", stream.ServiceRealDebrid, true),
		debridStream("s2", "aaa", "a2", stream.ServiceTorBox, true),
		debridStream("s3", "bbb", "a1", stream.ServiceRealDebrid, false),
	}
	once := Deduplicate(streams, conf, testOrder)
	twice := Deduplicate(once, conf, testOrder)
	assert.Equal(t, ids(once), ids(twice))
}
