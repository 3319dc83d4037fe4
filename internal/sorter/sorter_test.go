package sorter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tomfle18/aiostreams/internal/parser"
	"github.com/tomfle18/aiostreams/internal/stream"
	"github.com/tomfle18/aiostreams/stremio"
)

func testStream(id string, mutate func(s *stream.ParsedStream)) *stream.ParsedStream {
	s := &stream.ParsedStream{
		ID:    id,
		Type:  stream.TypeDebrid,
		Addon: stream.Addon{InstanceID: "a1", Name: "a1"},
		File:  &parser.ParsedFile{Resolution: "1080p", Quality: "BluRay"},
		Size:  4 << 30,
	}
	if mutate != nil {
		mutate(s)
	}
	return s
}

func ids(streams []*stream.ParsedStream) []string {
	out := []string{}
	for _, s := range streams {
		out = append(out, s.ID)
	}
	return out
}

func testCtx() *Context {
	return &Context{
		Preferred: map[CriterionKey][]string{
			KeyResolution: {"2160p", "1080p", "720p"},
			KeyQuality:    {"BluRay REMUX", "BluRay", "WEB-DL"},
		},
		Services: []stream.ServiceID{stream.ServiceRealDebrid, stream.ServiceTorBox},
		Addons:   []string{"a1", "a2"},
	}
}

func TestSort_Categorical(t *testing.T) {
	streams := []*stream.ParsedStream{
		testStream("s720", func(s *stream.ParsedStream) { s.File.Resolution = "720p" }),
		testStream("s2160", func(s *stream.ParsedStream) { s.File.Resolution = "2160p" }),
		testStream("s1080", nil),
		testStream("unlisted", func(s *stream.ParsedStream) { s.File.Resolution = "480p" }),
	}
	conf := &Config{Global: []Criterion{{Key: KeyResolution}}}
	assert.Equal(t, []string{"s2160", "s1080", "s720", "unlisted"},
		ids(Sort(streams, conf, stremio.ContentTypeMovie, testCtx())))
}

func TestSort_SizeDefaultsDescending(t *testing.T) {
	streams := []*stream.ParsedStream{
		testStream("small", func(s *stream.ParsedStream) { s.Size = 1 << 30 }),
		testStream("big", func(s *stream.ParsedStream) { s.Size = 8 << 30 }),
	}
	conf := &Config{Global: []Criterion{{Key: KeySize}}}
	assert.Equal(t, []string{"big", "small"}, ids(Sort(streams, conf, stremio.ContentTypeMovie, testCtx())))

	conf = &Config{Global: []Criterion{{Key: KeySize, Direction: Asc}}}
	assert.Equal(t, []string{"small", "big"}, ids(Sort(streams, conf, stremio.ContentTypeMovie, testCtx())))
}

func TestSort_StableOnTies(t *testing.T) {
	streams := []*stream.ParsedStream{
		testStream("first", nil),
		testStream("second", nil),
		testStream("third", nil),
	}
	conf := &Config{Global: []Criterion{{Key: KeyResolution}, {Key: KeySize}}}
	assert.Equal(t, []string{"first", "second", "third"},
		ids(Sort(streams, conf, stremio.ContentTypeMovie, testCtx())))
}

func TestSort_PerTypeOverride(t *testing.T) {
	streams := []*stream.ParsedStream{
		testStream("small-2160", func(s *stream.ParsedStream) {
			s.File.Resolution = "2160p"
			s.Size = 1 << 30
		}),
		testStream("big-720", func(s *stream.ParsedStream) {
			s.File.Resolution = "720p"
			s.Size = 8 << 30
		}),
	}
	conf := &Config{
		Global: []Criterion{{Key: KeyResolution}},
		PerType: map[stremio.ContentType][]Criterion{
			stremio.ContentTypeSeries: {{Key: KeySize}},
		},
	}
	assert.Equal(t, []string{"small-2160", "big-720"},
		ids(Sort(streams, conf, stremio.ContentTypeMovie, testCtx())))
	assert.Equal(t, []string{"big-720", "small-2160"},
		ids(Sort(streams, conf, stremio.ContentTypeSeries, testCtx())))
}

func TestSort_CachedPartition(t *testing.T) {
	streams := []*stream.ParsedStream{
		testStream("uncached-big", func(s *stream.ParsedStream) {
			s.Service = &stream.Service{ID: stream.ServiceRealDebrid, Cached: false}
			s.Size = 20 << 30
		}),
		testStream("cached-small", func(s *stream.ParsedStream) {
			s.Service = &stream.Service{ID: stream.ServiceRealDebrid, Cached: true}
			s.Size = 1 << 30
		}),
		testStream("cached-big", func(s *stream.ParsedStream) {
			s.Service = &stream.Service{ID: stream.ServiceRealDebrid, Cached: true}
			s.Size = 8 << 30
		}),
	}

	// cached within the partition depth: every cached stream precedes
	// every uncached one regardless of size.
	conf := &Config{Global: []Criterion{{Key: KeyCached}, {Key: KeySize}}}
	assert.Equal(t, []string{"cached-big", "cached-small", "uncached-big"},
		ids(Sort(streams, conf, stremio.ContentTypeMovie, testCtx())))

	// Ascending cached criterion flips the partitions.
	conf = &Config{Global: []Criterion{{Key: KeyCached, Direction: Asc}, {Key: KeySize}}}
	assert.Equal(t, []string{"uncached-big", "cached-big", "cached-small"},
		ids(Sort(streams, conf, stremio.ContentTypeMovie, testCtx())))
}

func TestSort_CachedPartition_DedicatedLists(t *testing.T) {
	seeders := func(n int) *int { return &n }
	streams := []*stream.ParsedStream{
		testStream("uncached-few-seeders", func(s *stream.ParsedStream) {
			s.Service = &stream.Service{ID: stream.ServiceRealDebrid, Cached: false}
			s.Torrent = &stream.Torrent{InfoHash: "a", Seeders: seeders(3)}
			s.Size = 20 << 30
		}),
		testStream("uncached-many-seeders", func(s *stream.ParsedStream) {
			s.Service = &stream.Service{ID: stream.ServiceRealDebrid, Cached: false}
			s.Torrent = &stream.Torrent{InfoHash: "b", Seeders: seeders(900)}
			s.Size = 1 << 30
		}),
		testStream("cached-small", func(s *stream.ParsedStream) {
			s.Service = &stream.Service{ID: stream.ServiceRealDebrid, Cached: true}
			s.Size = 1 << 30
		}),
	}
	conf := &Config{
		Global:   []Criterion{{Key: KeyCached}, {Key: KeySize}},
		Uncached: []Criterion{{Key: KeySeeders}},
	}
	assert.Equal(t, []string{"cached-small", "uncached-many-seeders", "uncached-few-seeders"},
		ids(Sort(streams, conf, stremio.ContentTypeMovie, testCtx())))
}

func TestSort_ForceToTop(t *testing.T) {
	streams := []*stream.ParsedStream{
		testStream("s1", func(s *stream.ParsedStream) { s.Size = 8 << 30 }),
		testStream("pinned-late", func(s *stream.ParsedStream) {
			s.Addon = stream.Addon{InstanceID: "a2", Name: "a2"}
			s.Size = 1 << 30
		}),
	}
	ctx := testCtx()
	ctx.ForceToTop = map[string]bool{"a2": true}
	conf := &Config{Global: []Criterion{{Key: KeySize}}}
	assert.Equal(t, []string{"pinned-late", "s1"},
		ids(Sort(streams, conf, stremio.ContentTypeMovie, ctx)))
}

func TestSort_MatchedAnnotations(t *testing.T) {
	idx := 0
	streams := []*stream.ParsedStream{
		testStream("plain", nil),
		testStream("expr-matched", func(s *stream.ParsedStream) {
			s.StreamExpressionMatched = &idx
		}),
		testStream("regex-matched", func(s *stream.ParsedStream) {
			s.RegexMatched = &stream.RegexMatch{Name: "remux", Index: 0}
		}),
	}
	conf := &Config{Global: []Criterion{{Key: KeyStreamExpression}, {Key: KeyRegexPatterns}}}
	assert.Equal(t, []string{"expr-matched", "regex-matched", "plain"},
		ids(Sort(streams, conf, stremio.ContentTypeMovie, testCtx())))
}
