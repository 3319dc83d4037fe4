package formatter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tomfle18/aiostreams/internal/parser"
	"github.com/tomfle18/aiostreams/internal/stream"
)

func testStream(mutate func(s *stream.ParsedStream)) *stream.ParsedStream {
	s := &stream.ParsedStream{
		ID:       "s1",
		Type:     stream.TypeDebrid,
		Addon:    stream.Addon{InstanceID: "a1", Name: "Torrentio"},
		Filename: "Movie.2020.1080p.BluRay.x265.mkv",
		Size:     4 << 30,
		Service:  &stream.Service{ID: stream.ServiceRealDebrid, Cached: true},
		File: &parser.ParsedFile{
			Title:      "Movie",
			Resolution: "1080p",
			Languages:  []string{"English", "French"},
		},
		OriginalName:        "[RD+] Torrentio",
		OriginalDescription: "original description",
	}
	if mutate != nil {
		mutate(s)
	}
	return s
}

func TestRender_Placeholders(t *testing.T) {
	for _, tc := range []struct {
		name     string
		conf     Config
		mutate   func(s *stream.ParsedStream)
		expected string
	}{
		{
			name:     "plain value",
			conf:     Config{Name: "{stream.addon} - {stream.resolution}"},
			expected: "Torrentio - 1080p",
		},
		{
			name:     "exists branch true",
			conf:     Config{Name: "{stream.cached::exists[⚡||⏳]}"},
			expected: "⚡",
		},
		{
			name: "exists branch false",
			conf: Config{Name: "{stream.cached::exists[⚡||⏳]}"},
			mutate: func(s *stream.ParsedStream) {
				s.Service.Cached = false
			},
			expected: "⏳",
		},
		{
			name:     "bytes modifier",
			conf:     Config{Name: "{stream.size::bytes}"},
			expected: "4.3 GB",
		},
		{
			name:     "join modifier",
			conf:     Config{Name: "{stream.languages::join(, )}"},
			expected: "English, French",
		},
		{
			name:     "equality branch",
			conf:     Config{Name: "{stream.type::=p2p[[P2P]||direct]}"},
			expected: "direct",
		},
		{
			name:     "numeric comparison with nested placeholder",
			conf:     Config{Name: "{stream.size::>0[💾 {stream.size::bytes}||none]}"},
			expected: "💾 4.3 GB",
		},
		{
			name:     "unknown placeholder renders empty",
			conf:     Config{Name: "x{stream.nonsense}y"},
			expected: "xy",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := testStream(tc.mutate)
			name, _ := New(&tc.conf).Render(s)
			assert.Equal(t, tc.expected, name)
		})
	}
}

func TestRender_ErrorStream(t *testing.T) {
	s := testStream(func(s *stream.ParsedStream) {
		s.Type = stream.TypeError
		s.Error = &stream.Error{Title: "Provider failed", Description: "timeout"}
	})
	name, description := New(nil).Render(s)
	assert.Equal(t, "[❌] Torrentio", name)
	assert.Equal(t, "Provider failed\ntimeout", description)
}

func TestRender_EmptyFallsBackToOriginal(t *testing.T) {
	s := testStream(func(s *stream.ParsedStream) {
		s.File = nil
	})
	name, _ := New(&Config{Name: "{stream.resolution}", Description: "d"}).Render(s)
	assert.Equal(t, "[RD+] Torrentio", name)
}

func TestRender_DoesNotMutateStream(t *testing.T) {
	s := testStream(nil)
	before := *s
	New(nil).Render(s)
	assert.Equal(t, before, *s)
}

func TestRender_DefaultTemplates(t *testing.T) {
	s := testStream(nil)
	name, description := New(nil).Render(s)
	assert.Contains(t, name, "Torrentio")
	assert.Contains(t, name, "1080p")
	assert.Contains(t, name, "⚡")
	assert.Contains(t, description, "Movie.2020.1080p.BluRay.x265.mkv")
	assert.Contains(t, description, "💾")
}
