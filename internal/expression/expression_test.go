package expression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomfle18/aiostreams/core"
	"github.com/tomfle18/aiostreams/internal/parser"
	"github.com/tomfle18/aiostreams/internal/stream"
)

func testStream(id string, mutate func(s *stream.ParsedStream)) *stream.ParsedStream {
	s := &stream.ParsedStream{
		ID:    id,
		Type:  stream.TypeDebrid,
		Addon: stream.Addon{InstanceID: "a1", Name: "Addon One"},
		File:  &parser.ParsedFile{Resolution: "1080p", Quality: "BluRay"},
		Size:  2 << 30,
	}
	if mutate != nil {
		mutate(s)
	}
	return s
}

func TestCondition_Eval(t *testing.T) {
	for _, tc := range []struct {
		name     string
		blob     ConditionBlob
		streams  []*stream.ParsedStream
		expected bool
	}{
		{
			name:     "empty condition is true",
			blob:     "",
			streams:  nil,
			expected: true,
		},
		{
			name:     "total streams",
			blob:     "totalStreams == 0",
			streams:  nil,
			expected: true,
		},
		{
			name: "collection predicate",
			blob: `len(filter(streams, .cached)) == 0`,
			streams: []*stream.ParsedStream{
				testStream("s1", nil),
			},
			expected: true,
		},
		{
			name: "bare equals is upgraded",
			blob: "totalStreams = 1",
			streams: []*stream.ParsedStream{
				testStream("s1", nil),
			},
			expected: true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c, err := tc.blob.Parse()
			require.NoError(t, err)
			matched, err := c.Eval(tc.streams)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, matched)
		})
	}
}

func TestCondition_Parse_Invalid(t *testing.T) {
	_, err := ConditionBlob("totalStreams >").Parse()
	require.Error(t, err)
	assert.EqualValues(t, core.ErrorCodeInvalidExpression, core.AsError(err).Code)
}

func TestSelector_Select_Boolean(t *testing.T) {
	streams := []*stream.ParsedStream{
		testStream("s1", func(s *stream.ParsedStream) {
			s.File.Resolution = "2160p"
		}),
		testStream("s2", nil),
		testStream("s3", func(s *stream.ParsedStream) {
			s.File.Resolution = "720p"
		}),
	}

	for _, tc := range []struct {
		name     string
		blob     SelectorBlob
		expected []string
	}{
		{
			name:     "resolution order comparison",
			blob:     `resolution >= "1080p"`,
			expected: []string{"s1", "s2"},
		},
		{
			name:     "size literal",
			blob:     "size > 1gb",
			expected: []string{"s1", "s2", "s3"},
		},
		{
			name:     "quality equality",
			blob:     `quality == "BluRay" && resolution < "1080p"`,
			expected: []string{"s3"},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			sel, err := tc.blob.Parse()
			require.NoError(t, err)
			selected, err := sel.Select(streams)
			require.NoError(t, err)
			ids := []string{}
			for _, s := range selected {
				ids = append(ids, s.ID)
			}
			assert.Equal(t, tc.expected, ids)
		})
	}
}

func TestSelector_Select_ListForm(t *testing.T) {
	streams := []*stream.ParsedStream{
		testStream("s1", func(s *stream.ParsedStream) {
			s.Service = &stream.Service{ID: stream.ServiceRealDebrid, Cached: true}
		}),
		testStream("s2", nil),
	}

	sel, err := SelectorBlob(`filter(streams, .cached)`).Parse()
	require.NoError(t, err)
	selected, err := sel.Select(streams)
	require.NoError(t, err)
	require.Len(t, selected, 1)
	assert.Equal(t, "s1", selected[0].ID)
}

func TestSelector_Parse_WrongKind(t *testing.T) {
	// Kind validation happens at parse time via a dry run.
	_, err := SelectorBlob(`size + 1`).Parse()
	require.Error(t, err)
	assert.EqualValues(t, core.ErrorCodeTypeError, core.AsError(err).Code)
}

func TestSelector_Select_TypeError(t *testing.T) {
	// Boolean on the dry-run env, string on the real one: the wrong kind
	// must still surface at evaluation time.
	sel, err := SelectorBlob(`size == 0 ? true : "nope"`).Parse()
	require.NoError(t, err)
	_, err = sel.Select([]*stream.ParsedStream{testStream("s1", nil)})
	require.Error(t, err)
	assert.EqualValues(t, core.ErrorCodeTypeError, core.AsError(err).Code)
}

func TestResolutionOrder(t *testing.T) {
	assert.Greater(t, Resolution("2160p").Order(), Resolution("1080p").Order())
	assert.Greater(t, Resolution("1080p").Order(), Resolution("720p").Order())
	assert.Greater(t, Resolution("720p").Order(), Resolution("").Order())
}
