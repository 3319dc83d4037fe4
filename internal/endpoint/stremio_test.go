package endpoint

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseExtras(t *testing.T) {
	for _, tc := range []struct {
		name     string
		segment  string
		expected url.Values
	}{
		{
			name:     "single pair",
			segment:  "season=1",
			expected: url.Values{"season": {"1"}},
		},
		{
			name:     "multiple pairs",
			segment:  "season=1&episode=5",
			expected: url.Values{"season": {"1"}, "episode": {"5"}},
		},
		{
			name:     "path-escaped value",
			segment:  "search=the%20movie",
			expected: url.Values{"search": {"the movie"}},
		},
		{
			name:     "pair without value is dropped",
			segment:  "skip&season=1",
			expected: url.Values{"season": {"1"}},
		},
		{
			name:     "empty segment",
			segment:  "",
			expected: url.Values{},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, parseExtras(tc.segment))
		})
	}
}
