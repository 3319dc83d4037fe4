package fetch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomfle18/aiostreams/core"
	"github.com/tomfle18/aiostreams/internal/config"
)

func TestCheckRecursion(t *testing.T) {
	rawURL := "https://recursion-test.example.com/stream/movie/tt1.json"

	for i := 0; i < config.RecursionThresholdLimit; i++ {
		assert.NoError(t, checkRecursion(rawURL, "1.2.3.4"))
	}
	err := checkRecursion(rawURL, "1.2.3.4")
	require.Error(t, err)
	assert.EqualValues(t, core.ErrorCodeRecursiveRequest, core.AsError(err).Code)

	// a different forward ip counts separately
	assert.NoError(t, checkRecursion(rawURL, "5.6.7.8"))
}
