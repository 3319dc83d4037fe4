package resolver

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomfle18/aiostreams/internal/stream"
)

func TestPoolFor_CarriesResults(t *testing.T) {
	link, err := poolFor(stream.ServiceRealDebrid).SubmitErr(func() (string, error) {
		return "https://cdn.example.com/dl/abc", nil
	}).Wait()
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/dl/abc", link)

	_, err = poolFor(stream.ServiceRealDebrid).SubmitErr(func() (string, error) {
		return "", errors.New("service exploded")
	}).Wait()
	require.Error(t, err)
	assert.Equal(t, "service exploded", err.Error())
}
