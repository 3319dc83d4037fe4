package aggregator

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomfle18/aiostreams/core"
	"github.com/tomfle18/aiostreams/internal/addon"
	"github.com/tomfle18/aiostreams/internal/filter"
	"github.com/tomfle18/aiostreams/internal/stream"
	"github.com/tomfle18/aiostreams/internal/userdata"
	"github.com/tomfle18/aiostreams/stremio"
)

var testDescriptors = []addon.Descriptor{
	{InstanceID: "a1", ManifestURL: "https://one.example.com/manifest.json", DisplayName: "One"},
	{InstanceID: "a2", ManifestURL: "https://two.example.com/manifest.json", DisplayName: "Two"},
	{InstanceID: "a3", ManifestURL: "https://three.example.com/manifest.json", DisplayName: "Three"},
}

func TestPartition_NoGroups(t *testing.T) {
	groups, err := partition(testDescriptors, &userdata.Config{})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0].descriptors, 3)
	assert.Nil(t, groups[0].condition)
}

func TestPartition_Groups(t *testing.T) {
	conf := &userdata.Config{Groups: []userdata.Group{
		{Addons: []string{"a2", "a1"}},
		{Addons: []string{"a3", "missing"}, Condition: "totalStreams == 0"},
	}}
	groups, err := partition(testDescriptors, conf)
	require.NoError(t, err)
	require.Len(t, groups, 2)

	// group order and in-group order follow the configuration
	require.Len(t, groups[0].descriptors, 2)
	assert.Equal(t, "a2", groups[0].descriptors[0].InstanceID)
	assert.Equal(t, "a1", groups[0].descriptors[1].InstanceID)

	// unknown instance ids are skipped
	require.Len(t, groups[1].descriptors, 1)
	assert.Equal(t, "a3", groups[1].descriptors[0].InstanceID)
	assert.NotNil(t, groups[1].condition)
}

func TestPartition_InvalidCondition(t *testing.T) {
	conf := &userdata.Config{Groups: []userdata.Group{
		{Addons: []string{"a1"}, Condition: "totalStreams =="},
	}}
	_, err := partition(testDescriptors, conf)
	require.Error(t, err)
	assert.EqualValues(t, core.ErrorCodeInvalidExpression, core.AsError(err).Code)
}

func stubProviders(t *testing.T, streamsByAddon map[string][]stremio.Stream, errByAddon map[string]error) {
	origManifest, origStreams := fetchManifest, fetchStreams
	t.Cleanup(func() { fetchManifest, fetchStreams = origManifest, origStreams })

	fetchManifest = func(ctx context.Context, d *addon.Descriptor, forwardIP string) (*stremio.Manifest, error) {
		if err := errByAddon[d.InstanceID]; err != nil {
			return nil, err
		}
		return &stremio.Manifest{
			Resources: []stremio.Resource{{Name: stremio.ResourceNameStream}},
		}, nil
	}
	fetchStreams = func(ctx context.Context, d *addon.Descriptor, contentType stremio.ContentType, id string, extras url.Values, forwardIP string) ([]stremio.Stream, error) {
		return streamsByAddon[d.InstanceID], nil
	}
}

func TestFanOut_ProviderFailureIsIsolated(t *testing.T) {
	stubProviders(t,
		map[string][]stremio.Stream{
			"a1": {{URL: "https://cdn.example.com/one.mp4", Name: "One 1080p"}},
			"a3": {{URL: "https://cdn.example.com/three.mp4", Name: "Three 720p"}},
		},
		map[string]error{
			"a2": errors.New("upstream timed out"),
		})

	conf := &userdata.Config{}
	req := &Request{ContentType: stremio.ContentTypeMovie, ID: "tt0111161"}
	collected := fanOut(context.Background(), testDescriptors, conf, req)

	// one inline error stream, the healthy providers' results intact,
	// merged in configured provider order
	require.Len(t, collected, 3)
	assert.Equal(t, "a1", collected[0].Addon.InstanceID)
	assert.Equal(t, stream.TypeHTTP, collected[0].Type)
	assert.Equal(t, "a2", collected[1].Addon.InstanceID)
	assert.Equal(t, stream.TypeError, collected[1].Type)
	require.NotNil(t, collected[1].Error)
	assert.Equal(t, "a3", collected[2].Addon.InstanceID)
	assert.Equal(t, stream.TypeHTTP, collected[2].Type)
}

func TestFanOut_HideErrorsDropsFailures(t *testing.T) {
	stubProviders(t,
		map[string][]stremio.Stream{
			"a1": {{URL: "https://cdn.example.com/one.mp4", Name: "One 1080p"}},
		},
		map[string]error{
			"a2": errors.New("upstream timed out"),
			"a3": errors.New("upstream exploded"),
		})

	conf := &userdata.Config{HideErrors: true}
	req := &Request{ContentType: stremio.ContentTypeMovie, ID: "tt0111161"}
	collected := fanOut(context.Background(), testDescriptors, conf, req)

	require.Len(t, collected, 1)
	assert.Equal(t, "a1", collected[0].Addon.InstanceID)
}

func TestSurviving_IgnoresErrorStreams(t *testing.T) {
	filterer, err := filter.Compile(&filter.Config{}, &filter.CompileOptions{AllowAnyRegex: true})
	require.NoError(t, err)
	req := &Request{ContentType: stremio.ContentTypeMovie}

	streams := []*stream.ParsedStream{
		{ID: "s1", Type: stream.TypeError, Error: &stream.Error{Title: "boom"}},
		{ID: "s2", Type: stream.TypeHTTP, URL: "https://cdn.example.com/v.mp4"},
	}
	assert.Equal(t, 1, surviving(streams, filterer, req))
	assert.Equal(t, 0, surviving(streams[:1], filterer, req))
}
