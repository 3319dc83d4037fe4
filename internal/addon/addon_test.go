package addon

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomfle18/aiostreams/core"
	"github.com/tomfle18/aiostreams/stremio"
)

func TestDescriptor_Validate(t *testing.T) {
	for _, tc := range []struct {
		name       string
		descriptor Descriptor
		valid      bool
	}{
		{
			name:       "ok",
			descriptor: Descriptor{InstanceID: "a1", ManifestURL: "https://example.com/manifest.json"},
			valid:      true,
		},
		{
			name:       "missing instance id",
			descriptor: Descriptor{ManifestURL: "https://example.com/manifest.json"},
		},
		{
			name:       "dot in instance id",
			descriptor: Descriptor{InstanceID: "a.1", ManifestURL: "https://example.com/manifest.json"},
		},
		{
			name:       "missing manifest url",
			descriptor: Descriptor{InstanceID: "a1"},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.descriptor.Validate()
			if tc.valid {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.EqualValues(t, core.ErrorCodeInvalidConfig, core.AsError(err).Code)
			}
		})
	}
}

func TestDescriptor_ResourceURL(t *testing.T) {
	d := Descriptor{
		InstanceID:  "a1",
		ManifestURL: "https://example.com/addon/manifest.json",
	}

	assert.Equal(t,
		"https://example.com/addon/stream/movie/tt0111161.json",
		d.ResourceURL(stremio.ResourceNameStream, stremio.ContentTypeMovie, "tt0111161", nil))

	extras := url.Values{}
	extras.Set("season", "1")
	extras.Set("episode", "5")
	assert.Equal(t,
		"https://example.com/addon/stream/series/tt0903747:1:5/episode=5&season=1.json",
		d.ResourceURL(stremio.ResourceNameStream, stremio.ContentTypeSeries, "tt0903747:1:5", extras))
}

func TestDescriptor_Supports(t *testing.T) {
	manifest := &stremio.Manifest{
		Types: []stremio.ContentType{stremio.ContentTypeMovie, stremio.ContentTypeSeries},
		Resources: []stremio.Resource{
			{Name: stremio.ResourceNameStream, Types: []stremio.ContentType{stremio.ContentTypeMovie}},
			{Name: stremio.ResourceNameMeta},
		},
	}

	for _, tc := range []struct {
		name        string
		descriptor  Descriptor
		manifest    *stremio.Manifest
		resource    stremio.ResourceName
		contentType stremio.ContentType
		expected    bool
	}{
		{
			name:        "manifest allows",
			manifest:    manifest,
			resource:    stremio.ResourceNameStream,
			contentType: stremio.ContentTypeMovie,
			expected:    true,
		},
		{
			name:        "resource restricts type",
			manifest:    manifest,
			resource:    stremio.ResourceNameStream,
			contentType: stremio.ContentTypeSeries,
			expected:    false,
		},
		{
			name:        "resource without types inherits manifest types",
			manifest:    manifest,
			resource:    stremio.ResourceNameMeta,
			contentType: stremio.ContentTypeSeries,
			expected:    true,
		},
		{
			name:        "manifest type list bounds everything",
			manifest:    manifest,
			resource:    stremio.ResourceNameMeta,
			contentType: stremio.ContentTypeTV,
			expected:    false,
		},
		{
			name:        "descriptor restriction wins over manifest",
			descriptor:  Descriptor{MediaTypes: []stremio.ContentType{stremio.ContentTypeSeries}},
			manifest:    manifest,
			resource:    stremio.ResourceNameStream,
			contentType: stremio.ContentTypeMovie,
			expected:    false,
		},
		{
			name:        "descriptor resource restriction",
			descriptor:  Descriptor{Resources: []stremio.ResourceName{stremio.ResourceNameMeta}},
			manifest:    manifest,
			resource:    stremio.ResourceNameStream,
			contentType: stremio.ContentTypeMovie,
			expected:    false,
		},
		{
			name:        "nil manifest defers to descriptor",
			descriptor:  Descriptor{Resources: []stremio.ResourceName{stremio.ResourceNameStream}},
			resource:    stremio.ResourceNameStream,
			contentType: stremio.ContentTypeMovie,
			expected:    true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.descriptor.Supports(tc.manifest, tc.resource, tc.contentType)
			assert.Equal(t, tc.expected, got)
		})
	}
}
