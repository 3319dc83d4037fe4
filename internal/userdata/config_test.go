package userdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomfle18/aiostreams/core"
	"github.com/tomfle18/aiostreams/internal/config"
	"github.com/tomfle18/aiostreams/internal/filter"
	"github.com/tomfle18/aiostreams/internal/sorter"
	"github.com/tomfle18/aiostreams/internal/stream"
)

func TestConfig_Validate(t *testing.T) {
	conf := Config{
		Groups: []Group{
			{Addons: []string{"a1"}},
			{Addons: []string{"a2"}, Condition: "totalStreams == 0"},
		},
	}
	assert.NoError(t, conf.Validate())

	conf.Groups[1].Condition = "totalStreams =="
	err := conf.Validate()
	require.Error(t, err)
	assert.EqualValues(t, core.ErrorCodeInvalidExpression, core.AsError(err).Code)
}

func TestConfig_Validate_GroupCount(t *testing.T) {
	conf := Config{Groups: make([]Group, config.MaxGroups+1)}
	err := conf.Validate()
	require.Error(t, err)
	assert.EqualValues(t, core.ErrorCodeInvalidConfig, core.AsError(err).Code)
}

func TestConfig_Validate_DynamicFetch(t *testing.T) {
	conf := Config{DynamicFetch: DynamicFetch{Enabled: true, Condition: "previousStreams >"}}
	err := conf.Validate()
	require.Error(t, err)
	assert.EqualValues(t, core.ErrorCodeInvalidExpression, core.AsError(err).Code)

	// disabled dynamic fetch skips condition parsing
	conf.DynamicFetch.Enabled = false
	assert.NoError(t, conf.Validate())
}

func TestConfig_EnabledServices(t *testing.T) {
	conf := Config{Services: []ServiceConfig{
		{ID: stream.ServiceTorBox, Enabled: true},
		{ID: stream.ServiceRealDebrid},
		{ID: stream.ServicePremiumize, Enabled: true},
	}}

	enabled := conf.EnabledServices()
	require.Len(t, enabled, 2)
	assert.Equal(t, stream.ServiceTorBox, enabled[0].ID)
	assert.Equal(t, stream.ServicePremiumize, enabled[1].ID)

	assert.Equal(t, []stream.ServiceID{stream.ServiceTorBox, stream.ServicePremiumize}, conf.ServiceOrder())
}

func TestConfig_AllowsCacheAndPlay(t *testing.T) {
	conf := Config{CacheAndPlay: []stream.Type{stream.TypeP2P}}
	assert.True(t, conf.AllowsCacheAndPlay(stream.TypeP2P))
	assert.False(t, conf.AllowsCacheAndPlay(stream.TypeUsenet))
	assert.False(t, (&Config{}).AllowsCacheAndPlay(stream.TypeP2P))
}

func TestConfig_PreferredLists(t *testing.T) {
	conf := Config{Filters: filter.Config{
		Resolutions: filter.ListFilter{Preferred: []string{"2160p", "1080p"}},
		Languages:   filter.ListFilter{Preferred: []string{"English"}},
	}}
	lists := conf.PreferredLists()
	assert.Equal(t, []string{"2160p", "1080p"}, lists[sorter.KeyResolution])
	assert.Equal(t, []string{"English"}, lists[sorter.KeyLanguage])
	assert.Empty(t, lists[sorter.KeyQuality])
}
