package userdata

import (
	"github.com/tomfle18/aiostreams/core"
	"github.com/tomfle18/aiostreams/internal/config"
	"github.com/tomfle18/aiostreams/internal/dedupe"
	"github.com/tomfle18/aiostreams/internal/expression"
	"github.com/tomfle18/aiostreams/internal/filter"
	"github.com/tomfle18/aiostreams/internal/formatter"
	"github.com/tomfle18/aiostreams/internal/preset"
	"github.com/tomfle18/aiostreams/internal/proxifier"
	"github.com/tomfle18/aiostreams/internal/sorter"
	"github.com/tomfle18/aiostreams/internal/stream"
)

type GroupBehaviour string

const (
	GroupParallel   GroupBehaviour = "parallel"
	GroupSequential GroupBehaviour = "sequential"
)

// Group is one provider partition; sequential groups only run when the
// previous group produced nothing and the condition holds.
type Group struct {
	Addons    []string `json:"addons"`
	Condition string   `json:"condition,omitempty"`
}

type DynamicFetch struct {
	Enabled   bool   `json:"enabled,omitempty"`
	Condition string `json:"condition,omitempty"`
}

type ServiceConfig struct {
	ID         stream.ServiceID `json:"id"`
	Enabled    bool             `json:"enabled"`
	Credential string           `json:"credential,omitempty"`
}

// Credential resolves the plaintext API key, honoring encrypted-form
// values and operator overrides.
func (s *ServiceConfig) APIKey() (string, error) {
	if forced := config.ForcedServiceAPIKey(string(s.ID)); forced != "" {
		return forced, nil
	}
	credential := s.Credential
	if credential == "" {
		credential = config.DefaultServiceAPIKey(string(s.ID))
	}
	if core.IsEncrypted(credential) {
		return core.Decrypt(config.InternalSecret, credential)
	}
	return credential, nil
}

// Config is the decrypted per-user configuration driving the pipeline.
type Config struct {
	Presets  []preset.Options `json:"presets"`
	Services []ServiceConfig  `json:"services,omitempty"`

	Groups         []Group        `json:"groups,omitempty"`
	GroupBehaviour GroupBehaviour `json:"group_behaviour,omitempty"`
	DynamicFetch   DynamicFetch   `json:"dynamic_fetch,omitempty"`

	Filters filter.Config    `json:"filters,omitempty"`
	Dedup   dedupe.Config    `json:"dedup,omitempty"`
	Sort    sorter.Config    `json:"sort,omitempty"`
	Format  formatter.Config `json:"format,omitempty"`
	Proxy   proxifier.Config `json:"proxy,omitempty"`

	HideErrors             bool     `json:"hide_errors,omitempty"`
	HideErrorsForResources []string `json:"hide_errors_for_resources,omitempty"`
	// CacheAndPlay lists stream types allowed to wait for the service
	// to finish downloading.
	CacheAndPlay []stream.Type `json:"cache_and_play,omitempty"`
}

// Validate checks what schema-level validation (an external concern)
// cannot: expression syntax, group count, service references.
func (c *Config) Validate() error {
	if len(c.Groups) > config.MaxGroups {
		return core.NewError(core.ErrorCodeInvalidConfig, "too many addon groups")
	}
	for i := range c.Groups {
		if _, err := expression.ConditionBlob(c.Groups[i].Condition).Parse(); err != nil {
			return err
		}
	}
	if c.DynamicFetch.Enabled {
		if _, err := expression.ConditionBlob(c.DynamicFetch.Condition).Parse(); err != nil {
			return err
		}
	}
	return nil
}

// EnabledServices preserves the configured order, which doubles as the
// service ranking for dedup and sort.
func (c *Config) EnabledServices() []ServiceConfig {
	enabled := make([]ServiceConfig, 0, len(c.Services))
	for _, s := range c.Services {
		if s.Enabled {
			enabled = append(enabled, s)
		}
	}
	return enabled
}

func (c *Config) ServiceOrder() []stream.ServiceID {
	order := make([]stream.ServiceID, 0, len(c.Services))
	for _, s := range c.EnabledServices() {
		order = append(order, s.ID)
	}
	return order
}

func (c *Config) AllowsCacheAndPlay(t stream.Type) bool {
	for _, allowed := range c.CacheAndPlay {
		if allowed == t {
			return true
		}
	}
	return false
}

// PreferredLists feeds the sorter's categorical criteria from the
// filter configuration.
func (c *Config) PreferredLists() map[sorter.CriterionKey][]string {
	f := &c.Filters
	return map[sorter.CriterionKey][]string{
		sorter.KeyResolution:   f.Resolutions.Preferred,
		sorter.KeyQuality:      f.Qualities.Preferred,
		sorter.KeyEncode:       f.Encodes.Preferred,
		sorter.KeyVisualTag:    f.VisualTags.Preferred,
		sorter.KeyAudioTag:     f.AudioTags.Preferred,
		sorter.KeyAudioChannel: f.AudioChannels.Preferred,
		sorter.KeyLanguage:     f.Languages.Preferred,
		sorter.KeyStreamType:   f.StreamTypes.Preferred,
	}
}
