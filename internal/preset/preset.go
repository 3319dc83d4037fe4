// Package preset expands user-facing addon templates into provider
// descriptors.
package preset

import (
	"net/url"
	"strings"
	"time"

	"github.com/tomfle18/aiostreams/core"
	"github.com/tomfle18/aiostreams/internal/addon"
	"github.com/tomfle18/aiostreams/internal/logger"
	"github.com/tomfle18/aiostreams/internal/util"
	"github.com/tomfle18/aiostreams/stremio"
)

var log = logger.Scoped("preset")

// Options is one preset entry from user configuration. Preset-specific
// knobs ride in the opaque Values map.
type Options struct {
	PresetID   string         `json:"preset_id"`
	InstanceID string         `json:"instance_id"`
	Name       string         `json:"name,omitempty"`
	TimeoutMs  int            `json:"timeout_ms,omitempty"`
	ForceToTop bool           `json:"force_to_top,omitempty"`
	Library    bool           `json:"library,omitempty"`
	Values     map[string]any `json:"values,omitempty"`
}

func (o *Options) timeout() time.Duration {
	if o.TimeoutMs > 0 {
		return time.Duration(o.TimeoutMs) * time.Millisecond
	}
	return 0
}

func (o *Options) stringValue(key string) string {
	if v, ok := o.Values[key].(string); ok {
		return v
	}
	return ""
}

func (o *Options) base(manifestURL string) addon.Descriptor {
	name := o.Name
	if name == "" {
		name = o.PresetID
	}
	return addon.Descriptor{
		InstanceID:  o.InstanceID,
		ManifestURL: manifestURL,
		DisplayName: name,
		Identifier:  o.PresetID,
		Timeout:     o.timeout(),
		ForceToTop:  o.ForceToTop,
		Library:     o.Library,
	}
}

type Factory func(opts *Options) ([]addon.Descriptor, error)

var registry = map[string]Factory{}

func Register(id string, factory Factory) {
	registry[id] = factory
}

// Build expands preset entries into descriptors. Entries referencing
// unknown presets are removed in a pre-pass instead of failing the
// whole configuration.
func Build(entries []Options) ([]addon.Descriptor, error) {
	valid := make([]Options, 0, len(entries))
	for i := range entries {
		if _, ok := registry[entries[i].PresetID]; !ok {
			log.Warn("removing reference to unknown preset", "preset", entries[i].PresetID, "instance", entries[i].InstanceID)
			continue
		}
		valid = append(valid, entries[i])
	}

	seen := util.NewSet[string]()
	descriptors := make([]addon.Descriptor, 0, len(valid))
	for i := range valid {
		opts := &valid[i]
		built, err := registry[opts.PresetID](opts)
		if err != nil {
			return nil, err
		}
		for j := range built {
			d := &built[j]
			if err := d.Validate(); err != nil {
				return nil, err
			}
			if seen.Has(d.InstanceID) {
				return nil, core.NewError(core.ErrorCodeInvalidConfig, "duplicate addon instance id: "+d.InstanceID)
			}
			seen.Add(d.InstanceID)
			descriptors = append(descriptors, *d)
		}
	}
	return descriptors, nil
}

func init() {
	Register("custom", func(opts *Options) ([]addon.Descriptor, error) {
		manifestURL := opts.stringValue("manifestUrl")
		if manifestURL == "" {
			return nil, core.NewError(core.ErrorCodeInvalidConfig, "custom preset requires manifestUrl")
		}
		if _, err := url.Parse(manifestURL); err != nil {
			return nil, core.NewError(core.ErrorCodeInvalidConfig, "custom preset manifestUrl is invalid").WithCause(err)
		}
		return []addon.Descriptor{opts.base(manifestURL)}, nil
	})

	Register("torrentio", func(opts *Options) ([]addon.Descriptor, error) {
		base := "https://torrentio.strem.io"
		if conf := opts.stringValue("config"); conf != "" {
			base += "/" + strings.Trim(conf, "/")
		}
		d := opts.base(base + "/manifest.json")
		d.Resources = []stremio.ResourceName{stremio.ResourceNameStream}
		return []addon.Descriptor{d}, nil
	})

	Register("comet", func(opts *Options) ([]addon.Descriptor, error) {
		base := strings.TrimSuffix(opts.stringValue("url"), "/")
		if base == "" {
			base = "https://comet.elfhosted.com"
		}
		if conf := opts.stringValue("config"); conf != "" {
			base += "/" + strings.Trim(conf, "/")
		}
		d := opts.base(base + "/manifest.json")
		d.Resources = []stremio.ResourceName{stremio.ResourceNameStream}
		return []addon.Descriptor{d}, nil
	})
}
