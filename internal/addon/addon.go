// Package addon talks to one upstream provider: manifest discovery and
// resource queries.
package addon

import (
	"context"
	"encoding/json"
	"io"
	"maps"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/tomfle18/aiostreams/core"
	"github.com/tomfle18/aiostreams/internal/cache"
	"github.com/tomfle18/aiostreams/internal/fetch"
	"github.com/tomfle18/aiostreams/internal/lock"
	"github.com/tomfle18/aiostreams/internal/logger"
	"github.com/tomfle18/aiostreams/stremio"
)

var log = logger.Scoped("addon")

// Descriptor is the immutable per-request description of one provider.
type Descriptor struct {
	InstanceID  string        `json:"instance_id"`
	ManifestURL string        `json:"manifest_url"`
	DisplayName string        `json:"display_name"`
	Identifier  string        `json:"identifier,omitempty"`
	ShortID     string        `json:"short_id,omitempty"`
	Timeout     time.Duration `json:"timeout,omitempty"`

	Resources  []stremio.ResourceName `json:"resources,omitempty"`
	MediaTypes []stremio.ContentType  `json:"media_types,omitempty"`

	ExtraHeaders map[string]string `json:"extra_headers,omitempty"`

	ForceToTop        bool `json:"force_to_top,omitempty"`
	Library           bool `json:"library,omitempty"`
	FormatPassthrough bool `json:"format_passthrough,omitempty"`
	ResultPassthrough bool `json:"result_passthrough,omitempty"`
}

func (d *Descriptor) Validate() error {
	if d.InstanceID == "" || strings.Contains(d.InstanceID, ".") {
		return core.NewError(core.ErrorCodeInvalidConfig, "addon instance id must be non-empty and must not contain '.'")
	}
	if d.ManifestURL == "" {
		return core.NewError(core.ErrorCodeInvalidConfig, "addon manifest url is required")
	}
	return nil
}

func (d *Descriptor) manifestBase() string {
	return strings.TrimSuffix(d.ManifestURL, "/manifest.json")
}

func (d *Descriptor) timeout() time.Duration {
	if d.Timeout > 0 {
		return d.Timeout
	}
	return fetch.DefaultTimeout
}

// Supports consults the descriptor restriction first and then the
// advertised manifest surface.
func (d *Descriptor) Supports(manifest *stremio.Manifest, resource stremio.ResourceName, contentType stremio.ContentType) bool {
	if len(d.Resources) > 0 && !slices.Contains(d.Resources, resource) {
		return false
	}
	if len(d.MediaTypes) > 0 && !slices.Contains(d.MediaTypes, contentType) {
		return false
	}
	if manifest == nil {
		return true
	}
	supported := false
	for i := range manifest.Resources {
		r := &manifest.Resources[i]
		if r.Name != resource {
			continue
		}
		if len(r.Types) > 0 && !slices.Contains(r.Types, contentType) {
			continue
		}
		supported = true
	}
	if !supported {
		return false
	}
	return len(manifest.Types) == 0 || slices.Contains(manifest.Types, contentType)
}

var manifestCache = sync.OnceValue(func() cache.Cache[stremio.Manifest] {
	return cache.NewCache[stremio.Manifest](&cache.CacheConfig{
		Name:     "addon:manifest",
		Lifetime: 12 * time.Hour,
	})
})

// FetchManifest resolves and caches the provider's manifest.
func FetchManifest(ctx context.Context, d *Descriptor, forwardIP string) (*stremio.Manifest, error) {
	manifest := stremio.Manifest{}
	if manifestCache().Get(d.ManifestURL, &manifest) {
		return &manifest, nil
	}
	result, err := lock.WithLock(ctx, "manifest:"+d.ManifestURL, func(ctx context.Context) (stremio.Manifest, error) {
		m := stremio.Manifest{}
		err := fetchJSON(ctx, d, d.ManifestURL, forwardIP, &m)
		return m, err
	}, &lock.Options{TTL: d.timeout() + 5*time.Second, Timeout: d.timeout() + 10*time.Second})
	if err != nil {
		return nil, err
	}
	if err := manifestCache().Add(d.ManifestURL, result.Value); err != nil {
		log.Warn("failed to cache manifest", "error", err, "addon", d.InstanceID)
	}
	return &result.Value, nil
}

// extrasSlug serializes extras the way addon resource urls expect.
func extrasSlug(extras url.Values) string {
	if len(extras) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(extras))
	for _, key := range slices.Sorted(maps.Keys(extras)) {
		pairs = append(pairs, key+"="+url.PathEscape(extras.Get(key)))
	}
	return strings.Join(pairs, "&")
}

// ResourceURL builds {manifestBase}/{resource}/{type}/{id}[/{extras}].json.
func (d *Descriptor) ResourceURL(resource stremio.ResourceName, contentType stremio.ContentType, id string, extras url.Values) string {
	parts := []string{d.manifestBase(), string(resource), string(contentType), url.PathEscape(id)}
	if slug := extrasSlug(extras); slug != "" {
		parts = append(parts, slug)
	}
	return strings.Join(parts, "/") + ".json"
}

// FetchStreams queries the provider's stream resource. Identical
// concurrent fetches collapse through the memoizer, and the winner's
// payload is replayed to every waiter.
func FetchStreams(ctx context.Context, d *Descriptor, contentType stremio.ContentType, id string, extras url.Values, forwardIP string) ([]stremio.Stream, error) {
	resourceURL := d.ResourceURL(stremio.ResourceNameStream, contentType, id, extras)
	result, err := lock.WithLock(ctx, "fetch:"+resourceURL, func(ctx context.Context) (stremio.StreamHandlerResponse, error) {
		res := stremio.StreamHandlerResponse{}
		err := fetchJSON(ctx, d, resourceURL, forwardIP, &res)
		return res, err
	}, &lock.Options{TTL: d.timeout() + 5*time.Second, Timeout: d.timeout() + 10*time.Second})
	if err != nil {
		return nil, err
	}
	return result.Value.Streams, nil
}

func fetchJSON(ctx context.Context, d *Descriptor, rawURL, forwardIP string, out any) error {
	res, err := fetch.Fetch(ctx, rawURL, &fetch.Options{
		Timeout:   d.timeout(),
		Headers:   d.ExtraHeaders,
		ForwardIP: forwardIP,
	})
	if err != nil {
		return err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return core.NewError(core.ErrorCodeProviderBadResponse, d.DisplayName+": truncated response").WithCause(err)
	}
	if res.StatusCode >= 400 {
		return core.NewError(core.ErrorCodeProviderHTTPError, d.DisplayName+": upstream returned "+res.Status)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return core.NewError(core.ErrorCodeProviderBadResponse, d.DisplayName+": unexpected response shape").WithCause(err)
	}
	return nil
}
