// Package proxifier rewrites stream playback urls through the user's
// configured stream proxy.
package proxifier

import (
	"net/url"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomfle18/aiostreams/internal/config"
	"github.com/tomfle18/aiostreams/internal/stream"
)

type Config struct {
	Enabled         bool               `json:"enabled,omitempty"`
	URL             string             `json:"url,omitempty"`
	PublicURL       string             `json:"public_url,omitempty"`
	Credentials     string             `json:"credentials,omitempty"`
	ProxiedAddons   []string           `json:"proxied_addons,omitempty"`
	ProxiedServices []stream.ServiceID `json:"proxied_services,omitempty"`
}

// withOverrides folds the operator's FORCE_PROXY_* settings over the
// user's proxy config.
func (c *Config) withOverrides() *Config {
	conf := *c
	force := config.ForceProxy
	if force.Enabled != "" {
		conf.Enabled = force.Enabled == "true"
	}
	if force.URL != "" {
		conf.URL = force.URL
	}
	if force.PublicURL != "" {
		conf.PublicURL = force.PublicURL
	}
	if force.Credentials != "" {
		conf.Credentials = force.Credentials
	}
	return &conf
}

func (c *Config) applies(s *stream.ParsedStream) bool {
	switch s.Type {
	case stream.TypeExternal, stream.TypeYoutube, stream.TypeError, stream.TypeStatistic:
		return false
	}
	if s.URL == "" || s.Proxied {
		return false
	}
	if slices.Contains(c.ProxiedAddons, s.Addon.InstanceID) {
		return true
	}
	if s.Service != nil && slices.Contains(c.ProxiedServices, s.Service.ID) {
		return true
	}
	return false
}

// signURL wraps the original playback url in a short JWT so the proxy
// can verify it was issued by us.
func signURL(rawURL, credentials string, headers *stream.ParsedStream) (string, error) {
	claims := jwt.MapClaims{
		"url": rawURL,
		"exp": jwt.NewNumericDate(time.Now().Add(config.BuiltinPlaybackLinkValidity)),
	}
	if ph := headers.ProxyHeaders; ph != nil {
		if len(ph.Request) > 0 {
			claims["request_headers"] = ph.Request
		}
		if len(ph.Response) > 0 {
			claims["response_headers"] = ph.Response
		}
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	secret := credentials
	if secret == "" {
		secret = config.InternalSecret
	}
	return token.SignedString([]byte(secret))
}

// Apply rewrites eligible stream urls in place and marks them proxied.
func Apply(streams []*stream.ParsedStream, userConf *Config) []*stream.ParsedStream {
	if userConf == nil {
		userConf = &Config{}
	}
	conf := userConf.withOverrides()
	if !conf.Enabled || conf.URL == "" {
		return streams
	}
	base := conf.PublicURL
	if base == "" {
		base = conf.URL
	}

	for _, s := range streams {
		if !conf.applies(s) {
			continue
		}
		signed, err := signURL(s.URL, conf.Credentials, s)
		if err != nil {
			continue
		}
		proxied, err := url.Parse(base)
		if err != nil {
			continue
		}
		proxied = proxied.JoinPath("proxy")
		q := proxied.Query()
		q.Set("token", signed)
		proxied.RawQuery = q.Encode()
		s.URL = proxied.String()
		s.Proxied = true
	}
	return streams
}
