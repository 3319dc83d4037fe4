package config

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchHostGlob(t *testing.T) {
	assert.True(t, matchHostGlob("*", "anything.example.com"))
	assert.True(t, matchHostGlob("*.example.com", "addon.example.com"))
	assert.False(t, matchHostGlob("*.example.com", "example.org"))
	assert.True(t, matchHostGlob("exact.example.com", "exact.example.com"))
	assert.False(t, matchHostGlob("exact.example.com", "other.example.com"))
}

func TestProxyForHost(t *testing.T) {
	origProxies, origRules := AddonProxies, AddonProxyRules
	defer func() { AddonProxies, AddonProxyRules = origProxies, origRules }()

	AddonProxies = []string{"socks5://first:1080", "socks5://second:1080"}

	// no rules: everything goes through the first proxy
	AddonProxyRules = nil
	assert.Equal(t, "socks5://first:1080", ProxyForHost("addon.example.com"))

	// last matching rule wins
	AddonProxyRules = []ProxyRule{
		{HostGlob: "*", ProxyIndex: 0},
		{HostGlob: "*.example.com", ProxyIndex: -1},
		{HostGlob: "special.example.com", ProxyIndex: 1},
	}
	assert.Equal(t, "socks5://first:1080", ProxyForHost("addon.example.org"))
	assert.Equal(t, "", ProxyForHost("addon.example.com"))
	assert.Equal(t, "socks5://second:1080", ProxyForHost("special.example.com"))

	// out-of-range index means direct
	AddonProxyRules = []ProxyRule{{HostGlob: "*", ProxyIndex: 7}}
	assert.Equal(t, "", ProxyForHost("addon.example.com"))
}

func TestParsePairs(t *testing.T) {
	assert.Equal(t,
		map[string]string{"addon.example.com": "Mozilla/5.0", "other.example.com": "curl/8"},
		parsePairs("addon.example.com:Mozilla/5.0, other.example.com:curl/8"))
	assert.Empty(t, parsePairs(""))
}

func TestParseMappings(t *testing.T) {
	// both sides are scheme-qualified URLs and must survive intact
	assert.Equal(t,
		map[string]string{"https://slow.example.com": "https://mirror.example.com:8443"},
		parseMappings("https://slow.example.com=https://mirror.example.com:8443"))
	assert.Empty(t, parseMappings(""))
	assert.Empty(t, parseMappings("no-separator"))
}

func TestMapRequestURL(t *testing.T) {
	origBase, origInternal, origMappings := BaseURL, InternalURL, RequestURLMappings
	defer func() { BaseURL, InternalURL, RequestURLMappings = origBase, origInternal, origMappings }()

	BaseURL, _ = url.Parse("https://aio.example.com")
	InternalURL, _ = url.Parse("http://127.0.0.1:8080")
	RequestURLMappings = map[string]string{
		"https://slow.example.com": "https://mirror.example.com",
	}

	assert.Equal(t,
		"http://127.0.0.1:8080/u/abc/manifest.json",
		MapRequestURL("https://aio.example.com/u/abc/manifest.json"))
	assert.Equal(t,
		"https://mirror.example.com/stream/movie/tt1.json",
		MapRequestURL("https://slow.example.com/stream/movie/tt1.json"))
	assert.Equal(t,
		"https://other.example.com/manifest.json",
		MapRequestURL("https://other.example.com/manifest.json"))
}
