package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

func getEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func getEnvDefault(key, fallback string) string {
	if value := getEnv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := getEnv(key); value != "" {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := getEnv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		// plain numbers are seconds
		if v, err := strconv.Atoi(value); err == nil {
			return time.Duration(v) * time.Second
		}
	}
	return fallback
}

func getEnvURL(key string) *url.URL {
	if value := getEnv(key); value != "" {
		if u, err := url.Parse(value); err == nil {
			return u
		}
	}
	return nil
}

// parsePairs splits "a:1,b:2" into a map, keeping the last value for
// duplicate keys.
func parsePairs(value string) map[string]string {
	pairs := map[string]string{}
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, val, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		pairs[strings.TrimSpace(key)] = strings.TrimSpace(val)
	}
	return pairs
}

// parseMappings splits "from=to,from=to". Mappings use "=" because both
// sides are URLs and ":" appears in every scheme.
func parseMappings(value string) map[string]string {
	mappings := map[string]string{}
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		from, to, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		mappings[strings.TrimSpace(from)] = strings.TrimSpace(to)
	}
	return mappings
}

var (
	Port = getEnvDefault("PORT", "8080")

	BaseURL     = getEnvURL("BASE_URL")
	InternalURL = getEnvURL("INTERNAL_URL")

	// InternalSecret seals user credentials, playback auth and proxy
	// parameters.
	InternalSecret = getEnvDefault("INTERNAL_SECRET", "")

	RedisURI    = getEnv("REDIS_URI")
	DatabaseURI = getEnvDefault("DATABASE_URI", "sqlite://./data/aiostreams.db")

	RecursionThresholdLimit  = getEnvInt("RECURSION_THRESHOLD_LIMIT", 5)
	RecursionThresholdWindow = getEnvDuration("RECURSION_THRESHOLD_WINDOW", 10*time.Second)

	MaxStreamExpressionFilters = getEnvInt("MAX_STREAM_EXPRESSION_FILTERS", 20)
	MaxKeywordFilters          = getEnvInt("MAX_KEYWORD_FILTERS", 100)
	MaxGroups                  = getEnvInt("MAX_GROUPS", 10)

	BuiltinPlaybackLinkValidity = getEnvDuration("BUILTIN_PLAYBACK_LINK_VALIDITY", 12*time.Hour)

	PruneMaxDays  = getEnvInt("PRUNE_MAX_DAYS", 30)
	PruneInterval = getEnvDuration("PRUNE_INTERVAL", 6*time.Hour)

	// HostnameUserAgentOverrides maps hostname to outbound User-Agent.
	HostnameUserAgentOverrides = parsePairs(getEnv("HOSTNAME_USER_AGENT_OVERRIDES"))

	// RequestURLMappings rewrites outbound URL prefixes ("from=to"
	// pairs), on top of the implicit BASE_URL -> INTERNAL_URL mapping.
	RequestURLMappings = parseMappings(getEnv("REQUEST_URL_MAPPINGS"))

	PosthogAPIKey = getEnv("POSTHOG_API_KEY")

	// AllowedRegexPatterns is the allow-list applied to users without
	// free-regex access.
	AllowedRegexPatterns = func() []string {
		value := getEnv("ALLOWED_REGEX_PATTERNS")
		if value == "" {
			return nil
		}
		return strings.Split(value, "\n")
	}()

	TrustedUUIDs = func() map[string]struct{} {
		trusted := map[string]struct{}{}
		for _, id := range strings.Split(getEnv("TRUSTED_UUIDS"), ",") {
			if id = strings.TrimSpace(id); id != "" {
				trusted[id] = struct{}{}
			}
		}
		return trusted
	}()

	StaticVideoBaseURL = getEnvDefault("STATIC_VIDEO_BASE_URL", "https://static.aiostreams.dev/video")

	FetchParallelism = getEnvInt("FETCH_PARALLELISM", 20)
)

// AddonProxies is the ordered outbound proxy pool (ADDON_PROXY holds one
// URL, or several separated by commas).
var AddonProxies = func() []string {
	value := getEnv("ADDON_PROXY")
	if value == "" {
		return nil
	}
	proxies := []string{}
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			proxies = append(proxies, p)
		}
	}
	return proxies
}()

type ProxyRule struct {
	HostGlob string
	// Use indexes into AddonProxies; -1 means direct.
	ProxyIndex int
}

func matchHostGlob(glob, host string) bool {
	if glob == "*" {
		return true
	}
	if suffix, ok := strings.CutPrefix(glob, "*"); ok {
		return strings.HasSuffix(host, suffix)
	}
	return glob == host
}

// AddonProxyRules is the ordered host-glob rule table parsed from
// ADDON_PROXY_CONFIG, e.g. "*:false,*.suffix.tld:true,exact.tld:1".
var AddonProxyRules = func() []ProxyRule {
	value := getEnv("ADDON_PROXY_CONFIG")
	if value == "" {
		return nil
	}
	rules := []ProxyRule{}
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		glob, val, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		rule := ProxyRule{HostGlob: strings.TrimSpace(glob)}
		switch strings.TrimSpace(val) {
		case "true":
			rule.ProxyIndex = 0
		case "false":
			rule.ProxyIndex = -1
		default:
			rule.ProxyIndex = getEnvIntValue(val, -1)
		}
		rules = append(rules, rule)
	}
	return rules
}()

func getEnvIntValue(value string, fallback int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		return v
	}
	return fallback
}

// ProxyForHost resolves the outbound proxy URL for a hostname.
// The last matching rule wins; no match means direct.
func ProxyForHost(host string) string {
	index := -1
	if len(AddonProxyRules) == 0 && len(AddonProxies) > 0 {
		index = 0
	}
	for _, rule := range AddonProxyRules {
		if matchHostGlob(rule.HostGlob, host) {
			index = rule.ProxyIndex
		}
	}
	if index < 0 || index >= len(AddonProxies) {
		return ""
	}
	return AddonProxies[index]
}

// MapRequestURL applies REQUEST_URL_MAPPINGS and the BASE_URL ->
// INTERNAL_URL rewrite so the service never re-enters its own front door.
func MapRequestURL(rawURL string) string {
	if BaseURL != nil && InternalURL != nil {
		base := strings.TrimSuffix(BaseURL.String(), "/")
		if strings.HasPrefix(rawURL, base) {
			return strings.TrimSuffix(InternalURL.String(), "/") + strings.TrimPrefix(rawURL, base)
		}
	}
	for from, to := range RequestURLMappings {
		if strings.HasPrefix(rawURL, from) {
			return to + strings.TrimPrefix(rawURL, from)
		}
	}
	return rawURL
}

// ForceProxyConfig carries operator overrides for the user's stream proxy.
type ForceProxyConfig struct {
	Enabled     string
	URL         string
	PublicURL   string
	Credentials string
}

var ForceProxy = ForceProxyConfig{
	Enabled:     getEnv("FORCE_PROXY_ENABLED"),
	URL:         getEnv("FORCE_PROXY_URL"),
	PublicURL:   getEnv("FORCE_PROXY_PUBLIC_URL"),
	Credentials: getEnv("FORCE_PROXY_CREDENTIALS"),
}

// DefaultServiceAPIKey reads DEFAULT_<SERVICE>_API_KEY.
func DefaultServiceAPIKey(serviceId string) string {
	return getEnv("DEFAULT_" + strings.ToUpper(serviceId) + "_API_KEY")
}

// ForcedServiceAPIKey reads FORCED_<SERVICE>_API_KEY; a forced key always
// overrides the user's value.
func ForcedServiceAPIKey(serviceId string) string {
	return getEnv("FORCED_" + strings.ToUpper(serviceId) + "_API_KEY")
}

func IsTrustedUUID(uuid string) bool {
	_, ok := TrustedUUIDs[uuid]
	return ok
}

const Version = "2.8.1"
