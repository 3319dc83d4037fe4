package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/elastic/go-freelru"
	"github.com/zeebo/xxh3"

	"github.com/tomfle18/aiostreams/core"
	"github.com/tomfle18/aiostreams/internal/config"
	"github.com/tomfle18/aiostreams/internal/logger"
)

var log = logger.Scoped("fetch")

const DefaultTimeout = 15 * time.Second

// recursionCounts tracks recent outbound calls per (url, forwardIP) so a
// chain of wrapped instances pointing back at us fails fast instead of
// looping until every hop times out.
var recursionCounts = sync.OnceValue(func() *freelru.SyncedLRU[string, int] {
	lru, err := freelru.NewSynced[string, int](8192, func(s string) uint32 {
		return uint32(xxh3.HashString(s))
	})
	if err != nil {
		panic(err)
	}
	lru.SetLifetime(config.RecursionThresholdWindow)
	return lru
})

func checkRecursion(rawURL, forwardIP string) error {
	lru := recursionCounts()
	key := rawURL + "\x00" + forwardIP
	count, _ := lru.Get(key)
	count++
	lru.Add(key, count)
	if count > config.RecursionThresholdLimit {
		return core.NewError(core.ErrorCodeRecursiveRequest, "too many identical outbound requests in a short window")
	}
	return nil
}

var transportForProxy = func() func(proxyURL string) (*http.Transport, error) {
	var mu sync.Mutex
	transports := map[string]*http.Transport{}
	return func(proxyURL string) (*http.Transport, error) {
		mu.Lock()
		defer mu.Unlock()
		if t, ok := transports[proxyURL]; ok {
			return t, nil
		}
		t := http.DefaultTransport.(*http.Transport).Clone()
		if proxyURL != "" {
			u, err := url.Parse(proxyURL)
			if err != nil {
				return nil, err
			}
			// http.Transport handles socks5:// proxy urls natively.
			t.Proxy = http.ProxyURL(u)
		}
		transports[proxyURL] = t
		return t, nil
	}
}()

type Options struct {
	Method  string
	Timeout time.Duration
	Headers map[string]string
	Body    io.Reader
	// ForwardIP propagates the end-user's address to the upstream.
	ForwardIP string
	// IgnoreRecursion bypasses the recursion guard, for endpoints that
	// legitimately call themselves (e.g. internal playback probes).
	IgnoreRecursion bool
	// NoRetry disables the transient-failure retry policy.
	NoRetry bool
}

// Fetch performs one guarded outbound request. The caller owns the
// response body.
func Fetch(ctx context.Context, rawURL string, opts *Options) (*http.Response, error) {
	if opts == nil {
		opts = &Options{}
	}
	if !opts.IgnoreRecursion {
		if err := checkRecursion(rawURL, opts.ForwardIP); err != nil {
			log.Warn("possible recursive request", "url", rawURL, "forward_ip", opts.ForwardIP)
			return nil, err
		}
	}

	rawURL = config.MapRequestURL(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, core.NewError(core.ErrorCodeBadRequest, "invalid request url").WithCause(err)
	}

	transport, err := transportForProxy(config.ProxyForHost(u.Hostname()))
	if err != nil {
		return nil, err
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	client := &http.Client{Transport: transport, Timeout: timeout}

	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	do := func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, method, rawURL, opts.Body)
		if err != nil {
			return nil, err
		}
		if ua, ok := config.HostnameUserAgentOverrides[strings.ToLower(u.Hostname())]; ok {
			req.Header.Set("User-Agent", ua)
		}
		for k, v := range opts.Headers {
			req.Header.Set(k, v)
		}
		if opts.ForwardIP != "" {
			for k, v := range core.ForwardIPHeaders(opts.ForwardIP) {
				req.Header.Set(k, v)
			}
		}
		res, err := client.Do(req)
		if err != nil {
			return nil, core.NewError(core.ErrorCodeProviderTimeout, "upstream request failed").WithCause(err)
		}
		if res.StatusCode >= http.StatusInternalServerError {
			res.Body.Close()
			return nil, core.NewError(core.ErrorCodeProviderHTTPError, "upstream returned "+res.Status)
		}
		return res, nil
	}

	if opts.NoRetry || opts.Body != nil {
		return do()
	}
	return retry.DoWithData(do,
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(250*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			// Rate limits and client errors are not transient.
			if cerr := core.AsError(err); cerr != nil {
				return cerr.Code == core.ErrorCodeProviderHTTPError || cerr.Code == core.ErrorCodeProviderTimeout
			}
			return false
		}),
	)
}
