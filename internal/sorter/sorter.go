// Package sorter implements the multi-criterion stable sort over
// parsed streams.
package sorter

import (
	"slices"
	"strings"

	"github.com/tomfle18/aiostreams/internal/stream"
	"github.com/tomfle18/aiostreams/stremio"
)

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

type CriterionKey string

const (
	KeyQuality          CriterionKey = "quality"
	KeyResolution       CriterionKey = "resolution"
	KeyLanguage         CriterionKey = "language"
	KeyVisualTag        CriterionKey = "visualTag"
	KeyAudioTag         CriterionKey = "audioTag"
	KeyAudioChannel     CriterionKey = "audioChannel"
	KeyStreamType       CriterionKey = "streamType"
	KeyEncode           CriterionKey = "encode"
	KeySize             CriterionKey = "size"
	KeyService          CriterionKey = "service"
	KeySeeders          CriterionKey = "seeders"
	KeyAddon            CriterionKey = "addon"
	KeyRegexPatterns    CriterionKey = "regexPatterns"
	KeyCached           CriterionKey = "cached"
	KeyLibrary          CriterionKey = "library"
	KeyKeyword          CriterionKey = "keyword"
	KeyStreamExpression CriterionKey = "streamExpressionMatched"
)

type Criterion struct {
	Key       CriterionKey `json:"key"`
	Direction Direction    `json:"direction,omitempty"`
}

type Config struct {
	Global []Criterion `json:"global,omitempty"`
	// PerType overrides replace the global list for that request type.
	PerType map[stremio.ContentType][]Criterion `json:"per_type,omitempty"`
	// Cached/Uncached apply when partitioning on the cached criterion.
	Cached   []Criterion `json:"cached,omitempty"`
	Uncached []Criterion `json:"uncached,omitempty"`
}

// Context supplies the user preference lists the categorical criteria
// rank against.
type Context struct {
	// Preferred maps criterion key to the user's ordered preference
	// list; position 0 ranks highest.
	Preferred map[CriterionKey][]string
	Services  []stream.ServiceID
	Addons    []string
	// ForceToTop holds provider instance ids whose streams move to the
	// head after sorting.
	ForceToTop map[string]bool
}

// cachedPartitionDepth is how deep in the criterion list `cached` must
// sit to trigger partitioned sorting.
const cachedPartitionDepth = 3

func (c *Config) criteriaFor(contentType stremio.ContentType) []Criterion {
	if criteria, ok := c.PerType[contentType]; ok && len(criteria) > 0 {
		return criteria
	}
	return c.Global
}

// Sort orders streams by the configured criteria. Equal streams retain
// their relative merge order.
func Sort(streams []*stream.ParsedStream, conf *Config, contentType stremio.ContentType, ctx *Context) []*stream.ParsedStream {
	if conf == nil {
		return forceToTop(streams, ctx)
	}
	criteria := conf.criteriaFor(contentType)
	if len(criteria) == 0 {
		return forceToTop(streams, ctx)
	}

	cachedIdx := slices.IndexFunc(criteria, func(c Criterion) bool { return c.Key == KeyCached })
	if cachedIdx >= 0 && cachedIdx < cachedPartitionDepth {
		sorted := sortPartitioned(streams, conf, criteria, cachedIdx, ctx)
		return forceToTop(sorted, ctx)
	}

	sorted := slices.Clone(streams)
	slices.SortStableFunc(sorted, func(a, b *stream.ParsedStream) int {
		return compareAll(a, b, criteria, ctx)
	})
	return forceToTop(sorted, ctx)
}

// sortPartitioned splits into cached (directly playable) and uncached,
// sorts each with its own criterion list, then concatenates cached
// first unless the cached criterion is ascending.
func sortPartitioned(streams []*stream.ParsedStream, conf *Config, criteria []Criterion, cachedIdx int, ctx *Context) []*stream.ParsedStream {
	isUncached := func(s *stream.ParsedStream) bool {
		return s.Service != nil && !s.Service.Cached
	}
	var cached, uncached []*stream.ParsedStream
	for _, s := range streams {
		if isUncached(s) {
			uncached = append(uncached, s)
		} else {
			cached = append(cached, s)
		}
	}

	rest := slices.Delete(slices.Clone(criteria), cachedIdx, cachedIdx+1)
	cachedCriteria := conf.Cached
	if len(cachedCriteria) == 0 {
		cachedCriteria = rest
	}
	uncachedCriteria := conf.Uncached
	if len(uncachedCriteria) == 0 {
		uncachedCriteria = rest
	}

	slices.SortStableFunc(cached, func(a, b *stream.ParsedStream) int {
		return compareAll(a, b, cachedCriteria, ctx)
	})
	slices.SortStableFunc(uncached, func(a, b *stream.ParsedStream) int {
		return compareAll(a, b, uncachedCriteria, ctx)
	})

	if criteria[cachedIdx].Direction == Asc {
		return append(uncached, cached...)
	}
	return append(cached, uncached...)
}

func compareAll(a, b *stream.ParsedStream, criteria []Criterion, ctx *Context) int {
	for _, criterion := range criteria {
		if c := compare(a, b, criterion, ctx); c != 0 {
			return c
		}
	}
	return 0
}

// compare returns negative when a sorts before b under the criterion.
func compare(a, b *stream.ParsedStream, criterion Criterion, ctx *Context) int {
	c := 0
	switch criterion.Key {
	case KeySize:
		c = compareInt64(b.Size, a.Size)
	case KeySeeders:
		c = compareInt64(int64(seeders(b)), int64(seeders(a)))
	case KeyCached:
		c = compareBool(isCached(a), isCached(b))
	case KeyLibrary:
		c = compareBool(a.Library, b.Library)
	case KeyKeyword:
		c = compareBool(a.KeywordMatched, b.KeywordMatched)
	case KeyRegexPatterns:
		c = compareInt64(int64(regexIndex(a)), int64(regexIndex(b)))
	case KeyStreamExpression:
		c = compareInt64(int64(exprIndex(a)), int64(exprIndex(b)))
	case KeyService:
		c = compareInt64(int64(serviceRank(a, ctx)), int64(serviceRank(b, ctx)))
	case KeyAddon:
		c = compareInt64(int64(addonRank(a, ctx)), int64(addonRank(b, ctx)))
	default:
		// Categorical: rank by position in the user's preferred list,
		// unlisted values sort last.
		list := ctx.Preferred[criterion.Key]
		c = compareInt64(int64(listRank(values(a, criterion.Key), list)), int64(listRank(values(b, criterion.Key), list)))
	}
	if criterion.Direction == Asc {
		c = -c
	}
	return c
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareBool(a, b bool) int {
	if a == b {
		return 0
	}
	if a {
		return -1
	}
	return 1
}

func seeders(s *stream.ParsedStream) int {
	if s.Torrent == nil || s.Torrent.Seeders == nil {
		return 0
	}
	return *s.Torrent.Seeders
}

func isCached(s *stream.ParsedStream) bool {
	return s.Service == nil || s.Service.Cached
}

func regexIndex(s *stream.ParsedStream) int {
	if s.RegexMatched == nil {
		return int(^uint(0) >> 1)
	}
	return s.RegexMatched.Index
}

func exprIndex(s *stream.ParsedStream) int {
	if s.StreamExpressionMatched == nil {
		return int(^uint(0) >> 1)
	}
	return *s.StreamExpressionMatched
}

func serviceRank(s *stream.ParsedStream, ctx *Context) int {
	if s.Service == nil {
		return len(ctx.Services) + 1
	}
	for i, id := range ctx.Services {
		if id == s.Service.ID {
			return i
		}
	}
	return len(ctx.Services)
}

func addonRank(s *stream.ParsedStream, ctx *Context) int {
	for i, id := range ctx.Addons {
		if id == s.Addon.InstanceID {
			return i
		}
	}
	return len(ctx.Addons)
}

// listRank is the best (lowest) preferred-list position among the
// stream's values for the category.
func listRank(values []string, list []string) int {
	best := len(list)
	for _, v := range values {
		for i, item := range list {
			if strings.EqualFold(item, v) && i < best {
				best = i
			}
		}
	}
	return best
}

func values(s *stream.ParsedStream, key CriterionKey) []string {
	switch key {
	case KeyStreamType:
		return []string{string(s.Type)}
	}
	if s.File == nil {
		return nil
	}
	switch key {
	case KeyQuality:
		return []string{s.File.Quality}
	case KeyResolution:
		return []string{s.File.Resolution}
	case KeyEncode:
		return []string{s.File.Encode}
	case KeyLanguage:
		return s.File.Languages
	case KeyVisualTag:
		return s.File.VisualTags
	case KeyAudioTag:
		return s.File.AudioTags
	case KeyAudioChannel:
		return s.File.AudioChannels
	}
	return nil
}

// forceToTop moves flagged providers' streams to the head, ordered by
// the configured provider order when several providers are flagged.
func forceToTop(streams []*stream.ParsedStream, ctx *Context) []*stream.ParsedStream {
	if ctx == nil || len(ctx.ForceToTop) == 0 {
		return streams
	}
	var forced, rest []*stream.ParsedStream
	for _, s := range streams {
		if ctx.ForceToTop[s.Addon.InstanceID] {
			forced = append(forced, s)
		} else {
			rest = append(rest, s)
		}
	}
	if len(forced) == 0 {
		return streams
	}
	slices.SortStableFunc(forced, func(a, b *stream.ParsedStream) int {
		return compareInt64(int64(addonRank(a, ctx)), int64(addonRank(b, ctx)))
	})
	return append(forced, rest...)
}
