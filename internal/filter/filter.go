// Package filter applies the configured inclusion/exclusion rules to a
// parsed stream collection.
package filter

import (
	"regexp"
	"slices"
	"strings"

	"github.com/tomfle18/aiostreams/core"
	"github.com/tomfle18/aiostreams/internal/config"
	"github.com/tomfle18/aiostreams/internal/expression"
	"github.com/tomfle18/aiostreams/internal/stream"
	"github.com/tomfle18/aiostreams/stremio"
)

// ListFilter holds the four per-category lists. Preferred never
// eliminates, it only feeds the sorter.
type ListFilter struct {
	Excluded  []string `json:"excluded,omitempty"`
	Included  []string `json:"included,omitempty"`
	Required  []string `json:"required,omitempty"`
	Preferred []string `json:"preferred,omitempty"`
}

type NamedPattern struct {
	Name    string `json:"name"`
	Pattern string `json:"pattern"`
}

type RegexConfig struct {
	Excluded  []string       `json:"excluded,omitempty"`
	Included  []string       `json:"included,omitempty"`
	Required  []string       `json:"required,omitempty"`
	Preferred []NamedPattern `json:"preferred,omitempty"`
}

type KeywordConfig struct {
	Excluded  []string `json:"excluded,omitempty"`
	Included  []string `json:"included,omitempty"`
	Required  []string `json:"required,omitempty"`
	Preferred []string `json:"preferred,omitempty"`
}

type ExpressionConfig struct {
	Excluded  []string `json:"excluded,omitempty"`
	Included  []string `json:"included,omitempty"`
	Required  []string `json:"required,omitempty"`
	Preferred []string `json:"preferred,omitempty"`
}

// Range is half-open: [Min, Max). Zero means no bound.
type Range struct {
	Min int64 `json:"min,omitempty"`
	Max int64 `json:"max,omitempty"`
}

func (r *Range) contains(v int64) bool {
	if r == nil {
		return true
	}
	if r.Min != 0 && v < r.Min {
		return false
	}
	if r.Max != 0 && v >= r.Max {
		return false
	}
	return true
}

// SeederConfig scopes seeder bounds by stream population.
type SeederConfig struct {
	Global   *Range `json:"global,omitempty"`
	P2P      *Range `json:"p2p,omitempty"`
	Cached   *Range `json:"cached,omitempty"`
	Uncached *Range `json:"uncached,omitempty"`
}

// SizeScope holds a global bound plus resolution-specific overrides;
// the most specific scope wins.
type SizeScope struct {
	Global       *Range            `json:"global,omitempty"`
	ByResolution map[string]*Range `json:"by_resolution,omitempty"`
}

func (s *SizeScope) rangeFor(resolution string) *Range {
	if s == nil {
		return nil
	}
	if r, ok := s.ByResolution[strings.ToLower(resolution)]; ok {
		return r
	}
	return s.Global
}

type SizeConfig struct {
	Movie  *SizeScope `json:"movie,omitempty"`
	Series *SizeScope `json:"series,omitempty"`
}

type Config struct {
	Resolutions   ListFilter `json:"resolutions,omitempty"`
	Qualities     ListFilter `json:"qualities,omitempty"`
	Encodes       ListFilter `json:"encodes,omitempty"`
	VisualTags    ListFilter `json:"visual_tags,omitempty"`
	AudioTags     ListFilter `json:"audio_tags,omitempty"`
	AudioChannels ListFilter `json:"audio_channels,omitempty"`
	Languages     ListFilter `json:"languages,omitempty"`
	StreamTypes   ListFilter `json:"stream_types,omitempty"`

	Regex       RegexConfig      `json:"regex,omitempty"`
	Keywords    KeywordConfig    `json:"keywords,omitempty"`
	Expressions ExpressionConfig `json:"expressions,omitempty"`

	Seeders SeederConfig `json:"seeders,omitempty"`
	Size    SizeConfig   `json:"size,omitempty"`
}

// Filterer is a compiled Config. Compilation validates every regex and
// expression up front so per-stream evaluation cannot fail.
type Filterer struct {
	config *Config

	excludedRegex  []*regexp.Regexp
	includedRegex  []*regexp.Regexp
	requiredRegex  []*regexp.Regexp
	preferredRegex []compiledNamedPattern

	excludedExprs  []*expression.Selector
	includedExprs  []*expression.Selector
	requiredExprs  []*expression.Selector
	preferredExprs []*expression.Selector
}

type compiledNamedPattern struct {
	name    string
	pattern *regexp.Regexp
}

type CompileOptions struct {
	// AllowAnyRegex lifts the allow-list restriction for trusted users.
	AllowAnyRegex bool
}

func Compile(conf *Config, opts *CompileOptions) (*Filterer, error) {
	if opts == nil {
		opts = &CompileOptions{}
	}
	f := &Filterer{config: conf}

	keywordCount := len(conf.Keywords.Excluded) + len(conf.Keywords.Included) +
		len(conf.Keywords.Required) + len(conf.Keywords.Preferred)
	if keywordCount > config.MaxKeywordFilters {
		return nil, core.NewError(core.ErrorCodeInvalidConfig, "too many keyword filters")
	}
	exprCount := len(conf.Expressions.Excluded) + len(conf.Expressions.Included) +
		len(conf.Expressions.Required) + len(conf.Expressions.Preferred)
	if exprCount > config.MaxStreamExpressionFilters {
		return nil, core.NewError(core.ErrorCodeInvalidConfig, "too many stream expression filters")
	}

	var err error
	if f.excludedRegex, err = compilePatterns(conf.Regex.Excluded, opts.AllowAnyRegex); err != nil {
		return nil, err
	}
	if f.includedRegex, err = compilePatterns(conf.Regex.Included, opts.AllowAnyRegex); err != nil {
		return nil, err
	}
	if f.requiredRegex, err = compilePatterns(conf.Regex.Required, opts.AllowAnyRegex); err != nil {
		return nil, err
	}
	for _, np := range conf.Regex.Preferred {
		compiled, err := compilePattern(np.Pattern, opts.AllowAnyRegex)
		if err != nil {
			return nil, err
		}
		f.preferredRegex = append(f.preferredRegex, compiledNamedPattern{name: np.Name, pattern: compiled})
	}

	if f.excludedExprs, err = compileSelectors(conf.Expressions.Excluded); err != nil {
		return nil, err
	}
	if f.includedExprs, err = compileSelectors(conf.Expressions.Included); err != nil {
		return nil, err
	}
	if f.requiredExprs, err = compileSelectors(conf.Expressions.Required); err != nil {
		return nil, err
	}
	if f.preferredExprs, err = compileSelectors(conf.Expressions.Preferred); err != nil {
		return nil, err
	}

	return f, nil
}

func compilePattern(pattern string, allowAny bool) (*regexp.Regexp, error) {
	if !allowAny && !slices.Contains(config.AllowedRegexPatterns, pattern) {
		return nil, core.NewError(core.ErrorCodeInvalidRegex, "regex pattern is not on the allow-list")
	}
	compiled, err := regexp.Compile(pattern)
	if err != nil {
		return nil, core.NewError(core.ErrorCodeInvalidRegex, "invalid regex pattern").WithCause(err)
	}
	return compiled, nil
}

func compilePatterns(patterns []string, allowAny bool) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		p, err := compilePattern(pattern, allowAny)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, p)
	}
	return compiled, nil
}

func compileSelectors(blobs []string) ([]*expression.Selector, error) {
	selectors := make([]*expression.Selector, 0, len(blobs))
	for _, blob := range blobs {
		sel, err := expression.SelectorBlob(blob).Parse()
		if err != nil {
			return nil, err
		}
		selectors = append(selectors, sel)
	}
	return selectors, nil
}

// Apply returns the surviving streams in input order, annotating
// preferred-rule matches for the sorter. Error and statistic streams
// pass through untouched.
func (f *Filterer) Apply(streams []*stream.ParsedStream, contentType stremio.ContentType) ([]*stream.ParsedStream, error) {
	exprSelected, err := f.selectExprMatches(streams)
	if err != nil {
		return nil, err
	}

	kept := make([]*stream.ParsedStream, 0, len(streams))
	for _, s := range streams {
		if s.Type == stream.TypeError || s.Type == stream.TypeStatistic {
			kept = append(kept, s)
			continue
		}
		ok, err := f.matches(s, contentType, exprSelected)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		f.annotate(s, exprSelected)
		kept = append(kept, s)
	}
	return kept, nil
}

// exprMatchSets records, per selector list, which stream ids matched.
type exprMatchSets struct {
	excluded  []map[string]bool
	included  []map[string]bool
	required  []map[string]bool
	preferred []map[string]bool
}

func (f *Filterer) selectExprMatches(streams []*stream.ParsedStream) (*exprMatchSets, error) {
	run := func(selectors []*expression.Selector) ([]map[string]bool, error) {
		sets := make([]map[string]bool, len(selectors))
		for i, sel := range selectors {
			selected, err := sel.Select(streams)
			if err != nil {
				return nil, err
			}
			set := make(map[string]bool, len(selected))
			for _, s := range selected {
				set[s.ID] = true
			}
			sets[i] = set
		}
		return sets, nil
	}
	sets := &exprMatchSets{}
	var err error
	if sets.excluded, err = run(f.excludedExprs); err != nil {
		return nil, err
	}
	if sets.included, err = run(f.includedExprs); err != nil {
		return nil, err
	}
	if sets.required, err = run(f.requiredExprs); err != nil {
		return nil, err
	}
	if sets.preferred, err = run(f.preferredExprs); err != nil {
		return nil, err
	}
	return sets, nil
}

func (f *Filterer) matches(s *stream.ParsedStream, contentType stremio.ContentType, exprSelected *exprMatchSets) (bool, error) {
	conf := f.config

	for _, check := range []struct {
		filter ListFilter
		values []string
	}{
		{conf.Resolutions, attrResolution(s)},
		{conf.Qualities, attrQuality(s)},
		{conf.Encodes, attrEncode(s)},
		{conf.VisualTags, attrVisualTags(s)},
		{conf.AudioTags, attrAudioTags(s)},
		{conf.AudioChannels, attrAudioChannels(s)},
		{conf.Languages, attrLanguages(s)},
		{conf.StreamTypes, []string{string(s.Type)}},
	} {
		if !matchList(check.filter, check.values) {
			return false, nil
		}
	}

	text := regexText(s)
	for _, p := range f.excludedRegex {
		if p.MatchString(text) {
			return false, nil
		}
	}
	if len(f.includedRegex) > 0 && !slices.ContainsFunc(f.includedRegex, func(p *regexp.Regexp) bool {
		return p.MatchString(text)
	}) {
		return false, nil
	}
	for _, p := range f.requiredRegex {
		if !p.MatchString(text) {
			return false, nil
		}
	}

	lowered := strings.ToLower(text)
	for _, kw := range f.config.Keywords.Excluded {
		if strings.Contains(lowered, strings.ToLower(kw)) {
			return false, nil
		}
	}
	if len(f.config.Keywords.Included) > 0 && !slices.ContainsFunc(f.config.Keywords.Included, func(kw string) bool {
		return strings.Contains(lowered, strings.ToLower(kw))
	}) {
		return false, nil
	}
	for _, kw := range f.config.Keywords.Required {
		if !strings.Contains(lowered, strings.ToLower(kw)) {
			return false, nil
		}
	}

	for _, set := range exprSelected.excluded {
		if set[s.ID] {
			return false, nil
		}
	}
	if len(exprSelected.included) > 0 && !slices.ContainsFunc(exprSelected.included, func(set map[string]bool) bool {
		return set[s.ID]
	}) {
		return false, nil
	}
	for _, set := range exprSelected.required {
		if !set[s.ID] {
			return false, nil
		}
	}

	if !f.matchSeeders(s) {
		return false, nil
	}
	if !f.matchSize(s, contentType) {
		return false, nil
	}
	return true, nil
}

func (f *Filterer) matchSeeders(s *stream.ParsedStream) bool {
	if s.Torrent == nil || s.Torrent.Seeders == nil {
		return true
	}
	seeders := int64(*s.Torrent.Seeders)
	conf := f.config.Seeders
	scoped := conf.Global
	switch {
	case s.Type == stream.TypeP2P && conf.P2P != nil:
		scoped = conf.P2P
	case s.Service != nil && s.Service.Cached && conf.Cached != nil:
		scoped = conf.Cached
	case s.Service != nil && !s.Service.Cached && conf.Uncached != nil:
		scoped = conf.Uncached
	}
	return scoped.contains(seeders)
}

func (f *Filterer) matchSize(s *stream.ParsedStream, contentType stremio.ContentType) bool {
	if s.Size == 0 {
		return true
	}
	scope := f.config.Size.Movie
	if contentType == stremio.ContentTypeSeries || contentType == stremio.ContentTypeAnime {
		scope = f.config.Size.Series
	}
	resolution := ""
	if s.File != nil {
		resolution = s.File.Resolution
	}
	return scope.rangeFor(resolution).contains(s.Size)
}

// annotate records preferred-rule matches used as sort keys.
func (f *Filterer) annotate(s *stream.ParsedStream, exprSelected *exprMatchSets) {
	text := regexText(s)
	for i, np := range f.preferredRegex {
		if np.pattern.MatchString(text) {
			s.RegexMatched = &stream.RegexMatch{Name: np.name, Index: i}
			break
		}
	}
	lowered := strings.ToLower(text)
	for _, kw := range f.config.Keywords.Preferred {
		if strings.Contains(lowered, strings.ToLower(kw)) {
			s.KeywordMatched = true
			break
		}
	}
	for i, set := range exprSelected.preferred {
		if set[s.ID] {
			idx := i
			s.StreamExpressionMatched = &idx
			break
		}
	}
}

func matchList(filter ListFilter, values []string) bool {
	normalized := make([]string, len(values))
	for i, v := range values {
		normalized[i] = strings.ToLower(v)
	}
	intersects := func(list []string) bool {
		return slices.ContainsFunc(list, func(item string) bool {
			return slices.Contains(normalized, strings.ToLower(item))
		})
	}
	if intersects(filter.Excluded) {
		return false
	}
	if len(filter.Included) > 0 && !intersects(filter.Included) {
		return false
	}
	for _, item := range filter.Required {
		if !slices.Contains(normalized, strings.ToLower(item)) {
			return false
		}
	}
	return true
}

func regexText(s *stream.ParsedStream) string {
	parts := make([]string, 0, 3)
	if s.Filename != "" {
		parts = append(parts, s.Filename)
	}
	if s.OriginalName != "" {
		parts = append(parts, s.OriginalName)
	}
	if s.OriginalDescription != "" {
		parts = append(parts, s.OriginalDescription)
	}
	return strings.Join(parts, "\n")
}
