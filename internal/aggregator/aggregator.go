// Package aggregator is the per-request orchestrator: provider fan-out,
// pipeline, and final wire conversion.
package aggregator

import (
	"context"
	"net/url"
	"slices"
	"sync"

	"github.com/alitto/pond/v2"

	"github.com/tomfle18/aiostreams/core"
	"github.com/tomfle18/aiostreams/internal/addon"
	"github.com/tomfle18/aiostreams/internal/config"
	"github.com/tomfle18/aiostreams/internal/dedupe"
	"github.com/tomfle18/aiostreams/internal/expression"
	"github.com/tomfle18/aiostreams/internal/filter"
	"github.com/tomfle18/aiostreams/internal/formatter"
	"github.com/tomfle18/aiostreams/internal/logger"
	"github.com/tomfle18/aiostreams/internal/metadata"
	"github.com/tomfle18/aiostreams/internal/preset"
	"github.com/tomfle18/aiostreams/internal/proxifier"
	"github.com/tomfle18/aiostreams/internal/resolver"
	"github.com/tomfle18/aiostreams/internal/sorter"
	"github.com/tomfle18/aiostreams/internal/stream"
	"github.com/tomfle18/aiostreams/internal/userdata"
	"github.com/tomfle18/aiostreams/stremio"
)

var log = logger.Scoped("aggregator")

var fetchPool = pond.NewPool(config.FetchParallelism)

// Provider calls go through these seams so failure handling is
// testable without upstream addons.
var (
	fetchManifest = addon.FetchManifest
	fetchStreams  = addon.FetchStreams
)

type Request struct {
	ContentType stremio.ContentType
	ID          string
	Extras      url.Values
	ForwardIP   string
	UserUUID    string
}

// Streams runs the full aggregation pipeline for one player request.
func Streams(ctx context.Context, conf *userdata.Config, req *Request) (*stremio.StreamHandlerResponse, error) {
	descriptors, err := preset.Build(conf.Presets)
	if err != nil {
		return nil, err
	}

	filterer, err := filter.Compile(&conf.Filters, &filter.CompileOptions{
		AllowAnyRegex: config.IsTrustedUUID(req.UserUUID),
	})
	if err != nil {
		return nil, err
	}

	meta, err := metadata.Resolve(ctx, req.ContentType, req.ID)
	if err != nil {
		log.Warn("metadata resolution failed", "error", err, "id", req.ID)
		meta = &metadata.Metadata{}
	}

	groups, err := partition(descriptors, conf)
	if err != nil {
		return nil, err
	}

	collected, err := runGroups(ctx, groups, conf, req, filterer)
	if err != nil {
		return nil, err
	}

	final := finishPipeline(collected, conf, req, filterer, descriptors)
	streams := toWire(final, conf, meta, descriptors)
	return &stremio.StreamHandlerResponse{Streams: streams}, nil
}

type group struct {
	descriptors []addon.Descriptor
	condition   *expression.Condition
}

func partition(descriptors []addon.Descriptor, conf *userdata.Config) ([]group, error) {
	if len(conf.Groups) == 0 {
		return []group{{descriptors: descriptors}}, nil
	}
	byID := make(map[string]addon.Descriptor, len(descriptors))
	for _, d := range descriptors {
		byID[d.InstanceID] = d
	}
	groups := make([]group, 0, len(conf.Groups))
	for i := range conf.Groups {
		g := group{}
		for _, id := range conf.Groups[i].Addons {
			if d, ok := byID[id]; ok {
				g.descriptors = append(g.descriptors, d)
			}
		}
		condition, err := expression.ConditionBlob(conf.Groups[i].Condition).Parse()
		if err != nil {
			return nil, err
		}
		g.condition = condition
		groups = append(groups, g)
	}
	return groups, nil
}

// runGroups applies the dynamic-fetch rule: with dynamic fetching off
// (or its exit condition false on the zero-stream context), only the
// first group runs; otherwise groups run parallel or sequential per
// config, sequential groups firing only when everything so far
// produced zero surviving streams.
func runGroups(ctx context.Context, groups []group, conf *userdata.Config, req *Request, filterer *filter.Filterer) ([]*stream.ParsedStream, error) {
	if len(groups) == 1 {
		return fanOut(ctx, groups[0].descriptors, conf, req), nil
	}

	dynamic := false
	if conf.DynamicFetch.Enabled {
		condition, err := expression.ConditionBlob(conf.DynamicFetch.Condition).Parse()
		if err != nil {
			return nil, err
		}
		dynamic, err = condition.Eval(nil)
		if err != nil {
			return nil, err
		}
	}
	if !dynamic {
		return fanOut(ctx, groups[0].descriptors, conf, req), nil
	}

	if conf.GroupBehaviour == userdata.GroupParallel {
		var mu sync.Mutex
		collected := []*stream.ParsedStream{}
		tasks := fetchPool.NewGroup()
		for i := range groups {
			g := &groups[i]
			tasks.Submit(func() {
				streams := fanOut(ctx, g.descriptors, conf, req)
				mu.Lock()
				collected = append(collected, streams...)
				mu.Unlock()
			})
		}
		_ = tasks.Wait()
		return collected, nil
	}

	collected := []*stream.ParsedStream{}
	for i := range groups {
		g := &groups[i]
		if i > 0 {
			if surviving(collected, filterer, req) > 0 {
				break
			}
			proceed, err := g.condition.Eval(collected)
			if err != nil {
				return nil, err
			}
			if !proceed {
				continue
			}
		}
		collected = append(collected, fanOut(ctx, g.descriptors, conf, req)...)
	}
	return collected, nil
}

func surviving(collected []*stream.ParsedStream, filterer *filter.Filterer, req *Request) int {
	kept, err := filterer.Apply(collected, req.ContentType)
	if err != nil {
		return len(collected)
	}
	n := 0
	for _, s := range kept {
		if s.Type != stream.TypeError {
			n++
		}
	}
	return n
}

// fanOut queries one set of providers concurrently. A provider failure
// never aborts the others; it becomes an inline error stream unless the
// user hides those.
func fanOut(ctx context.Context, descriptors []addon.Descriptor, conf *userdata.Config, req *Request) []*stream.ParsedStream {
	results := make([][]*stream.ParsedStream, len(descriptors))
	tasks := fetchPool.NewGroup()
	for i := range descriptors {
		d := &descriptors[i]
		tasks.Submit(func() {
			results[i] = fetchOne(ctx, d, conf, req)
		})
	}
	_ = tasks.Wait()

	// Merge order is the configured provider order.
	merged := []*stream.ParsedStream{}
	for _, streams := range results {
		merged = append(merged, streams...)
	}
	return merged
}

func fetchOne(ctx context.Context, d *addon.Descriptor, conf *userdata.Config, req *Request) []*stream.ParsedStream {
	addonRef := stream.Addon{InstanceID: d.InstanceID, Name: d.DisplayName}
	fail := func(err error) []*stream.ParsedStream {
		log.Warn("provider fetch failed", "error", err, "addon", d.InstanceID)
		if conf.HideErrors || slices.Contains(conf.HideErrorsForResources, string(stremio.ResourceNameStream)) {
			return nil
		}
		cerr := core.AsError(err)
		return []*stream.ParsedStream{stream.NewErrorStream(addonRef, d.DisplayName+" failed", cerr.Error())}
	}

	manifest, err := fetchManifest(ctx, d, req.ForwardIP)
	if err != nil {
		return fail(err)
	}
	if !d.Supports(manifest, stremio.ResourceNameStream, req.ContentType) {
		return nil
	}

	raws, err := fetchStreams(ctx, d, req.ContentType, req.ID, req.Extras, req.ForwardIP)
	if err != nil {
		return fail(err)
	}

	opts := &stream.EnrichOptions{
		Addon:   addonRef,
		Library: d.Library,
	}
	parsed := make([]*stream.ParsedStream, 0, len(raws))
	for i := range raws {
		s := stream.Enrich(&raws[i], opts)
		if err := s.Validate(); err != nil {
			s = stream.NewErrorStream(addonRef, d.DisplayName+" sent a malformed stream", err.Error())
			if conf.HideErrors {
				continue
			}
		}
		parsed = append(parsed, s)
	}
	return parsed
}

func finishPipeline(collected []*stream.ParsedStream, conf *userdata.Config, req *Request, filterer *filter.Filterer, descriptors []addon.Descriptor) []*stream.ParsedStream {
	kept, err := filterer.Apply(collected, req.ContentType)
	if err != nil {
		log.Error("filter stage failed", "error", err)
		kept = collected
	}

	addonOrder := make([]string, 0, len(descriptors))
	forceToTop := map[string]bool{}
	for _, d := range descriptors {
		addonOrder = append(addonOrder, d.InstanceID)
		if d.ForceToTop {
			forceToTop[d.InstanceID] = true
		}
	}

	kept = dedupe.Deduplicate(kept, &conf.Dedup, &dedupe.Order{
		Services: conf.ServiceOrder(),
		Addons:   addonOrder,
	})

	return sorter.Sort(kept, &conf.Sort, req.ContentType, &sorter.Context{
		Preferred:  conf.PreferredLists(),
		Services:   conf.ServiceOrder(),
		Addons:     addonOrder,
		ForceToTop: forceToTop,
	})
}

// attachPlayback builds the opaque deferred-resolution url for one
// debrid-eligible stream.
func attachPlayback(s *stream.ParsedStream, conf *userdata.Config, metadataId string) {
	if !s.IsDebridEligible() || s.Torrent == nil || config.BaseURL == nil {
		return
	}
	services := conf.EnabledServices()
	if len(services) == 0 {
		return
	}
	service := services[0]
	apiKey, err := service.APIKey()
	if err != nil || apiKey == "" {
		return
	}
	auth := resolver.StoreAuth{ID: service.ID, Credential: apiKey}
	encryptedAuth, err := auth.Encrypt()
	if err != nil {
		log.Error("failed to seal store auth", "error", err)
		return
	}
	fi := resolver.FileInfo{
		Type:         resolver.FileTypeTorrent,
		Hash:         s.Torrent.InfoHash,
		Index:        s.Torrent.FileIdx,
		Sources:      s.Torrent.Sources,
		Filename:     s.Filename,
		CacheAndPlay: conf.AllowsCacheAndPlay(s.Type),
	}
	filename := s.Filename
	if filename == "" {
		filename = "video.mp4"
	}
	s.URL = config.BaseURL.JoinPath("playback", encryptedAuth, fi.Encode(), metadataId, filename).String()
	s.Service = &stream.Service{ID: service.ID, Cached: false}
	s.Type = stream.TypeDebrid
}

func toWire(final []*stream.ParsedStream, conf *userdata.Config, meta *metadata.Metadata, descriptors []addon.Descriptor) []stremio.Stream {
	metadataId, err := metadata.Save(meta)
	if err != nil {
		log.Error("failed to persist metadata", "error", err)
	}

	passthrough := map[string]bool{}
	formatPassthrough := map[string]bool{}
	for _, d := range descriptors {
		if d.ResultPassthrough {
			passthrough[d.InstanceID] = true
		}
		if d.FormatPassthrough {
			formatPassthrough[d.InstanceID] = true
		}
	}

	fmtr := formatter.New(&conf.Format)
	streams := make([]stremio.Stream, 0, len(final))
	for _, s := range final {
		if metadataId != "" && !passthrough[s.Addon.InstanceID] {
			attachPlayback(s, conf, metadataId)
		}
		proxifier.Apply([]*stream.ParsedStream{s}, &conf.Proxy)

		out := stremio.Stream{
			URL:         s.URL,
			ExternalURL: s.ExternalURL,
			YoutubeID:   s.YtID,
			Subtitles:   s.Subtitles,
		}
		if s.Type == stream.TypeP2P && s.URL == "" && s.Torrent != nil {
			out.InfoHash = s.Torrent.InfoHash
			out.FileIndex = s.Torrent.FileIdx
			out.Sources = s.Torrent.Sources
		}
		if formatPassthrough[s.Addon.InstanceID] {
			out.Name, out.Description = s.OriginalName, s.OriginalDescription
		} else {
			out.Name, out.Description = fmtr.Render(s)
		}
		if s.Filename != "" || s.BingeGroup != "" || s.NotWebReady || s.Size > 0 {
			out.BehaviorHints = &stremio.StreamBehaviorHints{
				Filename:         s.Filename,
				BingeGroup:       s.BingeGroup,
				NotWebReady:      s.NotWebReady,
				CountryWhitelist: s.CountryWhitelist,
				VideoSize:        s.Size,
				ProxyHeaders:     s.ProxyHeaders,
			}
		}
		streams = append(streams, out)
	}
	return streams
}
