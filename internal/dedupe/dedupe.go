// Package dedupe collapses near-duplicate streams according to the
// configured fingerprint keys and per-stream-type modes.
package dedupe

import (
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"

	"github.com/tomfle18/aiostreams/internal/stream"
	"github.com/tomfle18/aiostreams/internal/util"
)

type Key string

const (
	KeyFilename    Key = "filename"
	KeyInfoHash    Key = "infoHash"
	KeySmartDetect Key = "smartDetect"
)

type Mode string

const (
	ModeSingleResult Mode = "single_result"
	ModePerService   Mode = "per_service"
	ModePerAddon     Mode = "per_addon"
	ModeDisabled     Mode = "disabled"
)

type MultiGroupBehaviour string

const (
	MultiGroupKeepAll      MultiGroupBehaviour = "keep_all"
	MultiGroupAggressive   MultiGroupBehaviour = "aggressive"
	MultiGroupConservative MultiGroupBehaviour = "conservative"
)

type Config struct {
	Keys []Key `json:"keys,omitempty"`
	// Modes maps stream type to dedup mode; absent types pass through.
	Modes      map[stream.Type]Mode `json:"modes,omitempty"`
	MultiGroup MultiGroupBehaviour  `json:"multi_group,omitempty"`
}

// Order carries the user's configured service and addon ranking.
type Order struct {
	Services []stream.ServiceID
	Addons   []string
}

func (o *Order) serviceRank(s *stream.ParsedStream) int {
	if s.Service == nil {
		return len(o.Services) + 1
	}
	for i, id := range o.Services {
		if id == s.Service.ID {
			return i
		}
	}
	return len(o.Services)
}

func (o *Order) addonRank(s *stream.ParsedStream) int {
	for i, id := range o.Addons {
		if id == s.Addon.InstanceID {
			return i
		}
	}
	return len(o.Addons)
}

var normalizer = util.NewStringNormalizer()

// fingerprints returns the identity strings for one stream under the
// enabled keys.
func fingerprints(s *stream.ParsedStream, keys []Key) []string {
	prints := make([]string, 0, len(keys))
	for _, key := range keys {
		switch key {
		case KeyInfoHash:
			if s.Torrent != nil && s.Torrent.InfoHash != "" {
				prints = append(prints, "ih:"+s.Torrent.InfoHash)
			}
		case KeyFilename:
			if s.Filename != "" {
				prints = append(prints, "fn:"+normalizer.Normalize(s.Filename))
			}
		case KeySmartDetect:
			if print := smartPrint(s); print != "" {
				prints = append(prints, print)
			}
		}
	}
	return prints
}

// smartPrint composes filename-derived release attributes with
// tolerant normalization, so renamed copies of the same encode still
// collide.
func smartPrint(s *stream.ParsedStream) string {
	f := s.File
	if f == nil || f.Title == "" {
		return ""
	}
	parts := []string{
		normalizer.Normalize(f.Title),
		f.Year,
		f.Resolution,
		normalizer.Normalize(f.Quality),
		normalizer.Normalize(f.Encode),
		normalizer.Normalize(f.ReleaseGroup),
		strconv.Itoa(f.Season()),
		strconv.Itoa(f.Episode()),
	}
	return "sd:" + strconv.FormatUint(xxh3.HashString(strings.Join(parts, "|")), 16)
}

// Deduplicate returns the surviving streams in input order. Running it
// twice produces the same output as once.
func Deduplicate(streams []*stream.ParsedStream, conf *Config, order *Order) []*stream.ParsedStream {
	if conf == nil || len(conf.Keys) == 0 || len(conf.Modes) == 0 {
		return streams
	}

	// A stream joins the first existing group any of its fingerprints
	// already maps to; its remaining fingerprints then bind to that
	// group. This is a single pass, not a transitive union: when A~B by
	// infoHash and B~C only by filename, C still merges through B's
	// bound prints, but chains discovered in an unlucky order can stay
	// split. Splitting never drops a stream, so this errs conservative.
	groupOf := make([]int, len(streams))
	byPrint := map[string]int{}
	groups := [][]int{}
	for i, s := range streams {
		if s.Type == stream.TypeError || s.Type == stream.TypeStatistic {
			groupOf[i] = -1
			continue
		}
		gid := -1
		prints := fingerprints(s, conf.Keys)
		for _, print := range prints {
			if existing, ok := byPrint[print]; ok {
				gid = existing
				break
			}
		}
		if gid == -1 {
			gid = len(groups)
			groups = append(groups, nil)
		}
		for _, print := range prints {
			byPrint[print] = gid
		}
		groupOf[i] = gid
		groups[gid] = append(groups[gid], i)
	}

	dropped := make(map[int]bool)
	for _, members := range groups {
		if len(members) < 2 {
			continue
		}
		markDropped(streams, members, conf, order, dropped)
	}

	kept := make([]*stream.ParsedStream, 0, len(streams))
	for i, s := range streams {
		if !dropped[i] {
			kept = append(kept, s)
		}
	}
	return kept
}

func markDropped(streams []*stream.ParsedStream, members []int, conf *Config, order *Order, dropped map[int]bool) {
	members = applyMultiGroup(streams, members, conf.MultiGroup, order, dropped)

	// Apply the per-type mode to what multi-group behaviour left.
	byType := map[stream.Type][]int{}
	for _, i := range members {
		t := streams[i].Type
		byType[t] = append(byType[t], i)
	}
	for t, indices := range byType {
		mode, ok := conf.Modes[t]
		if !ok || mode == ModeDisabled || len(indices) < 2 {
			continue
		}
		switch mode {
		case ModeSingleResult:
			keepBest(streams, indices, order, dropped)
		case ModePerService:
			perKey(streams, indices, dropped, func(s *stream.ParsedStream) string {
				if s.Service == nil {
					return ""
				}
				return string(s.Service.ID)
			}, order)
		case ModePerAddon:
			perKey(streams, indices, dropped, func(s *stream.ParsedStream) string {
				return s.Addon.InstanceID
			}, order)
		}
	}
}

// applyMultiGroup resolves cached/uncached coexistence of the same
// content across services. conservative keeps a service's best variant:
// cached wins within a service, and a service holding only uncached
// copies still keeps one.
func applyMultiGroup(streams []*stream.ParsedStream, members []int, behaviour MultiGroupBehaviour, order *Order, dropped map[int]bool) []int {
	switch behaviour {
	case MultiGroupAggressive:
		anyCached := false
		for _, i := range members {
			s := streams[i]
			if s.Service != nil && s.Service.Cached {
				anyCached = true
				break
			}
		}
		if !anyCached {
			return members
		}
		kept := members[:0]
		for _, i := range members {
			s := streams[i]
			if s.Service != nil && !s.Service.Cached {
				dropped[i] = true
			} else {
				kept = append(kept, i)
			}
		}
		return kept
	case MultiGroupConservative:
		cachedServices := map[stream.ServiceID]bool{}
		for _, i := range members {
			s := streams[i]
			if s.Service != nil && s.Service.Cached {
				cachedServices[s.Service.ID] = true
			}
		}
		kept := members[:0]
		for _, i := range members {
			s := streams[i]
			if s.Service != nil && !s.Service.Cached && cachedServices[s.Service.ID] {
				dropped[i] = true
			} else {
				kept = append(kept, i)
			}
		}
		return kept
	default:
		return members
	}
}

func better(streams []*stream.ParsedStream, a, b int, order *Order) bool {
	sa, sb := streams[a], streams[b]
	if ra, rb := order.serviceRank(sa), order.serviceRank(sb); ra != rb {
		return ra < rb
	}
	if ra, rb := order.addonRank(sa), order.addonRank(sb); ra != rb {
		return ra < rb
	}
	ca := sa.Service != nil && sa.Service.Cached
	cb := sb.Service != nil && sb.Service.Cached
	if ca != cb {
		return ca
	}
	return a < b
}

func keepBest(streams []*stream.ParsedStream, indices []int, order *Order, dropped map[int]bool) {
	best := indices[0]
	for _, i := range indices[1:] {
		if better(streams, i, best, order) {
			best = i
		}
	}
	for _, i := range indices {
		if i != best {
			dropped[i] = true
		}
	}
}

func perKey(streams []*stream.ParsedStream, indices []int, dropped map[int]bool, keyOf func(*stream.ParsedStream) string, order *Order) {
	bestByKey := map[string]int{}
	for _, i := range indices {
		key := keyOf(streams[i])
		if best, ok := bestByKey[key]; !ok || better(streams, i, best, order) {
			bestByKey[key] = i
		}
	}
	keep := make(map[int]bool, len(bestByKey))
	for _, i := range bestByKey {
		keep[i] = true
	}
	for _, i := range indices {
		if !keep[i] {
			dropped[i] = true
		}
	}
}
