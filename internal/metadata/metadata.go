// Package metadata resolves titles/year/episode for a request id and
// stores them under short ids referenced by playback urls.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/hasura/go-graphql-client"
	"github.com/zeebo/xxh3"
	"golang.org/x/sync/singleflight"

	"github.com/tomfle18/aiostreams/core"
	"github.com/tomfle18/aiostreams/internal/cache"
	"github.com/tomfle18/aiostreams/internal/config"
	"github.com/tomfle18/aiostreams/internal/fetch"
	"github.com/tomfle18/aiostreams/internal/kv"
	"github.com/tomfle18/aiostreams/internal/logger"
	"github.com/tomfle18/aiostreams/internal/util"
	"github.com/tomfle18/aiostreams/stremio"
)

var log = logger.Scoped("metadata")

type Metadata struct {
	Titles          []string `json:"titles"`
	Year            string   `json:"year,omitempty"`
	Season          int      `json:"season,omitempty"`
	Episode         int      `json:"episode,omitempty"`
	AbsoluteEpisode int      `json:"absolute_episode,omitempty"`
}

// ID is the short content-addressed handle playback urls carry.
func (m *Metadata) ID() string {
	blob, _ := json.Marshal(m)
	return fmt.Sprintf("%012x", xxh3.Hash(blob)&0xffffffffffff)
}

var metadataStore = sync.OnceValue(func() *kv.KVStore[Metadata] {
	return kv.NewKVStore[Metadata](&kv.KVStoreConfig{
		Type:      "metadata",
		ExpiresIn: config.BuiltinPlaybackLinkValidity,
	})
})

var metadataCache = sync.OnceValue(func() cache.Cache[Metadata] {
	return cache.NewCache[Metadata](&cache.CacheConfig{
		Name:     "metadata",
		Lifetime: config.BuiltinPlaybackLinkValidity,
	})
})

// Save stores the metadata and returns its id. Writes are idempotent,
// the id is content-addressed.
func Save(m *Metadata) (string, error) {
	id := m.ID()
	if err := metadataCache().Add(id, *m); err != nil {
		log.Warn("failed to cache metadata", "error", err, "id", id)
	}
	if err := metadataStore().Set(id, *m); err != nil {
		return "", err
	}
	return id, nil
}

// Get loads stored metadata; unknown ids must fail playback.
func Get(id string) (*Metadata, bool) {
	m := Metadata{}
	if metadataCache().Get(id, &m) {
		return &m, true
	}
	ok, err := metadataStore().Get(id, &m)
	if err != nil {
		log.Error("failed to read metadata", "error", err, "id", id)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	return &m, true
}

var resolveGroup singleflight.Group

// Resolve fetches metadata for a player request id such as
// "tt0816692", "tt0944947:1:5" or "mal:52991:12".
func Resolve(ctx context.Context, contentType stremio.ContentType, id string) (*Metadata, error) {
	v, err, _ := resolveGroup.Do(string(contentType)+":"+id, func() (any, error) {
		return resolve(ctx, contentType, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Metadata), nil
}

func resolve(ctx context.Context, contentType stremio.ContentType, id string) (*Metadata, error) {
	parts := strings.Split(id, ":")
	switch {
	case strings.HasPrefix(id, "tt"):
		m, err := resolveCinemeta(ctx, contentType, parts[0])
		if err != nil {
			return nil, err
		}
		if len(parts) >= 3 {
			m.Season = util.SafeParseInt(parts[1], 0)
			m.Episode = util.SafeParseInt(parts[2], 0)
		}
		return m, nil
	case parts[0] == "mal" || parts[0] == "anilist":
		if len(parts) < 2 {
			return nil, core.NewError(core.ErrorCodeBadRequest, "invalid anime id: "+id)
		}
		m, err := resolveAniList(ctx, parts[0], util.SafeParseInt(parts[1], 0))
		if err != nil {
			return nil, err
		}
		if len(parts) >= 3 {
			m.Episode = util.SafeParseInt(parts[2], 0)
			m.AbsoluteEpisode = m.Episode
		}
		return m, nil
	case parts[0] == "kitsu":
		// No direct kitsu binding; the filename match carries playback.
		m := &Metadata{}
		if len(parts) >= 3 {
			m.Episode = util.SafeParseInt(parts[2], 0)
			m.AbsoluteEpisode = m.Episode
		}
		return m, nil
	default:
		return &Metadata{}, nil
	}
}

const cinemetaBaseURL = "https://v3-cinemeta.strem.io"

func resolveCinemeta(ctx context.Context, contentType stremio.ContentType, imdbId string) (*Metadata, error) {
	metaType := "movie"
	if contentType == stremio.ContentTypeSeries || contentType == stremio.ContentTypeAnime {
		metaType = "series"
	}
	res, err := fetch.Fetch(ctx, cinemetaBaseURL+"/meta/"+metaType+"/"+imdbId+".json", nil)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	payload := struct {
		Meta struct {
			Name        string `json:"name"`
			Year        string `json:"year"`
			ReleaseInfo string `json:"releaseInfo"`
		} `json:"meta"`
	}{}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil, core.NewError(core.ErrorCodeProviderBadResponse, "cinemeta: unexpected response shape").WithCause(err)
	}
	if payload.Meta.Name == "" {
		return nil, core.NewError(core.ErrorCodeNotFound, "cinemeta: no meta for "+imdbId)
	}
	year := payload.Meta.Year
	if year == "" {
		year = payload.Meta.ReleaseInfo
	}
	if i := strings.IndexAny(year, "-–"); i > 0 {
		year = year[:i]
	}
	return &Metadata{Titles: []string{payload.Meta.Name}, Year: year}, nil
}

const anilistEndpoint = "https://graphql.anilist.co"

func resolveAniList(ctx context.Context, idKind string, id int) (*Metadata, error) {
	client := graphql.NewClient(anilistEndpoint, nil)

	var query struct {
		Media struct {
			Title struct {
				Romaji  string
				English string
				Native  string
			}
			StartDate struct {
				Year int
			}
		} `graphql:"Media(idMal: $id, type: ANIME)"`
	}
	variables := map[string]any{"id": id}
	if idKind == "anilist" {
		var byId struct {
			Media struct {
				Title struct {
					Romaji  string
					English string
					Native  string
				}
				StartDate struct {
					Year int
				}
			} `graphql:"Media(id: $id, type: ANIME)"`
		}
		if err := client.Query(ctx, &byId, variables); err != nil {
			return nil, core.NewError(core.ErrorCodeProviderHTTPError, "anilist: query failed").WithCause(err)
		}
		query.Media = byId.Media
	} else if err := client.Query(ctx, &query, variables); err != nil {
		return nil, core.NewError(core.ErrorCodeProviderHTTPError, "anilist: query failed").WithCause(err)
	}

	m := &Metadata{}
	seen := util.NewSet[string]()
	for _, title := range []string{query.Media.Title.English, query.Media.Title.Romaji, query.Media.Title.Native} {
		if title == "" || seen.Has(title) {
			continue
		}
		seen.Add(title)
		m.Titles = append(m.Titles, title)
	}
	if query.Media.StartDate.Year > 0 {
		m.Year = fmt.Sprintf("%d", query.Media.StartDate.Year)
	}
	return m, nil
}
