package parser

import (
	"strings"
	"sync"

	"github.com/MunifTanjim/go-ptt"
	"github.com/dustin/go-humanize"
	"github.com/elastic/go-freelru"
	"github.com/zeebo/xxh3"
)

// ParsedFile is the normalized view of a release title.
type ParsedFile struct {
	Title         string   `json:"title,omitempty"`
	Year          string   `json:"year,omitempty"`
	Resolution    string   `json:"resolution,omitempty"`
	Quality       string   `json:"quality,omitempty"`
	Encode        string   `json:"encode,omitempty"`
	VisualTags    []string `json:"visual_tags,omitempty"`
	AudioTags     []string `json:"audio_tags,omitempty"`
	AudioChannels []string `json:"audio_channels,omitempty"`
	Languages     []string `json:"languages,omitempty"`
	Seasons       []int    `json:"seasons,omitempty"`
	Episodes      []int    `json:"episodes,omitempty"`
	ReleaseGroup  string   `json:"release_group,omitempty"`
	Size          int64    `json:"size,omitempty"`
	ThreeD        bool     `json:"three_d,omitempty"`
}

func (f *ParsedFile) Season() int {
	if len(f.Seasons) == 0 {
		return 0
	}
	return f.Seasons[0]
}

func (f *ParsedFile) Episode() int {
	if len(f.Episodes) == 0 {
		return 0
	}
	return f.Episodes[0]
}

func (f *ParsedFile) HasSeasonEpisode(season, episode int) bool {
	hasSeason := season == 0 || len(f.Seasons) == 0
	for _, s := range f.Seasons {
		if s == season {
			hasSeason = true
			break
		}
	}
	hasEpisode := episode == 0 || len(f.Episodes) == 0
	for _, e := range f.Episodes {
		if e == episode {
			hasEpisode = true
			break
		}
	}
	return hasSeason && hasEpisode
}

func fromResult(r *ptt.Result) *ParsedFile {
	f := &ParsedFile{
		Title:         r.Title,
		Year:          r.Year,
		Resolution:    strings.ToLower(r.Resolution),
		Quality:       r.Quality,
		Encode:        r.Codec,
		VisualTags:    r.HDR,
		AudioTags:     r.Audio,
		AudioChannels: r.Channels,
		Languages:     r.Languages,
		Seasons:       r.Seasons,
		Episodes:      r.Episodes,
		ReleaseGroup:  r.Group,
		ThreeD:        r.ThreeD != "",
	}
	if r.Size != "" {
		if size, err := humanize.ParseBytes(r.Size); err == nil {
			f.Size = int64(size)
		}
	}
	return f
}

// parse results are memoized per exact input, release titles repeat
// heavily across providers.
var memo = sync.OnceValue(func() *freelru.SyncedLRU[string, *ParsedFile] {
	lru, err := freelru.NewSynced[string, *ParsedFile](16384, func(s string) uint32 {
		return uint32(xxh3.HashString(s))
	})
	if err != nil {
		panic(err)
	}
	return lru
})

// Parse extracts release attributes from a raw title/filename. Returns
// nil for a blank input.
func Parse(title string) *ParsedFile {
	if strings.TrimSpace(title) == "" {
		return nil
	}
	lru := memo()
	if f, ok := lru.Get(title); ok {
		return f
	}
	f := fromResult(ptt.Parse(title))
	lru.Add(title, f)
	return f
}
