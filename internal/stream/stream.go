package stream

import (
	"errors"

	"github.com/tomfle18/aiostreams/internal/parser"
	"github.com/tomfle18/aiostreams/stremio"
)

type Type string

const (
	TypeP2P       Type = "p2p"
	TypeLive      Type = "live"
	TypeUsenet    Type = "usenet"
	TypeDebrid    Type = "debrid"
	TypeHTTP      Type = "http"
	TypeExternal  Type = "external"
	TypeYoutube   Type = "youtube"
	TypeError     Type = "error"
	TypeStatistic Type = "statistic"
)

type ServiceID string

const (
	ServiceRealDebrid ServiceID = "realdebrid"
	ServiceAllDebrid  ServiceID = "alldebrid"
	ServicePremiumize ServiceID = "premiumize"
	ServiceDebridLink ServiceID = "debridlink"
	ServiceTorBox     ServiceID = "torbox"
	ServiceEasyDebrid ServiceID = "easydebrid"
	ServiceDebrider   ServiceID = "debrider"
	ServicePutIO      ServiceID = "putio"
	ServicePikPak     ServiceID = "pikpak"
	ServiceOffcloud   ServiceID = "offcloud"
	ServiceSeedr      ServiceID = "seedr"
	ServiceEasynews   ServiceID = "easynews"
)

// Addon identifies the provider a stream came from.
type Addon struct {
	InstanceID string `json:"instance_id"`
	Name       string `json:"name"`
}

type Torrent struct {
	InfoHash string   `json:"info_hash"`
	FileIdx  int      `json:"file_idx"`
	Seeders  *int     `json:"seeders,omitempty"`
	Sources  []string `json:"sources,omitempty"`
}

type Service struct {
	ID     ServiceID `json:"id"`
	Cached bool      `json:"cached"`
}

type Error struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type RegexMatch struct {
	Name  string `json:"name"`
	Index int    `json:"index"`
}

// ParsedStream is the canonical internal record every upstream stream
// is normalized into before the pipeline runs.
type ParsedStream struct {
	ID    string `json:"id"`
	Addon Addon  `json:"addon"`
	Type  Type   `json:"type"`

	File       *parser.ParsedFile `json:"file,omitempty"`
	Size       int64              `json:"size,omitempty"`
	FolderSize int64              `json:"folder_size,omitempty"`
	Torrent    *Torrent           `json:"torrent,omitempty"`
	Service    *Service           `json:"service,omitempty"`
	Indexer    string             `json:"indexer,omitempty"`
	Age        string             `json:"age,omitempty"`
	Duration   int64              `json:"duration,omitempty"`

	Filename   string `json:"filename,omitempty"`
	FolderName string `json:"folder_name,omitempty"`

	URL         string `json:"url,omitempty"`
	ExternalURL string `json:"external_url,omitempty"`
	YtID        string `json:"yt_id,omitempty"`

	Subtitles        []stremio.Subtitle          `json:"subtitles,omitempty"`
	CountryWhitelist []string                    `json:"country_whitelist,omitempty"`
	NotWebReady      bool                        `json:"not_web_ready,omitempty"`
	BingeGroup       string                      `json:"binge_group,omitempty"`
	ProxyHeaders     *stremio.StreamProxyHeaders `json:"proxy_headers,omitempty"`

	Proxied                 bool        `json:"proxied,omitempty"`
	RegexMatched            *RegexMatch `json:"regex_matched,omitempty"`
	KeywordMatched          bool        `json:"keyword_matched,omitempty"`
	StreamExpressionMatched *int        `json:"stream_expression_matched,omitempty"`
	Library                 bool        `json:"library,omitempty"`

	OriginalName        string `json:"original_name,omitempty"`
	OriginalDescription string `json:"original_description,omitempty"`

	Error *Error `json:"error,omitempty"`
}

// Validate enforces the per-type minimum-fields rule.
func (s *ParsedStream) Validate() error {
	switch s.Type {
	case TypeP2P:
		if s.Torrent == nil || s.Torrent.InfoHash == "" {
			return errors.New("p2p stream requires torrent info hash")
		}
	case TypeDebrid, TypeHTTP, TypeUsenet, TypeLive:
		if s.URL == "" {
			return errors.New(string(s.Type) + " stream requires url")
		}
	case TypeExternal:
		if s.ExternalURL == "" && s.URL == "" {
			return errors.New("external stream requires url")
		}
	case TypeYoutube:
		if s.YtID == "" {
			return errors.New("youtube stream requires yt id")
		}
	case TypeError:
		if s.Error == nil || s.Error.Title == "" {
			return errors.New("error stream requires error title")
		}
	case TypeStatistic:
	default:
		return errors.New("unknown stream type: " + string(s.Type))
	}
	return nil
}

// IsDebridEligible reports whether playback should defer to the debrid
// resolver instead of using the upstream url directly.
func (s *ParsedStream) IsDebridEligible() bool {
	return s.Type == TypeP2P || (s.Type == TypeUsenet && s.URL == "")
}
