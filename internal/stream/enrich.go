package stream

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/rs/xid"

	"github.com/tomfle18/aiostreams/core"
	"github.com/tomfle18/aiostreams/internal/parser"
	"github.com/tomfle18/aiostreams/internal/util"
	"github.com/tomfle18/aiostreams/stremio"
)

// serviceHostTokens detects which debrid service an upstream url
// already targets.
var serviceHostTokens = map[string]ServiceID{
	"real-debrid": ServiceRealDebrid,
	"realdebrid":  ServiceRealDebrid,
	"rdeb":        ServiceRealDebrid,
	"alldebrid":   ServiceAllDebrid,
	"debrid-link": ServiceDebridLink,
	"debridlink":  ServiceDebridLink,
	"premiumize":  ServicePremiumize,
	"torbox":      ServiceTorBox,
	"easydebrid":  ServiceEasyDebrid,
	"debrider":    ServiceDebrider,
	"put.io":      ServicePutIO,
	"putio":       ServicePutIO,
	"pikpak":      ServicePikPak,
	"offcloud":    ServiceOffcloud,
	"seedr":       ServiceSeedr,
	"easynews":    ServiceEasynews,
}

// serviceNameTokens are the short tags addons put in stream names,
// e.g. "[RD+]" or "TB ⚡".
var serviceNameTokens = map[string]ServiceID{
	"RD": ServiceRealDebrid,
	"AD": ServiceAllDebrid,
	"PM": ServicePremiumize,
	"DL": ServiceDebridLink,
	"TB": ServiceTorBox,
	"ED": ServiceEasyDebrid,
	"DB": ServiceDebrider,
	"PO": ServicePutIO,
	"PP": ServicePikPak,
	"OC": ServiceOffcloud,
	"SR": ServiceSeedr,
	"EN": ServiceEasynews,
}

var serviceTagPattern = regexp.MustCompile(`(?:\[|\b)(RD|AD|PM|DL|TB|ED|DB|PO|PP|OC|SR|EN)(\+|⚡|⏳|\b|\])`)

func detectService(rawURL, name string) *Service {
	if rawURL != "" {
		if u, err := url.Parse(rawURL); err == nil {
			host := strings.ToLower(u.Hostname())
			for token, id := range serviceHostTokens {
				if strings.Contains(host, token) {
					return &Service{ID: id, Cached: true}
				}
			}
		}
	}
	if m := serviceTagPattern.FindStringSubmatch(name); m != nil {
		if id, ok := serviceNameTokens[m[1]]; ok {
			// "+" and lightning markers mean instantly available,
			// "⏳" means the service would have to download first.
			cached := m[2] != "⏳"
			return &Service{ID: id, Cached: cached}
		}
	}
	return nil
}

var sizePattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(TB|GB|MB|KB|GiB|MiB|KiB|TiB)\b`)
var seedersPattern = regexp.MustCompile(`(?i)(?:👤|seeders?[:\s]+)\s*(\d+)`)
var indexerPattern = regexp.MustCompile(`(?i)(?:🌐|⚙️|indexer[:\s]+)\s*(\S+)`)
var agePattern = regexp.MustCompile(`(?i)(?:📅|age[:\s]+)\s*(\d+[dhmy])`)
var durationPattern = regexp.MustCompile(`(?i)(?:⏱|🕓)\s*(?:(\d+)h)?\s*(?:(\d+)m)?`)

func parseSizeText(text string) int64 {
	if m := sizePattern.FindStringSubmatch(text); m != nil {
		if size, err := humanize.ParseBytes(m[1] + " " + m[2]); err == nil {
			return int64(size)
		}
	}
	return 0
}

// EnrichOptions carries the addon-level context needed to classify one
// raw stream.
type EnrichOptions struct {
	Addon   Addon
	Library bool
}

// Enrich converts one upstream wire stream into the canonical record.
// Classification failures produce an inline error stream, never a drop.
func Enrich(raw *stremio.Stream, opts *EnrichOptions) *ParsedStream {
	description := raw.Description
	if description == "" {
		description = raw.Title
	}
	s := &ParsedStream{
		ID:                  xid.New().String(),
		Addon:               opts.Addon,
		URL:                 raw.URL,
		ExternalURL:         raw.ExternalURL,
		YtID:                raw.YoutubeID,
		Subtitles:           raw.Subtitles,
		OriginalName:        raw.Name,
		OriginalDescription: description,
		Library:             opts.Library,
	}

	if raw.InfoHash != "" {
		s.Torrent = &Torrent{
			InfoHash: strings.ToLower(raw.InfoHash),
			FileIdx:  raw.FileIndex,
			Sources:  raw.Sources,
		}
	}

	if hints := raw.BehaviorHints; hints != nil {
		s.Filename = hints.Filename
		s.BingeGroup = hints.BingeGroup
		s.NotWebReady = hints.NotWebReady
		s.CountryWhitelist = hints.CountryWhitelist
		s.ProxyHeaders = hints.ProxyHeaders
		s.Size = hints.VideoSize
	}

	// Parse name, description and filename in that order; later parses
	// only fill fields the earlier ones left empty.
	for _, text := range []string{raw.Name, s.OriginalDescription, s.Filename} {
		if text == "" {
			continue
		}
		f := parser.Parse(text)
		if f == nil {
			continue
		}
		if s.File == nil {
			s.File = f
			continue
		}
		mergeParsedFile(s.File, f)
	}
	if s.Filename == "" && s.OriginalDescription != "" {
		if line := firstLine(s.OriginalDescription); core.HasVideoExtension(line) {
			s.Filename = line
		}
	}

	if s.Size == 0 && s.File != nil {
		s.Size = s.File.Size
	}
	if s.Size == 0 {
		s.Size = parseSizeText(s.OriginalDescription)
	}
	s.FolderSize = parseSizeText(s.FolderName)

	if m := seedersPattern.FindStringSubmatch(s.OriginalDescription); m != nil && s.Torrent != nil {
		if seeders := util.SafeParseInt(m[1], -1); seeders >= 0 {
			s.Torrent.Seeders = &seeders
		}
	}
	if m := indexerPattern.FindStringSubmatch(s.OriginalDescription); m != nil {
		s.Indexer = m[1]
	}
	if m := agePattern.FindStringSubmatch(s.OriginalDescription); m != nil {
		s.Age = m[1]
	}
	if m := durationPattern.FindStringSubmatch(s.OriginalDescription); m != nil && (m[1] != "" || m[2] != "") {
		s.Duration = int64(util.SafeParseInt(m[1], 0))*3600 + int64(util.SafeParseInt(m[2], 0))*60
	}

	s.Service = detectService(raw.URL, raw.Name)
	s.Type = classify(raw, s)
	return s
}

// classify derives the stream type from field presence.
func classify(raw *stremio.Stream, s *ParsedStream) Type {
	switch {
	case raw.YoutubeID != "":
		return TypeYoutube
	case raw.ExternalURL != "" && raw.URL == "":
		return TypeExternal
	case raw.InfoHash != "" && raw.URL == "":
		return TypeP2P
	case raw.URL != "":
		if s.Service != nil {
			return TypeDebrid
		}
		if strings.Contains(strings.ToLower(raw.Name), "usenet") || s.Age != "" {
			return TypeUsenet
		}
		return TypeHTTP
	default:
		return TypeError
	}
}

// NewErrorStream wraps a provider failure as an inline result.
func NewErrorStream(addon Addon, title, description string) *ParsedStream {
	return &ParsedStream{
		ID:    xid.New().String(),
		Addon: addon,
		Type:  TypeError,
		Error: &Error{Title: title, Description: description},
	}
}

func mergeParsedFile(dst, src *parser.ParsedFile) {
	if dst.Title == "" {
		dst.Title = src.Title
	}
	if dst.Year == "" {
		dst.Year = src.Year
	}
	if dst.Resolution == "" {
		dst.Resolution = src.Resolution
	}
	if dst.Quality == "" {
		dst.Quality = src.Quality
	}
	if dst.Encode == "" {
		dst.Encode = src.Encode
	}
	if len(dst.VisualTags) == 0 {
		dst.VisualTags = src.VisualTags
	}
	if len(dst.AudioTags) == 0 {
		dst.AudioTags = src.AudioTags
	}
	if len(dst.AudioChannels) == 0 {
		dst.AudioChannels = src.AudioChannels
	}
	if len(dst.Languages) == 0 {
		dst.Languages = src.Languages
	}
	if len(dst.Seasons) == 0 {
		dst.Seasons = src.Seasons
	}
	if len(dst.Episodes) == 0 {
		dst.Episodes = src.Episodes
	}
	if dst.ReleaseGroup == "" {
		dst.ReleaseGroup = src.ReleaseGroup
	}
	if dst.Size == 0 {
		dst.Size = src.Size
	}
}

func firstLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return strings.TrimSpace(text[:i])
	}
	return strings.TrimSpace(text)
}
