package expression

import (
	"github.com/tomfle18/aiostreams/internal/stream"
)

func streamMap(s *stream.ParsedStream) map[string]any {
	env := map[string]any{
		"id":             s.ID,
		"type":           string(s.Type),
		"addon":          s.Addon.Name,
		"addonId":        s.Addon.InstanceID,
		"size":           s.Size,
		"folderSize":     s.FolderSize,
		"filename":       s.Filename,
		"indexer":        s.Indexer,
		"age":            s.Age,
		"library":        s.Library,
		"proxied":        s.Proxied,
		"keywordMatched": s.KeywordMatched,
		"regexMatched":   s.RegexMatched != nil,
		"seeders":        0,
		"cached":         false,
		"service":        "",
	}
	if s.Torrent != nil {
		env["infoHash"] = s.Torrent.InfoHash
		if s.Torrent.Seeders != nil {
			env["seeders"] = *s.Torrent.Seeders
		}
	}
	if s.Service != nil {
		env["service"] = string(s.Service.ID)
		env["cached"] = s.Service.Cached
	}
	if f := s.File; f != nil {
		env["title"] = f.Title
		env["year"] = f.Year
		env["resolution"] = f.Resolution
		env["quality"] = f.Quality
		env["encode"] = f.Encode
		env["visualTags"] = f.VisualTags
		env["audioTags"] = f.AudioTags
		env["audioChannels"] = f.AudioChannels
		env["languages"] = f.Languages
		env["seasons"] = f.Seasons
		env["episodes"] = f.Episodes
		env["releaseGroup"] = f.ReleaseGroup
	}
	return env
}

func collectionMaps(streams []*stream.ParsedStream) []any {
	items := make([]any, len(streams))
	for i, s := range streams {
		items[i] = streamMap(s)
	}
	return items
}

// CollectionEnv binds the candidate collection for group and
// dynamic-fetch conditions.
func CollectionEnv(streams []*stream.ParsedStream) map[string]any {
	return map[string]any{
		"streams":      collectionMaps(streams),
		"totalStreams": len(streams),
	}
}

// StreamEnv exposes one stream's fields as identifiers, with the full
// candidate collection still bound as `streams`.
func StreamEnv(s *stream.ParsedStream, streams []*stream.ParsedStream) map[string]any {
	env := streamMap(s)
	env["streams"] = collectionMaps(streams)
	env["totalStreams"] = len(streams)
	return env
}
