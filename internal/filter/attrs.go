package filter

import (
	"slices"
	"strings"

	"github.com/tomfle18/aiostreams/internal/stream"
)

const unknownValue = "unknown"

func attrResolution(s *stream.ParsedStream) []string {
	if s.File == nil || s.File.Resolution == "" {
		return []string{unknownValue}
	}
	return []string{s.File.Resolution}
}

func attrQuality(s *stream.ParsedStream) []string {
	if s.File == nil || s.File.Quality == "" {
		return []string{unknownValue}
	}
	return []string{s.File.Quality}
}

func attrEncode(s *stream.ParsedStream) []string {
	if s.File == nil || s.File.Encode == "" {
		return []string{unknownValue}
	}
	return []string{s.File.Encode}
}

// attrVisualTags adds the synthetic HDR/DV combination tags alongside
// the parsed ones.
func attrVisualTags(s *stream.ParsedStream) []string {
	if s.File == nil || len(s.File.VisualTags) == 0 {
		return []string{unknownValue}
	}
	tags := slices.Clone(s.File.VisualTags)
	hasDV := slices.ContainsFunc(tags, func(tag string) bool {
		t := strings.ToUpper(tag)
		return t == "DV" || t == "DOLBY VISION"
	})
	hasHDR := slices.ContainsFunc(tags, func(tag string) bool {
		return strings.HasPrefix(strings.ToUpper(tag), "HDR")
	})
	switch {
	case hasDV && hasHDR:
		tags = append(tags, "HDR+DV")
	case hasDV:
		tags = append(tags, "DV Only")
	case hasHDR:
		tags = append(tags, "HDR Only")
	}
	return tags
}

func attrAudioTags(s *stream.ParsedStream) []string {
	if s.File == nil || len(s.File.AudioTags) == 0 {
		return []string{unknownValue}
	}
	return s.File.AudioTags
}

func attrAudioChannels(s *stream.ParsedStream) []string {
	if s.File == nil || len(s.File.AudioChannels) == 0 {
		return []string{unknownValue}
	}
	return s.File.AudioChannels
}

func attrLanguages(s *stream.ParsedStream) []string {
	if s.File == nil || len(s.File.Languages) == 0 {
		return []string{unknownValue}
	}
	return s.File.Languages
}
