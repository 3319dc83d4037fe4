package resolver

import (
	"path"
	"strings"

	fuzz "github.com/paul-mannino/go-fuzzywuzzy"

	"github.com/tomfle18/aiostreams/core"
	"github.com/tomfle18/aiostreams/internal/metadata"
	"github.com/tomfle18/aiostreams/internal/parser"
	"github.com/tomfle18/aiostreams/internal/store"
	"github.com/tomfle18/aiostreams/internal/util"
)

var pickNormalizer = util.NewStringNormalizer()

// PickFile chooses the playable file from a debrid job. Ties break by
// the earliest index; a winner whose episode contradicts the request
// fails with NO_MATCHING_FILE.
func PickFile(files []store.File, fi *FileInfo, meta *metadata.Metadata) (*store.File, error) {
	if len(files) == 0 {
		return nil, core.NewError(core.ErrorCodeNoMatchingFile, "service job holds no files")
	}

	var maxSize int64
	for _, f := range files {
		if f.Size > maxSize {
			maxSize = f.Size
		}
	}

	best := -1
	bestScore := float64(-1)
	for i := range files {
		score := scoreFile(&files[i], fi, meta, maxSize)
		if score > bestScore {
			best = i
			bestScore = score
		}
	}

	winner := &files[best]
	if meta != nil && meta.Episode > 0 {
		parsed := parser.Parse(path.Base(winner.Name))
		if parsed != nil && len(parsed.Episodes) > 0 && !parsed.HasSeasonEpisode(meta.Season, meta.Episode) &&
			!hasEpisode(parsed.Episodes, meta.AbsoluteEpisode) {
			return nil, core.NewError(core.ErrorCodeNoMatchingFile, "no file matches the requested episode")
		}
	}
	return winner, nil
}

func scoreFile(f *store.File, fi *FileInfo, meta *metadata.Metadata, maxSize int64) float64 {
	name := path.Base(f.Name)
	score := float64(0)

	if core.HasVideoExtension(name) {
		score += 1000
	}

	if meta != nil {
		parsed := parser.Parse(name)
		if parsed != nil {
			if meta.Episode > 0 && (parsed.HasSeasonEpisode(meta.Season, meta.Episode) && len(parsed.Episodes) > 0 ||
				hasEpisode(parsed.Episodes, meta.AbsoluteEpisode)) {
				score += 500
			}
			if meta.Year != "" && parsed.Year == meta.Year {
				score += 500
			}
			if parsed.Title != "" && titleMatches(parsed.Title, meta.Titles) {
				score += 100
			}
		}
	}

	if maxSize > 0 {
		score += float64(f.Size) / float64(maxSize) * 50
	}
	if fi != nil {
		if fi.Index >= 0 && f.Idx == fi.Index {
			score += 25
		}
		if fi.Filename != "" && strings.Contains(strings.ToLower(name), strings.ToLower(fi.Filename)) {
			score += 25
		}
	}
	return score
}

// titleMatches uses normalized partial-ratio with a 0.8 threshold.
func titleMatches(title string, candidates []string) bool {
	normalized := pickNormalizer.Normalize(title)
	if normalized == "" {
		return false
	}
	for _, candidate := range candidates {
		if ratio := fuzz.PartialRatio(normalized, pickNormalizer.Normalize(candidate)); ratio >= 80 {
			return true
		}
	}
	return false
}

func hasEpisode(episodes []int, episode int) bool {
	if episode == 0 {
		return false
	}
	for _, e := range episodes {
		if e == episode {
			return true
		}
	}
	return false
}
