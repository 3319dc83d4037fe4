package expression

import (
	"strings"
)

var resolutionRanks = map[string]int64{
	"4320p": 9,
	"8k":    9,
	"2160p": 8,
	"4k":    8,
	"1440p": 7,
	"1080p": 6,
	"720p":  5,
	"576p":  4,
	"480p":  3,
	"360p":  2,
	"240p":  1,
}

func getResolutionRank(value string) int64 {
	return resolutionRanks[strings.ToLower(value)]
}

var qualityRanks = map[string]int64{
	"bluray remux": 12,
	"remux":        12,
	"bluray":       11,
	"web-dl":       10,
	"webdl":        10,
	"web":          9,
	"webrip":       8,
	"hdrip":        7,
	"hc hd-rip":    6,
	"dvdrip":       5,
	"hdtv":         4,
	"scr":          3,
	"tc":           2,
	"ts":           2,
	"cam":          1,
}

func getQualityRank(value string) int64 {
	return qualityRanks[strings.ToLower(value)]
}
