package core

import (
	"path/filepath"
	"strings"
)

var videoExtensions = map[string]struct{}{
	".3g2":  {},
	".3gp":  {},
	".avi":  {},
	".flv":  {},
	".m2ts": {},
	".m4v":  {},
	".mk3d": {},
	".mkv":  {},
	".mov":  {},
	".mp2":  {},
	".mp4":  {},
	".mpe":  {},
	".mpeg": {},
	".mpg":  {},
	".mpv":  {},
	".ogm":  {},
	".ogv":  {},
	".ts":   {},
	".webm": {},
	".wmv":  {},
}

func HasVideoExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	_, ok := videoExtensions[ext]
	return ok
}
