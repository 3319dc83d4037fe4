// Package video maps debrid error codes to the pre-rendered short
// placeholder videos shown to the player.
package video

import (
	"net/http"

	"github.com/tomfle18/aiostreams/core"
	"github.com/tomfle18/aiostreams/internal/config"
)

// names are the available placeholder clips.
var names = map[core.ErrorCode]string{
	core.ErrorCodeUnauthorized:               "unauthorized",
	core.ErrorCodeForbidden:                  "forbidden",
	core.ErrorCodePaymentRequired:            "payment_required",
	core.ErrorCodeStoreLimitExceeded:         "limit_exceeded",
	core.ErrorCodeUnprocessableEntity:        "unprocessable",
	core.ErrorCodeStoreMagnetInvalid:         "invalid_magnet",
	core.ErrorCodeUnavailableForLegalReasons: "legal_block",
	core.ErrorCodeNoMatchingFile:             "no_matching_file",
	core.ErrorCodePlaybackDownloading:        "downloading",
	core.ErrorCodeLockTimeout:                "timeout",
	core.ErrorCodeProviderTimeout:            "timeout",
}

// URLFor returns the placeholder clip for an error code, falling back
// to the generic failure clip.
func URLFor(code core.ErrorCode) string {
	name, ok := names[code]
	if !ok {
		name = "error"
	}
	return config.StaticVideoBaseURL + "/" + name + ".mp4"
}

// Redirect sends the player to the placeholder for err. Downloading is
// a 302 so clients retry; everything else too, the player just plays
// the clip.
func Redirect(w http.ResponseWriter, r *http.Request, err error) {
	code := core.ErrorCodeInternalServerError
	if cerr := core.AsError(err); cerr != nil {
		code = cerr.Code
	}
	http.Redirect(w, r, URLFor(code), http.StatusFound)
}
