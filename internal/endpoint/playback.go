package endpoint

import (
	"net/http"

	"github.com/tomfle18/aiostreams/core"
	"github.com/tomfle18/aiostreams/internal/metadata"
	"github.com/tomfle18/aiostreams/internal/resolver"
	"github.com/tomfle18/aiostreams/internal/server"
	"github.com/tomfle18/aiostreams/internal/store/video"
	"github.com/tomfle18/aiostreams/internal/telemetry"
)

// handlePlayback resolves an opaque playback url into a real stream and
// redirects the player there. Failures redirect to a static status clip
// so the player shows something meaningful instead of a broken stream.
func handlePlayback(w http.ResponseWriter, r *http.Request) {
	if !isMethod(r, http.MethodGet) && !isMethod(r, http.MethodHead) {
		errorMethodNotAllowed(r).Send(w, r)
		return
	}

	rLog := server.GetReqCtx(r).Log

	auth, err := resolver.DecryptStoreAuth(r.PathValue("auth"))
	if err != nil {
		rLog.Warn("rejected playback auth", "error", err)
		video.Redirect(w, r, err)
		return
	}

	fi, err := resolver.DecodeFileInfo(r.PathValue("fileInfo"))
	if err != nil {
		rLog.Warn("rejected playback file info", "error", err)
		video.Redirect(w, r, err)
		return
	}

	// Unknown metadata ids mean the link expired or was forged.
	meta, ok := metadata.Get(r.PathValue("metadataId"))
	if !ok {
		video.Redirect(w, r, core.NewError(core.ErrorCodeGone, "playback link expired"))
		return
	}

	telemetry.Capture("playback", map[string]any{
		"service": string(auth.ID),
	})

	link, err := resolver.Resolve(r.Context(), auth, fi, meta)
	if err != nil {
		rLog.Warn("playback resolution failed", "error", err, "service", auth.ID, "hash", fi.Hash)
		video.Redirect(w, r, err)
		return
	}

	http.Redirect(w, r, link, http.StatusTemporaryRedirect)
}
