package endpoint

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/tomfle18/aiostreams/core"
	"github.com/tomfle18/aiostreams/internal/aggregator"
	"github.com/tomfle18/aiostreams/internal/telemetry"
	"github.com/tomfle18/aiostreams/internal/userdata"
	"github.com/tomfle18/aiostreams/stremio"
)

// resolveUser authenticates the credentials embedded in the addon path.
func resolveUser(r *http.Request) (string, *userdata.Config, error) {
	uuid := r.PathValue("uuid")
	password := r.PathValue("password")
	if uuid == "" || password == "" {
		return "", nil, core.NewError(core.ErrorCodeUnauthorized, "missing user credentials")
	}
	conf, err := userdata.Resolve(uuid, password)
	if err != nil {
		return "", nil, err
	}
	return uuid, conf, nil
}

func handleManifest(w http.ResponseWriter, r *http.Request) {
	if !isMethod(r, http.MethodGet) {
		errorMethodNotAllowed(r).Send(w, r)
		return
	}

	if _, _, err := resolveUser(r); err != nil {
		sendError(w, r, err)
		return
	}

	manifest := &stremio.Manifest{
		ID:          "dev.aiostreams",
		Name:        "AIOStreams",
		Description: "Aggregated streams from your configured addons",
		Version:     "1.0.0",
		Resources: []stremio.Resource{
			{Name: stremio.ResourceNameStream},
		},
		Types: []stremio.ContentType{
			stremio.ContentTypeMovie,
			stremio.ContentTypeSeries,
			stremio.ContentTypeAnime,
			stremio.ContentTypeTV,
		},
		IDPrefixes: []string{"tt", "kitsu:", "mal:", "anilist:"},
		BehaviorHints: &stremio.ManifestBehaviorHints{
			Configurable: true,
		},
	}
	sendResponse(w, r, 200, manifest, nil)
}

// parseExtras splits the optional "a=b&c=d" path segment addon urls use.
func parseExtras(segment string) url.Values {
	extras := url.Values{}
	for _, pair := range strings.Split(segment, "&") {
		if key, value, ok := strings.Cut(pair, "="); ok {
			if unescaped, err := url.PathUnescape(value); err == nil {
				value = unescaped
			}
			extras.Set(key, value)
		}
	}
	return extras
}

func handleStream(w http.ResponseWriter, r *http.Request) {
	if !isMethod(r, http.MethodGet) {
		errorMethodNotAllowed(r).Send(w, r)
		return
	}

	uuid, conf, err := resolveUser(r)
	if err != nil {
		sendError(w, r, err)
		return
	}

	contentType := stremio.ContentType(r.PathValue("contentType"))
	id := strings.TrimSuffix(r.PathValue("videoId"), ".json")
	extras := url.Values{}
	if segment := strings.TrimSuffix(r.PathValue("extras"), ".json"); segment != "" {
		extras = parseExtras(segment)
	}
	if id == "" {
		sendError(w, r, core.NewError(core.ErrorCodeBadRequest, "missing video id"))
		return
	}

	telemetry.Capture("stream_request", map[string]any{
		"content_type": string(contentType),
	})

	res, err := aggregator.Streams(r.Context(), conf, &aggregator.Request{
		ContentType: contentType,
		ID:          id,
		Extras:      extras,
		ForwardIP:   core.GetClientIP(r),
		UserUUID:    uuid,
	})
	sendResponse(w, r, 200, res, err)
}
