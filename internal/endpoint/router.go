package endpoint

import (
	"net/http"
)

func handleHealth(w http.ResponseWriter, r *http.Request) {
	sendResponse(w, r, 200, map[string]string{"status": "ok"}, nil)
}

func AddEndpoints(mux *http.ServeMux) {
	withCors := middleware(enableCORS)

	mux.HandleFunc("/__health__", handleHealth)

	mux.HandleFunc("/api/v1/user", handleUserCreate)
	mux.HandleFunc("/api/v1/user/{uuid}", handleUser)

	mux.HandleFunc("/u/{uuid}/{password}/manifest.json", withCors(handleManifest))
	mux.HandleFunc("/u/{uuid}/{password}/stream/{contentType}/{videoId}", withCors(handleStream))
	mux.HandleFunc("/u/{uuid}/{password}/stream/{contentType}/{videoId}/{extras}", withCors(handleStream))

	mux.HandleFunc("/playback/{auth}/{fileInfo}/{metadataId}/{filename}", withCors(handlePlayback))
}
