// Package realdebrid binds the RealDebrid REST API to the store
// interface.
package realdebrid

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tomfle18/aiostreams/core"
	"github.com/tomfle18/aiostreams/internal/fetch"
	"github.com/tomfle18/aiostreams/internal/logger"
	"github.com/tomfle18/aiostreams/internal/store"
	"github.com/tomfle18/aiostreams/internal/stream"
)

const apiBaseURL = "https://api.real-debrid.com/rest/1.0"

var log = logger.Scoped("store/realdebrid")

type StoreClient struct{}

func NewStoreClient() *StoreClient {
	return &StoreClient{}
}

func (c *StoreClient) GetName() stream.ServiceID {
	return stream.ServiceRealDebrid
}

type apiError struct {
	Error     string `json:"error"`
	ErrorCode int    `json:"error_code,omitempty"`
}

func (c *StoreClient) call(ctx context.Context, apiKey, method, path string, form url.Values, out any) error {
	opts := &fetch.Options{
		Method: method,
		Headers: map[string]string{
			"Authorization": "Bearer " + apiKey,
		},
		// The caller already single-flights; retrying mutations would
		// double-add jobs.
		NoRetry: method != http.MethodGet,
	}
	if form != nil {
		opts.Body = strings.NewReader(form.Encode())
		opts.Headers["Content-Type"] = "application/x-www-form-urlencoded"
	}
	res, err := fetch.Fetch(ctx, apiBaseURL+path, opts)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	if res.StatusCode >= http.StatusBadRequest {
		aerr := apiError{}
		msg := "realdebrid: " + res.Status
		if json.Unmarshal(body, &aerr) == nil && aerr.Error != "" {
			msg = "realdebrid: " + aerr.Error
		}
		// error_code 25 is infringing_file.
		if aerr.ErrorCode == 25 {
			return core.NewError(core.ErrorCodeUnavailableForLegalReasons, msg)
		}
		return store.UpstreamError(res.StatusCode, msg)
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return core.NewError(core.ErrorCodeProviderBadResponse, "realdebrid: unexpected response shape").WithCause(err)
	}
	return nil
}

type torrentFile struct {
	ID       int    `json:"id"`
	Path     string `json:"path"`
	Bytes    int64  `json:"bytes"`
	Selected int    `json:"selected"`
}

type torrentInfo struct {
	ID       string        `json:"id"`
	Filename string        `json:"filename"`
	Hash     string        `json:"hash"`
	Bytes    int64         `json:"bytes"`
	Progress float64       `json:"progress"`
	Status   string        `json:"status"`
	Files    []torrentFile `json:"files"`
	Links    []string      `json:"links"`
}

func magnetStatus(status string) store.MagnetStatus {
	switch status {
	case "downloaded":
		return store.MagnetStatusDownloaded
	case "queued", "magnet_conversion", "waiting_files_selection":
		return store.MagnetStatusQueued
	case "downloading", "compressing", "uploading":
		return store.MagnetStatusDownloading
	case "magnet_error", "dead":
		return store.MagnetStatusInvalid
	case "error", "virus":
		return store.MagnetStatusFailed
	default:
		return store.MagnetStatusUnknown
	}
}

func (t *torrentInfo) files() []store.File {
	selected := make([]store.File, 0, len(t.Files))
	linkIdx := 0
	for _, f := range t.Files {
		if f.Selected != 1 {
			continue
		}
		file := store.File{
			Idx:  f.ID,
			Name: strings.TrimPrefix(f.Path, "/"),
			Path: f.Path,
			Size: f.Bytes,
		}
		if linkIdx < len(t.Links) {
			file.Link = t.Links[linkIdx]
		}
		linkIdx++
		selected = append(selected, file)
	}
	return selected
}

// CheckMagnet probes instant availability per hash.
func (c *StoreClient) CheckMagnet(ctx context.Context, params *store.CheckMagnetParams) (*store.CheckMagnetData, error) {
	data := &store.CheckMagnetData{}
	var availability map[string]map[string][]map[string]struct {
		Filename string `json:"filename"`
		Filesize int64  `json:"filesize"`
	}
	path := "/torrents/instantAvailability/" + strings.Join(params.Hashes, "/")
	if err := c.call(ctx, params.GetAPIKey(), http.MethodGet, path, nil, &availability); err != nil {
		return nil, err
	}
	for _, hash := range params.Hashes {
		item := store.CheckMagnetDataItem{Hash: hash, Status: store.MagnetStatusUnknown}
		if hosters, ok := availability[strings.ToLower(hash)]; ok {
			for _, variants := range hosters {
				for _, variant := range variants {
					if len(variant) == 0 {
						continue
					}
					item.Status = store.MagnetStatusCached
					item.Files = item.Files[:0]
					for idStr, f := range variant {
						idx, _ := strconv.Atoi(idStr)
						item.Files = append(item.Files, store.File{
							Idx:  idx,
							Name: f.Filename,
							Size: f.Filesize,
						})
					}
				}
			}
		}
		data.Items = append(data.Items, item)
	}
	return data, nil
}

// AddMagnet creates the torrent job and selects every file.
func (c *StoreClient) AddMagnet(ctx context.Context, params *store.AddMagnetParams) (*store.AddMagnetData, error) {
	added := struct {
		ID  string `json:"id"`
		URI string `json:"uri"`
	}{}
	form := url.Values{"magnet": []string{params.Magnet}}
	if err := c.call(ctx, params.GetAPIKey(), http.MethodPost, "/torrents/addMagnet", form, &added); err != nil {
		return nil, err
	}

	info := torrentInfo{}
	if err := c.call(ctx, params.GetAPIKey(), http.MethodGet, "/torrents/info/"+added.ID, nil, &info); err != nil {
		return nil, err
	}
	if info.Status == "waiting_files_selection" {
		form := url.Values{"files": []string{"all"}}
		if err := c.call(ctx, params.GetAPIKey(), http.MethodPost, "/torrents/selectFiles/"+added.ID, form, nil); err != nil {
			return nil, err
		}
		if err := c.call(ctx, params.GetAPIKey(), http.MethodGet, "/torrents/info/"+added.ID, nil, &info); err != nil {
			return nil, err
		}
	}
	status := magnetStatus(info.Status)
	if status == store.MagnetStatusInvalid {
		return nil, core.NewError(core.ErrorCodeStoreMagnetInvalid, "realdebrid: magnet cannot be resolved")
	}
	log.Debug("added magnet", "id", added.ID, "hash", info.Hash, "status", info.Status)
	return &store.AddMagnetData{
		ID:     added.ID,
		Hash:   strings.ToLower(info.Hash),
		Magnet: params.Magnet,
		Status: status,
		Files:  info.files(),
	}, nil
}

func (c *StoreClient) GetMagnet(ctx context.Context, params *store.GetMagnetParams) (*store.GetMagnetData, error) {
	info := torrentInfo{}
	if err := c.call(ctx, params.GetAPIKey(), http.MethodGet, "/torrents/info/"+params.ID, nil, &info); err != nil {
		return nil, err
	}
	return &store.GetMagnetData{
		ID:       info.ID,
		Hash:     strings.ToLower(info.Hash),
		Name:     info.Filename,
		Status:   magnetStatus(info.Status),
		Progress: info.Progress,
		Files:    info.files(),
	}, nil
}

// GenerateLink unrestricts a hoster link into a direct download.
func (c *StoreClient) GenerateLink(ctx context.Context, params *store.GenerateLinkParams) (*store.GenerateLinkData, error) {
	unrestricted := struct {
		Download string `json:"download"`
	}{}
	form := url.Values{"link": []string{params.Link}}
	if err := c.call(ctx, params.GetAPIKey(), http.MethodPost, "/unrestrict/link", form, &unrestricted); err != nil {
		return nil, err
	}
	if unrestricted.Download == "" {
		return nil, core.NewError(core.ErrorCodeProviderBadResponse, "realdebrid: no download link returned")
	}
	return &store.GenerateLinkData{Link: unrestricted.Download}, nil
}
