// Package store abstracts the debrid services that turn torrents into
// direct HTTP downloads.
package store

import (
	"context"
	"net/http"

	"github.com/tomfle18/aiostreams/core"
	"github.com/tomfle18/aiostreams/internal/stream"
)

type MagnetStatus string

const (
	MagnetStatusCached      MagnetStatus = "cached"
	MagnetStatusQueued      MagnetStatus = "queued"
	MagnetStatusDownloading MagnetStatus = "downloading"
	MagnetStatusDownloaded  MagnetStatus = "downloaded"
	MagnetStatusFailed      MagnetStatus = "failed"
	MagnetStatusInvalid     MagnetStatus = "invalid"
	MagnetStatusUnknown     MagnetStatus = "unknown"
)

type File struct {
	Idx  int    `json:"index"`
	Name string `json:"name"`
	Path string `json:"path,omitempty"`
	Size int64  `json:"size"`
	Link string `json:"link,omitempty"`
}

// Ctx carries per-call credentials. Params embed it.
type Ctx struct {
	APIKey string `json:"-"`
}

func (c *Ctx) GetAPIKey() string {
	return c.APIKey
}

type CheckMagnetParams struct {
	Ctx
	Hashes []string
}

type CheckMagnetDataItem struct {
	Hash   string       `json:"hash"`
	Status MagnetStatus `json:"status"`
	Files  []File       `json:"files"`
}

type CheckMagnetData struct {
	Items []CheckMagnetDataItem `json:"items"`
}

type AddMagnetParams struct {
	Ctx
	Magnet string
}

type AddMagnetData struct {
	ID     string       `json:"id"`
	Hash   string       `json:"hash"`
	Magnet string       `json:"magnet"`
	Status MagnetStatus `json:"status"`
	Files  []File       `json:"files"`
}

type GetMagnetParams struct {
	Ctx
	ID string
}

type GetMagnetData struct {
	ID       string       `json:"id"`
	Hash     string       `json:"hash"`
	Name     string       `json:"name"`
	Status   MagnetStatus `json:"status"`
	Progress float64      `json:"progress"`
	Files    []File       `json:"files"`
}

type GenerateLinkParams struct {
	Ctx
	Link string
}

type GenerateLinkData struct {
	Link string `json:"link"`
}

// Client is one debrid service binding.
type Client interface {
	GetName() stream.ServiceID
	CheckMagnet(ctx context.Context, params *CheckMagnetParams) (*CheckMagnetData, error)
	AddMagnet(ctx context.Context, params *AddMagnetParams) (*AddMagnetData, error)
	GetMagnet(ctx context.Context, params *GetMagnetParams) (*GetMagnetData, error)
	GenerateLink(ctx context.Context, params *GenerateLinkParams) (*GenerateLinkData, error)
}

var registry = map[stream.ServiceID]Client{}

func Register(client Client) {
	registry[client.GetName()] = client
}

func GetClient(id stream.ServiceID) (Client, error) {
	if client, ok := registry[id]; ok {
		return client, nil
	}
	return nil, core.NewError(core.ErrorCodeBadRequest, "unsupported debrid service: "+string(id))
}

// UpstreamError translates a service HTTP status into the stable debrid
// error codes.
func UpstreamError(statusCode int, msg string) error {
	code := core.ErrorCodeProviderHTTPError
	switch statusCode {
	case http.StatusUnauthorized:
		code = core.ErrorCodeUnauthorized
	case http.StatusForbidden:
		code = core.ErrorCodeForbidden
	case http.StatusPaymentRequired:
		code = core.ErrorCodePaymentRequired
	case http.StatusServiceUnavailable:
		code = core.ErrorCodeStoreLimitExceeded
	case http.StatusUnprocessableEntity:
		code = core.ErrorCodeUnprocessableEntity
	case http.StatusUnavailableForLegalReasons:
		code = core.ErrorCodeUnavailableForLegalReasons
	}
	return core.NewError(code, msg)
}
