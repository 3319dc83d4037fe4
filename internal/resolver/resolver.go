// Package resolver turns file-info + service credentials into playable
// urls, driving the debrid service state machine.
package resolver

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/alitto/pond/v2"

	"github.com/tomfle18/aiostreams/core"
	"github.com/tomfle18/aiostreams/internal/lock"
	"github.com/tomfle18/aiostreams/internal/logger"
	"github.com/tomfle18/aiostreams/internal/metadata"
	"github.com/tomfle18/aiostreams/internal/store"
	"github.com/tomfle18/aiostreams/internal/stream"
)

var log = logger.Scoped("resolver")

const (
	// perServiceConcurrency respects debrid provider rate limits.
	perServiceConcurrency = 4
	resolveLockTTL        = 2 * time.Minute
	resolveLockTimeout    = 90 * time.Second
	cacheAndPlayTimeout   = 60 * time.Second
	cacheAndPlayInterval  = 5 * time.Second
)

var servicePools = struct {
	sync.Mutex
	byID map[stream.ServiceID]pond.ResultPool[string]
}{byID: map[stream.ServiceID]pond.ResultPool[string]{}}

func poolFor(id stream.ServiceID) pond.ResultPool[string] {
	servicePools.Lock()
	defer servicePools.Unlock()
	pool, ok := servicePools.byID[id]
	if !ok {
		pool = pond.NewResultPool[string](perServiceConcurrency)
		servicePools.byID[id] = pool
	}
	return pool
}

// Resolve produces the final playable url for one playback click.
// Concurrent resolves for the same (service, hash, index) collapse into
// a single upstream interaction.
func Resolve(ctx context.Context, auth *StoreAuth, fi *FileInfo, meta *metadata.Metadata) (string, error) {
	client, err := store.GetClient(auth.ID)
	if err != nil {
		return "", err
	}

	key := "resolve:" + string(auth.ID) + ":" + fi.Hash + ":" + strconv.Itoa(fi.Index)
	result, err := lock.WithLock(ctx, key, func(ctx context.Context) (string, error) {
		task := poolFor(auth.ID).SubmitErr(func() (string, error) {
			return resolve(ctx, client, auth, fi, meta)
		})
		return task.Wait()
	}, &lock.Options{TTL: resolveLockTTL, Timeout: resolveLockTimeout})
	if err != nil {
		return "", err
	}
	return result.Value, nil
}

func resolve(ctx context.Context, client store.Client, auth *StoreAuth, fi *FileInfo, meta *metadata.Metadata) (string, error) {
	storeCtx := store.Ctx{APIKey: auth.Credential}

	cached := false
	check, err := client.CheckMagnet(ctx, &store.CheckMagnetParams{Ctx: storeCtx, Hashes: []string{fi.Hash}})
	if err != nil {
		log.Warn("instant availability check failed", "error", err, "service", auth.ID, "hash", fi.Hash)
	} else {
		for _, item := range check.Items {
			if item.Hash == fi.Hash && item.Status == store.MagnetStatusCached {
				cached = true
			}
		}
	}

	magnet, err := fi.Magnet()
	if err != nil {
		return "", err
	}
	added, err := client.AddMagnet(ctx, &store.AddMagnetParams{Ctx: storeCtx, Magnet: magnet})
	if err != nil {
		return "", err
	}

	files := added.Files
	switch added.Status {
	case store.MagnetStatusDownloaded, store.MagnetStatusCached:
	case store.MagnetStatusQueued, store.MagnetStatusDownloading:
		if cached {
			// The availability probe lied; treat as downloading.
			cached = false
		}
		if !fi.CacheAndPlay {
			return "", core.NewError(core.ErrorCodePlaybackDownloading, "content is being downloaded by the service")
		}
		files, err = waitForDownload(ctx, client, storeCtx, added.ID)
		if err != nil {
			return "", err
		}
	case store.MagnetStatusInvalid:
		return "", core.NewError(core.ErrorCodeStoreMagnetInvalid, "service rejected the magnet")
	default:
		return "", core.NewError(core.ErrorCodeProviderBadResponse, "service reported unexpected job status")
	}

	file, err := PickFile(files, fi, meta)
	if err != nil {
		return "", err
	}
	if file.Link == "" {
		return "", core.NewError(core.ErrorCodeNoMatchingFile, "matched file has no downloadable link")
	}

	generated, err := client.GenerateLink(ctx, &store.GenerateLinkParams{Ctx: storeCtx, Link: file.Link})
	if err != nil {
		return "", err
	}
	log.Info("resolved playback link", "service", auth.ID, "hash", fi.Hash, "file", file.Name, "cached", cached)
	return generated.Link, nil
}

// waitForDownload polls the job until the service finishes caching.
func waitForDownload(ctx context.Context, client store.Client, storeCtx store.Ctx, id string) ([]store.File, error) {
	deadline := time.Now().Add(cacheAndPlayTimeout)
	ticker := time.NewTicker(cacheAndPlayInterval)
	defer ticker.Stop()
	for {
		data, err := client.GetMagnet(ctx, &store.GetMagnetParams{Ctx: storeCtx, ID: id})
		if err != nil {
			return nil, err
		}
		switch data.Status {
		case store.MagnetStatusDownloaded, store.MagnetStatusCached:
			return data.Files, nil
		case store.MagnetStatusFailed, store.MagnetStatusInvalid:
			return nil, core.NewError(core.ErrorCodeStoreMagnetInvalid, "service failed to download the content")
		}
		if time.Now().After(deadline) {
			return nil, core.NewError(core.ErrorCodePlaybackDownloading, "content is still being downloaded by the service")
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
