// Package telemetry sends anonymous usage events when an operator opts
// in with POSTHOG_API_KEY. No user identifiers or media ids leave the
// instance.
package telemetry

import (
	"sync"

	"github.com/posthog/posthog-go"

	"github.com/tomfle18/aiostreams/internal/config"
	"github.com/tomfle18/aiostreams/internal/logger"
)

var log = logger.Scoped("telemetry")

var client = sync.OnceValue(func() posthog.Client {
	if config.PosthogAPIKey == "" {
		return nil
	}
	c, err := posthog.NewWithConfig(config.PosthogAPIKey, posthog.Config{
		Endpoint: "https://eu.i.posthog.com",
	})
	if err != nil {
		log.Warn("failed to initialize", "error", err)
		return nil
	}
	return c
})

func Capture(event string, properties map[string]any) {
	c := client()
	if c == nil {
		return
	}
	props := posthog.NewProperties()
	for key, value := range properties {
		props.Set(key, value)
	}
	if err := c.Enqueue(posthog.Capture{
		DistinctId: "aiostreams-instance",
		Event:      event,
		Properties: props,
	}); err != nil {
		log.Warn("failed to enqueue event", "error", err)
	}
}

func Close() {
	if c := client(); c != nil {
		c.Close()
	}
}
