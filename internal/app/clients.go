package app

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/yungbote/curation-backend/internal/platform/gcp"
	"github.com/yungbote/curation-backend/internal/platform/gemini"
	"github.com/yungbote/curation-backend/internal/platform/logger"
	"github.com/yungbote/curation-backend/internal/platform/openai"
	"github.com/yungbote/curation-backend/internal/platform/webfetch"
	"github.com/yungbote/curation-backend/internal/realtime/bus"
	"github.com/yungbote/curation-backend/internal/temporalx"
)

type Clients struct {
	Redis    *goredis.Client
	Bus      bus.Bus
	Gemini   gemini.Client
	OpenAI   openai.Client
	Archive  gcp.ObjectWriter
	Temporal temporalsdkclient.Client

	Resolver *webfetch.Resolver
	Verifier *webfetch.Verifier
	Pages    *webfetch.PageReader
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var c Clients

	if cfg.RedisAddr != "" {
		c.Redis = goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := c.Redis.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			c.Close()
			return Clients{}, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		b, err := bus.NewRedisBus(log, c.Redis)
		if err != nil {
			c.Close()
			return Clients{}, fmt.Errorf("init redis bus: %w", err)
		}
		c.Bus = b
	} else {
		log.Warn("REDIS_ADDR not set; using the in-process run lock and event bus")
		c.Bus = bus.NewMemoryBus(log)
	}

	g, err := gemini.NewClient(ctx, log, gemini.ConfigFromEnv())
	if err != nil {
		c.Close()
		return Clients{}, fmt.Errorf("init gemini client: %w", err)
	}
	c.Gemini = g

	if cfg.ValidationProvider == "openai" {
		oc, err := openai.NewClient(log)
		if err != nil {
			c.Close()
			return Clients{}, fmt.Errorf("init openai client: %w", err)
		}
		c.OpenAI = oc
	}

	if cfg.ArchiveBucket != "" {
		w, err := gcp.NewBucketWriter(ctx, log, cfg.ArchiveBucket)
		if err != nil {
			c.Close()
			return Clients{}, fmt.Errorf("init transcript archive: %w", err)
		}
		c.Archive = w
	} else {
		c.Archive = gcp.NewNopWriter()
	}

	tc, err := temporalx.NewClient(log)
	if err != nil {
		c.Close()
		return Clients{}, err
	}
	c.Temporal = tc

	fetchOpts := webfetch.Options{}
	cc := cfg.Curation
	c.Resolver = webfetch.NewResolver(cc.ResolveTimeout, webfetch.DefaultIndirectionPatterns, fetchOpts)
	c.Verifier = webfetch.NewVerifier(cc.VerifyTimeout, cc.MinWords, fetchOpts)
	c.Pages = webfetch.NewPageReader(cc.Validation.FetchTimeout, fetchOpts)
	return c, nil
}

func (c *Clients) Close() {
	if c.Temporal != nil {
		c.Temporal.Close()
	}
	if c.Bus != nil {
		_ = c.Bus.Close()
	}
	if c.Archive != nil {
		_ = c.Archive.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
