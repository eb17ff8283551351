package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kodescruxx/kx-cli/internal/api"
	"github.com/kodescruxx/kx-cli/internal/auth"
	"github.com/kodescruxx/kx-cli/internal/config"
	"github.com/kodescruxx/kx-cli/internal/logging"
	"github.com/kodescruxx/kx-cli/internal/quota"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const redisDialTimeout = 2 * time.Second

// app is everything a command needs, built once per invocation and passed
// around explicitly.
type app struct {
	cfg     *config.Config
	logger  zerolog.Logger
	store   *auth.Store
	tokens  *auth.Resolver
	session *auth.Session
	client  *api.Client
	tracker *quota.Tracker
	// quotaFile holds the value the last kx process saw.
	quotaFile *quota.FileBroadcaster
	rdb       *redis.Client
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	if apiURL != "" {
		cfg.APIURL = strings.TrimRight(apiURL, "/")
	}

	logger := logging.New(os.Stderr, verbose)
	store := auth.NewStore()
	envSource := auth.EnvSource(cfg.TokenEnv)

	a := &app{
		cfg:    cfg,
		logger: logger,
		store:  store,
		tokens: &auth.Resolver{
			Store:    store,
			Fallback: envSource,
			Logger:   logging.Component(logger, "auth"),
		},
	}
	a.client = api.New(cfg.APIURL, a.tokens, api.WithLogger(logging.Component(logger, "api")))
	a.tracker = quota.NewTracker(a.client,
		quota.WithLogger(logging.Component(logger, "quota")),
		quota.WithBroadcaster(a.broadcaster(ctx)),
	)

	// A token in the environment keeps requests authenticated after logout.
	envTok, envErr := envSource.Token(ctx)
	hasEnvToken := envErr == nil && envTok != ""

	a.session = auth.NewSession(store)
	a.session.OnChange(func(authed bool) {
		a.tracker.SetAuthenticated(authed || hasEnvToken)
	})
	if a.session.Authenticated() || hasEnvToken {
		a.restoreQuota()
	}

	logger.Debug().
		Str("api_url", cfg.APIURL).
		Bool("logged_in", a.session.Authenticated()).
		Bool("env_token", hasEnvToken).
		Msg("app ready")
	return a, nil
}

// broadcaster always shares quota through the config directory, and also
// through Redis when configured and reachable.
func (a *app) broadcaster(ctx context.Context) quota.Broadcaster {
	file := quota.NewFileBroadcaster(logging.Component(a.logger, "quota-file"))
	a.quotaFile = file
	if a.cfg.RedisAddr == "" {
		return file
	}

	channel := a.quotaChannel(ctx)
	if channel == "" {
		return file
	}

	dialCtx, cancel := context.WithTimeout(ctx, redisDialTimeout)
	defer cancel()
	rdb, err := quota.DialRedis(dialCtx, a.cfg.RedisAddr)
	if err != nil {
		a.logger.Warn().Err(err).Str("addr", a.cfg.RedisAddr).Msg("Redis quota sync unavailable")
		return file
	}
	a.rdb = rdb

	return quota.Multi(file, quota.NewRedisBroadcaster(rdb, channel, logging.Component(a.logger, "quota-redis")))
}

// quotaChannel is the Redis channel for the current token, or "" without
// one.
func (a *app) quotaChannel(ctx context.Context) string {
	tok, _ := a.tokens.Token(ctx)
	if tok == "" {
		return ""
	}
	return quota.Channel(a.cfg.RedisPrefix, tok)
}

// restoreQuota seeds the tracker with the last published value so a
// one-shot command knows about an exhausted quota before it sends.
func (a *app) restoreQuota() {
	info, err := a.quotaFile.Load()
	if err != nil {
		a.logger.Debug().Err(err).Msg("ignoring saved quota")
		return
	}
	if info != nil {
		a.tracker.Adopt(*info)
	}
}

func (a *app) Close() {
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Debug().Err(err).Msg("closing Redis client")
		}
	}
}
