package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"concurso-duel/internal/app"
	"concurso-duel/internal/auth"
	"concurso-duel/internal/config"
	"concurso-duel/internal/infra/memory"
	pginfra "concurso-duel/internal/infra/postgres"
	redisinfra "concurso-duel/internal/infra/redis"
	"concurso-duel/internal/logging"
	duelhttp "concurso-duel/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
)

// env is everything a command needs, built once from the config.
type env struct {
	cfg       config.Config
	logger    *slog.Logger
	principal auth.Principal
	client    *duelhttp.Client

	redis   *redis.Client
	pool    *pgxpool.Pool
	closers []func()
}

func loadEnv(ctx context.Context, configPath string, stderr io.Writer) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg}

	logOut, color := stderr, true
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		e.closers = append(e.closers, func() { _ = f.Close() })
		logOut, color = f, false
	}
	if cfg.Log.Color != nil {
		color = *cfg.Log.Color
	}
	e.logger = logging.New(logOut, cfg.Log.Level, color)

	e.principal, err = auth.FromToken(cfg.API.Token, cfg.User.ID, cfg.User.Name)
	if err != nil {
		e.close()
		return nil, err
	}

	e.client, err = duelhttp.NewClient(cfg.API.URL, cfg.API.Token, config.Duration(cfg.API.Timeout, 10*time.Second))
	if err != nil {
		e.close()
		return nil, err
	}

	if cfg.Redis.Addr != "" {
		e.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		e.closers = append(e.closers, func() { _ = e.redis.Close() })
	}
	if cfg.Postgres.URL != "" {
		e.pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			e.close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		e.closers = append(e.closers, e.pool.Close)
	}
	return e, nil
}

func (e *env) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	e.closers = nil
}

func (e *env) redisTTL() time.Duration {
	return config.Duration(e.cfg.Redis.TTL, 10*time.Minute)
}

// pushChannel picks the configured push transport; nil means poll only.
func (e *env) pushChannel() app.PushChannel {
	switch e.cfg.Push.Transport {
	case config.PushWebsocket:
		return duelhttp.NewWSPushChannel(e.cfg.Push.URL, e.cfg.API.Token, e.logger)
	case config.PushRedis:
		return redisinfra.NewPushChannel(e.redis, e.logger)
	default:
		return nil
	}
}

// snapshotStore returns nil without redis and the syncer runs uncached.
func (e *env) snapshotStore() app.SnapshotStore {
	if e.redis == nil {
		return nil
	}
	return redisinfra.NewSnapshotStore(e.redis, e.redisTTL())
}

// rewardLedger prefers the durable ledger so rewards are not replayed across devices.
func (e *env) rewardLedger() app.RewardLedger {
	switch {
	case e.pool != nil:
		return pginfra.NewRewardLedger(e.pool)
	case e.redis != nil:
		return redisinfra.NewRewardLedger(e.redis, 30*24*time.Hour)
	default:
		return memory.NewRewardLedger()
	}
}
