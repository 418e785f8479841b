// Package app wires the client components from a Config.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"linguachat/client/internal/auth"
	"linguachat/client/internal/backend"
	"linguachat/client/internal/config"
	"linguachat/client/internal/directory"
	"linguachat/client/internal/livechannel"
	"linguachat/client/internal/localization"
	"linguachat/client/internal/localization/locales"
	"linguachat/client/internal/models"
	"linguachat/client/internal/session"
	"linguachat/client/internal/storage"
	"linguachat/client/internal/store"
)

// App is a fully wired client.
type App struct {
	Config    config.Config
	Backend   *backend.Client
	Directory *directory.Directory
	Session   *session.Session
	Labels    *localization.Localizer
	Storage   *storage.Service

	redis *redis.Client
	log   *slog.Logger
}

// New builds the client. Redis is only used when REDIS_ADDR is set and
// reachable; otherwise the directory works without a cache.
func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	viewer, err := auth.ViewerFromToken(cfg.Token, cfg.UserID, cfg.Username, time.Now())
	if err != nil {
		return nil, fmt.Errorf("credentials: %w", err)
	}

	labels, err := localization.NewLocalizer(localesFS(cfg.LocalesDir))
	if err != nil {
		return nil, err
	}

	client := backend.NewClient(cfg.ChatServiceURL, cfg.UsersServiceURL, cfg.Token, log)
	client.HTTP.Timeout = cfg.HTTPTimeout

	a := &App{Config: cfg, Backend: client, Labels: labels, log: log}

	var cache directory.Cache
	if cfg.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		s := storage.NewStorageService(a.redis, cfg.DirectoryCacheTTL)
		if err := s.Ping(ctx); err != nil {
			log.Warn("Redis unavailable, directory cache disabled", "addr", cfg.RedisAddr, "error", err)
			_ = a.redis.Close()
			a.redis = nil
		} else {
			a.Storage = s
			cache = s
		}
	}
	a.Directory = directory.New(client, cache, log)

	channels := session.WebSocketChannels(livechannel.Config{
		BaseURL:          cfg.ChatWSURL,
		HandshakeTimeout: cfg.HandshakeTimeout,
	}, cfg.Token, log)

	a.Session = session.New(client, client, a.Directory, channels, viewer, log,
		store.WithRetention(cfg.TranslationRetention),
		store.WithMaxPending(cfg.MaxPendingTranslations),
	)

	log.Info("Client ready", "user_id", viewer.UserID, "username", viewer.Username, "chat", cfg.ChatServiceURL)
	return a, nil
}

func localesFS(dir string) fs.FS {
	if dir != "" {
		return os.DirFS(dir)
	}
	return locales.FS
}

// Start runs the session loop and the directory refresher until ctx is
// done, then opens the configured room if any. Errors of the session loop
// other than cancellation are sent on the returned channel.
func (a *App) Start(ctx context.Context) <-chan error {
	errs := make(chan error, 1)
	go func() {
		if err := a.Session.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errs <- fmt.Errorf("session: %w", err)
		}
	}()
	go a.refreshDirectory(ctx)

	if a.Config.RoomID != "" {
		go func() {
			if err := a.Session.OpenRoom(ctx, a.Config.RoomID, a.language()); err != nil {
				a.log.Warn("Opening configured room failed", "room", a.Config.RoomID, "error", err)
			}
		}()
	}
	return errs
}

func (a *App) language() models.Language {
	return models.Language(a.Config.Language)
}

// refreshDirectory reloads the identity directory now and then every
// cache TTL.
func (a *App) refreshDirectory(ctx context.Context) {
	ticker := time.NewTicker(a.Config.DirectoryCacheTTL)
	defer ticker.Stop()

	for {
		if err := a.Directory.Refresh(ctx); err != nil && ctx.Err() == nil {
			a.log.Debug("Directory refresh failed", "transient", backend.IsTransient(err), "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Close releases the Redis connection.
func (a *App) Close() error {
	if a.redis == nil {
		return nil
	}
	a.log.Info("Closing Redis...")
	return a.redis.Close()
}
