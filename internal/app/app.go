// Package app wires the service together: config, logging, storage, the
// schedule source, both delivery channels, the HTTP surface and the cron
// jobs, under one supervisor.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/robfig/cron/v3"

	"likhtar/internal/api"
	"likhtar/internal/config"
	"likhtar/internal/mirror"
	"likhtar/internal/notify"
	"likhtar/internal/push"
	"likhtar/internal/queue"
	"likhtar/internal/registry"
	rtsup "likhtar/internal/runtime/supervisor"
	"likhtar/internal/schedule"
	"likhtar/internal/storage"
	"likhtar/internal/transport/telegram"
	logx "likhtar/pkg/logx"
)

const (
	defaultHTTPAddr     = ":8080"
	defaultCycleSpec    = "*/30 * * * *"
	defaultCacheSpec    = "*/5 * * * *"
	defaultFetchTimeout = 30 * time.Second
)

// Run starts everything and blocks until ctx is cancelled or a fatal
// component error occurs. Optional collaborators (store, mirror, bot, push)
// that fail to come up degrade the service instead of stopping it.
func Run(ctx context.Context, configPath string) error {
	mgr := config.NewManager(configPath)
	cfg, err := mgr.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	defer logSvc.Close()

	mgr.SetLogger(log.With(logx.String("comp", "config")))
	mgr.SetValidator(validateConfig)

	fetchTimeout, err := config.ParseDurationOrDefault("source.fetch_timeout", cfg.Source.FetchTimeout, defaultFetchTimeout)
	if err != nil {
		return err
	}
	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return err
	}

	// Durable store and mirror are both optional replicas.
	store, err := storage.Open(ctx, cfg.Storage, log.With(logx.String("comp", "storage")))
	if err != nil {
		log.Warn("storage unavailable, continuing in-memory only", logx.Err(err))
		store = nil
	}
	defer closeStore(store, log)

	mir := mirror.Open(ctx, cfg.Redis.URL, log.With(logx.String("comp", "mirror")))
	defer mir.Close()

	reg := registry.New(queue.Code(cfg.Notify.DefaultQueue), log.With(logx.String("comp", "registry")))

	fetcher := schedule.NewFetcher(cfg.Source.URL, fetchTimeout, log.With(logx.String("comp", "schedule")))
	cache := schedule.NewCache()
	source := schedule.NewSource(fetcher, cache, cfg.Source.CacheEnabled, log.With(logx.String("comp", "schedule")))

	pushSender := push.NewSender(cfg.Push, log.With(logx.String("comp", "push")))

	var bot *telegram.Bot
	if cfg.Telegram.Token != "" {
		bot, err = telegram.New(telegram.Config{
			Token:       cfg.Telegram.Token,
			PollTimeout: pollTimeout,
			SiteURL:     cfg.Telegram.SiteURL,
		}, nil, log.With(logx.String("comp", "telegram")))
		if err != nil {
			log.Warn("telegram unavailable, chat channel disabled", logx.Err(err))
			bot = nil
		}
	} else {
		log.Info("no bot token, chat channel disabled")
	}

	svc := notify.NewService(notify.Config{
		Registry: reg,
		Source:   source,
		Push:     pushSender,
		Chat:     bot,
		Store:    store,
		Mirror:   mir,
		ForceDB:  cfg.Storage != nil && cfg.Storage.ForceDB,
		Log:      log.With(logx.String("comp", "notify")),
	})
	if bot != nil {
		bot.Bind(svc)
	}

	svc.Load(ctx)

	sup := rtsup.New(ctx,
		rtsup.WithLogger(log.With(logx.String("comp", "supervisor"))),
		rtsup.WithCancelOnError(true),
	)

	// Scheduled jobs: the notify cycle and the page cache refresh.
	cr := cron.New()
	if cfg.Notify.Offline {
		log.Warn("offline mode, notify cycle disabled")
	} else {
		spec := specOrDefault(cfg.Notify.CycleSpec, defaultCycleSpec)
		if _, err := cr.AddFunc(spec, func() { svc.RunCycle(sup.Context()) }); err != nil {
			return fmt.Errorf("notify.cycle_spec: %w", err)
		}
	}
	if cfg.Source.CacheEnabled {
		spec := specOrDefault(cfg.Source.CacheSpec, defaultCacheSpec)
		if _, err := cr.AddFunc(spec, func() {
			cctx, cancel := context.WithTimeout(sup.Context(), fetchTimeout)
			defer cancel()
			if err := cache.Refresh(cctx, fetcher); err != nil {
				log.Warn("schedule cache refresh failed", logx.Err(err))
			}
		}); err != nil {
			return fmt.Errorf("source.cache_spec: %w", err)
		}
	}
	cr.Start()

	handler := api.NewHandler(svc, reg, cache,
		cfg.Push.VAPIDPublicKey, cfg.Notify.BroadcastPassword,
		log.With(logx.String("comp", "api")))
	router := api.NewRouter(handler, cfg.HTTP.BasePath)

	addr := cfg.HTTP.Addr
	if addr == "" {
		addr = defaultHTTPAddr
	}
	srv := api.NewServer(addr, router, log.With(logx.String("comp", "http")))

	sup.Go("http.server", srv.Run)
	if bot != nil {
		sup.Go("telegram.poll", bot.Run)
	}
	sup.Go("config.watch", mgr.Watch)

	// Hot-reload fan-out: currently only logging reacts to file changes;
	// everything else keeps its boot-time wiring.
	updates := mgr.Subscribe(1)
	defer mgr.Unsubscribe(updates)
	sup.Go0("config.apply", func(c context.Context) {
		for {
			select {
			case <-c.Done():
				return
			case next, ok := <-updates:
				if !ok || next == nil {
					return
				}
				logSvc.Apply(logx.Config{
					Level:   next.Logging.Level,
					Console: next.Logging.Console,
					File: logx.FileConfig{
						Enabled: next.Logging.File.Enabled,
						Path:    next.Logging.File.Path,
					},
				})
				log.Info("logging config applied")
			}
		}
	})

	pushN, chatN := reg.Counts()
	log.Info("service started",
		logx.String("addr", addr),
		logx.Bool("push", pushSender.Enabled()),
		logx.Bool("chat", bot != nil),
		logx.Bool("store", store != nil),
		logx.Bool("mirror", mir.Enabled()),
		logx.Int("push_subscribers", pushN),
		logx.Int("chat_subscribers", chatN))
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)

	<-sup.Context().Done()

	log.Info("shutting down")
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	stopCtx := cr.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(10 * time.Second):
		log.Warn("cron jobs still running at shutdown")
	}

	sup.Cancel()
	waitCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sup.Wait(waitCtx); err != nil {
		log.Warn("shutdown wait", logx.Err(err))
	}

	if err := sup.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func specOrDefault(spec, def string) string {
	if spec == "" {
		return def
	}
	return spec
}

func validateConfig(_ context.Context, cfg *config.Config) error {
	if _, err := config.ParseDurationField("source.fetch_timeout", cfg.Source.FetchTimeout); err != nil {
		return err
	}
	if _, err := config.ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
		return err
	}
	if cfg.Notify.DefaultQueue != 0 && !queue.Code(cfg.Notify.DefaultQueue).Valid() {
		return fmt.Errorf("notify.default_queue: %d is not a valid queue", cfg.Notify.DefaultQueue)
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if cfg.Notify.CycleSpec != "" {
		if _, err := parser.Parse(cfg.Notify.CycleSpec); err != nil {
			return fmt.Errorf("notify.cycle_spec: %w", err)
		}
	}
	if cfg.Source.CacheSpec != "" {
		if _, err := parser.Parse(cfg.Source.CacheSpec); err != nil {
			return fmt.Errorf("source.cache_spec: %w", err)
		}
	}
	return nil
}

func closeStore(store storage.Store, log logx.Logger) {
	if store == nil {
		return
	}
	if err := store.Close(); err != nil {
		log.Warn("store close", logx.Err(err))
	}
}
