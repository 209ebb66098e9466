// Command server runs the monitor as a long-lived service: a background
// scheduler executes periodic passes while an HTTP API manages the
// watchlist and allows triggering passes on demand.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fucho777/rakuten-price-monitor/internal/config"
	"github.com/fucho777/rakuten-price-monitor/internal/marketplace"
	"github.com/fucho777/rakuten-price-monitor/internal/monitor"
	"github.com/fucho777/rakuten-price-monitor/internal/publisher"
	"github.com/fucho777/rakuten-price-monitor/internal/router"
	"github.com/fucho777/rakuten-price-monitor/internal/scheduler"
	"github.com/fucho777/rakuten-price-monitor/internal/store"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "detect changes but skip posting and notification state updates")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Composition root: stores are shared between the scheduler-driven
	// pipeline and the HTTP handlers.
	catalog := store.NewCatalog(cfg.DataDir)
	history := store.NewHistory(cfg.DataDir)
	outbox := store.NewOutbox(cfg.DataDir)
	logs := store.NewPostingLogs(cfg.DataDir)

	if err := catalog.Load(); err != nil {
		log.Error().Err(err).Msg("initial catalog load failed, starting empty")
	}
	if err := history.Load(); err != nil {
		log.Error().Err(err).Msg("initial history load failed, starting empty")
	}

	market := marketplace.NewClient(marketplace.Options{
		AppID:       cfg.RakutenAppID,
		AffiliateID: cfg.RakutenAffiliateID,
		CacheTTL:    time.Duration(cfg.APICacheLifetimeSec) * time.Second,
	})

	dispatcher := publisher.NewDispatcher(
		logs,
		time.Duration(cfg.RequestDelayMs)*time.Millisecond,
		publisher.NewTwitter(publisher.TwitterCredentials{
			APIKey:            cfg.TwitterAPIKey,
			APISecret:         cfg.TwitterAPISecret,
			AccessToken:       cfg.TwitterAccessToken,
			AccessTokenSecret: cfg.TwitterAccessTokenSecret,
		}),
		publisher.NewThreads(cfg.ThreadsAccessToken, cfg.ThreadsUserID),
		publisher.NewEmail(publisher.EmailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			To:       cfg.AlertEmailTo,
		}),
	)

	gateCfg := monitor.GateConfig{
		ThresholdPercent:     cfg.PriceChangeThreshold,
		MinRatePercent:       cfg.MinPriceChangeRatePercent,
		MinAmount:            cfg.MinPriceChangeAmount,
		MinIntervalHours:     float64(cfg.MinNotificationIntervalHr),
		DuplicateWindowHours: 24,
		DuplicateTolerance:   10,
	}

	pipeline := monitor.NewPipeline(catalog, history, outbox, logs, market, dispatcher, gateCfg, monitor.PipelineOptions{
		DryRun:       *dryRun,
		MaxPosts:     cfg.MaxPostsPerRun,
		RequestDelay: time.Duration(cfg.RequestDelayMs) * time.Millisecond,
		ClearOutbox:  cfg.ClearOutbox,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wg := &sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		scheduler.Run(ctx, pipeline, scheduler.Config{
			Interval: time.Duration(cfg.PollIntervalMinutes) * time.Minute,
		})
	}()

	r := router.New(catalog, history, pipeline)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Msgf("price monitor listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down…")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}

	// Wait for a possibly in-flight pass to finish
	wg.Wait()
	log.Info().Msg("server exited")
}
