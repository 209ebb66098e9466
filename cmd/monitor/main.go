// Command monitor executes one monitoring pass and exits. Intended for
// cron-style deployments; use --dry-run to detect changes without posting.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fucho777/rakuten-price-monitor/internal/config"
	"github.com/fucho777/rakuten-price-monitor/internal/marketplace"
	"github.com/fucho777/rakuten-price-monitor/internal/monitor"
	"github.com/fucho777/rakuten-price-monitor/internal/publisher"
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

	pipeline := buildPipeline(cfg, *dryRun)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := pipeline.Run(ctx)
	if err != nil {
		log.Error().Err(err).Msg("monitoring pass failed")
		os.Exit(1)
	}
	log.Info().
		Str("run_id", summary.RunID).
		Int("monitored", summary.Monitored).
		Int("changed", summary.Changed).
		Int("notifiable", summary.Notifiable).
		Int("posted", summary.Posted).
		Int("confirmed", summary.Confirmed).
		Msg("done")
}

// buildPipeline is the composition root shared conceptually with cmd/server:
// stores, marketplace client and posting collaborators are wired here.
func buildPipeline(cfg *config.Config, dryRun bool) *monitor.Pipeline {
	catalog := store.NewCatalog(cfg.DataDir)
	history := store.NewHistory(cfg.DataDir)
	outbox := store.NewOutbox(cfg.DataDir)
	logs := store.NewPostingLogs(cfg.DataDir)

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

	return monitor.NewPipeline(catalog, history, outbox, logs, market, dispatcher, gateCfg, monitor.PipelineOptions{
		DryRun:       dryRun,
		MaxPosts:     cfg.MaxPostsPerRun,
		RequestDelay: time.Duration(cfg.RequestDelayMs) * time.Millisecond,
		ClearOutbox:  cfg.ClearOutbox,
	})
}
