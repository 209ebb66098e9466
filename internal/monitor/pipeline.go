package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fucho777/rakuten-price-monitor/internal/marketplace"
	"github.com/fucho777/rakuten-price-monitor/internal/model"
	"github.com/fucho777/rakuten-price-monitor/internal/publisher"
	"github.com/fucho777/rakuten-price-monitor/internal/store"
)

// Poster is the outbound side of the pipeline.
type Poster interface {
	Dispatch(ctx context.Context, records []model.ChangeRecord) []publisher.Result
}

// PipelineOptions tunes one pass.
type PipelineOptions struct {
	DryRun          bool
	MaxPosts        int
	RequestDelay    time.Duration
	ReconcileWindow time.Duration
	ClearOutbox     bool
}

// Summary reports what one pass did.
type Summary struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	Monitored  int       `json:"monitored"`
	Fetched    int       `json:"fetched"`
	Changed    int       `json:"changed"`
	Notifiable int       `json:"notifiable"`
	Posted     int       `json:"posted"`
	Confirmed  int       `json:"confirmed"`
	DryRun     bool      `json:"dry_run"`
}

// ErrRunInProgress is returned when a pass is requested while another is
// still executing. Concurrent passes over the same stores are unsafe.
var ErrRunInProgress = fmt.Errorf("a monitoring pass is already running")

// Pipeline executes one full pass: poll, detect, gate, publish, reconcile.
type Pipeline struct {
	catalog  *store.Catalog
	history  *store.History
	outbox   *store.Outbox
	logs     *store.PostingLogs
	market   marketplace.Searcher
	poster   Poster
	detector *Detector
	gate     *Gate
	opts     PipelineOptions

	runMu sync.Mutex
	sleep func(time.Duration)
	now   func() time.Time
}

// NewPipeline wires the collaborators together.
func NewPipeline(
	catalog *store.Catalog,
	history *store.History,
	outbox *store.Outbox,
	logs *store.PostingLogs,
	market marketplace.Searcher,
	poster Poster,
	gateCfg GateConfig,
	opts PipelineOptions,
) *Pipeline {
	if opts.MaxPosts <= 0 {
		opts.MaxPosts = 5
	}
	if opts.ReconcileWindow <= 0 {
		opts.ReconcileWindow = 10 * time.Minute
	}
	return &Pipeline{
		catalog:  catalog,
		history:  history,
		outbox:   outbox,
		logs:     logs,
		market:   market,
		poster:   poster,
		detector: NewDetector(),
		gate:     NewGate(history, gateCfg),
		opts:     opts,
		sleep:    time.Sleep,
		now:      time.Now,
	}
}

// Running reports whether a pass is currently executing.
func (p *Pipeline) Running() bool {
	if p.runMu.TryLock() {
		p.runMu.Unlock()
		return false
	}
	return true
}

// Run executes one pass. Only one pass may run at a time; a second caller
// gets ErrRunInProgress instead of blocking. Any panic inside the pass is
// caught and logged so a run-level failure exits cleanly.
func (p *Pipeline) Run(ctx context.Context) (s Summary, err error) {
	if !p.runMu.TryLock() {
		return Summary{}, ErrRunInProgress
	}
	defer p.runMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("run aborted by panic")
			err = fmt.Errorf("run aborted: %v", r)
		}
	}()

	s = Summary{
		RunID:     uuid.NewString()[:8],
		StartedAt: p.now(),
		DryRun:    p.opts.DryRun,
	}
	logger := log.With().Str("run_id", s.RunID).Logger()
	logger.Info().Bool("dry_run", s.DryRun).Msg("monitoring pass started")

	// Store read failures degrade to empty state rather than aborting
	if err := p.catalog.Load(); err != nil {
		logger.Error().Err(err).Msg("catalog load failed, continuing with empty catalog")
	}
	if err := p.history.Load(); err != nil {
		logger.Error().Err(err).Msg("history load failed, continuing with empty history")
	}

	products := p.catalog.Monitored()
	s.Monitored = len(products)
	if s.Monitored == 0 {
		logger.Warn().Msg("no monitored products")
		return s, nil
	}

	changes := p.poll(ctx, logger, products, &s)
	s.Changed = len(changes)

	if err := p.catalog.Save(); err != nil {
		logger.Error().Err(err).Msg("catalog save failed")
	}

	notifiable := p.gate.Filter(changes)
	if len(notifiable) > p.opts.MaxPosts {
		logger.Info().
			Int("notifiable", len(notifiable)).
			Int("cap", p.opts.MaxPosts).
			Msg("capping notifications for this run")
		notifiable = notifiable[:p.opts.MaxPosts]
	}
	s.Notifiable = len(notifiable)

	if len(notifiable) == 0 {
		logger.Info().Int("changed", s.Changed).Msg("no notifiable changes")
		return s, nil
	}

	if err := p.outbox.Write(notifiable); err != nil {
		logger.Error().Err(err).Msg("outbox write failed")
	}

	if p.opts.DryRun {
		logger.Info().Int("notifiable", s.Notifiable).Msg("dry run, skipping publication")
		return s, nil
	}

	// History is recorded for the whole notifiable set before dispatch.
	// Catalog state waits for per-platform confirmation below.
	notifiedAt := p.now()
	for _, rec := range notifiable {
		p.history.Record(rec.Barcode, rec.Name, rec.CurrentPrice, notifiedAt)
	}
	if err := p.history.Save(); err != nil {
		logger.Error().Err(err).Msg("history save failed")
	}

	results := p.poster.Dispatch(ctx, notifiable)
	for _, r := range results {
		if r.Err == nil {
			s.Posted++
		}
	}

	s.Confirmed = p.reconcile(logger, notifiable)

	if err := p.catalog.Save(); err != nil {
		logger.Error().Err(err).Msg("catalog save after reconciliation failed")
	}

	if p.opts.ClearOutbox {
		if err := p.outbox.Clear(); err != nil {
			logger.Error().Err(err).Msg("outbox clear failed")
		}
	}

	logger.Info().
		Int("changed", s.Changed).
		Int("notifiable", s.Notifiable).
		Int("posted", s.Posted).
		Int("confirmed", s.Confirmed).
		Msg("monitoring pass finished")
	return s, nil
}

// poll fetches every monitored product in catalog order, with the courtesy
// delay between calls. One product's failure never aborts the pass.
func (p *Pipeline) poll(ctx context.Context, logger zerolog.Logger, products []model.Product, s *Summary) []model.ChangeRecord {
	var changes []model.ChangeRecord

	for i, prod := range products {
		select {
		case <-ctx.Done():
			logger.Warn().Err(ctx.Err()).Msg("pass cancelled mid-poll")
			return changes
		default:
		}

		obs, err := p.market.Lookup(ctx, prod.Barcode)
		if err != nil {
			logger.Warn().Str("jan_code", prod.Barcode).Err(err).Msg("lookup failed, skipping product")
		} else {
			s.Fetched++
			rec, changed := p.detector.Detect(prod, obs)
			if changed {
				p.catalog.ApplyObservation(prod.Barcode, obs)
			}
			if rec != nil {
				changes = append(changes, *rec)
			}
		}

		if i < len(products)-1 && p.opts.RequestDelay > 0 {
			p.sleep(p.opts.RequestDelay)
		}
	}
	return changes
}

// reconcile marks only barcodes whose delivery a posting log confirms
// within the trailing window. The catalog never claims a notification
// happened before a collaborator confirmed it.
func (p *Pipeline) reconcile(logger zerolog.Logger, notifiable []model.ChangeRecord) int {
	cutoff := p.now().Add(-p.opts.ReconcileWindow)
	confirmed := p.logs.ConfirmedSince(cutoff)

	count := 0
	for _, rec := range notifiable {
		if !confirmed[rec.Barcode] {
			continue
		}
		p.catalog.MarkNotified(rec.Barcode, rec.CurrentPrice, p.now())
		count++
		logger.Info().Str("jan_code", rec.Barcode).Msg("delivery confirmed, catalog updated")
	}
	return count
}
