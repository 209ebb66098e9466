// Package publisher hands the gated notification set to the configured
// posting collaborators and records every attempt in the per-platform
// posting logs. Delivery is best-effort: platforms fail independently and
// reconciliation later trusts only the logs.
package publisher

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fucho777/rakuten-price-monitor/internal/apperr"
	"github.com/fucho777/rakuten-price-monitor/internal/model"
	"github.com/fucho777/rakuten-price-monitor/internal/store"
)

func isConfigError(err error) bool { return apperr.IsValidation(err) }

// Publisher is one posting collaborator for a specific platform.
type Publisher interface {
	Name() string
	// Publish delivers one alert and returns the platform's post ID.
	Publish(ctx context.Context, rec model.ChangeRecord) (string, error)
}

// Result is the outcome of one post attempt.
type Result struct {
	Platform string
	Barcode  string
	PostID   string
	Err      error
}

// Dispatcher fans the notifiable set out to every collaborator, one breaker
// per platform, with a courtesy delay between posts.
type Dispatcher struct {
	publishers []Publisher
	logs       *store.PostingLogs
	breakers   map[string]*Breaker
	delay      time.Duration
	sleep      func(time.Duration)
	now        func() time.Time
}

// NewDispatcher wires collaborators to the posting logs.
func NewDispatcher(logs *store.PostingLogs, delay time.Duration, publishers ...Publisher) *Dispatcher {
	breakers := make(map[string]*Breaker, len(publishers))
	for _, p := range publishers {
		breakers[p.Name()] = NewBreaker(0, 0, 0)
	}
	return &Dispatcher{
		publishers: publishers,
		logs:       logs,
		breakers:   breakers,
		delay:      delay,
		sleep:      time.Sleep,
		now:        time.Now,
	}
}

// Dispatch posts records to every platform in order. No atomicity across
// platforms is assumed: each attempt is logged individually and a failing
// platform never blocks the others. Credential problems (Validation) skip
// the platform for the whole run without counting against its breaker.
func (d *Dispatcher) Dispatch(ctx context.Context, records []model.ChangeRecord) []Result {
	var results []Result

	for _, pub := range d.publishers {
		breaker := d.breakers[pub.Name()]
		skipPlatform := false

		for i, rec := range records {
			if skipPlatform {
				break
			}

			var postID string
			err := breaker.Execute(func() error {
				id, pubErr := pub.Publish(ctx, rec)
				if pubErr != nil {
					return pubErr
				}
				postID = id
				return nil
			})

			res := Result{Platform: pub.Name(), Barcode: rec.Barcode, PostID: postID, Err: err}
			results = append(results, res)

			switch {
			case err == nil:
				log.Info().
					Str("platform", pub.Name()).
					Str("jan_code", rec.Barcode).
					Str("post_id", postID).
					Msg("posted")
			case isConfigError(err):
				// No credentials: nothing else on this platform can succeed
				log.Warn().Str("platform", pub.Name()).Err(err).Msg("platform not configured, skipping")
				skipPlatform = true
			default:
				log.Error().
					Str("platform", pub.Name()).
					Str("jan_code", rec.Barcode).
					Err(err).
					Msg("post failed")
			}

			d.appendLog(pub.Name(), rec, res)

			if i < len(records)-1 && err == nil {
				d.sleep(d.delay)
			}
		}
	}
	return results
}

func (d *Dispatcher) appendLog(platform string, rec model.ChangeRecord, res Result) {
	pr := store.PostRecord{
		Timestamp: d.now(),
		Barcode:   rec.Barcode,
		Name:      rec.Name,
		Price:     rec.CurrentPrice,
		Rate:      rec.ChangeRatePercent,
		Success:   res.Err == nil,
		PostID:    res.PostID,
	}
	if res.Err != nil {
		pr.Error = res.Err.Error()
	}
	if err := d.logs.Append(platform, pr); err != nil {
		log.Error().Str("platform", platform).Err(err).Msg("failed to append posting log")
	}
}
