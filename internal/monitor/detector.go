// Package monitor holds the change-detection and notification-gating
// pipeline: given a fresh observation of a watched product, decide whether
// it represents a genuine, previously-unreported, sufficiently-large change,
// and suppress duplicate or too-frequent notifications across runs.
package monitor

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fucho777/rakuten-price-monitor/internal/model"
)

// Detector compares a fresh observation against stored product state.
type Detector struct {
	now func() time.Time
}

// NewDetector returns a detector using wall-clock time.
func NewDetector() *Detector { return &Detector{now: time.Now} }

// Detect reports the outcome for one product:
//   - failed fetch: nothing changes, no record;
//   - first-ever observation (stored price 0 or unknown availability):
//     stored state is seeded, no record — initialization is never a change;
//   - identical price and availability: no record; stored state is only
//     refreshed when the listing name changed;
//   - otherwise: a ChangeRecord with the rate relative to the previous
//     price, and changed=true so the caller updates stored state.
//
// changed tells the caller whether to apply obs to the catalog; Detect
// itself never mutates anything.
func (d *Detector) Detect(p model.Product, obs model.Observation) (rec *model.ChangeRecord, changed bool) {
	if obs.FetchFailed() {
		log.Warn().Str("jan_code", p.Barcode).Msg("fetch failed, keeping stored state")
		return nil, false
	}

	if p.LastPrice == 0 || p.LastAvailability == model.Unknown {
		log.Info().
			Str("jan_code", p.Barcode).
			Str("name", obs.Name).
			Int("price", obs.Price).
			Str("availability", string(obs.Availability)).
			Msg("first observation, seeding state")
		return nil, true
	}

	if obs.Price == p.LastPrice && obs.Availability == p.LastAvailability {
		log.Debug().
			Str("jan_code", p.Barcode).
			Int("price", obs.Price).
			Msg("no change")
		// A renamed listing still refreshes the stored name
		return nil, obs.Name != p.Name
	}

	rate := model.ChangeRate(obs.Price, p.LastPrice)
	rec = &model.ChangeRecord{
		Barcode:              p.Barcode,
		Name:                 obs.Name,
		CurrentPrice:         obs.Price,
		PreviousPrice:        p.LastPrice,
		ChangeRatePercent:    rate,
		CurrentAvailability:  obs.Availability,
		PreviousAvailability: p.LastAvailability,
		ShopName:             obs.ShopName,
		ItemURL:              obs.ItemURL,
		AffiliateURL:         obs.AffiliateURL,
		Timestamp:            model.FormatTime(d.now()),
	}
	log.Info().
		Str("jan_code", p.Barcode).
		Str("name", obs.Name).
		Int("previous_price", p.LastPrice).
		Int("current_price", obs.Price).
		Float64("rate", rate).
		Str("availability", string(obs.Availability)).
		Msg("change detected")
	return rec, true
}
