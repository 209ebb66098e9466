package monitor

import (
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fucho777/rakuten-price-monitor/internal/model"
)

// HistoryReader is the slice of the history store the gate consults.
type HistoryReader interface {
	Get(barcode string) (model.HistoryEntry, bool)
}

// GateConfig tunes the suppression rules.
type GateConfig struct {
	// ThresholdPercent anchors the history-magnitude and price-drop checks
	// to the last *notified* price.
	ThresholdPercent float64
	// MinRatePercent is the observation-level rate floor.
	MinRatePercent float64
	// MinAmount is the observation-level absolute-yen floor.
	MinAmount int
	// MinIntervalHours is the minimum spacing between notifications for
	// one barcode.
	MinIntervalHours float64
	// DuplicateWindowHours and DuplicateTolerance define the duplicate
	// guard: a notification within the window at effectively the same
	// price (difference below the tolerance, in yen) is suppressed.
	DuplicateWindowHours float64
	DuplicateTolerance   int
}

// DefaultGateConfig mirrors the documented configuration defaults.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		ThresholdPercent:     5,
		MinRatePercent:       1,
		MinAmount:            500,
		MinIntervalHours:     72,
		DuplicateWindowHours: 24,
		DuplicateTolerance:   10,
	}
}

// Gate applies the suppression chain to detected changes.
//
// Restock policy: the magnitude gates (observation rate, absolute amount,
// history magnitude) measure price noise and apply only to price-driven
// records. A restock transition (out-of-stock to in-stock) is exempt from
// all three and is gated by stock state, the notification interval, the
// duplicate guard and the direction rule. The exemption is explicit here,
// never buried inside a gate.
type Gate struct {
	history HistoryReader
	cfg     GateConfig
	now     func() time.Time
}

// NewGate builds a gate over history with cfg.
func NewGate(history HistoryReader, cfg GateConfig) *Gate {
	return &Gate{history: history, cfg: cfg, now: time.Now}
}

// Filter evaluates each record independently against the whole chain,
// short-circuiting on the first failing gate with the reason logged, then
// de-duplicates by barcode preserving first occurrence. Filter never
// mutates the history store, so repeated calls on the same input and an
// unchanged history yield the same output.
func (g *Gate) Filter(changes []model.ChangeRecord) []model.ChangeRecord {
	var out []model.ChangeRecord
	seen := make(map[string]bool)

	for _, rec := range changes {
		if !g.pass(rec) {
			continue
		}
		if seen[rec.Barcode] {
			log.Debug().Str("jan_code", rec.Barcode).Msg("gate: duplicate barcode in pass, keeping first")
			continue
		}
		seen[rec.Barcode] = true
		out = append(out, rec)
	}
	return out
}

func (g *Gate) pass(rec model.ChangeRecord) bool {
	restock := rec.Restocked()

	// Gate 1: observation-level rate floor (price-driven records only)
	if !restock && math.Abs(rec.ChangeRatePercent) < g.cfg.MinRatePercent {
		g.drop(rec, "rate below minimum", "rate", rec.ChangeRatePercent)
		return false
	}

	// Gate 2: absolute amount floor (price-driven records only)
	amount := abs(rec.CurrentPrice - rec.PreviousPrice)
	if !restock && amount < g.cfg.MinAmount {
		g.drop(rec, "amount below minimum", "amount", amount)
		return false
	}

	// Gate 3: never notify about an item that is not in stock now
	if rec.CurrentAvailability != model.InStock {
		g.drop(rec, "not in stock", "availability", string(rec.CurrentAvailability))
		return false
	}

	entry, hasHistory := g.history.Get(rec.Barcode)
	if hasHistory {
		lastNotified, err := model.ParseTime(entry.LastNotifiedTime)
		if err != nil {
			log.Warn().Str("jan_code", rec.Barcode).Err(err).Msg("gate: unparsable history timestamp, treating as no history")
			hasHistory = false
		} else {
			hours := g.now().Sub(lastNotified).Hours()

			// Duplicate guard: same price notified again within the window
			if hours < g.cfg.DuplicateWindowHours && abs(rec.CurrentPrice-entry.Price) < g.cfg.DuplicateTolerance {
				g.drop(rec, "duplicate of recent notification", "hours_since", hours)
				return false
			}

			// Gate 4: notification interval
			if hours < g.cfg.MinIntervalHours {
				g.drop(rec, "interval not elapsed", "hours_since", hours)
				return false
			}

			// Gate 5: magnitude against last notified price, not last
			// observed price (price-driven records only)
			if !restock && entry.Price > 0 {
				diff := math.Abs(float64(rec.CurrentPrice-entry.Price) / float64(entry.Price) * 100)
				if diff < g.cfg.ThresholdPercent {
					g.drop(rec, "too close to last notified price", "diff_percent", diff)
					return false
				}
			}
		}
	}

	// Gate 6: only qualifying price drops or restocks notify
	priceDrop := rec.ChangeRatePercent < 0 && math.Abs(rec.ChangeRatePercent) >= g.cfg.ThresholdPercent
	if !priceDrop && !restock {
		g.drop(rec, "not a qualifying drop or restock", "rate", rec.ChangeRatePercent)
		return false
	}

	log.Info().
		Str("jan_code", rec.Barcode).
		Int("price", rec.CurrentPrice).
		Float64("rate", rec.ChangeRatePercent).
		Bool("restock", restock).
		Msg("gate: notifiable")
	return true
}

func (g *Gate) drop(rec model.ChangeRecord, reason string, key string, val any) {
	log.Info().
		Str("jan_code", rec.Barcode).
		Interface(key, val).
		Str("reason", reason).
		Msg("gate: suppressed")
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
