package store

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fucho777/rakuten-price-monitor/internal/apperr"
	"github.com/fucho777/rakuten-price-monitor/internal/model"
)

// HistoryFile is the notification history file name inside the data directory.
const HistoryFile = "notification_history.json"

// History persists the last-notified price and time per barcode, as a
// whole-snapshot JSON map. A lost update costs at most one extra
// notification, so no locking beyond the in-process mutex is attempted.
type History struct {
	mu      sync.Mutex
	path    string
	entries map[string]*model.HistoryEntry
	dirty   bool
}

// NewHistory creates a history store bound to dir/notification_history.json.
func NewHistory(dir string) *History {
	return &History{
		path:    filepath.Join(dir, HistoryFile),
		entries: make(map[string]*model.HistoryEntry),
	}
}

// Load reads the snapshot. A read or parse failure degrades to an empty
// history: staleness is traded for availability.
func (h *History) Load() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = make(map[string]*model.HistoryEntry)
	h.dirty = false

	data, err := os.ReadFile(h.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Info().Str("path", h.path).Msg("notification history missing, starting fresh")
			return nil
		}
		return apperr.New(apperr.Persistence, "store.History.Load", err)
	}
	if err := json.Unmarshal(data, &h.entries); err != nil {
		h.entries = make(map[string]*model.HistoryEntry)
		return apperr.New(apperr.Persistence, "store.History.Load", err)
	}
	log.Info().Int("entries", len(h.entries)).Msg("notification history loaded")
	return nil
}

// Save writes the whole snapshot when dirty.
func (h *History) Save() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.dirty {
		return nil
	}
	data, err := json.MarshalIndent(h.entries, "", "  ")
	if err != nil {
		return apperr.New(apperr.Persistence, "store.History.Save", err)
	}
	if err := os.WriteFile(h.path, data, 0o644); err != nil {
		return apperr.New(apperr.Persistence, "store.History.Save", err)
	}
	h.dirty = false
	log.Info().Int("entries", len(h.entries)).Msg("notification history saved")
	return nil
}

// Get returns a copy of the entry for barcode, if one exists.
func (h *History) Get(barcode string) (model.HistoryEntry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.entries[barcode]
	if !ok {
		return model.HistoryEntry{}, false
	}
	out := *e
	out.RecentPrices = append([]model.PricePoint(nil), e.RecentPrices...)
	return out, true
}

// Record upserts the entry for barcode: bumps the notification count and
// appends to the bounded recent-price tail.
func (h *History) Record(barcode, productName string, price int, at time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ts := model.FormatTime(at)
	e, ok := h.entries[barcode]
	if !ok {
		e = &model.HistoryEntry{}
		h.entries[barcode] = e
	}
	e.ProductName = productName
	e.Price = price
	e.LastNotifiedTime = ts
	e.NotificationCount++
	e.RecentPrices = append(e.RecentPrices, model.PricePoint{Price: price, Time: ts})
	if n := len(e.RecentPrices); n > model.RecentPricesKept {
		e.RecentPrices = e.RecentPrices[n-model.RecentPricesKept:]
	}
	h.dirty = true
}

// Len returns the number of entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
