// Package store persists the watchlist catalog, the notification history,
// the per-run outbox and the per-platform posting logs. Every store is
// whole-file read-modify-write: loaded fully at run start, written fully at
// run end, and only when something actually changed.
package store

import (
	"encoding/csv"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fucho777/rakuten-price-monitor/internal/apperr"
	"github.com/fucho777/rakuten-price-monitor/internal/model"
)

// CatalogFile is the watchlist file name inside the data directory.
const CatalogFile = "product_list.csv"

var catalogColumns = []string{
	"jan_code", "product_name", "last_price", "last_availability",
	"monitor_flag", "notified_flag", "last_notified_price",
	"last_notified_time", "last_updated",
}

// Catalog is the product watchlist backed by a CSV file. Rows keep their
// file order; the index serves barcode lookups. Safe for concurrent use so
// the HTTP handlers and the scheduler can share one instance.
type Catalog struct {
	mu       sync.Mutex
	path     string
	products []*model.Product
	index    map[string]*model.Product
	dirty    bool
	now      func() time.Time
}

// NewCatalog creates a catalog bound to dir/product_list.csv.
func NewCatalog(dir string) *Catalog {
	return &Catalog{
		path:  filepath.Join(dir, CatalogFile),
		index: make(map[string]*model.Product),
		now:   time.Now,
	}
}

// Load reads the whole file, tolerating legacy layouts: missing columns get
// zero values, unparsable numerics coerce to zero, and duplicate barcodes
// collapse to the first occurrence. A read failure degrades to an empty
// catalog rather than aborting the run.
func (c *Catalog) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.products = nil
	c.index = make(map[string]*model.Product)
	c.dirty = false

	f, err := os.Open(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Warn().Str("path", c.path).Msg("catalog file missing, starting empty")
			return nil
		}
		return apperr.New(apperr.Persistence, "store.Catalog.Load", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return apperr.New(apperr.Persistence, "store.Catalog.Load", err)
	}
	if len(rows) == 0 {
		return nil
	}

	col := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		col[strings.TrimSpace(name)] = i
	}

	dropped := 0
	for _, row := range rows[1:] {
		get := func(name string) string {
			i, ok := col[name]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		barcode := get("jan_code")
		if barcode == "" {
			continue
		}
		if _, ok := c.index[barcode]; ok {
			// First occurrence wins
			dropped++
			c.dirty = true
			continue
		}

		p := &model.Product{
			Barcode:           barcode,
			Name:              get("product_name"),
			LastPrice:         parseIntOrZero(get("last_price")),
			LastAvailability:  model.ParseAvailability(get("last_availability")),
			Monitored:         parseBool(get("monitor_flag")),
			Notified:          parseBool(get("notified_flag")),
			LastNotifiedPrice: parseIntOrZero(get("last_notified_price")),
		}
		if t, err := model.ParseTime(get("last_notified_time")); err == nil {
			p.LastNotifiedTime = &t
		}
		if t, err := model.ParseTime(get("last_updated")); err == nil {
			p.LastUpdated = &t
		}
		c.products = append(c.products, p)
		c.index[barcode] = p
	}

	if dropped > 0 {
		log.Info().Int("removed", dropped).Msg("collapsed duplicate barcodes in catalog")
	}
	log.Info().Int("products", len(c.products)).Msg("catalog loaded")
	return nil
}

// Save writes the whole file when the in-memory state is dirty.
// Each saved row gets a fresh last_updated timestamp.
func (c *Catalog) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.dirty {
		log.Debug().Msg("catalog unchanged, skipping save")
		return nil
	}

	f, err := os.Create(c.path)
	if err != nil {
		return apperr.New(apperr.Persistence, "store.Catalog.Save", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(catalogColumns); err != nil {
		return apperr.New(apperr.Persistence, "store.Catalog.Save", err)
	}
	updated := model.FormatTime(c.now())
	for _, p := range c.products {
		notifiedTime := ""
		if p.LastNotifiedTime != nil {
			notifiedTime = model.FormatTime(*p.LastNotifiedTime)
		}
		row := []string{
			p.Barcode,
			p.Name,
			strconv.Itoa(p.LastPrice),
			string(p.LastAvailability),
			strconv.FormatBool(p.Monitored),
			strconv.FormatBool(p.Notified),
			strconv.Itoa(p.LastNotifiedPrice),
			notifiedTime,
			updated,
		}
		if err := w.Write(row); err != nil {
			return apperr.New(apperr.Persistence, "store.Catalog.Save", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return apperr.New(apperr.Persistence, "store.Catalog.Save", err)
	}

	c.dirty = false
	log.Info().Int("products", len(c.products)).Str("path", c.path).Msg("catalog saved")
	return nil
}

// Monitored returns copies of the rows with monitor_flag set, in file order.
func (c *Catalog) Monitored() []model.Product {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []model.Product
	for _, p := range c.products {
		if p.Monitored {
			out = append(out, *p)
		}
	}
	return out
}

// All returns copies of every row in file order.
func (c *Catalog) All() []model.Product {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Product, 0, len(c.products))
	for _, p := range c.products {
		out = append(out, *p)
	}
	return out
}

// Get returns a copy of the row for barcode.
func (c *Catalog) Get(barcode string) (model.Product, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.index[barcode]
	if !ok {
		return model.Product{}, false
	}
	return *p, true
}

// Add inserts a new monitored product. Adding an existing barcode re-enables
// monitoring instead of creating a duplicate row.
func (c *Catalog) Add(barcode, name string) model.Product {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.index[barcode]; ok {
		if !p.Monitored || (name != "" && p.Name != name) {
			p.Monitored = true
			if name != "" {
				p.Name = name
			}
			c.dirty = true
		}
		return *p
	}
	p := &model.Product{
		Barcode:          barcode,
		Name:             name,
		LastAvailability: model.Unknown,
		Monitored:        true,
	}
	c.products = append(c.products, p)
	c.index[barcode] = p
	c.dirty = true
	return *p
}

// Unmonitor clears monitor_flag for barcode, keeping the row and its state.
func (c *Catalog) Unmonitor(barcode string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.index[barcode]
	if !ok {
		return false
	}
	if p.Monitored {
		p.Monitored = false
		c.dirty = true
	}
	return true
}

// ApplyObservation updates the stored state for barcode from obs.
func (c *Catalog) ApplyObservation(barcode string, obs model.Observation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.index[barcode]
	if !ok {
		return
	}
	p.Name = obs.Name
	p.LastPrice = obs.Price
	p.LastAvailability = obs.Availability
	c.dirty = true
}

// MarkNotified records a confirmed notification for barcode.
// Called only after a posting collaborator confirmed delivery.
func (c *Catalog) MarkNotified(barcode string, price int, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.index[barcode]
	if !ok {
		return
	}
	p.Notified = true
	p.LastNotifiedPrice = price
	p.LastNotifiedTime = &at
	c.dirty = true
}

// Dirty reports whether unsaved mutations exist.
func (c *Catalog) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

func parseIntOrZero(s string) int {
	if s == "" {
		return 0
	}
	// Legacy pandas output writes integers as "10000.0"
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}
