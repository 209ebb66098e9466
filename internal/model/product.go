package model

import (
	"strings"
	"time"

	"github.com/fucho777/rakuten-price-monitor/internal/apperr"
)

// Product is one watchlist row, keyed by JAN barcode.
// LastPrice 0 means the product has never been observed.
type Product struct {
	Barcode           string
	Name              string
	LastPrice         int
	LastAvailability  Availability
	Monitored         bool
	Notified          bool
	LastNotifiedPrice int
	LastNotifiedTime  *time.Time
	LastUpdated       *time.Time
}

// NormalizeBarcode strips separators and validates the JAN format:
// digits only, length 8 or 13. Returns a Validation error otherwise.
func NormalizeBarcode(raw string) (string, error) {
	code := strings.TrimSpace(raw)
	code = strings.ReplaceAll(code, "-", "")
	code = strings.ReplaceAll(code, " ", "")
	if len(code) != 8 && len(code) != 13 {
		return "", apperr.Newf(apperr.Validation, "model.NormalizeBarcode", "invalid JAN code %q: length must be 8 or 13", raw)
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return "", apperr.Newf(apperr.Validation, "model.NormalizeBarcode", "invalid JAN code %q: digits only", raw)
		}
	}
	return code, nil
}
