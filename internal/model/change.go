package model

import "time"

// Observation is the freshly fetched state of one product, produced once per
// poll. Price 0 with Unknown availability signals a failed fetch and must
// never overwrite valid stored state.
type Observation struct {
	Barcode      string
	Name         string
	Price        int
	Availability Availability
	ShopName     string
	ItemURL      string
	AffiliateURL string
	ImageURL     string
	IsNewListing bool
}

// FetchFailed reports whether this observation carries no usable data.
func (o Observation) FetchFailed() bool {
	return o.Availability == Unknown
}

// ChangeRecord describes one detected price/availability change. The JSON
// field names match the notifiable_products.json layout consumed by the
// posting side.
type ChangeRecord struct {
	Barcode              string       `json:"jan_code"`
	Name                 string       `json:"product_name"`
	CurrentPrice         int          `json:"current_price"`
	PreviousPrice        int          `json:"previous_price"`
	ChangeRatePercent    float64      `json:"price_change_rate"`
	CurrentAvailability  Availability `json:"current_availability"`
	PreviousAvailability Availability `json:"previous_availability"`
	ShopName             string       `json:"shop_name"`
	ItemURL              string       `json:"item_url"`
	AffiliateURL         string       `json:"affiliate_url"`
	Timestamp            string       `json:"timestamp"`
}

// Restocked reports an out-of-stock to in-stock transition.
func (c ChangeRecord) Restocked() bool {
	return c.PreviousAvailability == OutOfStock && c.CurrentAvailability == InStock
}

// ChangeRate returns (current-previous)/previous*100, or 0 when previous
// is not positive (a first observation is never a change).
func ChangeRate(current, previous int) float64 {
	if previous <= 0 {
		return 0
	}
	return float64(current-previous) / float64(previous) * 100
}

// TimeLayout is the timestamp format shared by every persisted artifact
// (catalog, history, outbox, posting logs).
const TimeLayout = "2006-01-02 15:04:05"

// FormatTime renders t in the shared persisted layout.
func FormatTime(t time.Time) string { return t.Format(TimeLayout) }

// ParseTime parses a timestamp in the shared persisted layout.
func ParseTime(s string) (time.Time, error) { return time.ParseInLocation(TimeLayout, s, time.Local) }
