package model

// Availability is the stock status of a listing. The values are the literal
// strings written to product_list.csv and notifiable_products.json, so they
// stay interchangeable with files produced by earlier deployments.
type Availability string

const (
	InStock    Availability = "在庫あり"
	OutOfStock Availability = "在庫なし"
	Unknown    Availability = "不明"
)

// ParseAvailability maps a persisted string to an Availability.
// Anything unrecognized (including empty cells in legacy CSVs) is Unknown.
func ParseAvailability(s string) Availability {
	switch Availability(s) {
	case InStock, OutOfStock:
		return Availability(s)
	default:
		return Unknown
	}
}
