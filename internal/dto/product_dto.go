package dto

import "github.com/fucho777/rakuten-price-monitor/internal/model"

// AddProductRequest registers a barcode on the watchlist.
type AddProductRequest struct {
	Barcode string `json:"jan_code" binding:"required"`
	Name    string `json:"product_name"`
}

// ProductResponse is one watchlist row as served by the API.
type ProductResponse struct {
	Barcode           string `json:"jan_code"`
	Name              string `json:"product_name"`
	LastPrice         int    `json:"last_price"`
	LastAvailability  string `json:"last_availability"`
	Monitored         bool   `json:"monitor_flag"`
	Notified          bool   `json:"notified_flag"`
	LastNotifiedPrice int    `json:"last_notified_price"`
	LastNotifiedTime  string `json:"last_notified_time,omitempty"`
}

// NewProductResponse maps a model row to its API shape.
func NewProductResponse(p model.Product) ProductResponse {
	resp := ProductResponse{
		Barcode:           p.Barcode,
		Name:              p.Name,
		LastPrice:         p.LastPrice,
		LastAvailability:  string(p.LastAvailability),
		Monitored:         p.Monitored,
		Notified:          p.Notified,
		LastNotifiedPrice: p.LastNotifiedPrice,
	}
	if p.LastNotifiedTime != nil {
		resp.LastNotifiedTime = model.FormatTime(*p.LastNotifiedTime)
	}
	return resp
}

// ProductListResponse wraps the full watchlist.
type ProductListResponse struct {
	Products []ProductResponse `json:"products"`
	Total    int               `json:"total"`
}
