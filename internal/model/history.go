package model

// RecentPricesKept bounds the per-product tail of previously notified prices.
const RecentPricesKept = 5

// PricePoint is one historical notification price.
type PricePoint struct {
	Price int    `json:"price"`
	Time  string `json:"time"`
}

// HistoryEntry is the per-barcode notification history used by the gate.
// Created on the first notification, updated (never deleted) afterwards.
type HistoryEntry struct {
	ProductName       string       `json:"product_name"`
	Price             int          `json:"price"`
	LastNotifiedTime  string       `json:"last_notified_time"`
	NotificationCount int          `json:"notification_count"`
	RecentPrices      []PricePoint `json:"previous_prices"`
}
