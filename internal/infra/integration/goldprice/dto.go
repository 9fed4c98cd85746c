package goldprice

import "time"

// RatesResponse is the dbXRates payload. Only the first item is used.
type RatesResponse struct {
	Timestamp int64      `json:"ts"`
	Date      string     `json:"date"`
	Items     []RateItem `json:"items"`
}

type RateItem struct {
	Currency        string  `json:"curr"`
	GoldPrice       float64 `json:"xauPrice"`
	SilverPrice     float64 `json:"xagPrice"`
	GoldChange      float64 `json:"chgXau"`
	SilverChange    float64 `json:"chgXag"`
	GoldChangePct   float64 `json:"pcXau"`
	SilverChangePct float64 `json:"pcXag"`
	GoldClose       float64 `json:"xauClose"`
	SilverClose     float64 `json:"xagClose"`
}

// Spot is the price snapshot served to the site.
type Spot struct {
	Gold            float64   `json:"gold"`
	Silver          float64   `json:"silver"`
	GoldChange      float64   `json:"gold_change"`
	GoldChangePct   float64   `json:"gold_change_pct"`
	SilverChange    float64   `json:"silver_change"`
	SilverChangePct float64   `json:"silver_change_pct"`
	Currency        string    `json:"currency"`
	FetchedAt       time.Time `json:"fetched_at"`
}
