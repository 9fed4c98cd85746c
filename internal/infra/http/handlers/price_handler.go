package handlers

import (
	"context"
	"log"
	"net/http"

	"github.com/richdadretirement/leadrelay/internal/infra/http/middleware"
	"github.com/richdadretirement/leadrelay/internal/infra/integration/goldprice"
)

// PriceSource is satisfied by cache.TTLCache[goldprice.Spot].
type PriceSource interface {
	Get(ctx context.Context) (goldprice.Spot, error)
}

type PriceHandler struct {
	Prices PriceSource
}

func NewPriceHandler(prices PriceSource) *PriceHandler {
	return &PriceHandler{Prices: prices}
}

func (h *PriceHandler) Handle(w http.ResponseWriter, r *http.Request) {
	spot, err := h.Prices.Get(r.Context())
	if err != nil {
		log.Printf("❌ Spot prices unavailable: %v", err)
		middleware.RecordIntegrationError("goldprice")
		writeError(w, http.StatusBadGateway, "PRICES_UNAVAILABLE", "spot prices are temporarily unavailable")
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=60")
	writeJSON(w, http.StatusOK, spot)
}
