package handlers

import (
	"net/http"

	"github.com/richdadretirement/leadrelay/internal/infra/http/middleware"
	"github.com/richdadretirement/leadrelay/internal/usecase"
)

type TrackHandler struct {
	UseCase *usecase.TrackClickUseCase
}

func NewTrackHandler(uc *usecase.TrackClickUseCase) *TrackHandler {
	return &TrackHandler{UseCase: uc}
}

// Handle always answers with a 302, to the destination or to the fallback.
func (h *TrackHandler) Handle(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	out := h.UseCase.Execute(r.Context(), usecase.TrackClickInput{
		URL:     q.Get("url"),
		Source:  q.Get("source"),
		Company: q.Get("company"),
		Traffic: q.Get("traffic"),
		ClickID: q.Get("click_id"),
	})

	if out.Event != nil {
		middleware.RecordClick(out.Event.Traffic)
	} else {
		middleware.RecordClickRejected()
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Referrer-Policy", "no-referrer-when-downgrade")
	// http.Redirect would clean relative paths; Location must be the url as given.
	w.Header().Set("Location", out.RedirectURL)
	w.WriteHeader(http.StatusFound)
}
