package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/richdadretirement/leadrelay/internal/usecase"
)

type LinkHandler struct {
	UseCase *usecase.BuildLinkUseCase
}

func NewLinkHandler(uc *usecase.BuildLinkUseCase) *LinkHandler {
	return &LinkHandler{UseCase: uc}
}

func (h *LinkHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var input usecase.BuildLinkInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10)).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON")
		return
	}

	out, err := h.UseCase.Execute(input)
	if err != nil {
		writeUseCaseError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, out)
}
