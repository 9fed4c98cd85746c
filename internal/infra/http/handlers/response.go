package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/richdadretirement/leadrelay/internal/usecase"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("⚠️ Could not write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}

// writeUseCaseError maps domain errors to 400 and everything else to 500.
func writeUseCaseError(w http.ResponseWriter, err error) {
	var de *usecase.DomainError
	if errors.As(err, &de) {
		writeError(w, http.StatusBadRequest, de.Code, de.Message)
		return
	}
	var te *usecase.TechnicalError
	if errors.As(err, &te) {
		writeError(w, http.StatusInternalServerError, te.Code, te.Message)
		return
	}
	writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
}
