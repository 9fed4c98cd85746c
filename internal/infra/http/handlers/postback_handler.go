package handlers

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/richdadretirement/leadrelay/internal/infra/http/middleware"
	"github.com/richdadretirement/leadrelay/internal/usecase"
)

const (
	postbackTokenParam  = "token"
	postbackTokenHeader = "X-Postback-Token"
	maxPostbackBody     = 64 << 10
)

type PostbackHandler struct {
	UseCase *usecase.HandlePostbackUseCase
	Token   string
}

func NewPostbackHandler(uc *usecase.HandlePostbackUseCase, token string) *PostbackHandler {
	return &PostbackHandler{UseCase: uc, Token: token}
}

func (h *PostbackHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		log.Printf("⚠️ [POSTBACK] Rejected request from %s: bad token", getClientIP(r))
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid postback token")
		return
	}

	values, err := postbackValues(w, r)
	if err != nil {
		log.Printf("⚠️ [POSTBACK] Invalid payload from %s: %v", getClientIP(r), err)
		writeError(w, http.StatusBadRequest, usecase.ErrInvalidPayload.Code, usecase.ErrInvalidPayload.Message)
		return
	}
	values.Del(postbackTokenParam)

	out := h.UseCase.Execute(r.Context(), values)

	middleware.RecordPostback(string(out.Event), out.Duplicate)
	if out.Status != "" {
		middleware.RecordLeadStatusUpdate(string(out.Status), out.StatusWrite)
	}

	writeJSON(w, http.StatusOK, out)
}

func (h *PostbackHandler) authorized(r *http.Request) bool {
	if h.Token == "" {
		return true
	}
	given := r.Header.Get(postbackTokenHeader)
	if given == "" {
		given = r.URL.Query().Get(postbackTokenParam)
	}
	return subtle.ConstantTimeCompare([]byte(given), []byte(h.Token)) == 1
}

// postbackValues flattens query, form and JSON bodies into one url.Values.
// Body values take precedence over query values with the same key.
func postbackValues(w http.ResponseWriter, r *http.Request) (url.Values, error) {
	query := r.URL.Query()
	if r.Method != http.MethodPost {
		return query, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxPostbackBody)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch {
	case mediaType == "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		return r.Form, nil
	case mediaType == "multipart/form-data":
		if err := r.ParseMultipartForm(maxPostbackBody); err != nil {
			return nil, err
		}
		return r.Form, nil
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 && mediaType != "application/json" {
		return query, nil
	}

	fields, err := flattenJSON(body)
	if err != nil {
		return nil, err
	}
	for k, v := range fields {
		query.Set(k, v)
	}
	return query, nil
}

// flattenJSON turns a JSON object into string values: strings verbatim,
// numbers and booleans as their JSON text, objects and arrays as compact JSON.
// Nulls are dropped.
func flattenJSON(body []byte) (map[string]string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errors.New("payload is not a JSON object")
	}

	out := make(map[string]string, len(raw))
	for k, v := range raw {
		v = bytes.TrimSpace(v)
		switch {
		case bytes.Equal(v, []byte("null")):
			continue
		case len(v) > 0 && v[0] == '"':
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				return nil, err
			}
			out[k] = s
		case len(v) > 0 && (v[0] == '{' || v[0] == '['):
			var buf bytes.Buffer
			if err := json.Compact(&buf, v); err != nil {
				return nil, err
			}
			out[k] = buf.String()
		default:
			out[k] = strings.TrimSpace(string(v))
		}
	}
	return out, nil
}
