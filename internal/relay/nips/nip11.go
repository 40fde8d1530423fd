package nips

import (
	"encoding/json"
	"mime"
	"net/http"
	"strings"

	"github.com/Shugur-Network/edge-relay/internal/logger"
	nip11 "github.com/nbd-wtf/go-nostr/nip11"
	"go.uber.org/zap"
)

// NIP-11: Relay Information Document
// https://github.com/nostr-protocol/nips/blob/master/11.md

// MediaType is the NIP-11 content type.
const MediaType = "application/nostr+json"

// Limitation extends the standard limitation block with the fields this relay enforces.
type Limitation struct {
	nip11.RelayLimitationDocument
	MaxFilters          int   `json:"max_filters"`
	CreatedAtLowerLimit int64 `json:"created_at_lower_limit"`
	CreatedAtUpperLimit int64 `json:"created_at_upper_limit"`
}

// InformationDocument is the relay information document served on GET /.
// Its Limitation shadows the embedded one when encoded.
type InformationDocument struct {
	nip11.RelayInformationDocument
	Limitation *Limitation `json:"limitation,omitempty"`
}

// SetCORSHeaders adds the permissive CORS headers every HTTP response carries.
func SetCORSHeaders(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, Accept")
}

// AcceptsRelayInfo reports whether the request explicitly asks for the NIP-11 media type.
func AcceptsRelayInfo(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err == nil && mt == MediaType {
			return true
		}
	}
	return false
}

// ServeRelayMetadata writes doc, answering with application/nostr+json when
// the client asked for it and application/json otherwise.
func ServeRelayMetadata(w http.ResponseWriter, r *http.Request, doc InformationDocument) {
	SetCORSHeaders(w.Header())
	if AcceptsRelayInfo(r) {
		w.Header().Set("Content-Type", MediaType)
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	w.Header().Add("Vary", "Accept")

	if err := json.NewEncoder(w).Encode(doc); err != nil {
		logger.Warn("NIP-11: Failed to encode metadata", zap.Error(err))
		http.Error(w, "Failed to encode metadata", http.StatusInternalServerError)
	}
}

// ServePreflight answers a CORS preflight with 204.
func ServePreflight(w http.ResponseWriter, _ *http.Request) {
	SetCORSHeaders(w.Header())
	w.Header().Set("Access-Control-Max-Age", "86400")
	w.WriteHeader(http.StatusNoContent)
}
