package nips

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	nip11 "github.com/nbd-wtf/go-nostr/nip11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDocument() InformationDocument {
	return InformationDocument{
		RelayInformationDocument: nip11.RelayInformationDocument{
			Name:          "edge",
			SupportedNIPs: []any{1, 9, 11, 13, 40},
		},
		Limitation: &Limitation{
			RelayLimitationDocument: nip11.RelayLimitationDocument{MaxSubscriptions: 8, MaxLimit: 500},
			MaxFilters:              4,
		},
	}
}

func TestServeRelayMetadataNegotiation(t *testing.T) {
	tests := []struct {
		name   string
		accept string
		want   string
	}{
		{"default", "", "application/json"},
		{"wildcard", "*/*", "application/json"},
		{"nostr", "application/nostr+json", MediaType},
		{"nostr in list", "text/html, application/nostr+json;q=0.9", MediaType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.accept != "" {
				r.Header.Set("Accept", tt.accept)
			}
			rec := httptest.NewRecorder()
			ServeRelayMetadata(rec, r, testDocument())

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.want, rec.Header().Get("Content-Type"))
			assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Accept")
			assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "GET")
		})
	}
}

func TestServeRelayMetadataBody(t *testing.T) {
	rec := httptest.NewRecorder()
	ServeRelayMetadata(rec, httptest.NewRequest(http.MethodGet, "/", nil), testDocument())

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "edge", body["name"])
	assert.Len(t, body["supported_nips"], 5)

	limitation, ok := body["limitation"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 8, limitation["max_subscriptions"])
	assert.EqualValues(t, 4, limitation["max_filters"])
	assert.EqualValues(t, 500, limitation["max_limit"])
}

func TestServePreflight(t *testing.T) {
	rec := httptest.NewRecorder()
	ServePreflight(rec, httptest.NewRequest(http.MethodOptions, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "GET, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
}
