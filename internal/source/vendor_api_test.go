package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"wisefido-healthsync/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newVendorServer(t *testing.T, authStatus int, handler http.HandlerFunc) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/authorize", func(w http.ResponseWriter, r *http.Request) {
		var req vendorAuthorizeRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		if authStatus != vendorStatusOK {
			json.NewEncoder(w).Encode(map[string]interface{}{"status": authStatus, "msg": "denied"})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": 0,
			"data":   map[string]string{"accessToken": "tok-" + req.AppID},
		})
	})
	if handler != nil {
		mux.HandleFunc("/v1/samples/latest", handler)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestVendorAPISource_AuthorizeAndFetch(t *testing.T) {
	srv := newVendorServer(t, vendorStatusOK, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-app-1", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("type") {
		case "stepCount":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status": 0,
				"data":   map[string]interface{}{"value": 120, "unit": "count", "timestamp": 1700000000000},
			})
		case "heartRate":
			json.NewEncoder(w).Encode(map[string]interface{}{"status": vendorStatusNoData, "msg": "no data"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	src := NewVendorAPISource(VendorAPIConfig{BaseURL: srv.URL, AppID: "app-1", SecretKey: "s"}, zap.NewNop())
	ctx := context.Background()
	require.NoError(t, src.Authorize(ctx, []string{"stepCount", "heartRate"}))

	sample, err := src.FetchLatest(ctx, models.MetricStepCount)
	require.NoError(t, err)
	require.NotNil(t, sample)
	assert.Equal(t, float64(120), sample.Value)
	assert.Equal(t, "count", sample.Unit)
	assert.Equal(t, int64(1700000000), sample.Timestamp.Unix())

	sample, err = src.FetchLatest(ctx, models.MetricHeartRate)
	require.NoError(t, err)
	assert.Nil(t, sample)

	sample, err = src.FetchLatest(ctx, models.MetricBodyMass)
	require.NoError(t, err)
	assert.Nil(t, sample)
}

func TestVendorAPISource_AuthorizeDenied(t *testing.T) {
	srv := newVendorServer(t, vendorStatusNotAuthorized, nil)
	src := NewVendorAPISource(VendorAPIConfig{BaseURL: srv.URL, AppID: "app-1"}, zap.NewNop())

	err := src.Authorize(context.Background(), []string{"stepCount"})
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestVendorAPISource_AuthorizeUnavailable(t *testing.T) {
	srv := newVendorServer(t, vendorStatusUnavailable, nil)
	src := NewVendorAPISource(VendorAPIConfig{BaseURL: srv.URL, AppID: "app-1"}, zap.NewNop())

	err := src.Authorize(context.Background(), []string{"stepCount"})
	assert.ErrorIs(t, err, ErrNotAvailable)
}

func TestVendorAPISource_FetchBeforeAuthorize(t *testing.T) {
	src := NewVendorAPISource(VendorAPIConfig{BaseURL: "http://127.0.0.1:1"}, zap.NewNop())

	_, err := src.FetchLatest(context.Background(), models.MetricStepCount)
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestVendorAPISource_FetchServerError(t *testing.T) {
	srv := newVendorServer(t, vendorStatusOK, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	src := NewVendorAPISource(VendorAPIConfig{BaseURL: srv.URL, AppID: "app-1"}, zap.NewNop())
	require.NoError(t, src.Authorize(context.Background(), []string{"stepCount"}))

	sample, err := src.FetchLatest(context.Background(), models.MetricStepCount)
	assert.Error(t, err)
	assert.Nil(t, sample)
}
