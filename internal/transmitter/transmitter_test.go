package transmitter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wisefido-healthsync/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testRecord() models.CanonicalRecord {
	set := models.NewMeasurementSet(map[models.Metric]float64{models.MetricStepCount: 120})
	return models.NewCanonicalRecord("rec-1", "token-1", models.SourceVendorAPI, models.Profile{}, set,
		time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC))
}

func TestHTTPTransmitter_Send(t *testing.T) {
	var gotBody map[string]interface{}
	var gotContext, gotKey, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContext = r.Header.Get("X-Context-Id")
		gotKey = r.Header.Get("Idempotency-Key")
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotBody)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	tx := NewHTTPTransmitter(HTTPConfig{Endpoint: srv.URL + "/v1/records", AuthToken: "secret"}, zap.NewNop())
	require.NoError(t, tx.Send(context.Background(), testRecord(), "ctx-1"))

	assert.Equal(t, "ctx-1", gotContext)
	assert.Equal(t, "rec-1", gotKey)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, float64(120), gotBody["stepCount"])
	assert.Equal(t, "token-1", gotBody["identity"])
}

func TestHTTPTransmitter_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	tx := NewHTTPTransmitter(HTTPConfig{Endpoint: srv.URL}, zap.NewNop())
	err := tx.Send(context.Background(), testRecord(), "ctx-1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "http 502")
	assert.Contains(t, err.Error(), "upstream down")
}

// fakePublisher 仅用于单元测试
type fakePublisher struct {
	topic   string
	payload []byte
	err     error
}

func (f *fakePublisher) Publish(topic string, qos byte, retained bool, payload []byte) error {
	if f.err != nil {
		return f.err
	}
	f.topic = topic
	f.payload = payload
	return nil
}

func TestMQTTTransmitter_Send(t *testing.T) {
	pub := &fakePublisher{}
	tx := NewMQTTTransmitter(pub, "healthsync/records/", 1, zap.NewNop())

	require.NoError(t, tx.Send(context.Background(), testRecord(), "ctx-9"))
	assert.Equal(t, "healthsync/records/ctx-9", pub.topic)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(pub.payload, &out))
	assert.Equal(t, "rec-1", out["recordId"])
}

func TestMQTTTransmitter_PublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("not connected")}
	tx := NewMQTTTransmitter(pub, "healthsync/records", 1, zap.NewNop())

	assert.Error(t, tx.Send(context.Background(), testRecord(), "ctx-9"))
}

func TestStreamTransmitter_Send(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	tx := NewStreamTransmitter(client, "healthsync:records", 1000, zap.NewNop())

	require.NoError(t, tx.Send(context.Background(), testRecord(), "ctx-1"))

	msgs, err := client.XRange(context.Background(), "healthsync:records", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "ctx-1", msgs[0].Values["context_id"])
	assert.Equal(t, "rec-1", msgs[0].Values["record_id"])
	assert.Contains(t, msgs[0].Values["data"], `"stepCount":120`)
}

func TestStreamTransmitter_RedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	mr.Close()

	tx := NewStreamTransmitter(client, "healthsync:records", 0, zap.NewNop())
	assert.Error(t, tx.Send(context.Background(), testRecord(), "ctx-1"))
}
