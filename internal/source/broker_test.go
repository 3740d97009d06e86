package source

import (
	"context"
	"errors"
	"testing"
	"time"

	mqttcommon "wisefido-healthsync/common/mqtt"
	"wisefido-healthsync/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeSubscriber 仅用于单元测试，记录订阅的处理函数
type fakeSubscriber struct {
	handler      mqttcommon.MessageHandler
	topic        string
	subscribeErr error
	unsubscribed []string
}

func (f *fakeSubscriber) Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error {
	if f.subscribeErr != nil {
		return f.subscribeErr
	}
	f.topic = topic
	f.handler = handler
	return nil
}

func (f *fakeSubscriber) Unsubscribe(topics ...string) error {
	f.unsubscribed = append(f.unsubscribed, topics...)
	return nil
}

func TestBrokerSource_CachesLatestSample(t *testing.T) {
	sub := &fakeSubscriber{}
	src := NewBrokerSource(sub, "healthsync/devices/dev-1/samples", 1, 0, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, src.Authorize(ctx, []string{"heartRate", "stepCount"}))
	require.NotNil(t, sub.handler)
	assert.Equal(t, "healthsync/devices/dev-1/samples", sub.topic)

	payload := []byte(`[
		{"metric":"heartRate","value":72,"unit":"bpm","timestamp":1700000060},
		{"metric":"heartRate","value":90,"unit":"bpm","timestamp":1700000000},
		{"metric":"bodyMass","value":70,"unit":"kg","timestamp":1700000000},
		{"metric":"sleepScore","value":1,"unit":"count","timestamp":1700000000}
	]`)
	require.NoError(t, sub.handler(sub.topic, payload))

	sample, err := src.FetchLatest(ctx, models.MetricHeartRate)
	require.NoError(t, err)
	require.NotNil(t, sample)
	assert.Equal(t, float64(72), sample.Value)

	// bodyMass 不在授权范围内
	sample, err = src.FetchLatest(ctx, models.MetricBodyMass)
	require.NoError(t, err)
	assert.Nil(t, sample)

	sample, err = src.FetchLatest(ctx, models.MetricStepCount)
	require.NoError(t, err)
	assert.Nil(t, sample)

	require.NoError(t, src.Close())
	assert.Equal(t, []string{"healthsync/devices/dev-1/samples"}, sub.unsubscribed)
}

func TestBrokerSource_StaleSampleIsAbsent(t *testing.T) {
	sub := &fakeSubscriber{}
	src := NewBrokerSource(sub, "t", 0, 5*time.Minute, zap.NewNop())
	src.now = func() time.Time { return time.Unix(1700000000, 0).Add(10 * time.Minute) }
	require.NoError(t, src.Authorize(context.Background(), []string{"heartRate"}))

	require.NoError(t, sub.handler("t", []byte(`[{"metric":"heartRate","value":72,"unit":"bpm","timestamp":1700000000}]`)))

	sample, err := src.FetchLatest(context.Background(), models.MetricHeartRate)
	require.NoError(t, err)
	assert.Nil(t, sample)
}

func TestBrokerSource_BadPayload(t *testing.T) {
	sub := &fakeSubscriber{}
	src := NewBrokerSource(sub, "t", 0, 0, zap.NewNop())
	require.NoError(t, src.Authorize(context.Background(), []string{"heartRate"}))

	assert.Error(t, sub.handler("t", []byte(`{not json`)))
}

func TestBrokerSource_AuthorizeErrors(t *testing.T) {
	src := NewBrokerSource(nil, "t", 0, 0, zap.NewNop())
	assert.ErrorIs(t, src.Authorize(context.Background(), []string{"heartRate"}), ErrNotAvailable)

	src = NewBrokerSource(&fakeSubscriber{}, "t", 0, 0, zap.NewNop())
	assert.ErrorIs(t, src.Authorize(context.Background(), []string{"bogus"}), ErrNotAuthorized)

	src = NewBrokerSource(&fakeSubscriber{subscribeErr: errors.New("broker down")}, "t", 0, 0, zap.NewNop())
	assert.ErrorIs(t, src.Authorize(context.Background(), []string{"heartRate"}), ErrNotAvailable)

	_, err := src.FetchLatest(context.Background(), models.MetricHeartRate)
	assert.ErrorIs(t, err, ErrNotAuthorized)
}
