package lifecycle

import (
	"context"
	"errors"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	mqttcommon "wisefido-healthsync/common/mqtt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingHandler struct {
	mu     sync.Mutex
	events []string
}

func (h *recordingHandler) record(e string) {
	h.mu.Lock()
	h.events = append(h.events, e)
	h.mu.Unlock()
}

func (h *recordingHandler) OnDeviceLocked()      { h.record(EventDeviceLocked) }
func (h *recordingHandler) OnDeviceUnlocked()    { h.record(EventDeviceUnlocked) }
func (h *recordingHandler) OnEnteredBackground() { h.record(EventEnteredBackground) }

func (h *recordingHandler) Events() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.events...)
}

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

func TestListener_DispatchesEvents(t *testing.T) {
	sub := &fakeSubscriber{}
	h := &recordingHandler{}
	l := NewListener(sub, "healthsync/lifecycle", 1, h, zap.NewNop())

	require.NoError(t, l.Start())
	assert.Equal(t, "healthsync/lifecycle", sub.topic)

	require.NoError(t, sub.handler(sub.topic, []byte(`{"event":"deviceLocked"}`)))
	require.NoError(t, sub.handler(sub.topic, []byte(`{"event":"deviceUnlocked"}`)))
	require.NoError(t, sub.handler(sub.topic, []byte(`{"event":"applicationEnteredBackground"}`)))

	assert.Equal(t, []string{EventDeviceLocked, EventDeviceUnlocked, EventEnteredBackground}, h.Events())

	l.Stop()
	assert.Equal(t, []string{"healthsync/lifecycle"}, sub.unsubscribed)
}

func TestListener_InvalidMessages(t *testing.T) {
	sub := &fakeSubscriber{}
	h := &recordingHandler{}
	l := NewListener(sub, "healthsync/lifecycle", 1, h, zap.NewNop())
	require.NoError(t, l.Start())

	assert.Error(t, sub.handler(sub.topic, []byte(`not json`)))
	assert.Error(t, sub.handler(sub.topic, []byte(`{"event":"screenDimmed"}`)))
	assert.Empty(t, h.Events())
}

func TestListener_SubscribeError(t *testing.T) {
	sub := &fakeSubscriber{subscribeErr: errors.New("not connected")}
	l := NewListener(sub, "healthsync/lifecycle", 1, &recordingHandler{}, zap.NewNop())

	assert.Error(t, l.Start())
}

func TestWatchSignals(t *testing.T) {
	h := &recordingHandler{}
	sigCh := make(chan os.Signal, 4)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		watchSignals(ctx, sigCh, h, zap.NewNop())
		close(done)
	}()

	sigCh <- syscall.SIGUSR1
	sigCh <- syscall.SIGHUP
	sigCh <- syscall.SIGUSR2

	require.Eventually(t, func() bool { return len(h.Events()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{EventDeviceLocked, EventDeviceUnlocked}, h.Events())

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not exit")
	}
}
