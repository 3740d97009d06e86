package lifecycle

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

// 没有消息代理的主机上用信号模拟锁屏/解锁
var signalEvents = map[os.Signal]string{
	syscall.SIGUSR1: EventDeviceLocked,
	syscall.SIGUSR2: EventDeviceUnlocked,
}

// WatchSignals 监听 SIGUSR1/SIGUSR2 直到 ctx 取消
func WatchSignals(ctx context.Context, h Handler, logger *zap.Logger) {
	sigCh := make(chan os.Signal, 4)
	signal.Notify(sigCh, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(sigCh)

	watchSignals(ctx, sigCh, h, logger)
}

func watchSignals(ctx context.Context, sigCh <-chan os.Signal, h Handler, logger *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigCh:
			event, ok := signalEvents[sig]
			if !ok {
				continue
			}
			logger.Info("Lifecycle signal received",
				zap.String("signal", sig.String()),
				zap.String("event", event),
			)
			_ = Dispatch(h, event)
		}
	}
}
