package lease

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LocalProvider 进程内执行窗口，同一时间只发放一个
type LocalProvider struct {
	budget time.Duration
	logger *zap.Logger

	mu   sync.Mutex
	held *Lease
}

// NewLocalProvider 创建进程内执行窗口提供者
func NewLocalProvider(budget time.Duration, logger *zap.Logger) *LocalProvider {
	return &LocalProvider{budget: budget, logger: logger}
}

// Acquire 获取执行窗口；上一个窗口未释放时失败
func (p *LocalProvider) Acquire(ctx context.Context, onExpire ExpiryFunc) (*Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWindowUnavailable, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.held != nil && !p.held.Released() {
		return nil, fmt.Errorf("%w: lease %s still held", ErrWindowUnavailable, p.held.ID())
	}

	l := newLease(uuid.NewString(), p.budget, func(released *Lease) {
		p.mu.Lock()
		if p.held == released {
			p.held = nil
		}
		p.mu.Unlock()
		p.logger.Debug("Execution lease released", zap.String("lease_id", released.ID()))
	}, onExpire)
	p.held = l

	p.logger.Debug("Execution lease acquired",
		zap.String("lease_id", l.ID()),
		zap.Duration("budget", p.budget),
	)
	return l, nil
}
