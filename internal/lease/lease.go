// Package lease 管理后台执行时间窗口（ExecutionLease）
//
// 每次 Acquire 得到的 Lease 必须且只能释放一次：正常结束、失败、以及到期回调都会走 Release，
// 重复调用 Release 不会产生第二次释放。
package lease

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"wisefido-healthsync/internal/metrics"
)

var (
	// ErrWindowUnavailable 无法获得执行窗口
	ErrWindowUnavailable = errors.New("execution window unavailable")
	// ErrLeaseExpired 执行窗口已到期
	ErrLeaseExpired = errors.New("execution lease expired")
)

// ExpiryFunc 到期回调，在 Lease 被强制释放之前调用
type ExpiryFunc func(l *Lease)

// Provider 执行窗口提供者
type Provider interface {
	Acquire(ctx context.Context, onExpire ExpiryFunc) (*Lease, error)
}

// Lease 一次执行窗口
type Lease struct {
	id         string
	acquiredAt time.Time
	budget     time.Duration

	once     sync.Once
	timer    *time.Timer
	release  func(l *Lease)
	expired  atomic.Bool
	released atomic.Bool
}

func newLease(id string, budget time.Duration, release func(l *Lease), onExpire ExpiryFunc) *Lease {
	l := &Lease{
		id:         id,
		acquiredAt: time.Now(),
		budget:     budget,
		release:    release,
	}
	metrics.LeasesAcquired.Inc()
	metrics.LeaseHeld.Set(1)
	if budget > 0 {
		l.timer = time.AfterFunc(budget, func() {
			if l.released.Load() {
				return
			}
			l.expired.Store(true)
			metrics.LeasesExpired.Inc()
			if onExpire != nil {
				onExpire(l)
			}
			l.Release()
		})
	}
	return l
}

// ID 窗口 ID
func (l *Lease) ID() string { return l.id }

// Budget 窗口时长
func (l *Lease) Budget() time.Duration { return l.budget }

// Expired 是否已到期
func (l *Lease) Expired() bool { return l.expired.Load() }

// Released 是否已释放
func (l *Lease) Released() bool { return l.released.Load() }

// Release 释放窗口，返回本次调用是否执行了释放
func (l *Lease) Release() bool {
	did := false
	l.once.Do(func() {
		did = true
		if l.timer != nil {
			l.timer.Stop()
		}
		l.released.Store(true)
		if l.release != nil {
			l.release(l)
		}
		metrics.LeasesReleased.Inc()
		metrics.LeaseHeld.Set(0)
	})
	return did
}
