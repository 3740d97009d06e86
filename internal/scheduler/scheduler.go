// Package scheduler 后台采集调度器
//
// 所有状态只在一个事件循环 goroutine 中修改：Start/Stop/锁屏/解锁/定时触发/周期完成
// 都作为事件投递到同一个队列，按到达顺序处理。
//
// 保证：
// - 任意时刻最多一个已排期的触发器
// - 设备锁定或停止时不存在已排期的触发器
// - 上一个周期完成之前不会排期下一个周期，间隔从完成时刻开始计算
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"wisefido-healthsync/internal/metrics"

	"go.uber.org/zap"
)

// ErrClosed 调度器已关闭
var ErrClosed = errors.New("scheduler closed")

// DefaultDelay 默认采集间隔
const DefaultDelay = 60 * time.Second

// Phase 调度阶段
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseScheduled  Phase = "scheduled"
	PhaseCollecting Phase = "collecting"
	PhaseLocked     Phase = "locked"
	PhaseStopped    Phase = "stopped"
)

var allPhases = []string{
	string(PhaseIdle),
	string(PhaseScheduled),
	string(PhaseCollecting),
	string(PhaseLocked),
	string(PhaseStopped),
}

// Cycle 一次采集周期
type Cycle interface {
	RunCycle(ctx context.Context) error
	// ReleaseLease 释放进行中周期持有的执行窗口，不中断周期
	ReleaseLease()
}

// Config 调度配置
type Config struct {
	Delay time.Duration // 默认 60 秒
	Clock Clock         // 为空时使用系统时钟
}

// Snapshot 调度状态快照
type Snapshot struct {
	Phase        Phase
	Running      bool
	DeviceLocked bool
	Pending      bool
	Collecting   bool
	NextTrigger  time.Time // 没有排期时为零值
}

type eventKind int

const (
	evStart eventKind = iota
	evStop
	evLock
	evUnlock
	evBackground
	evFire
	evCycleDone
	evSnapshot
)

func (k eventKind) String() string {
	switch k {
	case evStart:
		return "start"
	case evStop:
		return "stop"
	case evLock:
		return "device_locked"
	case evUnlock:
		return "device_unlocked"
	case evBackground:
		return "entered_background"
	case evFire:
		return "fire"
	case evCycleDone:
		return "cycle_done"
	case evSnapshot:
		return "snapshot"
	}
	return "unknown"
}

type event struct {
	kind  eventKind
	gen   uint64 // evFire: 排期时的代数
	err   error  // evCycleDone: 周期结果
	reply chan Snapshot
}

// Scheduler 采集调度器
type Scheduler struct {
	cycle  Cycle
	clock  Clock
	delay  time.Duration
	logger *zap.Logger

	events    chan event
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	cycleCtx    context.Context
	cancelCycle context.CancelFunc
	cycles      sync.WaitGroup

	// 以下字段只在事件循环中访问
	running      bool
	started      bool
	deviceLocked bool
	collecting   bool
	pending      Timer
	gen          uint64
	nextTrigger  time.Time
}

// NewScheduler 创建调度器并启动事件循环
// 调度器创建后处于 Idle，需要调用 Start 才会排期
func NewScheduler(cycle Cycle, cfg Config, logger *zap.Logger) *Scheduler {
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultDelay
	}
	if cfg.Clock == nil {
		cfg.Clock = RealClock()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cycle:       cycle,
		clock:       cfg.Clock,
		delay:       cfg.Delay,
		logger:      logger,
		events:      make(chan event),
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
		cycleCtx:    ctx,
		cancelCycle: cancel,
	}
	metrics.SetPhase(string(PhaseIdle), allPhases)
	go s.loop()
	return s
}

// Start 开始调度（幂等）；设备未锁定时在一个间隔后触发第一次采集
func (s *Scheduler) Start() { s.send(evStart) }

// Stop 停止调度（幂等）；取消已排期的触发器并释放执行窗口，进行中的周期继续执行但不再排期
func (s *Scheduler) Stop() { s.send(evStop) }

// OnDeviceLocked 设备锁定通知（幂等）
func (s *Scheduler) OnDeviceLocked() { s.send(evLock) }

// OnDeviceUnlocked 设备解锁通知（幂等）
func (s *Scheduler) OnDeviceUnlocked() { s.send(evUnlock) }

// OnEnteredBackground 进入后台通知；运行中且没有排期时补一次排期，否则无操作
func (s *Scheduler) OnEnteredBackground() { s.send(evBackground) }

// State 获取状态快照；关闭后返回 Stopped
func (s *Scheduler) State() Snapshot {
	reply := make(chan Snapshot, 1)
	if err := s.post(event{kind: evSnapshot, reply: reply}); err != nil {
		return Snapshot{Phase: PhaseStopped}
	}
	select {
	case snap := <-reply:
		return snap
	case <-s.done:
		return Snapshot{Phase: PhaseStopped}
	}
}

// Close 停止调度并关闭事件循环
// 等待进行中的周期完成，ctx 到期时取消该周期并返回 ctx 的错误
func (s *Scheduler) Close(ctx context.Context) error {
	first := false
	s.closeOnce.Do(func() { first = true })
	if !first {
		return ErrClosed
	}

	s.Stop()

	waitCh := make(chan struct{})
	go func() {
		s.cycles.Wait()
		close(waitCh)
	}()

	var err error
	select {
	case <-waitCh:
	case <-ctx.Done():
		err = ctx.Err()
		s.logger.Warn("Collection cycle still running at close, canceling it")
	}
	s.cancelCycle()

	close(s.quit)
	<-s.done
	return err
}

// send 投递事件并等待事件循环处理完成
func (s *Scheduler) send(kind eventKind) {
	reply := make(chan Snapshot, 1)
	if err := s.post(event{kind: kind, reply: reply}); err != nil {
		s.logger.Debug("Scheduler closed, event ignored", zap.Stringer("event", kind))
		return
	}
	select {
	case <-reply:
	case <-s.done:
	}
}

func (s *Scheduler) post(ev event) error {
	select {
	case s.events <- ev:
		return nil
	case <-s.quit:
		return ErrClosed
	}
}

func (s *Scheduler) loop() {
	defer close(s.done)
	for {
		select {
		case ev := <-s.events:
			s.handle(ev)
			if ev.reply != nil {
				ev.reply <- s.snapshot()
			}
		case <-s.quit:
			s.cancelPending()
			metrics.SetPhase(string(PhaseStopped), allPhases)
			return
		}
	}
}

func (s *Scheduler) handle(ev event) {
	switch ev.kind {
	case evStart:
		if s.running {
			return
		}
		s.running = true
		s.started = true
		s.logger.Info("Collection scheduler started", zap.Bool("device_locked", s.deviceLocked))
		s.armIfIdle()

	case evStop:
		if !s.running {
			return
		}
		s.running = false
		s.cancelPending()
		if s.collecting {
			s.cycle.ReleaseLease()
		}
		s.logger.Info("Collection scheduler stopped", zap.Bool("cycle_in_flight", s.collecting))

	case evLock:
		if s.deviceLocked {
			return
		}
		s.deviceLocked = true
		s.cancelPending()
		s.logger.Info("Device locked, scheduling suspended", zap.Bool("cycle_in_flight", s.collecting))

	case evUnlock:
		if !s.deviceLocked {
			return
		}
		s.deviceLocked = false
		s.logger.Info("Device unlocked", zap.Bool("running", s.running))
		s.armIfIdle()

	case evBackground:
		if s.armIfIdle() {
			s.logger.Info("Entered background, trigger re-armed")
		}

	case evFire:
		if ev.gen != s.gen || s.pending == nil {
			// 已被 Stop/锁屏取消的触发器
			s.logger.Debug("Stale trigger ignored", zap.Uint64("gen", ev.gen))
			return
		}
		s.pending = nil
		s.nextTrigger = time.Time{}
		if !s.running || s.deviceLocked || s.collecting {
			return
		}
		s.runCycle()

	case evCycleDone:
		s.collecting = false
		if ev.err != nil {
			s.logger.Warn("Collection cycle failed", zap.Error(ev.err))
		}
		s.armIfIdle()

	case evSnapshot:
	}
	metrics.SetPhase(string(s.phase()), allPhases)
}

// armIfIdle 运行中、未锁定、没有排期且没有进行中的周期时排期
func (s *Scheduler) armIfIdle() bool {
	if !s.running || s.deviceLocked || s.collecting || s.pending != nil {
		return false
	}
	s.gen++
	gen := s.gen
	s.pending = s.clock.AfterFunc(s.delay, func() {
		_ = s.post(event{kind: evFire, gen: gen})
	})
	s.nextTrigger = s.clock.Now().Add(s.delay)
	s.logger.Debug("Collection trigger armed",
		zap.Time("next_trigger", s.nextTrigger),
		zap.Uint64("gen", gen),
	)
	return true
}

func (s *Scheduler) cancelPending() {
	if s.pending == nil {
		return
	}
	s.pending.Stop()
	s.pending = nil
	s.nextTrigger = time.Time{}
	// 已经触发但尚未处理的事件因代数不符被丢弃
	s.gen++
}

func (s *Scheduler) runCycle() {
	s.collecting = true
	s.cycles.Add(1)
	go func() {
		defer s.cycles.Done()
		err := s.cycle.RunCycle(s.cycleCtx)
		_ = s.post(event{kind: evCycleDone, err: err})
	}()
}

func (s *Scheduler) phase() Phase {
	switch {
	case !s.running && s.started:
		return PhaseStopped
	case !s.running:
		return PhaseIdle
	case s.collecting:
		return PhaseCollecting
	case s.deviceLocked:
		return PhaseLocked
	case s.pending != nil:
		return PhaseScheduled
	}
	return PhaseIdle
}

func (s *Scheduler) snapshot() Snapshot {
	return Snapshot{
		Phase:        s.phase(),
		Running:      s.running,
		DeviceLocked: s.deviceLocked,
		Pending:      s.pending != nil,
		Collecting:   s.collecting,
		NextTrigger:  s.nextTrigger,
	}
}
