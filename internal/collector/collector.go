// Package collector 执行一次完整的采集周期：租约 → 会话 → 读取 → 标准化 → 发送 → 释放
package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"wisefido-healthsync/internal/lease"
	"wisefido-healthsync/internal/metrics"
	"wisefido-healthsync/internal/models"
	"wisefido-healthsync/internal/normalizer"
	"wisefido-healthsync/internal/session"
	"wisefido-healthsync/internal/source"
	"wisefido-healthsync/internal/transmitter"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ProfileLookup 静态档案查询
type ProfileLookup interface {
	GetProfile(ctx context.Context, subjectID string) (models.Profile, error)
}

// Config 采集配置
type Config struct {
	Metrics      []models.Metric // 为空时采集全部已知指标
	FetchTimeout time.Duration   // 单个指标读取超时
}

// Collector 采集周期执行器
type Collector struct {
	cfg         Config
	leases      lease.Provider
	sessions    session.Resolver
	sources     *source.Registry
	profiles    ProfileLookup
	transmitter transmitter.Transmitter
	logger      *zap.Logger
	now         func() time.Time

	mu   sync.Mutex
	held *lease.Lease
}

// NewCollector 创建采集周期执行器
func NewCollector(
	cfg Config,
	leases lease.Provider,
	sessions session.Resolver,
	sources *source.Registry,
	profiles ProfileLookup,
	tx transmitter.Transmitter,
	logger *zap.Logger,
) *Collector {
	if len(cfg.Metrics) == 0 {
		cfg.Metrics = models.KnownMetrics
	}
	return &Collector{
		cfg:         cfg,
		leases:      leases,
		sessions:    sessions,
		sources:     sources,
		profiles:    profiles,
		transmitter: tx,
		logger:      logger,
		now:         time.Now,
	}
}

// RunCycle 执行一次采集周期
// 无活动会话时返回 nil；发送失败时记录丢弃并返回错误，由调度器照常重新排期
func (c *Collector) RunCycle(ctx context.Context) (err error) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.CyclesTotal.WithLabelValues(result).Inc()
		metrics.CycleDuration.Observe(time.Since(start).Seconds())
	}()

	cycleCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// 1. 获取执行窗口，到期时取消本周期
	l, err := c.leases.Acquire(cycleCtx, func(expired *lease.Lease) {
		c.logger.Warn("Execution lease expired, aborting cycle",
			zap.String("lease_id", expired.ID()),
			zap.Duration("budget", expired.Budget()),
		)
		cancel()
	})
	if err != nil {
		result = metrics.ResultWindowUnavailable
		if errors.Is(err, lease.ErrWindowUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %v", lease.ErrWindowUnavailable, err)
	}
	c.setHeld(l)
	defer func() {
		c.setHeld(nil)
		l.Release()
		if l.Expired() {
			result = metrics.ResultLeaseExpired
			if err == nil || !errors.Is(err, lease.ErrLeaseExpired) {
				err = fmt.Errorf("%w: lease %s", lease.ErrLeaseExpired, l.ID())
			}
		}
	}()

	// 2. 解析当前会话
	sess, err := c.sessions.ActiveSession(cycleCtx)
	if err != nil {
		result = metrics.ResultError
		return fmt.Errorf("failed to resolve active session: %w", err)
	}
	if sess == nil {
		result = metrics.ResultNoSession
		c.logger.Debug("No active session, skipping cycle")
		return nil
	}

	// 3. 选择数据源
	src, ok := c.sources.Get(sess.Source)
	if !ok {
		result = metrics.ResultError
		return fmt.Errorf("%w: source %q is not registered", source.ErrNotAvailable, sess.Source)
	}

	// 静态档案查询失败不影响本周期
	profile, perr := c.profiles.GetProfile(cycleCtx, sess.SubjectID)
	if perr != nil {
		c.logger.Warn("Failed to load profile, sending without it",
			zap.String("subject_id", sess.SubjectID),
			zap.Error(perr),
		)
		profile = models.Profile{}
	}

	// 4. 并发读取各指标
	samples := c.fetchAll(cycleCtx, src)

	// 5. 标准化
	normalized := normalizer.Normalize(samples)
	for _, rej := range normalized.Rejections {
		c.logger.Warn("Sample rejected",
			zap.String("metric", string(rej.Metric)),
			zap.String("unit", rej.Unit),
			zap.String("reason", rej.Reason),
		)
	}

	if cycleCtx.Err() != nil && l.Expired() {
		// 窗口已到期，不再发送
		return fmt.Errorf("%w: lease %s", lease.ErrLeaseExpired, l.ID())
	}

	record := models.NewCanonicalRecord(
		uuid.NewString(),
		sess.Token,
		sess.Source,
		profile,
		normalized.Measurements,
		c.now(),
	)

	// 6. 发送，失败则丢弃
	if err := c.transmitter.Send(cycleCtx, record, sess.ContextID); err != nil {
		result = metrics.ResultTransmitFailed
		c.logger.Warn("Failed to transmit record, dropping it",
			zap.String("record_id", record.RecordID()),
			zap.String("context_id", sess.ContextID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to transmit record %s: %w", record.RecordID(), err)
	}

	c.logger.Info("Record transmitted",
		zap.String("record_id", record.RecordID()),
		zap.String("context_id", sess.ContextID),
		zap.String("source", string(sess.Source)),
		zap.Int("metrics", record.Measurements().Len()),
	)
	return nil
}

// fetchAll 读取所有指标；单个指标失败视为缺失
func (c *Collector) fetchAll(ctx context.Context, src source.MeasurementSource) []models.Sample {
	results := make([]*models.Sample, len(c.cfg.Metrics))

	var g errgroup.Group
	for i, metric := range c.cfg.Metrics {
		i, metric := i, metric
		g.Go(func() error {
			fetchCtx := ctx
			if c.cfg.FetchTimeout > 0 {
				var cancel context.CancelFunc
				fetchCtx, cancel = context.WithTimeout(ctx, c.cfg.FetchTimeout)
				defer cancel()
			}

			sample, err := src.FetchLatest(fetchCtx, metric)
			if err != nil {
				metrics.MetricFetchFailures.WithLabelValues(string(metric)).Inc()
				c.logger.Warn("Failed to fetch metric, treating as absent",
					zap.String("metric", string(metric)),
					zap.String("source", string(src.Kind())),
					zap.Error(err),
				)
				return nil
			}
			if sample == nil {
				return nil
			}
			if sample.Metric == "" {
				sample.Metric = metric
			}
			results[i] = sample
			return nil
		})
	}
	_ = g.Wait()

	samples := make([]models.Sample, 0, len(results))
	for _, s := range results {
		if s != nil {
			samples = append(samples, *s)
		}
	}
	return samples
}

// ReleaseLease 释放当前周期持有的执行窗口（停止调度时调用），不中断周期本身
func (c *Collector) ReleaseLease() {
	c.mu.Lock()
	l := c.held
	c.mu.Unlock()

	if l != nil && l.Release() {
		c.logger.Info("Execution lease released on stop", zap.String("lease_id", l.ID()))
	}
}

func (c *Collector) setHeld(l *lease.Lease) {
	c.mu.Lock()
	c.held = l
	c.mu.Unlock()
}
