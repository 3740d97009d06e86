package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"wisefido-healthsync/common/database"
	mqttcommon "wisefido-healthsync/common/mqtt"
	rediscommon "wisefido-healthsync/common/redis"
	"wisefido-healthsync/internal/collector"
	"wisefido-healthsync/internal/config"
	"wisefido-healthsync/internal/lease"
	"wisefido-healthsync/internal/lifecycle"
	"wisefido-healthsync/internal/models"
	"wisefido-healthsync/internal/repository"
	"wisefido-healthsync/internal/scheduler"
	"wisefido-healthsync/internal/session"
	"wisefido-healthsync/internal/source"
	"wisefido-healthsync/internal/store"
	"wisefido-healthsync/internal/transmitter"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// HealthSyncService 健康数据同步服务
type HealthSyncService struct {
	config     *config.Config
	logger     *zap.Logger
	db         *sql.DB
	redis      *redis.Client
	mqttClient *mqttcommon.Client

	registry   *source.Registry
	broker     *source.BrokerSource
	collector  *collector.Collector
	scheduler  *scheduler.Scheduler
	listener   *lifecycle.Listener
	httpServer *http.Server

	cancelSignals context.CancelFunc
}

// NewHealthSyncService 创建健康数据同步服务
func NewHealthSyncService(cfg *config.Config, logger *zap.Logger) (*HealthSyncService, error) {
	// 初始化数据库
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 初始化Redis
	redisClient := rediscommon.NewRedisClient(&cfg.Redis)
	if err := rediscommon.Ping(context.Background(), redisClient); err != nil {
		database.Close(db)
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	// 初始化MQTT
	mqttClient, err := mqttcommon.NewClient(&cfg.MQTT, logger)
	if err != nil {
		rediscommon.Close(redisClient)
		database.Close(db)
		return nil, fmt.Errorf("failed to connect to MQTT: %w", err)
	}

	s := &HealthSyncService{
		config:     cfg,
		logger:     logger,
		db:         db,
		redis:      redisClient,
		mqttClient: mqttClient,
	}

	// 数据源
	s.registry = source.NewRegistry()
	if cfg.Sources.VendorAPI.Enabled {
		s.registry.Register(source.NewVendorAPISource(source.VendorAPIConfig{
			BaseURL:    cfg.Sources.VendorAPI.BaseURL,
			AppID:      cfg.Sources.VendorAPI.AppID,
			SecretKey:  cfg.Sources.VendorAPI.SecretKey,
			Timeout:    cfg.Sources.VendorAPI.Timeout,
			RetryCount: cfg.Sources.VendorAPI.RetryCount,
		}, logger))
	}
	if cfg.Sources.Broker.Enabled {
		s.broker = source.NewBrokerSource(mqttClient, cfg.Sources.Broker.Topic, cfg.MQTT.QoS, cfg.Sources.Broker.MaxAge, logger)
		s.registry.Register(s.broker)
	}
	if cfg.Sources.Timeseries.Enabled {
		s.registry.Register(source.NewTimeseriesSource(db, cfg.Collector.DeviceID, logger))
	}

	tx, err := newTransmitter(cfg, mqttClient, redisClient, logger)
	if err != nil {
		s.closeConnections()
		return nil, err
	}
	leases, err := newLeaseProvider(cfg, redisClient, logger)
	if err != nil {
		s.closeConnections()
		return nil, err
	}

	kv := store.NewRedisKV(redisClient)
	sessions := session.NewStore(kv, cfg.Session.Key, logger)
	profiles := repository.NewCachedProfileRepository(
		repository.NewProfileRepository(db, logger),
		kv,
		cfg.Profile.CachePrefix,
		cfg.Profile.CacheTTL,
		logger,
	)

	s.collector = collector.NewCollector(
		collector.Config{
			Metrics:      models.ParseMetrics(cfg.Collector.Scopes),
			FetchTimeout: cfg.Collector.FetchTimeout,
		},
		leases,
		sessions,
		s.registry,
		profiles,
		tx,
		logger,
	)
	s.scheduler = scheduler.NewScheduler(s.collector, scheduler.Config{Delay: cfg.Collector.Interval}, logger)
	s.listener = lifecycle.NewListener(mqttClient, cfg.Lifecycle.Topic, cfg.MQTT.QoS, s.scheduler, logger)

	s.httpServer = &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           newHTTPHandler(db, redisClient, mqttClient),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s, nil
}

// Start 启动服务
func (s *HealthSyncService) Start(ctx context.Context) error {
	s.logger.Info("Starting health sync service components")

	// 1. 授权数据源，至少一个成功
	if err := authorizeSources(ctx, s.registry, s.config.Collector.Scopes, s.logger); err != nil {
		return err
	}

	// 2. 指标和健康检查
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Metrics server failed", zap.Error(err))
		}
	}()

	// 3. 启动调度
	s.scheduler.Start()

	// 4. 生命周期信号
	if err := s.listener.Start(); err != nil {
		return fmt.Errorf("failed to start lifecycle listener: %w", err)
	}
	if s.config.Lifecycle.SignalsEnable {
		sigCtx, cancel := context.WithCancel(ctx)
		s.cancelSignals = cancel
		go lifecycle.WatchSignals(sigCtx, s.scheduler, s.logger)
	}

	s.logger.Info("Health sync service started successfully",
		zap.Duration("interval", s.config.Collector.Interval),
		zap.String("transmit_mode", s.config.Transmit.Mode),
		zap.String("lease_mode", s.config.Lease.Mode),
		zap.String("http_addr", s.config.HTTP.Addr),
	)
	return nil
}

// Stop 停止服务
func (s *HealthSyncService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping health sync service")

	if s.listener != nil {
		s.listener.Stop()
	}
	if s.cancelSignals != nil {
		s.cancelSignals()
	}

	// 等待进行中的周期
	if s.scheduler != nil {
		if err := s.scheduler.Close(ctx); err != nil && !errors.Is(err, scheduler.ErrClosed) {
			s.logger.Error("Error closing scheduler", zap.Error(err))
		}
	}

	if s.broker != nil {
		if err := s.broker.Close(); err != nil {
			s.logger.Error("Error closing broker source", zap.Error(err))
		}
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("Error stopping metrics server", zap.Error(err))
		}
	}

	s.closeConnections()

	s.logger.Info("Health sync service stopped")
	return nil
}

func (s *HealthSyncService) closeConnections() {
	// 断开MQTT
	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}

	// 关闭Redis
	if s.redis != nil {
		rediscommon.Close(s.redis)
	}

	// 关闭数据库
	if s.db != nil {
		database.Close(s.db)
	}
}

// authorizeSources 授权所有已登记的数据源，失败的从登记表移除
// 全部失败时返回错误（环境不可用，不重试）
func authorizeSources(ctx context.Context, registry *source.Registry, scopes []string, logger *zap.Logger) error {
	var errs []error
	for _, kind := range registry.Kinds() {
		src, ok := registry.Get(kind)
		if !ok {
			continue
		}
		if err := src.Authorize(ctx, scopes); err != nil {
			logger.Error("Measurement source authorization failed",
				zap.String("source", string(kind)),
				zap.Error(err),
			)
			registry.Remove(kind)
			errs = append(errs, fmt.Errorf("%s: %w", kind, err))
			continue
		}
		logger.Info("Measurement source authorized",
			zap.String("source", string(kind)),
			zap.Strings("scopes", scopes),
		)
	}

	if len(registry.Kinds()) == 0 {
		if len(errs) == 0 {
			return fmt.Errorf("%w: no measurement source configured", source.ErrNotAvailable)
		}
		return fmt.Errorf("no measurement source authorized: %w", errors.Join(errs...))
	}
	return nil
}

// newTransmitter 按发送模式创建发送器
func newTransmitter(cfg *config.Config, publisher transmitter.Publisher, redisClient *redis.Client, logger *zap.Logger) (transmitter.Transmitter, error) {
	switch cfg.Transmit.Mode {
	case config.TransmitHTTP:
		return transmitter.NewHTTPTransmitter(transmitter.HTTPConfig{
			Endpoint:   cfg.Transmit.Endpoint,
			AuthToken:  cfg.Transmit.AuthToken,
			Timeout:    cfg.Transmit.Timeout,
			RetryCount: cfg.Transmit.RetryCount,
		}, logger), nil
	case config.TransmitMQTT:
		return transmitter.NewMQTTTransmitter(publisher, cfg.Transmit.TopicPrefix, cfg.MQTT.QoS, logger), nil
	case config.TransmitStream:
		return transmitter.NewStreamTransmitter(redisClient, cfg.Transmit.Stream, cfg.Transmit.StreamLen, logger), nil
	}
	return nil, fmt.Errorf("unknown transmit mode: %q", cfg.Transmit.Mode)
}

// newLeaseProvider 按租约模式创建执行窗口提供者
func newLeaseProvider(cfg *config.Config, redisClient *redis.Client, logger *zap.Logger) (lease.Provider, error) {
	switch cfg.Lease.Mode {
	case config.LeaseLocal:
		return lease.NewLocalProvider(cfg.Lease.Budget, logger), nil
	case config.LeaseRedis:
		return lease.NewRedisProvider(redisClient, cfg.Lease.Key, cfg.Lease.Budget, logger), nil
	}
	return nil, fmt.Errorf("unknown lease mode: %q", cfg.Lease.Mode)
}
