// Package session 解析当前活动会话
//
// 会话由外部的登录/授权流程写入 KV。没有活动会话是正常的空闲状态，不是错误：
// ActiveSession 此时返回 (nil, nil)。
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"wisefido-healthsync/internal/models"
	"wisefido-healthsync/internal/store"

	"go.uber.org/zap"
)

// Resolver 会话解析接口
type Resolver interface {
	ActiveSession(ctx context.Context) (*models.Session, error)
}

// Store 基于 KV 的会话存储
type Store struct {
	kv     store.KV
	key    string
	logger *zap.Logger
}

// NewStore 创建会话存储
func NewStore(kv store.KV, key string, logger *zap.Logger) *Store {
	return &Store{kv: kv, key: key, logger: logger}
}

// ActiveSession 读取活动会话
func (s *Store) ActiveSession(ctx context.Context) (*models.Session, error) {
	val, err := s.kv.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, store.ErrMiss) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var sess models.Session
	if err := json.Unmarshal([]byte(val), &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	if sess.Token == "" {
		// 令牌被清空视为已登出
		s.logger.Debug("Session without token, treating as inactive", zap.String("key", s.key))
		return nil, nil
	}
	if sess.ContextID == "" {
		sess.ContextID = sess.SubjectID
	}
	return &sess, nil
}

// Put 写入活动会话（ttl=0 表示不过期）
func (s *Store) Put(ctx context.Context, sess models.Session, ttl time.Duration) error {
	if sess.Token == "" {
		return errors.New("session token is required")
	}
	if !sess.Source.Valid() {
		return fmt.Errorf("unknown session source: %q", sess.Source)
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return s.kv.Set(ctx, s.key, string(data), ttl)
}

// Clear 清除活动会话
func (s *Store) Clear(ctx context.Context) error {
	return s.kv.Del(ctx, s.key)
}
