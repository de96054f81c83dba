package workflow

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"fleetcomply/internal/model"
)

// DefaultPollInterval 铃铛刷新未读通知的间隔
const DefaultPollInterval = 30 * time.Second

// Notifier 向用户展示临时错误
type Notifier func(err error)

// BellOption Bell 的配置项
type BellOption func(*Bell)

// WithPollInterval 覆盖 DefaultPollInterval
func WithPollInterval(d time.Duration) BellOption {
	return func(b *Bell) { b.interval = d }
}

// WithNotifier 设置确认失败时的回调
func WithNotifier(n Notifier) BellOption {
	return func(b *Bell) { b.notify = n }
}

// WithBellLogger 设置日志
func WithBellLogger(l *zap.Logger) BellOption {
	return func(b *Bell) { b.logger = l }
}

// Bell 跟踪未读通知
//
// 每次拉取都有序号，早于最后一次已应用的响应会被丢弃，慢请求不会覆盖较新的列表。
// 确认操作先乐观更新，服务端拒绝时回滚并重新拉取
type Bell struct {
	api      NotificationAPI
	interval time.Duration
	notify   Notifier
	logger   *zap.Logger

	mu      sync.Mutex
	state   LoadState
	items   []model.Notification
	err     error
	issued  uint64
	applied uint64
}

// NewBell 创建空闲的铃铛
func NewBell(api NotificationAPI, opts ...BellOption) *Bell {
	b := &Bell{
		api:      api,
		interval: DefaultPollInterval,
		notify:   func(error) {},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BellSnapshot 铃铛的渲染状态
type BellSnapshot struct {
	State  LoadState
	Unread []model.Notification
	Err    error
}

// Count 角标数字
func (s BellSnapshot) Count() int {
	return len(s.Unread)
}

// Snapshot 返回当前渲染状态
func (b *Bell) Snapshot() BellSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	items := make([]model.Notification, len(b.items))
	copy(items, b.items)
	return BellSnapshot{State: b.state, Unread: items, Err: b.err}
}

// Refresh 拉取未读列表
func (b *Bell) Refresh(ctx context.Context) error {
	b.mu.Lock()
	b.issued++
	seq := b.issued
	b.state = Loading
	b.mu.Unlock()

	items, err := b.api.Notifications(ctx, true)

	b.mu.Lock()
	defer b.mu.Unlock()
	if seq <= b.applied {
		b.logger.Debug("dropping stale notification fetch", zap.Uint64("seq", seq), zap.Uint64("applied", b.applied))
		return nil
	}
	b.applied = seq
	if err != nil {
		b.state, b.err = Failed, err
		return err
	}
	b.state, b.items, b.err = Loaded, unread(items), nil
	return nil
}

func unread(items []model.Notification) []model.Notification {
	out := make([]model.Notification, 0, len(items))
	for _, n := range items {
		if !n.IsRead {
			out = append(out, n)
		}
	}
	return out
}

// MarkRead 先从列表移除通知再向服务端确认。失败时恢复该项、通知用户并重新拉取
func (b *Bell) MarkRead(ctx context.Context, id int64) error {
	b.mu.Lock()
	idx := -1
	for i, n := range b.items {
		if n.ID == id {
			idx = i
			break
		}
	}
	var removed model.Notification
	if idx >= 0 {
		removed = b.items[idx]
		b.items = append(b.items[:idx:idx], b.items[idx+1:]...)
	}
	b.mu.Unlock()

	err := b.api.MarkNotificationRead(ctx, id)
	if err == nil {
		return nil
	}

	if idx >= 0 {
		b.mu.Lock()
		b.restore(removed, idx)
		b.mu.Unlock()
	}
	b.reconcile(ctx, err)
	return err
}

// restore 将 n 放回 idx，除非刷新已经把它带回
func (b *Bell) restore(n model.Notification, idx int) {
	for _, existing := range b.items {
		if existing.ID == n.ID {
			return
		}
	}
	idx = min(idx, len(b.items))
	b.items = append(b.items[:idx:idx], append([]model.Notification{n}, b.items[idx:]...)...)
}

// MarkAllRead 清空列表，向服务端确认后重新拉取
func (b *Bell) MarkAllRead(ctx context.Context) error {
	b.mu.Lock()
	previous := b.items
	b.items = []model.Notification{}
	b.mu.Unlock()

	if _, err := b.api.MarkAllNotificationsRead(ctx); err != nil {
		b.mu.Lock()
		if len(b.items) == 0 {
			b.items = previous
		}
		b.mu.Unlock()
		b.reconcile(ctx, err)
		return err
	}
	return b.Refresh(ctx)
}

func (b *Bell) reconcile(ctx context.Context, cause error) {
	b.logger.Warn("notification acknowledgement failed", zap.Error(cause))
	b.notify(cause)
	if err := b.Refresh(ctx); err != nil {
		b.logger.Warn("notification refresh failed", zap.Error(err))
	}
}

// Run 轮询直到 ctx 结束，首次拉取立即执行
func (b *Bell) Run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		if err := b.Refresh(ctx); err != nil && ctx.Err() == nil {
			b.logger.Debug("notification poll failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
