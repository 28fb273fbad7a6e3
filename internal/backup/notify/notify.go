// Package notify 提供备份结果的通知通道
//
// 通知是 fire-and-forget 的：通知失败只记录日志，永远不会影响备份流程。
package notify

import (
	"github.com/rs/zerolog"
)

// Severity 通知级别
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

// String 实现 fmt.Stringer 接口
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Notifier 定义通知通道接口
type Notifier interface {
	Notify(severity Severity, subject, body string) error
}

// Multi 把通知扇出到多个通道
// 单个通道的失败只记录 warning 日志，Notify 永远返回 nil
type Multi struct {
	notifiers []Notifier
	logger    zerolog.Logger
}

// 确保 Multi 实现了 Notifier 接口
var _ Notifier = (*Multi)(nil)

// NewMulti 创建扇出通知器
func NewMulti(logger zerolog.Logger, notifiers ...Notifier) *Multi {
	return &Multi{
		notifiers: notifiers,
		logger:    logger,
	}
}

// Notify 实现 Notifier 接口
func (m *Multi) Notify(severity Severity, subject, body string) error {
	for _, n := range m.notifiers {
		if err := n.Notify(severity, subject, body); err != nil {
			m.logger.Warn().Err(err).
				Str("severity", severity.String()).
				Str("subject", subject).
				Msg("Failed to send notification")
		}
	}
	return nil
}
