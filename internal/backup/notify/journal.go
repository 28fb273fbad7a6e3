package notify

import (
	"fmt"

	"github.com/coreos/go-systemd/v22/journal"
)

// JournalNotifier 把通知写入 systemd journal
type JournalNotifier struct{}

// 确保 JournalNotifier 实现了 Notifier 接口
var _ Notifier = (*JournalNotifier)(nil)

// NewJournalNotifier 创建 journal 通知器
// journal socket 不可用（容器、非 systemd 系统）时返回错误
func NewJournalNotifier() (*JournalNotifier, error) {
	if !journal.Enabled() {
		return nil, fmt.Errorf("systemd journal socket is not available")
	}
	return &JournalNotifier{}, nil
}

// Notify 实现 Notifier 接口
func (n *JournalNotifier) Notify(severity Severity, subject, body string) error {
	msg := subject
	if body != "" {
		msg = subject + "\n" + body
	}

	if err := journal.Send(msg, journalPriority(severity), map[string]string{
		"SYSLOG_IDENTIFIER": "kvm-backup",
	}); err != nil {
		return fmt.Errorf("send to journal: %w", err)
	}

	return nil
}

// journalPriority 把通知级别映射为 syslog priority
func journalPriority(severity Severity) journal.Priority {
	switch severity {
	case SeverityWarning:
		return journal.PriWarning
	case SeverityError:
		return journal.PriErr
	default:
		return journal.PriInfo
	}
}
