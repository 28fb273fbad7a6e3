package notify

import (
	"github.com/stretchr/testify/mock"
)

// MockNotifier 是 Notifier 的 mock 实现
type MockNotifier struct {
	mock.Mock
}

// 确保 MockNotifier 实现了 Notifier 接口
var _ Notifier = (*MockNotifier)(nil)

// NewMockNotifier 创建新的 MockNotifier
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

// Notify 实现 Notifier 接口
func (m *MockNotifier) Notify(severity Severity, subject, body string) error {
	args := m.Called(severity, subject, body)
	return args.Error(0)
}
