package qemuimg

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockClient 是 QemuImgClient 的 mock 实现
// 用于测试，不需要真实的 qemu-img 命令
type MockClient struct {
	mock.Mock
}

// NewMockClient 创建新的 MockClient
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Convert 实现 QemuImgClient 接口
func (m *MockClient) Convert(ctx context.Context, inputFormat, outputFormat, inputFile, outputFile string) error {
	args := m.Called(ctx, inputFormat, outputFormat, inputFile, outputFile)
	return args.Error(0)
}

// Info 实现 QemuImgClient 接口
func (m *MockClient) Info(ctx context.Context, imagePath string) (string, error) {
	args := m.Called(ctx, imagePath)
	return args.String(0), args.Error(1)
}

// GetFormat 实现 QemuImgClient 接口
func (m *MockClient) GetFormat(ctx context.Context, imagePath string) (string, error) {
	args := m.Called(ctx, imagePath)
	return args.String(0), args.Error(1)
}
