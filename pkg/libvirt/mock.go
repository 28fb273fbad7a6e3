package libvirt

import (
	"github.com/stretchr/testify/mock"
)

// MockClient 是 LibvirtClient 的 mock 实现
// 用于测试，不需要真实的 libvirt 连接
type MockClient struct {
	mock.Mock
}

// 确保 MockClient 实现了 LibvirtClient 接口
var _ LibvirtClient = (*MockClient)(nil)

// NewMockClient 创建新的 MockClient
func NewMockClient() *MockClient {
	return &MockClient{}
}

// ListRunningDomains 实现 LibvirtClient 接口
func (m *MockClient) ListRunningDomains() ([]string, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// GetDomainXMLDesc 实现 LibvirtClient 接口
func (m *MockClient) GetDomainXMLDesc(domainName string) (string, error) {
	args := m.Called(domainName)
	return args.String(0), args.Error(1)
}

// GetDomainDisks 实现 LibvirtClient 接口
func (m *MockClient) GetDomainDisks(domainName string) ([]DomainDisk, error) {
	args := m.Called(domainName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]DomainDisk), args.Error(1)
}

// CreateSnapshot 实现 LibvirtClient 接口
func (m *MockClient) CreateSnapshot(domainName string, snapshot *DomainSnapshotXML) error {
	args := m.Called(domainName, snapshot)
	return args.Error(0)
}

// BeginActiveCommit 实现 LibvirtClient 接口
func (m *MockClient) BeginActiveCommit(domainName, target string) error {
	args := m.Called(domainName, target)
	return args.Error(0)
}

// BlockJobInfo 实现 LibvirtClient 接口
func (m *MockClient) BlockJobInfo(domainName, target string) (BlockJobInfo, error) {
	args := m.Called(domainName, target)
	return args.Get(0).(BlockJobInfo), args.Error(1)
}

// PivotBlockJob 实现 LibvirtClient 接口
func (m *MockClient) PivotBlockJob(domainName, target string) error {
	args := m.Called(domainName, target)
	return args.Error(0)
}

// Close 实现 LibvirtClient 接口
func (m *MockClient) Close() error {
	args := m.Called()
	return args.Error(0)
}
