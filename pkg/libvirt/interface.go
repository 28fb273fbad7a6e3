package libvirt

// LibvirtClient 定义备份流程依赖的 libvirt 客户端接口
// 用于抽象 libvirt 操作，便于测试和 mock
type LibvirtClient interface {
	// Domain 查询
	ListRunningDomains() ([]string, error)
	GetDomainXMLDesc(domainName string) (string, error)
	GetDomainDisks(domainName string) ([]DomainDisk, error)

	// Snapshot 操作
	CreateSnapshot(domainName string, snapshot *DomainSnapshotXML) error

	// Block job 操作
	BeginActiveCommit(domainName, target string) error
	BlockJobInfo(domainName, target string) (BlockJobInfo, error)
	PivotBlockJob(domainName, target string) error

	// 连接管理
	Close() error
}
