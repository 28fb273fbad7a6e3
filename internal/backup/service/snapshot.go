package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/jimyag/kvm-backup/internal/backup/entity"
	"github.com/jimyag/kvm-backup/pkg/libvirt"
)

// OverlaySuffix 追加在 base 镜像路径后构成 overlay 文件路径
const OverlaySuffix = ".snap"

// SnapshotService 协调域级别的外部快照
type SnapshotService struct {
	libvirtClient libvirt.LibvirtClient
}

// NewSnapshotService 创建新的 Snapshot Service
func NewSnapshotService(libvirtClient libvirt.LibvirtClient) *SnapshotService {
	return &SnapshotService{
		libvirtClient: libvirtClient,
	}
}

// SnapshotName 返回域的快照名称，由域名确定性派生
func SnapshotName(domainName string) string {
	return domainName + "-backup"
}

// OverlayPath 返回 base 镜像对应的 overlay 文件路径
func OverlayPath(basePath string) string {
	return basePath + OverlaySuffix
}

// Create 对域的全部磁盘一次性创建外部快照
//
// 所有磁盘放进同一个快照请求里，原子性由 libvirt 保证：
// 要么每个磁盘都有了新 overlay，要么一个都没有。
// overlay 路径显式指定为 <base>.snap，不依赖 libvirt 的默认命名。
// 失败返回 SnapshotError，此时没有 overlay 需要清理。
func (s *SnapshotService) Create(ctx context.Context, domainName string, disks []entity.DiskEntry) error {
	logger := zerolog.Ctx(ctx)

	snapshot := &libvirt.DomainSnapshotXML{
		Name:        SnapshotName(domainName),
		Description: "kvm-backup temporary overlay",
	}
	for _, disk := range disks {
		snapshot.Disks.Disks = append(snapshot.Disks.Disks, libvirt.SnapshotDisk{
			Name:     disk.Target,
			Snapshot: "external",
			Driver:   &libvirt.SnapshotDiskDriver{Type: "qcow2"},
			Source:   &libvirt.SnapshotDiskSource{File: OverlayPath(disk.Path)},
		})
	}

	if err := s.libvirtClient.CreateSnapshot(domainName, snapshot); err != nil {
		return &SnapshotError{Domain: domainName, Err: err}
	}

	logger.Info().
		Str("domain", domainName).
		Str("snapshot", snapshot.Name).
		Int("disks", len(disks)).
		Msg("Created external disk-only snapshot")

	return nil
}
