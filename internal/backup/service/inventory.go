package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/jimyag/kvm-backup/internal/backup/entity"
	"github.com/jimyag/kvm-backup/pkg/libvirt"
)

// InventoryService 解析域的磁盘清单
type InventoryService struct {
	libvirtClient libvirt.LibvirtClient
}

// NewInventoryService 创建新的 Inventory Service
func NewInventoryService(libvirtClient libvirt.LibvirtClient) *InventoryService {
	return &InventoryService{
		libvirtClient: libvirtClient,
	}
}

// Resolve 返回域的所有可备份磁盘，按域 XML 中的顺序
//
// 只保留 device="disk" 的文件后端可写磁盘，
// CD-ROM 和只读介质既不需要备份也不能做外部快照。
// 域在 listing 和查询之间消失时返回 InventoryError，调用方跳过该域。
func (s *InventoryService) Resolve(ctx context.Context, domainName string) ([]entity.DiskEntry, error) {
	logger := zerolog.Ctx(ctx)

	disks, err := s.libvirtClient.GetDomainDisks(domainName)
	if err != nil {
		return nil, &InventoryError{Domain: domainName, Err: err}
	}

	entries := make([]entity.DiskEntry, 0, len(disks))
	for _, disk := range disks {
		if disk.Device != "disk" {
			continue
		}
		if disk.ReadOnly != nil {
			continue
		}
		if disk.Source.File == "" {
			// pool/volume 后端的磁盘无法用文件复制的方式归档
			logger.Warn().
				Str("domain", domainName).
				Str("target", disk.Target.Dev).
				Msg("Skipping disk without file source")
			continue
		}

		entries = append(entries, entity.DiskEntry{
			Target: disk.Target.Dev,
			Path:   disk.Source.File,
			Format: disk.Driver.Type,
		})
	}

	logger.Info().
		Str("domain", domainName).
		Int("disks", len(entries)).
		Msg("Resolved disk inventory")

	return entries, nil
}
