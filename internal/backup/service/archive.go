package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/jimyag/kvm-backup/internal/backup/entity"
	"github.com/jimyag/kvm-backup/internal/backup/notify"
	"github.com/jimyag/kvm-backup/pkg/qemuimg"
)

// ArchiveService 把冻结的 base 镜像复制到备份目录
type ArchiveService struct {
	qemuImgClient qemuimg.QemuImgClient
	notifier      notify.Notifier
}

// NewArchiveService 创建新的 Archive Service
func NewArchiveService(qemuImgClient qemuimg.QemuImgClient, notifier notify.Notifier) *ArchiveService {
	return &ArchiveService{
		qemuImgClient: qemuImgClient,
		notifier:      notifier,
	}
}

// Archive 逐个复制域的 base 镜像到备份目录
//
// 快照已经把 guest 写入重定向到了 overlay，base 是冻结的，
// 直接复制即可得到时间点一致的备份，不需要暂停 guest。
// 复制用 qemu-img convert 完成，稀疏区域不会在备份文件中物化。
//
// 复制是尽力而为的：单个磁盘失败只记录 ArchiveError，剩余磁盘
// 继续复制。无论结果如何调用方都必须继续 merge 阶段，
// guest 的正确性优先于备份的完整性。
func (s *ArchiveService) Archive(ctx context.Context, domainName string, disks []entity.DiskEntry, folder string) []*ArchiveError {
	logger := zerolog.Ctx(ctx)

	var failures []*ArchiveError
	for _, disk := range disks {
		dst := filepath.Join(folder, filepath.Base(disk.Path))

		format := disk.Format
		if format == "" {
			detected, err := s.qemuImgClient.GetFormat(ctx, disk.Path)
			if err != nil {
				failures = append(failures, s.fail(ctx, domainName, disk, err))
				continue
			}
			format = detected
		}

		if err := s.qemuImgClient.Convert(ctx, format, format, disk.Path, dst); err != nil {
			failures = append(failures, s.fail(ctx, domainName, disk, err))
			continue
		}

		event := logger.Info().
			Str("domain", domainName).
			Str("target", disk.Target).
			Str("src", disk.Path).
			Str("dst", dst)
		if fi, err := os.Stat(disk.Path); err == nil {
			event = event.Str("size", humanize.IBytes(uint64(fi.Size())))
		}
		event.Msg("Archived base image")
	}

	return failures
}

// fail 记录单个磁盘的复制失败并发出 warning 通知
func (s *ArchiveService) fail(ctx context.Context, domainName string, disk entity.DiskEntry, err error) *ArchiveError {
	archiveErr := &ArchiveError{
		Domain: domainName,
		Target: disk.Target,
		Path:   disk.Path,
		Err:    err,
	}

	zerolog.Ctx(ctx).Error().Err(err).
		Str("domain", domainName).
		Str("target", disk.Target).
		Str("path", disk.Path).
		Msg("Failed to archive base image, merge will still run")

	_ = s.notifier.Notify(notify.SeverityWarning,
		fmt.Sprintf("archive failed for %s/%s", domainName, disk.Target),
		archiveErr.Error())

	return archiveErr
}
