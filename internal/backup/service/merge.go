package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/jimyag/kvm-backup/internal/backup/entity"
	"github.com/jimyag/kvm-backup/internal/backup/notify"
	"github.com/jimyag/kvm-backup/pkg/libvirt"
)

// MergeService 用 live block commit 把 overlay 合并回 base 并 pivot
type MergeService struct {
	libvirtClient libvirt.LibvirtClient
	notifier      notify.Notifier
	pollInterval  time.Duration
}

// NewMergeService 创建新的 Merge Service
func NewMergeService(libvirtClient libvirt.LibvirtClient, notifier notify.Notifier) *MergeService {
	return &MergeService{
		libvirtClient: libvirtClient,
		notifier:      notifier,
		pollInterval:  time.Second,
	}
}

// Merge 逐个磁盘执行 commit+pivot，把域恢复成单文件磁盘链
//
// 每个磁盘按顺序处理：
//  1. 重新读取实时 XML，当前 active 文件就是快照阶段创建的 overlay
//  2. 发起 active block commit，轮询直到 overlay 的写入全部合并进 base
//  3. pivot：域的磁盘引用原子地切回 base，overlay 退出磁盘链
//  4. 成功后删除孤立的 overlay，并把域的完整 XML 定义存入备份目录
//
// 任何一步失败都记为 MergeError：此时域可能仍在向 overlay 写入，
// overlay 绝不删除，也不尝试回滚，继续处理下一个磁盘。
// 选择 commit+pivot 而不是 revert，是为了让 guest 全程在线，
// 并且磁盘链收敛回单文件，不会随着多次备份无限增长。
func (s *MergeService) Merge(ctx context.Context, domainName string, disks []entity.DiskEntry, folder string) []entity.DiskResult {
	logger := zerolog.Ctx(ctx)

	results := make([]entity.DiskResult, 0, len(disks))
	for _, disk := range disks {
		result := entity.DiskResult{Target: disk.Target}

		overlay, err := s.activeSource(domainName, disk.Target)
		if err != nil {
			results = append(results, s.fail(ctx, result, domainName, disk.Target, "", err))
			continue
		}
		result.Overlay = overlay

		if overlay == disk.Path {
			// 没有 overlay（上游快照阶段可能被部分执行），无需合并
			logger.Info().
				Str("domain", domainName).
				Str("target", disk.Target).
				Msg("Disk already backed by base image, nothing to merge")
			result.Merged = true
			results = append(results, result)
			continue
		}

		if err := s.commitAndPivot(ctx, domainName, disk.Target); err != nil {
			results = append(results, s.fail(ctx, result, domainName, disk.Target, overlay, err))
			continue
		}

		// pivot 成功后 overlay 已不在磁盘链里，域在写 base，删除是安全的
		if err := os.Remove(overlay); err != nil {
			logger.Warn().Err(err).
				Str("domain", domainName).
				Str("overlay", overlay).
				Msg("Failed to remove orphaned overlay")
		}

		if err := s.dumpDomainXML(domainName, folder); err != nil {
			logger.Warn().Err(err).
				Str("domain", domainName).
				Msg("Failed to dump domain XML descriptor")
		}

		logger.Info().
			Str("domain", domainName).
			Str("target", disk.Target).
			Str("base", disk.Path).
			Msg("Merged overlay and pivoted back to base image")
		_ = s.notifier.Notify(notify.SeverityInfo,
			fmt.Sprintf("merge finished for %s/%s", domainName, disk.Target),
			fmt.Sprintf("domain %s disk %s is backed by %s again", domainName, disk.Target, disk.Path))

		result.Merged = true
		results = append(results, result)
	}

	return results
}

// activeSource 返回磁盘当前的 active backing file
func (s *MergeService) activeSource(domainName, target string) (string, error) {
	disks, err := s.libvirtClient.GetDomainDisks(domainName)
	if err != nil {
		return "", err
	}

	for _, disk := range disks {
		if disk.Target.Dev == target {
			if disk.Source.File == "" {
				return "", fmt.Errorf("disk %s has no file source", target)
			}
			return disk.Source.File, nil
		}
	}

	return "", fmt.Errorf("disk %s not found in domain %s", target, domainName)
}

// commitAndPivot 发起 active commit，等待 job 同步完成后 pivot
//
// block commit 是异步 job，这里显式建模为：发起 → 轮询进度 →
// 读取最终状态。没有超时机制，外部调用挂起会挂起整个运行
// （单运维、cron 驱动的部署模型下可以接受）。
func (s *MergeService) commitAndPivot(ctx context.Context, domainName, target string) error {
	if err := s.libvirtClient.BeginActiveCommit(domainName, target); err != nil {
		return err
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		info, err := s.libvirtClient.BlockJobInfo(domainName, target)
		if err != nil {
			return err
		}
		if !info.Found {
			return fmt.Errorf("block job for %s/%s disappeared before pivot", domainName, target)
		}
		if info.Ready() {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	return s.libvirtClient.PivotBlockJob(domainName, target)
}

// dumpDomainXML 把域的完整定义写入备份目录作为 sidecar
func (s *MergeService) dumpDomainXML(domainName, folder string) error {
	xmlDesc, err := s.libvirtClient.GetDomainXMLDesc(domainName)
	if err != nil {
		return err
	}

	path := filepath.Join(folder, domainName+".xml")
	if err := os.WriteFile(path, []byte(xmlDesc), 0o644); err != nil {
		return fmt.Errorf("write domain XML to %s: %w", path, err)
	}

	return nil
}

// fail 记录单个磁盘的 merge 失败并发出 error 通知
// overlay 仍然是域的 active 磁盘，绝不能删除
func (s *MergeService) fail(ctx context.Context, result entity.DiskResult, domainName, target, overlay string, err error) entity.DiskResult {
	mergeErr := &MergeError{
		Domain:  domainName,
		Target:  target,
		Overlay: overlay,
		Err:     err,
	}

	zerolog.Ctx(ctx).Error().Err(err).
		Str("domain", domainName).
		Str("target", target).
		Str("overlay", overlay).
		Msg("Block commit failed, domain may be in an inconsistent state: " +
			"the overlay is still the active disk and must not be deleted, operator intervention required")

	_ = s.notifier.Notify(notify.SeverityError,
		fmt.Sprintf("merge FAILED for %s/%s", domainName, target),
		mergeErr.Error()+"; the domain may be in an inconsistent state, the overlay is still receiving guest writes and was left in place")

	result.Error = mergeErr.Error()
	return result
}
