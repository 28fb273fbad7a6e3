package service

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
	"gopkg.in/yaml.v3"

	"github.com/jimyag/kvm-backup/internal/backup/config"
	"github.com/jimyag/kvm-backup/internal/backup/entity"
	"github.com/jimyag/kvm-backup/internal/backup/notify"
	"github.com/jimyag/kvm-backup/pkg/libvirt"
)

// RunService 驱动一次完整的备份运行
//
// 状态机：Init → Preflight → {每个域: Inventory → Snapshot → Archive → Merge} → Report
// 严格串行：域一个接一个处理，域内磁盘也一个接一个处理。
// 域级失败彼此隔离，只有 preflight 失败会终止整个运行。
type RunService struct {
	cfg           *config.Config
	libvirtClient libvirt.LibvirtClient
	inventory     *InventoryService
	snapshot      *SnapshotService
	archive       *ArchiveService
	merge         *MergeService
	notifier      notify.Notifier

	// 测试注入点
	diskUsage func(path string) (*disk.UsageStat, error)
	lookPath  func(file string) (string, error)
	now       func() time.Time
}

// NewRunService 创建新的 Run Service
func NewRunService(
	cfg *config.Config,
	libvirtClient libvirt.LibvirtClient,
	inventory *InventoryService,
	snapshot *SnapshotService,
	archive *ArchiveService,
	merge *MergeService,
	notifier notify.Notifier,
) *RunService {
	return &RunService{
		cfg:           cfg,
		libvirtClient: libvirtClient,
		inventory:     inventory,
		snapshot:      snapshot,
		archive:       archive,
		merge:         merge,
		notifier:      notifier,
		diskUsage:     disk.Usage,
		lookPath:      exec.LookPath,
		now:           time.Now,
	}
}

// Run 执行一次备份运行
//
// 返回的 error 只反映 preflight 失败；域级、磁盘级的失败记录在
// RunReport 里，通过日志和通知暴露，不影响进程退出码。
func (s *RunService) Run(ctx context.Context) (*entity.RunReport, error) {
	logger := zerolog.Ctx(ctx)

	report := &entity.RunReport{
		StartedAt:  s.now(),
		BackupRoot: s.cfg.BackupRoot,
	}

	domains, err := s.preflight(ctx, report)
	if err != nil {
		logger.Error().Err(err).Msg("Preflight check failed, aborting run")
		_ = s.notifier.Notify(notify.SeverityError, "backup run aborted", err.Error())
		return report, err
	}

	if len(domains) == 0 {
		logger.Info().Msg("No running domains, nothing to back up")
		report.FinishedAt = s.now()
		_ = s.notifier.Notify(notify.SeverityInfo, "backup run finished", "no running domains")
		return report, nil
	}

	date := report.StartedAt.Format(s.cfg.DateLayout)
	for _, domainName := range domains {
		report.Domains = append(report.Domains, s.backupDomain(ctx, domainName, date))
	}

	report.FinishedAt = s.now()
	s.summarize(ctx, report)

	return report, nil
}

// preflight 执行全局前置检查，任何失败都终止整个运行
//
// 检查顺序：备份目录存在 → qemu-img 可用 → 清空旧备份 →
// 枚举运行中的域 → 备份卷剩余空间严格大于所有 base 镜像的总大小。
// 空间检查是一次性的保守预估，运行中途的磁盘增长不再复查。
func (s *RunService) preflight(ctx context.Context, report *entity.RunReport) ([]string, error) {
	logger := zerolog.Ctx(ctx)

	fi, err := os.Stat(s.cfg.BackupRoot)
	if err != nil {
		return nil, &PreflightError{Reason: fmt.Sprintf("backup root %s is not accessible", s.cfg.BackupRoot), Err: err}
	}
	if !fi.IsDir() {
		return nil, &PreflightError{Reason: fmt.Sprintf("backup root %s is not a directory", s.cfg.BackupRoot)}
	}

	if _, err := s.lookPath(s.cfg.QemuImgPath); err != nil {
		return nil, &PreflightError{Reason: fmt.Sprintf("required tool %s not found", s.cfg.QemuImgPath), Err: err}
	}

	if err := s.wipeBackupRoot(); err != nil {
		return nil, &PreflightError{Reason: "wipe previous backups", Err: err}
	}

	domains, err := s.libvirtClient.ListRunningDomains()
	if err != nil {
		return nil, &PreflightError{Reason: "list running domains", Err: err}
	}
	if len(domains) == 0 {
		return nil, nil
	}

	total := s.totalImageSize(ctx, domains)
	report.TotalImageBytes = total

	usage, err := s.diskUsage(s.cfg.BackupRoot)
	if err != nil {
		return nil, &PreflightError{Reason: fmt.Sprintf("query free space of %s", s.cfg.BackupRoot), Err: err}
	}
	if usage.Free <= total {
		return nil, &PreflightError{Reason: fmt.Sprintf(
			"insufficient free space on %s: %s free, %s required",
			s.cfg.BackupRoot, humanize.IBytes(usage.Free), humanize.IBytes(total))}
	}

	logger.Info().
		Int("domains", len(domains)).
		Str("total_image_size", humanize.IBytes(total)).
		Str("free_space", humanize.IBytes(usage.Free)).
		Msg("Preflight checks passed")

	return domains, nil
}

// wipeBackupRoot 删除备份根目录下的所有旧备份
// 这是唯一的跨运行状态：没有保留策略，每次运行重做全部备份
func (s *RunService) wipeBackupRoot() error {
	entries, err := os.ReadDir(s.cfg.BackupRoot)
	if err != nil {
		return fmt.Errorf("read backup root: %w", err)
	}

	for _, entry := range entries {
		path := filepath.Join(s.cfg.BackupRoot, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("remove %s: %w", path, err)
		}
	}

	return nil
}

// totalImageSize 汇总所有运行中域的 base 镜像占用
// 单个域查询失败按 0 计（该域稍后会在自己的工作流中再次失败并跳过）
func (s *RunService) totalImageSize(ctx context.Context, domains []string) uint64 {
	logger := zerolog.Ctx(ctx)

	var total uint64
	for _, domainName := range domains {
		disks, err := s.inventory.Resolve(ctx, domainName)
		if err != nil {
			logger.Warn().Err(err).
				Str("domain", domainName).
				Msg("Could not size domain images for the space check")
			continue
		}
		for _, d := range disks {
			fi, err := os.Stat(d.Path)
			if err != nil {
				logger.Warn().Err(err).
					Str("domain", domainName).
					Str("path", d.Path).
					Msg("Could not stat base image")
				continue
			}
			total += uint64(fi.Size())
		}
	}

	return total
}

// backupDomain 执行单个域的 Inventory → Snapshot → Archive → Merge 序列
// 任何阶段的失败都不会传播到其他域
func (s *RunService) backupDomain(ctx context.Context, domainName, date string) entity.DomainResult {
	logger := zerolog.Ctx(ctx)
	result := entity.DomainResult{Domain: domainName}

	logger.Info().Str("domain", domainName).Msg("Backing up domain")

	disks, err := s.inventory.Resolve(ctx, domainName)
	if err != nil {
		// 域在 listing 和查询之间消失了，跳过即可
		logger.Warn().Err(err).Str("domain", domainName).Msg("Skipping domain, inventory failed")
		_ = s.notifier.Notify(notify.SeverityWarning,
			fmt.Sprintf("skipped domain %s", domainName), err.Error())
		result.Skipped = true
		result.Error = err.Error()
		return result
	}
	if len(disks) == 0 {
		logger.Info().Str("domain", domainName).Msg("Domain has no disks to back up")
		return result
	}

	folder := filepath.Join(s.cfg.BackupRoot, domainName, date)
	if err := os.MkdirAll(folder, 0o755); err != nil {
		logger.Error().Err(err).Str("domain", domainName).Msg("Skipping domain, cannot create backup folder")
		_ = s.notifier.Notify(notify.SeverityError,
			fmt.Sprintf("skipped domain %s", domainName), err.Error())
		result.Skipped = true
		result.Error = err.Error()
		return result
	}

	if err := s.snapshot.Create(ctx, domainName, disks); err != nil {
		// 快照是原子的：失败时没有任何 overlay 产生，archive 和 merge 都不需要跑
		logger.Error().Err(err).Str("domain", domainName).Msg("Skipping domain, snapshot failed")
		_ = s.notifier.Notify(notify.SeverityError,
			fmt.Sprintf("snapshot failed for domain %s", domainName), err.Error())
		result.Skipped = true
		result.Error = err.Error()
		return result
	}

	archiveFailed := make(map[string]bool)
	for _, failure := range s.archive.Archive(ctx, domainName, disks, folder) {
		archiveFailed[failure.Target] = true
	}

	// 无论 archive 结果如何都必须 merge，否则 guest 会一直写 overlay
	result.Disks = s.merge.Merge(ctx, domainName, disks, folder)
	for i := range result.Disks {
		result.Disks[i].Archived = !archiveFailed[result.Disks[i].Target]
	}

	return result
}

// summarize 输出汇总日志并发送最终通知，通知正文是 YAML 格式的运行报告
func (s *RunService) summarize(ctx context.Context, report *entity.RunReport) {
	logger := zerolog.Ctx(ctx)

	failed := report.Failed()
	logger.Info().
		Int("domains", len(report.Domains)).
		Int("failed", failed).
		Str("total_image_size", humanize.IBytes(report.TotalImageBytes)).
		Dur("elapsed", report.FinishedAt.Sub(report.StartedAt)).
		Msg("Backup run finished")

	body, err := yaml.Marshal(report)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to render run report")
		body = []byte(fmt.Sprintf("domains: %d, failed: %d", len(report.Domains), failed))
	}

	severity := notify.SeverityInfo
	subject := fmt.Sprintf("backup run finished, %d/%d domains ok", len(report.Domains)-failed, len(report.Domains))
	if failed > 0 {
		severity = notify.SeverityError
	}

	_ = s.notifier.Notify(severity, subject, string(body))
}
