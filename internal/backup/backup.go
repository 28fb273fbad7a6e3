// Package backup 提供 kvm-backup 的初始化和运行入口
package backup

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/jimyag/kvm-backup/internal/backup/config"
	"github.com/jimyag/kvm-backup/internal/backup/notify"
	"github.com/jimyag/kvm-backup/internal/backup/service"
	"github.com/jimyag/kvm-backup/pkg/libvirt"
	"github.com/jimyag/kvm-backup/pkg/qemuimg"
)

// App 组装好的备份应用
type App struct {
	cfg           *config.Config
	libvirtClient *libvirt.Client
	run           *service.RunService
}

// New 创建备份应用，连接 libvirt 并装配所有组件
func New(cfg *config.Config) (*App, error) {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &logger

	// 1. 创建 Libvirt Client
	libvirtClient, err := libvirt.NewWithURI(cfg.LibvirtURI)
	if err != nil {
		return nil, fmt.Errorf("connect to libvirt %s: %w", cfg.LibvirtURI, err)
	}

	// 2. 创建 qemu-img Client
	qemuImgClient := qemuimg.New(cfg.QemuImgPath)

	// 3. 创建通知通道
	notifier, err := buildNotifier(cfg, logger)
	if err != nil {
		return nil, err
	}

	// 4. 创建各阶段 Service
	inventoryService := service.NewInventoryService(libvirtClient)
	snapshotService := service.NewSnapshotService(libvirtClient)
	archiveService := service.NewArchiveService(qemuImgClient, notifier)
	mergeService := service.NewMergeService(libvirtClient, notifier)

	runService := service.NewRunService(
		cfg,
		libvirtClient,
		inventoryService,
		snapshotService,
		archiveService,
		mergeService,
		notifier,
	)

	return &App{
		cfg:           cfg,
		libvirtClient: libvirtClient,
		run:           runService,
	}, nil
}

// buildNotifier 根据配置装配通知通道
// 所有通道都不可用时退化为只写日志（通知失败从不阻塞备份）
func buildNotifier(cfg *config.Config, logger zerolog.Logger) (notify.Notifier, error) {
	var notifiers []notify.Notifier

	if cfg.Journal.Enabled {
		journalNotifier, err := notify.NewJournalNotifier()
		if err != nil {
			logger.Warn().Err(err).Msg("Journal notifications disabled")
		} else {
			notifiers = append(notifiers, journalNotifier)
		}
	}

	if cfg.Mail.Enabled {
		mailNotifier, err := notify.NewMailNotifier(notify.MailConfig{
			SMTPAddr: cfg.Mail.SMTPAddr,
			From:     cfg.Mail.From,
			To:       cfg.Mail.To,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("configure mail notifier: %w", err)
		}
		notifiers = append(notifiers, mailNotifier)
	}

	return notify.NewMulti(logger, notifiers...), nil
}

// Run 执行一次备份运行
// 返回的 error 只反映 preflight 失败，与进程退出码一致
func (a *App) Run(ctx context.Context) error {
	defer func() {
		if err := a.libvirtClient.Close(); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("Failed to close libvirt connection")
		}
	}()

	_, err := a.run.Run(ctx)
	return err
}
