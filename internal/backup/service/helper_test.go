package service

import (
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/stretchr/testify/mock"

	"github.com/jimyag/kvm-backup/internal/backup/config"
	"github.com/jimyag/kvm-backup/internal/backup/notify"
	"github.com/jimyag/kvm-backup/pkg/libvirt"
	"github.com/jimyag/kvm-backup/pkg/qemuimg"
)

// testServices 包含测试所需的所有服务和 mock 依赖
type testServices struct {
	Cfg          *config.Config
	MockLibvirt  *libvirt.MockClient
	MockQemuImg  *qemuimg.MockClient
	MockNotifier *notify.MockNotifier
	Inventory    *InventoryService
	Snapshot     *SnapshotService
	Archive      *ArchiveService
	Merge        *MergeService
	Run          *RunService
	BackupRoot   string
}

// setupTestServices 为每个测试用例创建独立的测试环境
// 备份根目录是每个用例独立的临时目录，通知默认全部放行
func setupTestServices(t *testing.T) *testServices {
	t.Helper()

	backupRoot := t.TempDir()
	cfg := &config.Config{
		LibvirtURI:  "qemu:///system",
		BackupRoot:  backupRoot,
		DateLayout:  "2006-01-02",
		QemuImgPath: "qemu-img",
	}

	mockLibvirt := libvirt.NewMockClient()
	mockQemuImg := qemuimg.NewMockClient()
	mockNotifier := notify.NewMockNotifier()
	mockNotifier.On("Notify", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	inventoryService := NewInventoryService(mockLibvirt)
	snapshotService := NewSnapshotService(mockLibvirt)
	archiveService := NewArchiveService(mockQemuImg, mockNotifier)
	mergeService := NewMergeService(mockLibvirt, mockNotifier)
	mergeService.pollInterval = time.Millisecond

	runService := NewRunService(cfg, mockLibvirt, inventoryService, snapshotService, archiveService, mergeService, mockNotifier)
	// 测试环境里既没有 qemu-img 也没有真实的备份卷
	runService.lookPath = func(string) (string, error) { return "/usr/bin/qemu-img", nil }
	runService.diskUsage = func(string) (*disk.UsageStat, error) {
		return &disk.UsageStat{Free: 1 << 40}, nil
	}

	return &testServices{
		Cfg:          cfg,
		MockLibvirt:  mockLibvirt,
		MockQemuImg:  mockQemuImg,
		MockNotifier: mockNotifier,
		Inventory:    inventoryService,
		Snapshot:     snapshotService,
		Archive:      archiveService,
		Merge:        mergeService,
		Run:          runService,
		BackupRoot:   backupRoot,
	}
}

// fileDisk 构造一个文件后端的可写磁盘设备
func fileDisk(dev, path, format string) libvirt.DomainDisk {
	return libvirt.DomainDisk{
		Type:   "file",
		Device: "disk",
		Driver: libvirt.DomainDiskDriver{Name: "qemu", Type: format},
		Source: libvirt.DomainDiskSource{File: path},
		Target: libvirt.DomainDiskTarget{Dev: dev, Bus: "virtio"},
	}
}

// cdromDisk 构造一个只读 CD-ROM 设备
func cdromDisk(dev, path string) libvirt.DomainDisk {
	return libvirt.DomainDisk{
		Type:     "file",
		Device:   "cdrom",
		Driver:   libvirt.DomainDiskDriver{Name: "qemu", Type: "raw"},
		Source:   libvirt.DomainDiskSource{File: path},
		Target:   libvirt.DomainDiskTarget{Dev: dev, Bus: "ide"},
		ReadOnly: &struct{}{},
	}
}
