package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jimyag/kvm-backup/internal/backup/entity"
	"github.com/jimyag/kvm-backup/internal/backup/notify"
	"github.com/jimyag/kvm-backup/pkg/libvirt"
)

// writeFile 创建测试用的镜像/overlay 文件
func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestMergeService_Merge_Success(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	services := setupTestServices(t)

	imgDir := t.TempDir()
	folder := t.TempDir()
	base := filepath.Join(imgDir, "vm1.qcow2")
	overlay := base + ".snap"
	writeFile(t, base, "base")
	writeFile(t, overlay, "overlay")

	services.MockLibvirt.On("GetDomainDisks", "vm1").
		Return([]libvirt.DomainDisk{fileDisk("vda", overlay, "qcow2")}, nil)
	services.MockLibvirt.On("BeginActiveCommit", "vm1", "vda").Return(nil).Once()
	services.MockLibvirt.On("BlockJobInfo", "vm1", "vda").
		Return(libvirt.BlockJobInfo{Found: true, Cur: 512, End: 1024}, nil).Once()
	services.MockLibvirt.On("BlockJobInfo", "vm1", "vda").
		Return(libvirt.BlockJobInfo{Found: true, Cur: 1024, End: 1024}, nil)
	services.MockLibvirt.On("PivotBlockJob", "vm1", "vda").Return(nil).Once()
	services.MockLibvirt.On("GetDomainXMLDesc", "vm1").
		Return("<domain type='kvm'><name>vm1</name></domain>", nil)

	results := services.Merge.Merge(ctx, "vm1", []entity.DiskEntry{
		{Target: "vda", Path: base, Format: "qcow2"},
	}, folder)

	require.Len(t, results, 1)
	assert.True(t, results[0].Merged)
	assert.Empty(t, results[0].Error)
	assert.Equal(t, overlay, results[0].Overlay)

	// overlay 已删除，base 保留
	assert.NoFileExists(t, overlay)
	assert.FileExists(t, base)

	// 备份目录里有且只有一份域定义 sidecar
	xmlPath := filepath.Join(folder, "vm1.xml")
	content, err := os.ReadFile(xmlPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "<name>vm1</name>")

	entries, err := os.ReadDir(folder)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	services.MockLibvirt.AssertExpectations(t)
}

func TestMergeService_Merge_CommitFailureKeepsOverlay(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	services := setupTestServices(t)

	imgDir := t.TempDir()
	folder := t.TempDir()
	base := filepath.Join(imgDir, "vm1.qcow2")
	overlay := base + ".snap"
	writeFile(t, base, "base")
	writeFile(t, overlay, "overlay")

	services.MockLibvirt.On("GetDomainDisks", "vm1").
		Return([]libvirt.DomainDisk{fileDisk("vda", overlay, "qcow2")}, nil)
	services.MockLibvirt.On("BeginActiveCommit", "vm1", "vda").
		Return(fmt.Errorf("block copy still active"))

	results := services.Merge.Merge(ctx, "vm1", []entity.DiskEntry{
		{Target: "vda", Path: base, Format: "qcow2"},
	}, folder)

	require.Len(t, results, 1)
	assert.False(t, results[0].Merged)
	assert.NotEmpty(t, results[0].Error)

	// guest 仍在写 overlay：文件必须原样保留，不 pivot、不 dump 定义
	assert.FileExists(t, overlay)
	services.MockLibvirt.AssertNotCalled(t, "PivotBlockJob", "vm1", "vda")
	assert.NoFileExists(t, filepath.Join(folder, "vm1.xml"))

	services.MockNotifier.AssertCalled(t, "Notify", notify.SeverityError, mock.Anything, mock.Anything)
}

func TestMergeService_Merge_JobDisappeared(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	services := setupTestServices(t)

	imgDir := t.TempDir()
	folder := t.TempDir()
	base := filepath.Join(imgDir, "vm1.qcow2")
	overlay := base + ".snap"
	writeFile(t, base, "base")
	writeFile(t, overlay, "overlay")

	services.MockLibvirt.On("GetDomainDisks", "vm1").
		Return([]libvirt.DomainDisk{fileDisk("vda", overlay, "qcow2")}, nil)
	services.MockLibvirt.On("BeginActiveCommit", "vm1", "vda").Return(nil)
	services.MockLibvirt.On("BlockJobInfo", "vm1", "vda").
		Return(libvirt.BlockJobInfo{Found: false}, nil)

	results := services.Merge.Merge(ctx, "vm1", []entity.DiskEntry{
		{Target: "vda", Path: base, Format: "qcow2"},
	}, folder)

	require.Len(t, results, 1)
	assert.False(t, results[0].Merged)
	assert.Contains(t, results[0].Error, "disappeared")
	assert.FileExists(t, overlay)
}

func TestMergeService_Merge_AlreadyOnBase(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	services := setupTestServices(t)

	imgDir := t.TempDir()
	folder := t.TempDir()
	base := filepath.Join(imgDir, "vm1.qcow2")
	writeFile(t, base, "base")

	services.MockLibvirt.On("GetDomainDisks", "vm1").
		Return([]libvirt.DomainDisk{fileDisk("vda", base, "qcow2")}, nil)

	results := services.Merge.Merge(ctx, "vm1", []entity.DiskEntry{
		{Target: "vda", Path: base, Format: "qcow2"},
	}, folder)

	require.Len(t, results, 1)
	assert.True(t, results[0].Merged)
	assert.FileExists(t, base)
	services.MockLibvirt.AssertNotCalled(t, "BeginActiveCommit", "vm1", "vda")
}

func TestMergeService_Merge_SecondDiskContinuesAfterFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	services := setupTestServices(t)

	imgDir := t.TempDir()
	folder := t.TempDir()
	baseA := filepath.Join(imgDir, "vm1-root.qcow2")
	baseB := filepath.Join(imgDir, "vm1-data.qcow2")
	overlayA := baseA + ".snap"
	overlayB := baseB + ".snap"
	writeFile(t, baseA, "base-a")
	writeFile(t, baseB, "base-b")
	writeFile(t, overlayA, "overlay-a")
	writeFile(t, overlayB, "overlay-b")

	services.MockLibvirt.On("GetDomainDisks", "vm1").Return([]libvirt.DomainDisk{
		fileDisk("vda", overlayA, "qcow2"),
		fileDisk("vdb", overlayB, "qcow2"),
	}, nil)
	services.MockLibvirt.On("BeginActiveCommit", "vm1", "vda").
		Return(fmt.Errorf("device busy"))
	services.MockLibvirt.On("BeginActiveCommit", "vm1", "vdb").Return(nil)
	services.MockLibvirt.On("BlockJobInfo", "vm1", "vdb").
		Return(libvirt.BlockJobInfo{Found: true, Cur: 10, End: 10}, nil)
	services.MockLibvirt.On("PivotBlockJob", "vm1", "vdb").Return(nil)
	services.MockLibvirt.On("GetDomainXMLDesc", "vm1").
		Return("<domain type='kvm'><name>vm1</name></domain>", nil)

	results := services.Merge.Merge(ctx, "vm1", []entity.DiskEntry{
		{Target: "vda", Path: baseA, Format: "qcow2"},
		{Target: "vdb", Path: baseB, Format: "qcow2"},
	}, folder)

	require.Len(t, results, 2)
	assert.False(t, results[0].Merged)
	assert.True(t, results[1].Merged)

	// 失败磁盘的 overlay 保留，成功磁盘的 overlay 删除
	assert.FileExists(t, overlayA)
	assert.NoFileExists(t, overlayB)
}
