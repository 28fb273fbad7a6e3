package entity

import "time"

// DiskEntry 域的单个虚拟磁盘
// 在一次备份运行中不可变，每个域处理前从实时状态重新读取
type DiskEntry struct {
	// Target 是 libvirt 的 target dev，如 vda
	Target string
	// Path 是 base 镜像的绝对路径（做快照前的 active 文件）
	Path string
	// Format 是镜像格式（qcow2、raw），来自域 XML 的 driver type
	Format string
}

// DiskResult 单个磁盘的备份结果
type DiskResult struct {
	Target   string `yaml:"target"`
	Overlay  string `yaml:"overlay,omitempty"`
	Archived bool   `yaml:"archived"`
	Merged   bool   `yaml:"merged"`
	Error    string `yaml:"error,omitempty"`
}

// DomainResult 单个域的备份结果
type DomainResult struct {
	Domain string `yaml:"domain"`
	// Skipped 表示 inventory 或 snapshot 阶段失败，该域整体跳过
	Skipped bool         `yaml:"skipped,omitempty"`
	Error   string       `yaml:"error,omitempty"`
	Disks   []DiskResult `yaml:"disks,omitempty"`
}

// OK 判断该域是否完整备份成功
func (r DomainResult) OK() bool {
	if r.Skipped || r.Error != "" {
		return false
	}
	for _, d := range r.Disks {
		if !d.Archived || !d.Merged || d.Error != "" {
			return false
		}
	}
	return true
}

// RunReport 一次备份运行的汇总结果
// 以 YAML 形式渲染进最终的通知正文
type RunReport struct {
	StartedAt       time.Time      `yaml:"started_at"`
	FinishedAt      time.Time      `yaml:"finished_at"`
	BackupRoot      string         `yaml:"backup_root"`
	TotalImageBytes uint64         `yaml:"total_image_bytes"`
	Domains         []DomainResult `yaml:"domains,omitempty"`
}

// Failed 统计备份失败（或部分失败）的域数量
func (r RunReport) Failed() int {
	n := 0
	for _, d := range r.Domains {
		if !d.OK() {
			n++
		}
	}
	return n
}
