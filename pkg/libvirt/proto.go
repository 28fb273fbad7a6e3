package libvirt

import "encoding/xml"

// DomainXML represents the subset of the domain XML this tool reads
// Reference: https://libvirt.org/formatdomain.html
type DomainXML struct {
	XMLName xml.Name `xml:"domain"`
	Type    string   `xml:"type,attr"`

	Name string `xml:"name"`
	UUID string `xml:"uuid,omitempty"`

	// Devices
	// Source: https://libvirt.org/formatdomain.html#devices
	Devices DomainDevices `xml:"devices"`
}

// DomainDevices 只保留磁盘设备，备份流程不关心其他设备
type DomainDevices struct {
	Disks []DomainDisk `xml:"disk"`
}

// DomainDisk represents a disk device
type DomainDisk struct {
	Type     string           `xml:"type,attr"`
	Device   string           `xml:"device,attr"` // disk, cdrom, floppy, lun
	Driver   DomainDiskDriver `xml:"driver"`
	Source   DomainDiskSource `xml:"source"`
	Target   DomainDiskTarget `xml:"target"`
	ReadOnly *struct{}        `xml:"readonly"` // 元素存在即表示只读介质
}

// DomainDiskDriver represents disk driver configuration
type DomainDiskDriver struct {
	Name string `xml:"name,attr"`
	Type string `xml:"type,attr"` // qcow2, raw
}

// DomainDiskSource represents disk source configuration
type DomainDiskSource struct {
	Pool   string `xml:"pool,attr,omitempty"`
	Volume string `xml:"volume,attr,omitempty"`
	File   string `xml:"file,attr,omitempty"`
}

// DomainDiskTarget represents disk target configuration
type DomainDiskTarget struct {
	Dev string `xml:"dev,attr"`
	Bus string `xml:"bus,attr"`
}

// DomainSnapshotXML represents the snapshot creation request XML
// Reference: https://libvirt.org/formatsnapshot.html
type DomainSnapshotXML struct {
	XMLName     xml.Name      `xml:"domainsnapshot"`
	Name        string        `xml:"name"`
	Description string        `xml:"description,omitempty"`
	Disks       SnapshotDisks `xml:"disks"`
}

// SnapshotDisks wraps the per-disk snapshot elements
type SnapshotDisks struct {
	Disks []SnapshotDisk `xml:"disk"`
}

// SnapshotDisk 描述单个磁盘的快照方式
// Snapshot 为 "external" 时新建 overlay 文件，Source.File 指定 overlay 路径
type SnapshotDisk struct {
	Name     string              `xml:"name,attr"` // target dev（如 vda）
	Snapshot string              `xml:"snapshot,attr"`
	Driver   *SnapshotDiskDriver `xml:"driver,omitempty"`
	Source   *SnapshotDiskSource `xml:"source,omitempty"`
}

// SnapshotDiskDriver represents the overlay image format
type SnapshotDiskDriver struct {
	Type string `xml:"type,attr"`
}

// SnapshotDiskSource represents the overlay file location
type SnapshotDiskSource struct {
	File string `xml:"file,attr"`
}
