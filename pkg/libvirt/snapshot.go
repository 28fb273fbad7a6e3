package libvirt

import (
	"encoding/xml"
	"fmt"

	"github.com/digitalocean/go-libvirt"
)

// CreateSnapshot 对域的所有磁盘创建一次原子的、disk-only 的外部快照
//
// 快照语义：
//   - DiskOnly：只做磁盘快照，不保存内存状态
//   - Atomic：要么所有磁盘都生成 overlay，要么一个都不生成
//   - NoMetadata：libvirt 不记录快照元数据，overlay 的生命周期完全由调用方管理
//
// 调用返回成功后，每个磁盘的 active backing file 都变成了新建的 overlay，
// 域在整个过程中保持运行。
func (c *Client) CreateSnapshot(domainName string, snapshot *DomainSnapshotXML) error {
	domain, err := c.conn.DomainLookupByName(domainName)
	if err != nil {
		return fmt.Errorf("lookup domain %s: %w", domainName, err)
	}

	xmlBytes, err := xml.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot XML: %w", err)
	}

	flags := libvirt.DomainSnapshotCreateDiskOnly |
		libvirt.DomainSnapshotCreateAtomic |
		libvirt.DomainSnapshotCreateNoMetadata

	_, err = c.conn.DomainSnapshotCreateXML(domain, string(xmlBytes), uint32(flags))
	if err != nil {
		return fmt.Errorf("create snapshot %s for domain %s: %w", snapshot.Name, domainName, err)
	}

	return nil
}
