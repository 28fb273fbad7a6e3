package libvirt

import (
	"fmt"

	"github.com/digitalocean/go-libvirt"
)

// BlockJobInfo 描述一个 block job 的进度
// Found 为 false 表示该磁盘上没有正在运行的 job
type BlockJobInfo struct {
	Found bool
	Cur   uint64
	End   uint64
}

// Ready 判断 active commit 是否已经进入 synchronized 阶段
// 此时 overlay 中的所有写入都已合并进 base，可以安全 pivot
func (i BlockJobInfo) Ready() bool {
	return i.Found && i.End > 0 && i.Cur == i.End
}

// BeginActiveCommit 对指定磁盘发起 active block commit
//
// 将 active layer（overlay）中累积的写入合并进 backing file（base）。
// 该调用只是启动异步 job，进度需要用 BlockJobInfo 轮询，
// 完成后必须调用 PivotBlockJob 才会把域的磁盘引用切回 base。
func (c *Client) BeginActiveCommit(domainName, target string) error {
	domain, err := c.conn.DomainLookupByName(domainName)
	if err != nil {
		return fmt.Errorf("lookup domain %s: %w", domainName, err)
	}

	// base/top 留空，libvirt 默认提交 active layer 到它的 backing file
	err = c.conn.DomainBlockCommit(domain, target, nil, nil, 0, libvirt.DomainBlockCommitActive)
	if err != nil {
		return fmt.Errorf("block commit %s/%s: %w", domainName, target, err)
	}

	return nil
}

// BlockJobInfo 查询指定磁盘上 block job 的进度
func (c *Client) BlockJobInfo(domainName, target string) (BlockJobInfo, error) {
	domain, err := c.conn.DomainLookupByName(domainName)
	if err != nil {
		return BlockJobInfo{}, fmt.Errorf("lookup domain %s: %w", domainName, err)
	}

	found, _, _, cur, end, err := c.conn.DomainGetBlockJobInfo(domain, target, 0)
	if err != nil {
		return BlockJobInfo{}, fmt.Errorf("get block job info %s/%s: %w", domainName, target, err)
	}

	return BlockJobInfo{
		Found: found == 1,
		Cur:   cur,
		End:   end,
	}, nil
}

// PivotBlockJob 完成 active commit：原子地把域的磁盘引用从 overlay 切回 base
//
// 只有在 BlockJobInfo 报告 Ready 之后调用才会成功。
// pivot 成功后 overlay 不再被域引用，可以安全删除。
func (c *Client) PivotBlockJob(domainName, target string) error {
	domain, err := c.conn.DomainLookupByName(domainName)
	if err != nil {
		return fmt.Errorf("lookup domain %s: %w", domainName, err)
	}

	err = c.conn.DomainBlockJobAbort(domain, target, libvirt.DomainBlockJobAbortPivot)
	if err != nil {
		return fmt.Errorf("pivot block job %s/%s: %w", domainName, target, err)
	}

	return nil
}
