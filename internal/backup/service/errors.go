package service

import "fmt"

// PreflightError 运行前置检查失败，整个备份运行终止
type PreflightError struct {
	Reason string
	Err    error
}

func (e *PreflightError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("preflight check failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("preflight check failed: %s", e.Reason)
}

func (e *PreflightError) Unwrap() error { return e.Err }

// InventoryError 无法查询域的磁盘清单，该域跳过
type InventoryError struct {
	Domain string
	Err    error
}

func (e *InventoryError) Error() string {
	return fmt.Sprintf("inventory for domain %s: %v", e.Domain, e.Err)
}

func (e *InventoryError) Unwrap() error { return e.Err }

// SnapshotError 快照创建失败，该域的 archive/merge 阶段全部跳过
// 快照是原子的，失败时没有任何 overlay 需要清理
type SnapshotError struct {
	Domain string
	Err    error
}

func (e *SnapshotError) Error() string {
	return fmt.Sprintf("snapshot for domain %s: %v", e.Domain, e.Err)
}

func (e *SnapshotError) Unwrap() error { return e.Err }

// ArchiveError 单个磁盘的备份复制失败
// 只影响备份完整性，不阻止后续的 merge（overlay 必须被合并回去）
type ArchiveError struct {
	Domain string
	Target string
	Path   string
	Err    error
}

func (e *ArchiveError) Error() string {
	return fmt.Sprintf("archive %s of domain %s (%s): %v", e.Target, e.Domain, e.Path, e.Err)
}

func (e *ArchiveError) Unwrap() error { return e.Err }

// MergeError 单个磁盘的 block commit/pivot 失败
// 域可能仍在向 overlay 写入，overlay 绝不能删除，需要运维介入
type MergeError struct {
	Domain  string
	Target  string
	Overlay string
	Err     error
}

func (e *MergeError) Error() string {
	return fmt.Sprintf("merge %s of domain %s (overlay %s): %v", e.Target, e.Domain, e.Overlay, e.Err)
}

func (e *MergeError) Unwrap() error { return e.Err }
