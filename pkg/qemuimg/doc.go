// Package qemuimg 封装 qemu-img 命令行工具的操作
//
// 该包提供了备份流程需要的 qemu-img 操作封装，包括：
//   - 转换/复制镜像（Convert），复制过程保留稀疏区域
//   - 获取镜像信息（Info）
//   - 获取镜像格式（GetFormat）
//
// 所有操作都支持 context 超时控制，适合长时间运行的操作。
//
// 示例：
//
//	// 创建 client
//	client := qemuimg.New("")
//
//	// 复制镜像到备份目录（保留稀疏）
//	err := client.Convert(ctx, "qcow2", "qcow2",
//		"/img/vm1.qcow2", "/backup/vm1/2024-01-01/vm1.qcow2")
//
//	// 获取镜像格式
//	format, err := client.GetFormat(ctx, "/path/to/image.img")
package qemuimg
