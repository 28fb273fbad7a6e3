package qemuimg

import "context"

// QemuImgClient 定义了 qemu-img 客户端的接口
// 用于抽象 qemu-img 操作，便于测试和 mock
type QemuImgClient interface {
	// Convert 转换镜像格式或复制镜像（保留稀疏）
	Convert(ctx context.Context, inputFormat, outputFormat, inputFile, outputFile string) error
	// Info 获取镜像信息
	Info(ctx context.Context, imagePath string) (string, error)
	// GetFormat 获取镜像的实际格式
	GetFormat(ctx context.Context, imagePath string) (string, error)
}

// 确保 Client 实现了 QemuImgClient 接口
var _ QemuImgClient = (*Client)(nil)
