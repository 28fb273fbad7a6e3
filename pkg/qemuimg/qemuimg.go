package qemuimg

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Client 封装 qemu-img 命令行工具的操作
type Client struct {
	qemuImgPath string
	timeout     time.Duration
}

// New 创建新的 qemuimg client
// qemuImgPath 是 qemu-img 的路径，如果为空则使用默认的 "qemu-img"
func New(qemuImgPath string) *Client {
	if qemuImgPath == "" {
		qemuImgPath = "qemu-img"
	}
	return &Client{
		qemuImgPath: qemuImgPath,
		timeout:     4 * time.Hour, // 备份大镜像可能需要很长时间
	}
}

// WithTimeout 设置操作超时时间
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.timeout = timeout
	return c
}

// Convert 转换镜像格式或复制镜像
//
// convert 按簇读写，镜像中的空洞不会在目标文件中物化为零块，
// 因此适合用来做保留稀疏的备份复制。
//
// 参数：
//   - inputFormat: 输入镜像格式（如 "qcow2", "raw"）
//   - outputFormat: 输出镜像格式（如 "qcow2", "raw"）
//   - inputFile: 输入文件路径
//   - outputFile: 输出文件路径
//
// 示例：
//
//	// 复制 qcow2 镜像到备份目录
//	err := client.Convert(ctx, "qcow2", "qcow2", "/img/vm1.qcow2", "/backup/vm1/vm1.qcow2")
func (c *Client) Convert(ctx context.Context, inputFormat, outputFormat, inputFile, outputFile string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.qemuImgPath, "convert",
		"-f", inputFormat,
		"-O", outputFormat,
		inputFile,
		outputFile,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to convert image from %s to %s: %w, output: %s", inputFile, outputFile, err, string(output))
	}

	return nil
}

// Info 获取镜像信息
// 返回 qemu-img info 的原始输出
func (c *Client) Info(ctx context.Context, imagePath string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second) // info 操作通常很快
	defer cancel()

	cmd := exec.CommandContext(ctx, c.qemuImgPath, "info", imagePath)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("failed to get image info for %s: %w, output: %s", imagePath, err, string(output))
	}

	return string(output), nil
}

// GetFormat 获取镜像的实际格式
// 通过解析 qemu-img info 输出来获取格式
//
// 示例：
//
//	format, err := client.GetFormat(ctx, "/path/to/image.img")
func (c *Client) GetFormat(ctx context.Context, imagePath string) (string, error) {
	info, err := c.Info(ctx, imagePath)
	if err != nil {
		return "", err
	}

	format := parseFormat(info)
	if format == "" {
		return "", fmt.Errorf("failed to parse format from qemu-img info output for %s", imagePath)
	}

	return format, nil
}

// parseFormat 从 qemu-img info 输出中解析 "file format: xxx" 行
func parseFormat(info string) string {
	lines := strings.Split(info, "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "file format:") {
			parts := strings.SplitN(line, ":", 2)
			if len(parts) == 2 {
				return strings.TrimSpace(parts[1])
			}
		}
	}

	return ""
}
