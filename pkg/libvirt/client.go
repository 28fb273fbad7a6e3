package libvirt

import (
	"encoding/xml"
	"fmt"
	"net/url"

	"github.com/digitalocean/go-libvirt"
)

// Client 封装备份流程用到的 libvirt 操作
type Client struct {
	conn *libvirt.Libvirt
}

// 确保 Client 实现了 LibvirtClient 接口
var _ LibvirtClient = (*Client)(nil)

// New 使用默认的 qemu:///system 连接创建 Client
func New() (*Client, error) {
	return NewWithURI(string(libvirt.QEMUSystem))
}

// NewWithURI 使用指定的 libvirt URI 创建 Client
// 支持以下格式：
// - qemu:///system (本地系统连接，默认)
// - qemu+ssh://user@host/system (SSH 远程连接)
// - qemu+tcp://host/system (TCP 远程连接)
func NewWithURI(rawURI string) (*Client, error) {
	uri, err := url.Parse(rawURI)
	if err != nil {
		return nil, fmt.Errorf("parse libvirt URI %s: %w", rawURI, err)
	}

	l, err := libvirt.ConnectToURI(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %v", err)
	}

	return &Client{conn: l}, nil
}

// Close 断开 libvirt 连接
func (c *Client) Close() error {
	return c.conn.Disconnect()
}

// ListRunningDomains 列出所有正在运行的域名称
// 只有运行中的域会被备份，关机的域磁盘本身就是一致的
func (c *Client) ListRunningDomains() ([]string, error) {
	flags := libvirt.ConnectListDomainsActive | libvirt.ConnectListDomainsRunning

	// NeedResults 设置为足够大的数字以获取所有域
	domains, _, err := c.conn.ConnectListAllDomains(1000, flags)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve domains: %v", err)
	}

	names := make([]string, 0, len(domains))
	for _, d := range domains {
		names = append(names, d.Name)
	}

	return names, nil
}

// GetDomainXMLDesc 获取域的完整 XML 定义
// 备份时会把该定义作为 sidecar 文件存入备份目录
func (c *Client) GetDomainXMLDesc(domainName string) (string, error) {
	domain, err := c.conn.DomainLookupByName(domainName)
	if err != nil {
		return "", fmt.Errorf("lookup domain %s: %w", domainName, err)
	}

	xmlDesc, err := c.conn.DomainGetXMLDesc(domain, 0)
	if err != nil {
		return "", fmt.Errorf("get domain XML: %w", err)
	}

	return xmlDesc, nil
}

// GetDomainDisks 获取 domain 的所有磁盘设备
// 每次调用都重新读取实时 XML，快照/pivot 之后 source 会变化
func (c *Client) GetDomainDisks(domainName string) ([]DomainDisk, error) {
	xmlDesc, err := c.GetDomainXMLDesc(domainName)
	if err != nil {
		return nil, err
	}

	return ParseDomainDisks(xmlDesc)
}

// ParseDomainDisks 从域 XML 中解析磁盘设备列表
func ParseDomainDisks(xmlDesc string) ([]DomainDisk, error) {
	var domainXML DomainXML
	if err := xml.Unmarshal([]byte(xmlDesc), &domainXML); err != nil {
		return nil, fmt.Errorf("unmarshal domain XML: %w", err)
	}

	return domainXML.Devices.Disks, nil
}
