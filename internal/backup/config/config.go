package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config kvm-backup 的运行配置
//
// 配置来源优先级：环境变量（KVM_BACKUP_*）> 配置文件 > 默认值。
// 配置文件默认从 /etc/kvm-backup/config.yaml 或当前目录的 config.yaml 读取，
// 也可以通过 --config 指定。
type Config struct {
	// LibvirtURI 是 libvirt 连接 URI
	// 支持以下格式：
	// - qemu:///system (本地系统连接，默认)
	// - qemu+ssh://user@host/system (SSH 远程连接)
	// - qemu+tcp://host/system (TCP 远程连接)
	LibvirtURI string `mapstructure:"libvirt_uri"`

	// BackupRoot 是备份根目录
	// 每次运行会先清空该目录下的旧备份，再写入 <domain>/<date>/ 子目录
	BackupRoot string `mapstructure:"backup_root"`

	// DateLayout 是备份子目录的日期格式（Go time layout）
	DateLayout string `mapstructure:"date_layout"`

	// QemuImgPath 是 qemu-img 的路径，为空则在 PATH 中查找
	QemuImgPath string `mapstructure:"qemu_img_path"`

	Mail    MailConfig    `mapstructure:"mail"`
	Journal JournalConfig `mapstructure:"journal"`
}

// MailConfig 邮件通知配置
type MailConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	SMTPAddr string   `mapstructure:"smtp_addr"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
}

// JournalConfig systemd journal 通知配置
type JournalConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load 加载配置
// configFile 为空时按默认搜索路径查找，找不到配置文件不算错误
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("libvirt_uri", "qemu:///system")
	v.SetDefault("backup_root", "/var/backup/kvm")
	v.SetDefault("date_layout", "2006-01-02")
	v.SetDefault("qemu_img_path", "qemu-img")
	v.SetDefault("mail.enabled", false)
	v.SetDefault("journal.enabled", true)

	v.SetEnvPrefix("KVM_BACKUP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/kvm-backup")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.BackupRoot == "" {
		return nil, fmt.Errorf("backup_root must not be empty")
	}

	return cfg, nil
}
