package notify

import (
	"fmt"
	"net/smtp"
	"strings"
)

// MailConfig SMTP 邮件通知配置
type MailConfig struct {
	// SMTPAddr 是 SMTP 服务器地址，host:port
	SMTPAddr string
	From     string
	To       []string
	// Username/Password 可选，为空时不做认证（本地 MTA 常见）
	Username string
	Password string
}

// MailNotifier 通过 SMTP 发送纯文本邮件通知
type MailNotifier struct {
	cfg MailConfig
}

// 确保 MailNotifier 实现了 Notifier 接口
var _ Notifier = (*MailNotifier)(nil)

// NewMailNotifier 创建邮件通知器
func NewMailNotifier(cfg MailConfig) (*MailNotifier, error) {
	if cfg.SMTPAddr == "" {
		return nil, fmt.Errorf("mail notifier requires smtp_addr")
	}
	if cfg.From == "" || len(cfg.To) == 0 {
		return nil, fmt.Errorf("mail notifier requires from and to addresses")
	}

	return &MailNotifier{cfg: cfg}, nil
}

// Notify 实现 Notifier 接口
func (n *MailNotifier) Notify(severity Severity, subject, body string) error {
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", n.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(n.cfg.To, ", "))
	fmt.Fprintf(&msg, "Subject: [kvm-backup][%s] %s\r\n", severity, subject)
	msg.WriteString("\r\n")
	msg.WriteString(body)

	var auth smtp.Auth
	if n.cfg.Username != "" {
		host := n.cfg.SMTPAddr
		if i := strings.LastIndex(host, ":"); i >= 0 {
			host = host[:i]
		}
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, host)
	}

	if err := smtp.SendMail(n.cfg.SMTPAddr, auth, n.cfg.From, n.cfg.To, []byte(msg.String())); err != nil {
		return fmt.Errorf("send mail via %s: %w", n.cfg.SMTPAddr, err)
	}

	return nil
}
