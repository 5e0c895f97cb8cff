package notify

import (
	"context"
	"fmt"
	"log"
	"net/smtp"
	"strings"

	"zonegate/internal/config"
)

// Sender delivers the freshly minted entry code to the signup contact.
type Sender interface {
	SendCodeIssued(ctx context.Context, toContact, displayName, code string, zones []string) error
}

type LogSender struct{}

func (LogSender) SendCodeIssued(ctx context.Context, toContact, displayName, code string, zones []string) error {
	_ = ctx
	log.Printf("entry code issued contact=%s name=%s code=%s zones=%s", toContact, displayName, code, strings.Join(zones, ","))
	return nil
}

type SMTPSender struct {
	host string
	port int
	from string
}

func NewSender(cfg config.Config) Sender {
	switch cfg.CodeNotifySender {
	case "smtp":
		return SMTPSender{host: cfg.SMTPHost, port: cfg.SMTPPort, from: cfg.CodeNotifyFrom}
	default:
		return LogSender{}
	}
}

func (s SMTPSender) SendCodeIssued(ctx context.Context, toContact, displayName, code string, zones []string) error {
	_ = ctx
	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	name := strings.TrimSpace(displayName)
	if name == "" {
		name = toContact
	}
	body := strings.Join([]string{
		"From: " + s.from,
		"To: " + toContact,
		"Subject: Your entry code",
		"",
		fmt.Sprintf("Hi %s,", name),
		"",
		fmt.Sprintf("Your entry code is %s.", code),
		fmt.Sprintf("Zones: %s.", strings.Join(zones, ", ")),
		"",
		"Keep the code to yourself; anyone holding it can enter as you.",
	}, "\r\n")
	return smtp.SendMail(addr, nil, s.from, []string{toContact}, []byte(body))
}
