package email

import (
	"context"
	"fmt"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// SMTPSender implements Sender over a direct SMTP connection via go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

// NewSMTPSender creates a new SMTPSender with the given SMTP credentials.
func NewSMTPSender(host string, port int, username, password, fromEmail, fromName string) *SMTPSender {
	return &SMTPSender{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, htmlContent string) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}

func (s *SMTPSender) SendAssignmentNotice(ctx context.Context, toEmail, sellerName, consumerName, leadURL string) error {
	content, err := renderEmailTemplate("assignment_notice.html", assignmentNoticeEmailData{
		baseEmailData: baseEmailData{
			Title:    subjectAssignmentNotice,
			Heading:  "A new lead is waiting for you",
			CTALabel: "View lead",
			CTAURL:   leadURL,
		},
		SellerName:   sellerName,
		ConsumerName: consumerName,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subjectAssignmentNotice, content)
}

func (s *SMTPSender) SendAcceptanceReminder(ctx context.Context, toEmail, sellerName, consumerName string, hoursRemaining int, final bool, leadURL string) error {
	subject := fmt.Sprintf(subjectFirstReminderFmt, consumerName)
	heading := "Your lead is still waiting"
	if final {
		subject = fmt.Sprintf(subjectFinalReminderFmt, consumerName, hoursRemaining)
		heading = "Last call for your lead"
	}

	content, err := renderEmailTemplate("acceptance_reminder.html", reminderEmailData{
		baseEmailData: baseEmailData{
			Title:    subject,
			Heading:  heading,
			CTALabel: "Respond now",
			CTAURL:   leadURL,
		},
		SellerName:     sellerName,
		ConsumerName:   consumerName,
		HoursRemaining: hoursRemaining,
		Final:          final,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subject, content)
}

func (s *SMTPSender) SendManagerTimeoutNotice(ctx context.Context, toEmail, managerName, sellerName, consumerName, leadURL string) error {
	subject := fmt.Sprintf(subjectManagerTimeoutFmt, sellerName)
	content, err := renderEmailTemplate("manager_timeout.html", managerTimeoutEmailData{
		baseEmailData: baseEmailData{
			Title:    subject,
			Heading:  "An assignment timed out",
			CTALabel: "View lead",
			CTAURL:   leadURL,
		},
		ManagerName:  managerName,
		SellerName:   sellerName,
		ConsumerName: consumerName,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subject, content)
}

var _ Sender = (*SMTPSender)(nil)
