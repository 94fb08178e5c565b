package core

import (
	"context"
	"net/mail"
)

type (
	Attachment struct {
		Content     []byte // raw, encoded by the sender
		ContentType string
		Filename    string
	}

	EmailMessage struct {
		To          []mail.Address
		Cc          []mail.Address
		Subject     string
		TextContent string
		Attachments []Attachment
	}

	// EmailService is any service that can send emails
	EmailService interface {
		Send(ctx context.Context, msg EmailMessage) error
	}
)

func (m EmailMessage) HasRecipients() bool  { return len(m.To) > 0 }
func (m EmailMessage) HasContent() bool     { return m.TextContent != "" }
func (m EmailMessage) HasAttachments() bool { return len(m.Attachments) > 0 }

// DefaultFromEmail is the sender of the portal's emails.
func (c Config) DefaultFromEmail() mail.Address {
	return mail.Address{Name: c.AppName, Address: c.Email.FromAddress}
}
