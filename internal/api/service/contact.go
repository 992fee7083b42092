package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/agrolink/agrolink/internal/api/domain"
	"github.com/agrolink/agrolink/internal/api/notify"
	"github.com/agrolink/agrolink/internal/api/store"
	"github.com/agrolink/agrolink/pkg/idx"
)

// ContactService stores public contact-form submissions and forwards a copy
// to the support inbox.
type ContactService struct {
	contacts store.Contacts
	mailer   notify.Sender
	log      *slog.Logger

	// supportEmail receives a copy of every submission; empty disables
	// forwarding.
	supportEmail string

	now func() time.Time
}

func NewContactService(contacts store.Contacts, mailer notify.Sender, supportEmail string, log *slog.Logger) *ContactService {
	return &ContactService{
		contacts:     contacts,
		mailer:       mailer,
		supportEmail: supportEmail,
		log:          log,
		now:          time.Now,
	}
}

type ContactInput struct {
	Name    string
	Email   string
	Subject string
	Message string
}

func (s *ContactService) Submit(ctx context.Context, in ContactInput) (domain.Contact, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Message = strings.TrimSpace(in.Message)
	if in.Name == "" || in.Email == "" || in.Message == "" {
		return domain.Contact{}, fmt.Errorf("%w: please provide name, email, and message", ErrInvalidInput)
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return domain.Contact{}, fmt.Errorf("%w: please provide a valid email address", ErrInvalidInput)
	}

	contact := domain.Contact{
		ID:        idx.New().String(),
		Name:      in.Name,
		Email:     email,
		Subject:   strings.TrimSpace(in.Subject),
		Message:   in.Message,
		CreatedAt: s.now().UTC(),
	}

	if err := s.contacts.CreateContact(ctx, contact); err != nil {
		return domain.Contact{}, fmt.Errorf("store contact: %w", err)
	}

	if s.supportEmail != "" {
		subject := contact.Subject
		if subject == "" {
			subject = "New contact form submission"
		}
		msg := notify.Message{
			To:      s.supportEmail,
			Subject: subject,
			Body: fmt.Sprintf("From: %s <%s>\n\n%s\n",
				contact.Name, contact.Email, contact.Message),
		}
		if err := s.mailer.Send(ctx, msg); err != nil {
			s.log.WarnContext(ctx, "contact forward failed",
				slog.String("contact_id", contact.ID), slog.Any("error", err))
		}
	}

	return contact, nil
}
