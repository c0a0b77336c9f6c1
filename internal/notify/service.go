// Package notify delivers owner and customer notifications over SMS and
// email according to each tenant's preferences.
package notify

import (
	"context"
	"fmt"

	"github.com/wrenchline/wrenchline/internal/messaging"
	"github.com/wrenchline/wrenchline/internal/tenant"
	"github.com/wrenchline/wrenchline/pkg/logging"
)

// TenantConfigStore retrieves tenant configuration.
type TenantConfigStore interface {
	Get(ctx context.Context, tenantID string) (*tenant.Config, error)
}

// Service fans a notification out to the channels the tenant enabled.
type Service struct {
	email       EmailSender
	sms         messaging.Sender
	tenantStore TenantConfigStore
	logger      *logging.Logger
}

// NewService creates a notification service. Either sender may be nil; that
// channel is then skipped.
func NewService(email EmailSender, sms messaging.Sender, tenantStore TenantConfigStore, logger *logging.Logger) *Service {
	if tenantStore == nil {
		panic("notify: tenant store is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		email:       email,
		sms:         sms,
		tenantStore: tenantStore,
		logger:      logger,
	}
}

// NotifyOwner delivers text to the tenant's owner over every enabled
// channel. It returns an error only when no channel delivered, so queued
// alerts get redelivered rather than lost.
func (s *Service) NotifyOwner(ctx context.Context, tenantID, text string) error {
	cfg, err := s.tenantStore.Get(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("notify: get tenant config: %w", err)
	}

	delivered := 0
	attempted := 0

	if s.sms != nil && cfg.Notifications.SMSEnabled {
		for _, to := range smsRecipients(cfg) {
			attempted++
			if err := s.sms.SendSMS(ctx, to, cfg.IntakeNumber, text); err != nil {
				s.logger.Error("owner sms failed", "tenant_id", tenantID, "to", to, "error", err)
				continue
			}
			delivered++
		}
	}

	if s.email != nil && cfg.Notifications.EmailEnabled {
		for _, to := range emailRecipients(cfg) {
			attempted++
			msg := EmailMessage{
				To:      to,
				ToName:  cfg.Name,
				Subject: fmt.Sprintf("[%s] Intake alert", cfg.Name),
				Body:    text,
			}
			if err := s.email.Send(ctx, msg); err != nil {
				s.logger.Error("owner email failed", "tenant_id", tenantID, "to", to, "error", err)
				continue
			}
			delivered++
		}
	}

	if attempted == 0 {
		s.logger.Debug("no owner notification channels configured", "tenant_id", tenantID)
		return nil
	}
	if delivered == 0 {
		return fmt.Errorf("notify: all owner channels failed for tenant %s", tenantID)
	}
	return nil
}

// NotifyCustomer texts the customer from the tenant's intake number.
// Fire-and-forget: failures are logged and swallowed.
func (s *Service) NotifyCustomer(ctx context.Context, tenantID, phone, text string) {
	if s.sms == nil {
		return
	}
	cfg, err := s.tenantStore.Get(ctx, tenantID)
	if err != nil {
		s.logger.Error("customer sms skipped, tenant lookup failed", "tenant_id", tenantID, "error", err)
		return
	}
	if err := s.sms.SendSMS(ctx, phone, cfg.IntakeNumber, text); err != nil {
		s.logger.Error("customer sms failed", "tenant_id", tenantID, "to", phone, "error", err)
	}
}

func smsRecipients(cfg *tenant.Config) []string {
	if len(cfg.Notifications.SMSRecipients) > 0 {
		return cfg.Notifications.SMSRecipients
	}
	if cfg.Phone != "" {
		return []string{cfg.Phone}
	}
	return nil
}

func emailRecipients(cfg *tenant.Config) []string {
	if len(cfg.Notifications.EmailRecipients) > 0 {
		return cfg.Notifications.EmailRecipients
	}
	if cfg.Email != "" {
		return []string{cfg.Email}
	}
	return nil
}
