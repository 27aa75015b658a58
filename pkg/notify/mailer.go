/*
 * Copyright 2025 the NannyAI Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package notify delivers content alerts to the guardian over SMTP.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"

	"github.com/elabbarw/nannyai/pkg/config"
	"github.com/elabbarw/nannyai/pkg/logger"
)

const alertSubject = "NannyAI - Content Alert - Screen Monitor"

// ErrNotConfigured is returned when the mailer is missing the sender or
// recipient address.
var ErrNotConfigured = errors.New("email settings incomplete")

// Mailer sends guardian alerts through the configured SMTP server.
type Mailer struct {
	settings config.EmailSettings
	logger   zerolog.Logger
}

// NewMailer builds a Mailer. The settings are validated lazily on send
// so a partially configured install still starts.
func NewMailer(settings config.EmailSettings, log logger.Logger) *Mailer {
	return &Mailer{
		settings: settings,
		logger:   log.WithComponent("notify"),
	}
}

// SendAlert emails the alert message to the guardian.
func (m *Mailer) SendAlert(ctx context.Context, message string) error {
	s := m.settings
	if s.SMTPServer == "" || s.SenderEmail == "" || s.ParentEmail == "" {
		return ErrNotConfigured
	}

	msg := mail.NewMsg()
	if err := msg.From(s.SenderEmail); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}

	if err := msg.To(s.ParentEmail); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}

	msg.Subject(alertSubject)
	msg.SetBodyString(mail.TypeTextPlain, "Alert: "+message)

	client, err := mail.NewClient(s.SMTPServer,
		mail.WithPort(s.SMTPPort),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.SenderEmail),
		mail.WithPassword(s.SenderPassword),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send alert email: %w", err)
	}

	m.logger.Info().Str("recipient", s.ParentEmail).Msg("Alert email sent")

	return nil
}
