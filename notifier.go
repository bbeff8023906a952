package accounts

import "context"

// LogMailer is a Mailer that only logs. It backs development setups and
// tests; production wiring injects a real delivery collaborator.
type LogMailer struct {
	logger Logger
}

func NewLogMailer(logger Logger) *LogMailer {
	if logger == nil {
		logger = defLogger{}
	}
	return &LogMailer{logger: logger}
}

var _ Mailer = (*LogMailer)(nil)

func (m *LogMailer) SendRegistrationEmail(ctx context.Context, email, rawToken string) error {
	m.logger.Info("registration email", "to", email, "token", rawToken)
	return nil
}

func (m *LogMailer) SendResendEmail(ctx context.Context, email, rawToken string) error {
	m.logger.Info("registration resend email", "to", email, "token", rawToken)
	return nil
}

func (m *LogMailer) SendVerificationEmail(ctx context.Context, email, displayName, rawToken string) error {
	m.logger.Info("verification email", "to", email, "name", displayName, "token", rawToken)
	return nil
}

func (m *LogMailer) SendWelcomeEmail(ctx context.Context, email, displayName string) error {
	m.logger.Info("welcome email", "to", email, "name", displayName)
	return nil
}

func (m *LogMailer) SendPasswordResetEmail(ctx context.Context, email, displayName, rawToken string) error {
	m.logger.Info("password reset email", "to", email, "name", displayName, "token", rawToken)
	return nil
}
