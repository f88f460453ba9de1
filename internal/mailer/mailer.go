package mailer

import "go.uber.org/zap"

// Mailer is the outbound-email seam. Delivery itself is out of scope; the
// process ships with a logging implementation only.
type Mailer interface {
	SendVerification(email, fullName, token string) error
	SendWelcome(email, fullName, clinicName string) error
	SendInvite(email, clinicName, inviteLink string) error
}

type LogMailer struct {
	lg *zap.SugaredLogger
}

func NewLogMailer(lg *zap.SugaredLogger) *LogMailer {
	return &LogMailer{lg: lg}
}

func (m *LogMailer) SendVerification(email, fullName, token string) error {
	m.lg.Infow("verification email", "to", email, "name", fullName)
	return nil
}

func (m *LogMailer) SendWelcome(email, fullName, clinicName string) error {
	m.lg.Infow("welcome email", "to", email, "clinic", clinicName)
	return nil
}

func (m *LogMailer) SendInvite(email, clinicName, inviteLink string) error {
	m.lg.Infow("invite email", "to", email, "clinic", clinicName)
	return nil
}
