// Package mailer sends transactional email through a pluggable provider.
// The application falls back to a log-only provider when no API key is
// configured, so development environments never send real mail.
package mailer

// Message is a single outgoing email.
type Message struct {
	From    string
	To      []string
	Subject string
	HTML    string
	Text    string
}

// SendResult carries the provider's acknowledgement.
type SendResult struct {
	ProviderMessageID string
}

// Provider delivers messages via a concrete backend.
type Provider interface {
	Name() string
	Send(msg Message) (SendResult, error)
}

// Mailer wraps a provider with a default sender address.
type Mailer struct {
	provider    Provider
	defaultFrom string
}

func New(provider Provider, defaultFrom string) *Mailer {
	return &Mailer{provider: provider, defaultFrom: defaultFrom}
}

// Send delivers msg through the configured provider, filling in the
// default From address when the caller left it empty.
func (m *Mailer) Send(msg Message) (SendResult, error) {
	if msg.From == "" {
		msg.From = m.defaultFrom
	}
	return m.provider.Send(msg)
}

// ProviderName reports which backend is active.
func (m *Mailer) ProviderName() string {
	return m.provider.Name()
}
