package contact

import "context"

// DefaultRecipientLabel is the to_name sent with every payload unless
// the controller is configured with another.
const DefaultRecipientLabel = "Zach"

// Payload is what the relay receives for one submission.
type Payload struct {
	FromName  string
	FromEmail string
	Subject   string
	Message   string
	ToName    string
}

// Params returns the payload as relay template parameters.
func (p Payload) Params() map[string]string {
	return map[string]string{
		"from_name":  p.FromName,
		"from_email": p.FromEmail,
		"subject":    p.Subject,
		"message":    p.Message,
		"to_name":    p.ToName,
	}
}

// Relay delivers a payload on the site owner's behalf.
type Relay interface {
	Send(ctx context.Context, p Payload) error
}

// RelayFunc adapts a function to Relay.
type RelayFunc func(ctx context.Context, p Payload) error

func (f RelayFunc) Send(ctx context.Context, p Payload) error { return f(ctx, p) }
