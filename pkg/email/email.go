package email

import "context"

// Message is an outbound email.
type Message struct {
	ToName      string
	ToAddress   string
	Subject     string
	TextContent string
	HTMLContent string
}

// Sender delivers email messages. Delivery retries are handled by the
// notification queue, so implementations send exactly once per call.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
