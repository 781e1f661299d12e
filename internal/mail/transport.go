package mail

import (
	"context"
	"errors"
	"fmt"
)

// ErrTransportUnavailable is returned when no mail transport is configured.
var ErrTransportUnavailable = errors.New("mail transport not configured")

// Transport delivers a single HTML message and returns its delivery id.
type Transport interface {
	Send(ctx context.Context, to, subject, html string) (string, error)
}

// DeliveryError wraps a transport or network failure for one recipient.
type DeliveryError struct {
	To  string
	Err error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver to %s: %v", e.To, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
