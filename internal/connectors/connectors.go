// Package connectors pulls raw request mail from a mailbox provider into the
// local store.
package connectors

import (
	"context"

	"stockroom/internal"
)

type MailConnector interface {
	FetchInbox(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error)
}
