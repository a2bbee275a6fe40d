// Package clients stores the customers orders are placed for.
package clients

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fabdesk/fabdesk/internal/platform/httpx"
	"github.com/fabdesk/fabdesk/internal/shared"
)

// Client is a customer of one business.
type Client struct {
	ID                 uuid.UUID       `json:"id"`
	Business           shared.Business `json:"business"`
	Name               string          `json:"name"`
	Mobile             string          `json:"mobile"`
	Address            string          `json:"address"`
	GST                string          `json:"gst"`
	Type               string          `json:"type"`
	OutstandingBalance decimal.Decimal `json:"outstandingBalance"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// CreateInput describes a new client.
type CreateInput struct {
	Name    string
	Mobile  string
	Address string
	GST     string
	Type    string
	ActorID string
}

// ListFilter narrows client listings.
type ListFilter struct {
	Search string
	shared.Page
}

// ErrNotFound is returned when a client does not exist.
var ErrNotFound = fmt.Errorf("clients: client %w", httpx.ErrNotFound)
