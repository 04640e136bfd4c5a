package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	TicketStatusIssued  = "issued"
	TicketStatusScanned = "scanned"
	TicketStatusVoid    = "void"
)

type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	Code       string    `bun:"code,pk"`
	EventID    string    `bun:"event_id,notnull"`
	TemplateID string    `bun:"template_id"`
	JobID      string    `bun:"job_id"`
	TicketType string    `bun:"ticket_type"`
	Category   string    `bun:"category"`
	Status     string    `bun:"status,notnull"`
	IssuedAt   time.Time `bun:"issued_at,notnull"`
	ScannedAt  time.Time `bun:"scanned_at,nullzero"`
}
