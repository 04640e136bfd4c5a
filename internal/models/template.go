package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Template is a reusable visual design. The anchor is expressed in template
// pixel space and points at the square region the QR symbol is drawn into.
type Template struct {
	bun.BaseModel `bun:"table:templates"`

	ID         string    `bun:"id,pk"`
	EventID    string    `bun:"event_id,nullzero"`
	TicketType string    `bun:"ticket_type"`
	Image      []byte    `bun:"image"`
	QRX        int       `bun:"qr_x"`
	QRY        int       `bun:"qr_y"`
	QRSize     int       `bun:"qr_size"`
	CreatedAt  time.Time `bun:"created_at,nullzero,default:current_timestamp"`
}
