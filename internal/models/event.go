package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Event metadata is owned by the events service; this service only reads it.
type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID       string    `bun:"id,pk"`
	Title    string    `bun:"title,notnull"`
	Venue    string    `bun:"venue"`
	Category string    `bun:"category"`
	Date     time.Time `bun:"date"`
}
