package issuance

import (
	"context"
	"fmt"
	"image"
	"time"

	"ms-issuance/internal/codegen"
	"ms-issuance/internal/compositor"
	"ms-issuance/internal/errs"
	"ms-issuance/internal/models"
	"ms-issuance/internal/qrencode"
	"ms-issuance/internal/renderer"
)

// TicketStore persists ticket rows. Implemented by ledger.DB in production.
type TicketStore interface {
	CreateTicket(ctx context.Context, ticket models.Ticket) error
}

// Request describes one ticket to issue. The template image and anchor come
// in separately because the whole job shares one decoded template.
type Request struct {
	EventID    string
	TemplateID string
	JobID      string
	TicketType string
	Category   string
	NamePrefix string
}

// Issued pairs the persisted ticket with its rendered document.
type Issued struct {
	Ticket   models.Ticket
	Document []byte
}

// Service runs the per-ticket pipeline: code, QR, composite, render, persist.
type Service struct {
	Codes   *codegen.Generator
	QR      *qrencode.Encoder
	PDF     *renderer.PDFRenderer
	Store   TicketStore
	Retries int
	Backoff time.Duration
}

func NewService(store TicketStore, qrSize, dpi int) *Service {
	return &Service{
		Codes:   codegen.New(),
		QR:      qrencode.NewEncoder(qrSize),
		PDF:     renderer.NewPDFRenderer(dpi),
		Store:   store,
		Retries: 3,
		Backoff: 100 * time.Millisecond,
	}
}

// IssueOne issues a single ticket against the already-loaded template. Any
// error it returns is a per-ticket failure; the caller decides whether the
// job continues.
func (s *Service) IssueOne(ctx context.Context, req Request, base image.Image, anchor compositor.Anchor) (*Issued, error) {
	code, err := s.Codes.NewCode(req.NamePrefix)
	if err != nil {
		return nil, err
	}

	symbol, err := s.QR.EncodeImage(code)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR for %s: %w", code, err)
	}

	composited, err := compositor.Compose(base, symbol, anchor)
	if err != nil {
		return nil, err
	}

	document, err := s.PDF.Render(code, composited)
	if err != nil {
		return nil, err
	}

	ticket := models.Ticket{
		Code:       code,
		EventID:    req.EventID,
		TemplateID: req.TemplateID,
		JobID:      req.JobID,
		TicketType: req.TicketType,
		Category:   req.Category,
		Status:     models.TicketStatusIssued,
		IssuedAt:   time.Now(),
	}

	if err := s.persist(ctx, ticket); err != nil {
		return nil, err
	}

	return &Issued{Ticket: ticket, Document: document}, nil
}

// persist writes the ticket row with bounded retries. Retrying is only done
// here, at the storage layer; the rest of the pipeline is deterministic and
// retrying it would just burn CPU.
func (s *Service) persist(ctx context.Context, ticket models.Ticket) error {
	attempts := s.Retries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = s.Store.CreateTicket(ctx, ticket)
		if lastErr == nil {
			return nil
		}
		if attempt < attempts {
			select {
			case <-ctx.Done():
				return &errs.StorageError{Op: "create_ticket", Attempts: attempt, Err: ctx.Err()}
			case <-time.After(s.Backoff * time.Duration(attempt)):
			}
		}
	}
	return &errs.StorageError{Op: "create_ticket", Attempts: attempts, Err: lastErr}
}
