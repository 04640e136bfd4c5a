package ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"ms-issuance/internal/models"
)

type DB struct {
	Bun *bun.DB
}

func NewDB(db *bun.DB) *DB {
	return &DB{Bun: db}
}

func (d *DB) CreateTicket(ctx context.Context, ticket models.Ticket) error {
	_, err := d.Bun.NewInsert().Model(&ticket).Exec(ctx)
	return err
}

func (d *DB) GetTicketByCode(ctx context.Context, code string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("code = ?", code).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// MarkScanned performs the scan transition as a single conditional update.
// Only a row still in the issued state is moved to scanned, so two racing
// scanners can never both win; the losing update simply matches zero rows.
func (d *DB) MarkScanned(ctx context.Context, code string, at time.Time) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("status = ?", models.TicketStatusScanned).
		Set("scanned_at = ?", at).
		Where("code = ?", code).
		Where("status = ?", models.TicketStatusIssued).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// VoidTicket retires an issued ticket. Same conditional-update shape as
// MarkScanned: scanned tickets cannot be voided and void is terminal.
func (d *DB) VoidTicket(ctx context.Context, code string) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("status = ?", models.TicketStatusVoid).
		Where("code = ?", code).
		Where("status = ?", models.TicketStatusIssued).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// CreateJob inserts the batch job row at request acceptance.
func (d *DB) CreateJob(ctx context.Context, job models.BatchJob) error {
	_, err := d.Bun.NewInsert().Model(&job).Exec(ctx)
	return err
}

// UpdateJob persists a progress snapshot after a chunk reports back.
func (d *DB) UpdateJob(ctx context.Context, job models.BatchJob) error {
	_, err := d.Bun.NewUpdate().
		Model(&job).
		Column("completed_count", "failed_count", "status", "finished_at").
		Where("id = ?", job.ID).
		Exec(ctx)
	return err
}

func (d *DB) GetJob(ctx context.Context, id string) (*models.BatchJob, error) {
	var job models.BatchJob
	err := d.Bun.NewSelect().
		Model(&job).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// CountBreakdown is one row of a GROUP BY projection over the ledger.
type CountBreakdown struct {
	Key     string `bun:"key"`
	Issued  int    `bun:"issued"`
	Scanned int    `bun:"scanned"`
}

// Filter narrows analytics projections by event and issuance window.
type Filter struct {
	EventID string
	From    time.Time
	To      time.Time
}

func (d *DB) countTickets(ctx context.Context, f Filter, status string) (int, error) {
	q := d.Bun.NewSelect().Model((*models.Ticket)(nil))
	if f.EventID != "" {
		q = q.Where("event_id = ?", f.EventID)
	}
	if !f.From.IsZero() {
		q = q.Where("issued_at >= ?", f.From)
	}
	if !f.To.IsZero() {
		q = q.Where("issued_at < ?", f.To)
	}
	if status != "" {
		q = q.Where("status = ?", status)
	}
	return q.Count(ctx)
}

// BreakdownBy groups ledger rows by the given column ("ticket_type",
// "template_id" or "category") and counts issued vs scanned per group.
func (d *DB) BreakdownBy(ctx context.Context, column string, f Filter) ([]CountBreakdown, error) {
	var rows []CountBreakdown
	q := d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		ColumnExpr("? AS key", bun.Ident(column)).
		ColumnExpr("COUNT(*) AS issued").
		ColumnExpr("SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS scanned", models.TicketStatusScanned).
		GroupExpr("?", bun.Ident(column))
	if f.EventID != "" {
		q = q.Where("event_id = ?", f.EventID)
	}
	if !f.From.IsZero() {
		q = q.Where("issued_at >= ?", f.From)
	}
	if !f.To.IsZero() {
		q = q.Where("issued_at < ?", f.To)
	}
	err := q.Scan(ctx, &rows)
	return rows, err
}

func (d *DB) CountIssued(ctx context.Context, f Filter) (int, error) {
	return d.countTickets(ctx, f, "")
}

func (d *DB) CountScanned(ctx context.Context, f Filter) (int, error) {
	return d.countTickets(ctx, f, models.TicketStatusScanned)
}
