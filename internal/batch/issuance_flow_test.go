package batch

import (
	"archive/zip"
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ms-issuance/internal/issuance"
	"ms-issuance/internal/ledger"
	"ms-issuance/internal/models"
)

// Full pipeline against the real code generator, QR encoder, compositor,
// renderer and a sqlite-backed ledger.
func TestIssueBatchFullPipeline(t *testing.T) {
	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:")
	if err != nil {
		t.Fatalf("Failed to open sqlite: %v", err)
	}
	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	ctx := context.Background()
	if err := bunDB.ResetModel(ctx, (*models.Ticket)(nil)); err != nil {
		t.Fatalf("Failed to create tickets table: %v", err)
	}
	if err := bunDB.ResetModel(ctx, (*models.BatchJob)(nil)); err != nil {
		t.Fatalf("Failed to create batch_jobs table: %v", err)
	}

	db := ledger.NewDB(bunDB)
	svc := issuance.NewService(db, 128, 96)
	sched := NewScheduler(testConfig(), svc, db, &fakeTemplates{tpl: validTemplate(t)})

	jobID, err := sched.IssueBatch(ctx, Request{
		EventID:    "event-a",
		TemplateID: "tpl-1",
		Quantity:   10,
		NamePrefix: "GA",
	})
	if err != nil {
		t.Fatalf("IssueBatch failed: %v", err)
	}

	progress, err := sched.Progress(ctx, jobID)
	if err != nil {
		t.Fatalf("Progress failed: %v", err)
	}
	if progress.Status != models.JobStatusCompleted {
		t.Fatalf("Job status is %q, want completed", progress.Status)
	}
	if progress.CompletedCount != 10 {
		t.Fatalf("CompletedCount is %d, want 10", progress.CompletedCount)
	}

	// Every ticket ended up in the ledger with a distinct code.
	count, err := bunDB.NewSelect().Model((*models.Ticket)(nil)).Where("job_id = ?", jobID).Count(ctx)
	if err != nil {
		t.Fatalf("Failed to count tickets: %v", err)
	}
	if count != 10 {
		t.Fatalf("Ledger holds %d tickets for the job, want 10", count)
	}

	var tickets []models.Ticket
	if err := bunDB.NewSelect().Model(&tickets).Where("job_id = ?", jobID).Scan(ctx); err != nil {
		t.Fatalf("Failed to load tickets: %v", err)
	}

	data, err := sched.Archive(ctx, jobID)
	if err != nil {
		t.Fatalf("Archive failed: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Archive is not readable zip: %v", err)
	}
	if len(zr.File) != 10 {
		t.Fatalf("Archive has %d entries, want 10", len(zr.File))
	}

	// Each archive entry maps back to exactly one ledger row.
	names := make(map[string]bool)
	for _, f := range zr.File {
		names[f.Name] = true
	}
	for _, ticket := range tickets {
		want := fmt.Sprintf("ticket-%s.pdf", ticket.Code)
		if !names[want] {
			t.Errorf("Ledger ticket %s has no archive entry %s", ticket.Code, want)
		}
		if !strings.HasPrefix(ticket.Code, "GA-") {
			t.Errorf("Ticket code %q does not carry the requested prefix", ticket.Code)
		}
	}

	// Issued tickets scan exactly once.
	ledgerSvc := ledger.NewService(db)
	first, err := ledgerSvc.Scan(ctx, tickets[0].Code)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if first.Outcome != ledger.OutcomeAccepted {
		t.Errorf("First scan outcome is %q", first.Outcome)
	}
	second, err := ledgerSvc.Scan(ctx, tickets[0].Code)
	if err != nil {
		t.Fatalf("Second scan failed: %v", err)
	}
	if second.Outcome != ledger.OutcomeAlreadyUsed {
		t.Errorf("Second scan outcome is %q", second.Outcome)
	}
}
