package templates

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"image"

	"github.com/disintegration/imaging"
	"github.com/uptrace/bun"

	"ms-issuance/internal/compositor"
	"ms-issuance/internal/errs"
	"ms-issuance/internal/models"
)

// Store reads templates from the shared template table. Templates are owned
// by the design tooling; this service never writes them.
type Store struct {
	Bun *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{Bun: db}
}

func (s *Store) GetTemplate(ctx context.Context, id string) (*models.Template, error) {
	var tpl models.Template
	err := s.Bun.NewSelect().
		Model(&tpl).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &errs.ValidationError{Field: "template_id", Reason: "template not found"}
	}
	if err != nil {
		return nil, err
	}
	return &tpl, nil
}

// Load decodes the template image and validates the anchor against it. A
// corrupt image or an anchor outside the bounds is a TemplateError, which is
// fatal for any job using the template.
func Load(tpl *models.Template) (image.Image, compositor.Anchor, error) {
	anchor := compositor.Anchor{X: tpl.QRX, Y: tpl.QRY, Size: tpl.QRSize}

	img, err := imaging.Decode(bytes.NewReader(tpl.Image))
	if err != nil {
		return nil, anchor, &errs.TemplateError{
			TemplateID: tpl.ID,
			Reason:     "template image is unreadable",
			Err:        err,
		}
	}

	if err := compositor.ValidateAnchor(img.Bounds(), anchor); err != nil {
		var terr *errs.TemplateError
		if errors.As(err, &terr) {
			terr.TemplateID = tpl.ID
		}
		return nil, anchor, err
	}

	return img, anchor, nil
}
