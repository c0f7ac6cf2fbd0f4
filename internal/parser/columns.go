package parser

import (
	"fmt"

	"github.com/insightdelivered/hsbc-statement-converter/internal/models"
)

// columnResolver places the leading amount of a merged line in the paid
// out or paid in column.
//
// CR lines are always paid in and most other types always paid out. VIS
// is used for both card purchases and card refunds, and the only thing
// that tells them apart in extracted text is how far right the amount
// sits: the width of the whitespace run before it. threshold is that
// cut-off; widths within band of it are flagged for review.
type columnResolver struct {
	threshold int
	band      int
}

func (c columnResolver) resolve(f models.FieldSet, page int) (models.Record, []models.Diagnostic) {
	rec := models.Record{
		Date:   f.Date,
		Type:   f.Type,
		Detail: f.Detail,
		Spacing: models.Spacing{
			BeforeAmount1: f.SpaceBeforeAmount1,
			BeforeAmount2: f.SpaceBeforeAmount2,
			BeforeAmount3: f.SpaceBeforeAmount3,
		},
		Page: page,
		Line: f.Line,
	}

	var diags []models.Diagnostic
	flag := func(msg string) {
		rec.Annotations = append(rec.Annotations, msg)
		diags = append(diags, models.Diagnostic{
			Kind:    models.KindAmbiguousColumn,
			Page:    page,
			Line:    f.Line,
			Message: msg,
		})
	}

	switch {
	case f.Amount3.Valid:
		rec.Balance = f.Amount3
		flag(fmt.Sprintf("three amounts on one line; dropped middle amount %s", f.Amount2.Decimal.StringFixed(2)))
	case f.Amount2.Valid:
		rec.Balance = f.Amount2
	}

	if !f.Amount1.Valid {
		return rec, diags
	}

	switch f.Type {
	case models.TypeCR:
		rec.PaidIn = f.Amount1
	case models.TypeVIS:
		w := width(f.SpaceBeforeAmount1)
		if w < c.threshold {
			rec.PaidOut = f.Amount1
		} else {
			rec.PaidIn = f.Amount1
		}
		if d := w - c.threshold; d >= -c.band && d <= c.band {
			flag(fmt.Sprintf("VIS amount %s placed by a gap of %d against threshold %d",
				f.Amount1.Decimal.StringFixed(2), w, c.threshold))
		}
	default:
		rec.PaidOut = f.Amount1
	}

	return rec, diags
}
