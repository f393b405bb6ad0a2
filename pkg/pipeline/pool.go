package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"golang.org/x/sync/errgroup"

	"github.com/idphoto/passport-photo/pkg/sheet"
	"github.com/idphoto/passport-photo/pkg/types"
)

// ProcessBatch runs independent requests across a bounded worker pool.
// Results keep input order. The first failure cancels the remaining work.
func (p *Pipeline) ProcessBatch(ctx context.Context, reqs []types.ProcessingRequest) ([]*Result, error) {
	results := make([]*Result, len(reqs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for i := range reqs {
		i := i
		g.Go(func() error {
			res, err := p.Process(ctx, reqs[i])
			if err != nil {
				return fmt.Errorf("request %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// BatchSheet processes several source images in parallel and tiles each
// resulting photo once onto a single combined sheet. Per-request sheet flags
// are ignored; the batch produces one PDF. Capacity overflow degrades to the
// photos that fit, reported in the result warning.
func (p *Pipeline) BatchSheet(ctx context.Context, reqs []types.ProcessingRequest) (*Result, error) {
	if len(reqs) == 0 {
		return nil, newError(InvalidRequest, "empty batch")
	}

	photos := make([]image.Image, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for i := range reqs {
		i := i
		g.Go(func() error {
			req := reqs[i]
			req.MakeSheet = false
			res, err := p.Process(gctx, req)
			if err != nil {
				return fmt.Errorf("request %d: %w", i, err)
			}
			photos[i] = res.Photo.Image
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	layout, warning, err := p.computeLayout(len(photos))
	if err != nil {
		return nil, err
	}

	canvas := sheet.RenderMultiple(photos[:layout.Placed], layout, p.cfg.CutGuides)
	var pdf bytes.Buffer
	if err := sheet.ExportPDF(canvas, layout, &pdf); err != nil {
		return nil, wrapError(InvalidRequest, err, "PDF export failed")
	}

	p.log.Infow("batch sheet assembled",
		"photos", len(photos), "placed", layout.Placed,
		"rows", layout.Rows, "cols", layout.Cols)
	return &Result{Layout: &layout, SheetPDF: pdf.Bytes(), Warning: warning}, nil
}
