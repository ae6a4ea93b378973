package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// BatchItem is the outcome of one document of a batch.
type BatchItem struct {
	Filename string   `json:"filename"`
	Strategy Strategy `json:"strategy,omitempty"`
	Sections int      `json:"sections"`
	Warnings []string `json:"warnings"`
	XML      string   `json:"xml,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// ConvertBatch converts documents concurrently, at most limit at a time.
// A failing document is reported in its item and does not stop the others.
// Items are returned in request order.
func (c *Converter) ConvertBatch(ctx context.Context, reqs []Request, limit int) []BatchItem {
	items := make([]BatchItem, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			items[i] = c.batchItem(gctx, req)
			return nil
		})
	}
	_ = g.Wait()
	return items
}

func (c *Converter) batchItem(ctx context.Context, req Request) BatchItem {
	item := BatchItem{Filename: req.Filename, Warnings: []string{}}
	res, err := c.ConvertShared(ctx, req)
	if err != nil {
		c.log.Warn("batch item failed", "filename", req.Filename, "error", err)
		item.Error = err.Error()
		return item
	}
	out, err := res.XML()
	if err != nil {
		item.Error = err.Error()
		return item
	}
	item.Strategy = res.Strategy
	item.Sections = res.Tree.Count()
	item.Warnings = append(item.Warnings, res.Warnings...)
	item.XML = string(out)
	return item
}
