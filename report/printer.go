package report

import (
	"context"
	"fmt"

	"github.com/supratours/virements/internal/entries"
	"github.com/supratours/virements/internal/payables"
	"github.com/supratours/virements/internal/view"
)

// HTMLRenderer converts HTML into PDF bytes.
type HTMLRenderer interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// DocumentPrinter renders business documents through the embedded templates.
type DocumentPrinter struct {
	renderer HTMLRenderer
	engine   *view.Engine
	company  string
}

// NewDocumentPrinter wires the template engine to a PDF renderer.
func NewDocumentPrinter(renderer HTMLRenderer, engine *view.Engine, company string) *DocumentPrinter {
	return &DocumentPrinter{renderer: renderer, engine: engine, company: company}
}

// PrintOrder renders the payment order as a PDF.
func (p *DocumentPrinter) PrintOrder(ctx context.Context, doc payables.OrderDocument) ([]byte, error) {
	return p.print(ctx, "pdf/ordre_virement", doc)
}

// PrintOperation renders a miscellaneous entry with its lines and totals.
func (p *DocumentPrinter) PrintOperation(ctx context.Context, op entries.Operation) ([]byte, error) {
	return p.print(ctx, "pdf/operation_diverse", struct {
		Company   string
		Operation entries.Operation
	}{p.company, op})
}

func (p *DocumentPrinter) print(ctx context.Context, name string, data any) ([]byte, error) {
	html, err := p.engine.RenderString(name, data)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}
	return p.renderer.RenderHTML(ctx, html)
}
