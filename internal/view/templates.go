// Package view renders the HTML documents and mail bodies embedded in web.
package view

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/supratours/virements/web"
)

// Engine renders embedded templates.
type Engine struct {
	templates *template.Template
}

var french = message.NewPrinter(language.French)

// NewEngine parses templates at build-time.
func NewEngine() (*Engine, error) {
	css, err := web.Static.ReadFile("static/css/document.css")
	if err != nil {
		return nil, fmt.Errorf("read document css: %w", err)
	}
	funcMap := template.FuncMap{
		"formatDate":   FormatDate,
		"formatAmount": FormatAmount,
		"css":          func() template.CSS { return template.CSS(css) },
	}
	tpl, err := template.New("root").Funcs(funcMap).ParseFS(web.Templates, "templates/pdf/*.html", "templates/mail/*.html")
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl}, nil
}

// Render executes a named template into w.
func (e *Engine) Render(w io.Writer, name string, data any) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	return e.templates.ExecuteTemplate(w, name, data)
}

// RenderString executes a named template and returns the output.
func (e *Engine) RenderString(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := e.Render(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// FormatDate renders dates as dd/mm/yyyy. Nil and zero values render empty.
func FormatDate(v any) string {
	var t time.Time
	switch d := v.(type) {
	case time.Time:
		t = d
	case *time.Time:
		if d == nil {
			return ""
		}
		t = *d
	default:
		return ""
	}
	if t.IsZero() {
		return ""
	}
	return t.Format("02/01/2006")
}

// FormatAmount renders an amount with French grouping and two decimals.
func FormatAmount(d decimal.Decimal) string {
	return french.Sprint(number.Decimal(d.Round(2).InexactFloat64(), number.Scale(2)))
}
