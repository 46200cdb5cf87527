package report

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/supratours/virements/internal/entries"
	"github.com/supratours/virements/internal/masterdata/accounts"
	"github.com/supratours/virements/internal/payables"
	"github.com/supratours/virements/internal/view"
	_ "github.com/supratours/virements/testing"
)

type captureRenderer struct{ html string }

func (c *captureRenderer) RenderHTML(_ context.Context, html string) ([]byte, error) {
	c.html = html
	return []byte("%PDF-1.4"), nil
}

func TestPrintOrderRendersTemplate(t *testing.T) {
	engine, err := view.NewEngine()
	require.NoError(t, err)
	renderer := &captureRenderer{}
	printer := NewDocumentPrinter(renderer, engine, "SUPRATOURS TRAVEL")

	doc := payables.OrderDocument{
		Order: payables.PaymentOrder{
			Reference:       "6001",
			TypeOV:          payables.TypeVirement,
			BeneficiaireNom: "ATLAS BTP",
			DateOV:          time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC),
		},
		Company:     "SUPRATOURS TRAVEL",
		Sender:      accounts.Account{TypeCompte: accounts.TypeBancaire, Banque: "BMCE", RIB: "011780000012345678901234"},
		Recipient:   accounts.Account{TypeCompte: accounts.TypeBancaire, Banque: "CIH", RIB: "230780000012345678901299"},
		AmountWords: "Mille Dirhams",
	}
	pdf, err := printer.PrintOrder(context.Background(), doc)
	require.NoError(t, err)
	require.Equal(t, "%PDF-1.4", string(pdf))
	require.Contains(t, renderer.html, "Ordre de virement N° 6001")
	require.Contains(t, renderer.html, "15/05/2024")
	require.Contains(t, renderer.html, "BMCE - 011780000012345678901234")
	require.Contains(t, renderer.html, "Mille Dirhams")
}

func TestPrintOperationRendersLines(t *testing.T) {
	engine, err := view.NewEngine()
	require.NoError(t, err)
	renderer := &captureRenderer{}
	printer := NewDocumentPrinter(renderer, engine, "SUPRATOURS TRAVEL")

	op := entries.Operation{
		ID:             42,
		Libelle:        "Frais de tenue de compte",
		DateOperation:  time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
		AnneeComptable: 2025,
		Lines: []entries.Line{
			{CompteNumero: "6147", CompteIntitule: "Services bancaires", Montant: decimal.RequireFromString("1250.5"), Sens: entries.Debit},
			{CompteNumero: "5141", CompteIntitule: "Banque", Montant: decimal.RequireFromString("1250.5"), Sens: entries.Credit},
		},
		TotalDebit:  decimal.RequireFromString("1250.5"),
		TotalCredit: decimal.RequireFromString("1250.5"),
	}
	_, err = printer.PrintOperation(context.Background(), op)
	require.NoError(t, err)
	require.Contains(t, renderer.html, "Opération Diverse")
	require.Contains(t, renderer.html, "31/01/2025")
	require.Contains(t, renderer.html, "Services bancaires")
	require.Contains(t, renderer.html, view.FormatAmount(decimal.RequireFromString("1250.5")))
}
