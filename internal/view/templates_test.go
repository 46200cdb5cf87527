package view

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine()
	assert.NoError(t, err, "Templates should parse without error")
	assert.NotNil(t, engine)
}

func TestRenderMailTemplate(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)
	out, err := engine.RenderString("mail/record_created", map[string]any{
		"Intro": "Nouvel appel d'offres",
		"Lines": []map[string]string{{"Label": "Numéro", "Value": "AO-12"}},
	})
	require.NoError(t, err)
	require.Contains(t, out, "AO-12")
}

func TestFormatDate(t *testing.T) {
	d := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	require.Equal(t, "09/03/2024", FormatDate(d))
	require.Equal(t, "09/03/2024", FormatDate(&d))
	var nilDate *time.Time
	require.Empty(t, FormatDate(nilDate))
	require.Empty(t, FormatDate(time.Time{}))
}

func TestFormatAmountUsesFrenchDecimalComma(t *testing.T) {
	out := FormatAmount(decimal.RequireFromString("1234.5"))
	require.True(t, strings.HasSuffix(out, ",50"), out)
	require.True(t, strings.HasPrefix(out, "1"), out)
}
