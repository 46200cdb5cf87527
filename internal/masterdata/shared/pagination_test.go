package shared

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFiltersFromRequest(t *testing.T) {
	req := httptest.NewRequest("GET", "/?page=3&limit=500&search=atlas&actif=false&beneficiaire_id=9&sort=raison_sociale&dir=desc", nil)
	f := FiltersFromRequest(req)
	require.Equal(t, 3, f.Page)
	require.Equal(t, MaxLimit, f.Limit)
	require.Equal(t, "atlas", f.Search)
	require.NotNil(t, f.IsActive)
	require.False(t, *f.IsActive)
	require.Equal(t, int64(9), *f.BeneficiaryID)
	require.Equal(t, 400, f.Offset())

	f = FiltersFromRequest(httptest.NewRequest("GET", "/?page=-1&beneficiaire_id=abc", nil))
	require.Equal(t, DefaultPage, f.Page)
	require.Equal(t, DefaultLimit, f.Limit)
	require.Nil(t, f.BeneficiaryID)
	require.Nil(t, f.IsActive)
}
