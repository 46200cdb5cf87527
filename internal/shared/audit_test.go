package shared

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAuditLogValidation(t *testing.T) {
	err := AuditLog{Action: "login"}.validate()
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrValidation))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "entity")
	require.Contains(t, verr.Fields, "entity_id")
	require.NotContains(t, verr.Fields, "action")

	require.NoError(t, AuditLog{Action: "login", Entity: "user", EntityID: "1"}.validate())
}

func TestAuditLoggerRejectsIncompleteEntry(t *testing.T) {
	err := NewAuditLogger(nil).Record(context.Background(), AuditLog{})
	require.ErrorIs(t, err, ErrValidation)
}

func TestIdempotencyStoreNilIsNoop(t *testing.T) {
	var store *IdempotencyStore
	require.NoError(t, store.Claim(context.Background(), "payables.invoice", "abc"))
	require.NoError(t, store.Release(context.Background(), "payables.invoice", "abc"))
	n, err := store.Purge(context.Background(), 0)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestIdempotencyClaimRequiresModule(t *testing.T) {
	store := NewIdempotencyStore(nil)
	require.Error(t, store.Claim(context.Background(), "", "abc"))
	require.NoError(t, store.Claim(context.Background(), "payables.invoice", ""))
}
