package service

import (
	"context"
	"strings"
	"testing"

	"github.com/aussiebroadwan/medvault/internal/auth/domain"
	"github.com/stretchr/testify/require"
)

func TestRecords(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice@example.com").Account
	bob := env.register(t, "bob@example.com").Account

	first, err := env.records.Create(ctx, alice.ID, "  Cardiology  ")
	require.NoError(t, err)
	require.Equal(t, "Cardiology", first.Label)
	_, err = env.records.Create(ctx, alice.ID, "Imaging")
	require.NoError(t, err)

	list, err := env.records.List(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, first.ID, list[0].ID)

	list, err = env.records.List(ctx, bob.ID)
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestRecordLabelValidation(t *testing.T) {
	env := newTestEnv(t)
	acct := env.register(t, "labels@example.com").Account

	for _, label := range []string{"", "   ", strings.Repeat("x", domain.MaxRecordLabelLen+1)} {
		_, err := env.records.Create(context.Background(), acct.ID, label)
		require.ErrorIs(t, err, domain.ErrValidation)
	}
}
