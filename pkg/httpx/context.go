package httpx

import (
	"context"

	"github.com/aussiebroadwan/medvault/pkg/jwtx"
)

type ctxKey string

const CtxKeyAccountID ctxKey = "account_id"

// AccountID returns the authenticated account id, or "" outside AuthnMiddleware.
func AccountID(ctx context.Context) string {
	id, _ := ctx.Value(CtxKeyAccountID).(string)
	return id
}

func contextWithAuth(ctx context.Context, c jwtx.Claims) context.Context {
	return context.WithValue(ctx, CtxKeyAccountID, c.Subject)
}
