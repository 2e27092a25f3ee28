package shared

import "context"

type requestUserKey struct{}

// ContextWithUserID stores the acting user's id in context.
func ContextWithUserID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, requestUserKey{}, id)
}

// UserIDFromContext extracts the acting user's id, zero when absent.
func UserIDFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(requestUserKey{}).(int64)
	return id
}
