package middleware

import "context"

type contextKey string

const (
	ctxUserID       contextKey = "user_id"
	ctxRole         contextKey = "actor_role"
	ctxRestaurantID contextKey = "restaurant_id"
)

func UserIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, ctxUserID)
}

func RoleFromContext(ctx context.Context) string {
	return stringFromContext(ctx, ctxRole)
}

// RestaurantIDFromContext returns the restaurant a staff token operates, or "".
func RestaurantIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, ctxRestaurantID)
}

// WithUserID injects the user identifier into the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return withValue(ctx, ctxUserID, userID)
}

func WithRole(ctx context.Context, role string) context.Context {
	return withValue(ctx, ctxRole, role)
}

func WithRestaurantID(ctx context.Context, restaurantID string) context.Context {
	return withValue(ctx, ctxRestaurantID, restaurantID)
}

func stringFromContext(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

func withValue(ctx context.Context, key contextKey, value string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, value)
}
