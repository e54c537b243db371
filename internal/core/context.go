package core

import "context"

type feedKey struct{}
type iterationIDKey struct{}

func WithFeed(ctx context.Context, feed string) context.Context {
	if ctx == nil || feed == "" {
		return ctx
	}
	return context.WithValue(ctx, feedKey{}, feed)
}

func WithIterationID(ctx context.Context, iterationID string) context.Context {
	if ctx == nil || iterationID == "" {
		return ctx
	}
	return context.WithValue(ctx, iterationIDKey{}, iterationID)
}

func FeedFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(feedKey{}).(string); ok {
		return v
	}
	return ""
}

func IterationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(iterationIDKey{}).(string); ok {
		return v
	}
	return ""
}
