package logger

import "context"

type key int

const (
	correlationKey key = iota
	jobKey
)

func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey, id)
}

func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationKey).(string); ok {
		return id
	}
	return ""
}

func WithJobID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, jobKey, id)
}

func JobID(ctx context.Context) string {
	if id, ok := ctx.Value(jobKey).(string); ok {
		return id
	}
	return ""
}
