package logging

import (
	"context"
	"sort"
)

const (
	CorrelationIDKey = "correlation_id"
	MessageIDKey     = "message_id"
	SubscriptionKey  = "subscription"
)

type ctxKey string

const dispatchFieldsKey ctxKey = "dispatch_fields"

func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, ctxKey(CorrelationIDKey), correlationID)
}

func WithMessageID(ctx context.Context, messageID string) context.Context {
	return context.WithValue(ctx, ctxKey(MessageIDKey), messageID)
}

func WithSubscription(ctx context.Context, subscription string) context.Context {
	return context.WithValue(ctx, ctxKey(SubscriptionKey), subscription)
}

// WithDispatchFields attaches the key/value pairs built by a log-context
// builder for the duration of one dispatch call. The fields live only on the
// derived context, so they are released when the dispatch call returns.
func WithDispatchFields(ctx context.Context, fields map[string]string) context.Context {
	if len(fields) == 0 {
		return ctx
	}
	return context.WithValue(ctx, dispatchFieldsKey, fields)
}

func GetCorrelationID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKey(CorrelationIDKey)).(string); ok {
		return v
	}
	return ""
}

func GetMessageID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKey(MessageIDKey)).(string); ok {
		return v
	}
	return ""
}

func GetSubscription(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKey(SubscriptionKey)).(string); ok {
		return v
	}
	return ""
}

func GetDispatchFields(ctx context.Context) map[string]string {
	if v, ok := ctx.Value(dispatchFieldsKey).(map[string]string); ok {
		return v
	}
	return nil
}

// GetLogFields flattens all context-carried fields into the alternating
// key/value slice the sugared logger expects. Dispatch fields are emitted in
// sorted key order so log lines stay stable.
func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 8)

	if v := GetCorrelationID(ctx); v != "" {
		fields = append(fields, CorrelationIDKey, v)
	}
	if v := GetMessageID(ctx); v != "" {
		fields = append(fields, MessageIDKey, v)
	}
	if v := GetSubscription(ctx); v != "" {
		fields = append(fields, SubscriptionKey, v)
	}

	if dispatch := GetDispatchFields(ctx); len(dispatch) > 0 {
		keys := make([]string, 0, len(dispatch))
		for k := range dispatch {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fields = append(fields, k, dispatch[k])
		}
	}

	return fields
}
