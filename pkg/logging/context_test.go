package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextValues(t *testing.T) {
	ctx := context.Background()

	assert.Empty(t, GetCorrelationID(ctx))
	assert.Empty(t, GetMessageID(ctx))
	assert.Empty(t, GetSubscription(ctx))
	assert.Nil(t, GetDispatchFields(ctx))

	ctx = WithCorrelationID(ctx, "c1")
	ctx = WithMessageID(ctx, "m1")
	ctx = WithSubscription(ctx, "orders")

	assert.Equal(t, "c1", GetCorrelationID(ctx))
	assert.Equal(t, "m1", GetMessageID(ctx))
	assert.Equal(t, "orders", GetSubscription(ctx))
}

func TestWithDispatchFields_EmptyIsNoop(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ctx, WithDispatchFields(ctx, nil))
	assert.Equal(t, ctx, WithDispatchFields(ctx, map[string]string{}))
}

func TestWithDispatchFields_ScopedToDerivedContext(t *testing.T) {
	parent := context.Background()
	child := WithDispatchFields(parent, map[string]string{"message_id": "m1"})

	assert.Nil(t, GetDispatchFields(parent))
	assert.Equal(t, map[string]string{"message_id": "m1"}, GetDispatchFields(child))
}

func TestGetLogFields(t *testing.T) {
	ctx := WithSubscription(context.Background(), "orders")
	ctx = WithCorrelationID(ctx, "c1")
	ctx = WithDispatchFields(ctx, map[string]string{
		"z_last":  "3",
		"a_first": "1",
		"m_mid":   "2",
	})

	fields := GetLogFields(ctx)

	// Dispatch fields come after the well-known keys, in sorted order.
	assert.Equal(t, []interface{}{
		"correlation_id", "c1",
		"subscription", "orders",
		"a_first", "1",
		"m_mid", "2",
		"z_last", "3",
	}, fields)
}

func TestGetLogFields_EmptyContext(t *testing.T) {
	assert.Empty(t, GetLogFields(context.Background()))
}
