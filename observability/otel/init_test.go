package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseHeaders(t *testing.T) {
	headers := ParseHeaders(" api-key = abc ,bogus,=x, tenant=stake ")
	require.Equal(t, map[string]string{"api-key": "abc", "tenant": "stake"}, headers)
}

func TestInitRequiresServiceName(t *testing.T) {
	_, err := Init(context.Background(), Config{})
	require.Error(t, err)
}

func TestInitWithoutExporters(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "contestd"})
	require.NoError(t, err)
	ctx, span := StartSpan(context.Background(), "noop")
	span.End()
	require.NotNil(t, ctx)
	require.NoError(t, shutdown(context.Background()))
}
