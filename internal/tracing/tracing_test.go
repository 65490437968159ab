package tracing

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
)

func TestDisabledIsNoop(t *testing.T) {
	p, err := Install(Config{})
	require.NoError(t, err)
	defer p.Shutdown(context.Background())

	assert.False(t, p.Enabled())
	_, span := otel.Tracer("test").Start(context.Background(), "x")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
}

func TestStdoutExport(t *testing.T) {
	var buf bytes.Buffer
	p, err := Install(Config{Enabled: true, Exporter: "stdout", Output: &buf})
	require.NoError(t, err)
	assert.True(t, p.Enabled())

	_, span := otel.Tracer("test").Start(context.Background(), "registry.probe")
	span.End()
	require.NoError(t, p.Shutdown(context.Background()))

	line := strings.TrimSpace(buf.String())
	require.NotEmpty(t, line)
	assert.Equal(t, "registry.probe", gjson.Get(line, "Name").String())
}

func TestUnknownExporter(t *testing.T) {
	_, err := Install(Config{Enabled: true, Exporter: "zipkin"})
	assert.Error(t, err)
}
