package telemetry

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type exportedRecord struct {
	body     string
	severity log.Severity
}

type memoryExporter struct {
	mu      sync.Mutex
	records []exportedRecord
}

func (e *memoryExporter) Export(_ context.Context, records []sdklog.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range records {
		e.records = append(e.records, exportedRecord{body: r.Body().AsString(), severity: r.Severity()})
	}
	return nil
}

func (e *memoryExporter) Shutdown(context.Context) error   { return nil }
func (e *memoryExporter) ForceFlush(context.Context) error { return nil }

func (e *memoryExporter) bodies() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.records))
	for _, r := range e.records {
		out = append(out, r.body)
	}
	return out
}

func TestNewLoggerProvider_Disabled(t *testing.T) {
	lp, err := NewLoggerProvider(context.Background(), LogsConfig{Enabled: false}, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, lp.IsEnabled())
	base := zap.NewNop()
	assert.Same(t, base, lp.Bridge(base))
	assert.NoError(t, lp.Shutdown(context.Background()))
}

func TestLoggerProvider_Bridge(t *testing.T) {
	previous := global.GetLoggerProvider()
	t.Cleanup(func() { global.SetLoggerProvider(previous) })

	exporter := &memoryExporter{}
	lp, err := NewLoggerProvider(context.Background(), LogsConfig{
		Enabled:     true,
		ServiceName: "pricing-test",
		Level:       zapcore.WarnLevel,
	}, zap.NewNop(), WithLogProcessor(sdklog.NewSimpleProcessor(exporter)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = lp.Shutdown(context.Background()) })
	assert.True(t, lp.IsEnabled())

	core, local := observer.New(zapcore.DebugLevel)
	bridged := lp.Bridge(zap.New(core)).With(zap.String("day", "2024-05-10"))

	bridged.Info("Network usage ingested")
	bridged.Warn("Traffic from unknown addresses")
	bridged.Error("Collection failed")

	assert.Equal(t, 3, local.Len(), "local output keeps every entry")
	assert.Equal(t, []string{"Traffic from unknown addresses", "Collection failed"}, exporter.bodies())
	assert.Equal(t, log.SeverityWarn, exporter.records[0].severity)
}
