package metrics

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"
)

func TestOTelBridge(t *testing.T) {
	reg := NewRegistry()
	reg.Root().MustLabeled("route", "/x").MustCounter("scoped_requests").Inc()

	promReg := prometheus.NewRegistry()
	bridge, err := NewOTelBridge(reg, &OTelConfig{ServiceName: "svc", Version: "v1", Registerer: promReg})
	require.NoError(t, err)
	defer func() { _ = bridge.Shutdown(context.Background()) }()

	native, err := bridge.Meter("native").Int64Counter("native_ops", metric.WithDescription("Native ops."))
	require.NoError(t, err)
	native.Add(context.Background(), 2)

	mfs, err := promReg.Gather()
	require.NoError(t, err)

	var names []string
	for _, mf := range mfs {
		names = append(names, mf.GetName())
	}
	joined := strings.Join(names, ",")
	assert.Contains(t, joined, "scoped_requests")
	assert.Contains(t, joined, "native_ops")
	assert.NotNil(t, bridge.MeterProvider())
}

func TestOTelBridgeRequiresConfig(t *testing.T) {
	_, err := NewOTelBridge(NewRegistry(), nil)
	assert.Error(t, err)
}
