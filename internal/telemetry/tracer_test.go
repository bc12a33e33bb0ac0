package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestNewTracerProvider(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		opts       []TracerProviderOption
		expectNoOp bool
	}{
		{
			name:       "returns no-op provider when no config provided",
			expectNoOp: true,
		},
		{
			name:       "returns no-op provider when tracing disabled",
			opts:       []TracerProviderOption{WithTracingConfig(&TracingConfig{Enabled: false})},
			expectNoOp: true,
		},
		{
			name: "returns SDK provider when tracing enabled",
			opts: []TracerProviderOption{
				WithTracingConfig(&TracingConfig{Enabled: true, Sampling: 0.5}),
				WithTracerInsecure(true),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			tp, err := NewTracerProvider(ctx, tt.opts...)
			require.NoError(t, err)
			require.NotNil(t, tp)

			if tt.expectNoOp {
				_, ok := tp.(noop.TracerProvider)
				assert.True(t, ok, "expected no-op tracer provider")
				return
			}

			sdkTP, ok := tp.(*sdktrace.TracerProvider)
			require.True(t, ok, "expected SDK tracer provider")
			_ = sdkTP.Shutdown(ctx)
		})
	}
}

func TestTracerProviderOptions(t *testing.T) {
	t.Parallel()

	cfg := &tracerProviderConfig{}
	tracingCfg := &TracingConfig{Enabled: true}

	WithTracerServiceName("svc")(cfg)
	WithTracerServiceVersion("1.0.0")(cfg)
	WithTracingConfig(tracingCfg)(cfg)
	WithTracerEndpoint("collector:4318")(cfg)
	WithTracerInsecure(true)(cfg)

	assert.Equal(t, "svc", cfg.serviceName)
	assert.Equal(t, "1.0.0", cfg.serviceVersion)
	assert.Same(t, tracingCfg, cfg.tracingConfig)
	assert.Equal(t, "collector:4318", cfg.endpoint)
	assert.True(t, cfg.insecure)
}
