package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/scopestat/clog"
	"github.com/ceyewan/scopestat/config"
)

// TestNew 测试创建 Provider
func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		opts    []Option
		wantErr bool
	}{
		{
			name:    "nil config",
			cfg:     nil,
			wantErr: true,
		},
		{
			name: "minimal config",
			cfg:  &Config{},
		},
		{
			name: "dev config",
			cfg:  NewDevDefaultConfig("svc"),
		},
		{
			name: "with logger option",
			cfg:  NewDevDefaultConfig("svc"),
			opts: func() []Option {
				logger, _ := clog.New(&clog.Config{Level: "debug"})
				return []Option{WithLogger(logger)}
			}(),
		},
		{
			name:    "invalid const label",
			cfg:     &Config{ConstLabels: map[string]string{"": "x"}},
			wantErr: true,
		},
		{
			name:    "invalid path",
			cfg:     &Config{Port: 9090, Path: "metrics"},
			wantErr: true,
		},
		{
			name:    "invalid default buckets",
			cfg:     &Config{DefaultBuckets: []float64{3, 2}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.cfg, tt.opts...)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, p.Root())
			assert.Empty(t, p.Addr())
			assert.NoError(t, p.Shutdown(context.Background()))
		})
	}
}

func TestMust(t *testing.T) {
	assert.Panics(t, func() { Must(nil) })
	assert.NotPanics(t, func() { Must(&Config{}) })
}

func TestProviderRootScope(t *testing.T) {
	p, err := New(&Config{
		Namespace:      "app",
		ConstLabels:    map[string]string{"zone": "a", "env": "dev"},
		InstanceLabel:  true,
		DefaultBuckets: []float64{1, 2},
	})
	require.NoError(t, err)

	p.Root().Named("http").MustCounter("requests").Inc()
	h := p.Root().MustHistogram("latency", nil)
	assert.Equal(t, []float64{1, 2}, h.Bounds())

	_, err = uuid.Parse(p.InstanceID())
	require.NoError(t, err)

	s, ok := p.Registry().Snapshot().Find("app_http_requests",
		L("env", "dev"), L("zone", "a"), L(LabelInstance, p.InstanceID()))
	require.True(t, ok)
	assert.Equal(t, uint64(1), s.Count)

	// 常量标签按键排序，instance 在最后
	assert.Equal(t, []Label{L("env", "dev"), L("zone", "a"), L(LabelInstance, p.InstanceID())}, s.Labels)

	text := p.Reporter().Render()
	assert.Contains(t, text, `app_http_requests{env="dev",zone="a",instance="`+p.InstanceID()+`"} 1`)

	w := httptest.NewRecorder()
	p.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, text, w.Body.String())
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func TestProviderServer(t *testing.T) {
	port := freePort(t)
	p, err := New(&Config{Namespace: "srv", Port: port, Path: "/metrics"})
	require.NoError(t, err)
	assert.NotEmpty(t, p.Addr())

	p.Root().MustCounter("up").Inc()

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://127.0.0.1:" + strconv.Itoa(port) + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, ContentType, resp.Header.Get("Content-Type"))
	assert.Contains(t, string(body), "srv_up 1\n")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Shutdown(ctx))
	require.NoError(t, p.Shutdown(ctx), "重复关闭")

	t.Run("端口被占用", func(t *testing.T) {
		ln, err := net.Listen("tcp", ":0")
		require.NoError(t, err)
		defer ln.Close()

		_, err = New(&Config{Port: ln.Addr().(*net.TCPAddr).Port, Path: "/metrics"})
		assert.Error(t, err)
	})
}

// =============================================================================
// 配置加载
// =============================================================================

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(`
metrics:
  namespace: "order_api"
  const_labels:
    env: "prod"
  instance_label: true
  default_buckets: [0.01, 0.1, 1]
  port: 9100
  path: "/scrape"
broken:
  path: "no-slash"
`), 0o644))

	loader, err := config.New(&config.Config{Paths: []string{dir}, EnvPrefix: "SCOPESTAT_TEST_METRICS"})
	require.NoError(t, err)
	require.NoError(t, loader.Load(context.Background()))

	cfg, err := LoadConfig(loader, "metrics")
	require.NoError(t, err)
	assert.Equal(t, "order_api", cfg.Namespace)
	assert.Equal(t, map[string]string{"env": "prod"}, cfg.ConstLabels)
	assert.True(t, cfg.InstanceLabel)
	assert.Equal(t, []float64{0.01, 0.1, 1}, cfg.DefaultBuckets)
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, "/scrape", cfg.Path)

	_, err = LoadConfig(loader, "missing")
	assert.True(t, config.IsNotFound(err))

	_, err = LoadConfig(loader, "broken")
	assert.True(t, config.IsInvalidInput(err))
}

func TestDefaultConfigs(t *testing.T) {
	dev := NewDevDefaultConfig("svc")
	assert.Equal(t, 0, dev.Port)
	assert.False(t, dev.InstanceLabel)

	prod := NewProdDefaultConfig("svc")
	assert.Equal(t, 9090, prod.Port)
	assert.Equal(t, "/metrics", prod.Path)
	assert.True(t, prod.InstanceLabel)
	assert.NoError(t, prod.validate())
}

func TestConfigValidateReportsFirstFailure(t *testing.T) {
	cfg := NewDevDefaultConfig("svc")
	cfg.Port = 70000
	cfg.Path = "metrics"
	cfg.DefaultBuckets = []float64{2, 1}

	err := cfg.validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrValidationFailed)
	assert.Contains(t, err.Error(), "port 70000")
	assert.NotContains(t, err.Error(), "must start with /")

	cfg.Port = 0
	err = cfg.validate()
	assert.Contains(t, err.Error(), "must start with /")
}
