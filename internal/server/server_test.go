package server_test

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"codeberg.org/mutker/rahoverlay/internal/broadcast"
	"codeberg.org/mutker/rahoverlay/internal/logger"
	"codeberg.org/mutker/rahoverlay/internal/metrics"
	"codeberg.org/mutker/rahoverlay/internal/overlay"
	"codeberg.org/mutker/rahoverlay/internal/server"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticLatest struct {
	rec metrics.Record
}

func (s staticLatest) Latest() metrics.Record { return s.rec }

type handle struct{ alive bool }

func (h *handle) Alive() bool  { return h.alive }
func (h *handle) Close() error { h.alive = false; return nil }

type launcher struct{}

func (launcher) Launch(context.Context, overlay.Overlay) (overlay.Handle, error) {
	return &handle{alive: true}, nil
}

func newTestServer(t *testing.T, latest server.LatestSource) (*httptest.Server, *broadcast.Hub) {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "lap_pace"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lap_pace", "properties.json"),
		[]byte(`{"display_name": "Lap Pace"}`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lap_pace", "index.html"),
		[]byte("<html>lap pace</html>"), 0o600))

	hub := broadcast.NewHub([]string{"lap_pace", "input_telemetry"})
	t.Cleanup(hub.Close)

	registry := overlay.NewRegistry(dir, func(name string) string { return "/overlay/" + name + "/" }, launcher{}, logger.Default())

	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "rahoverlay_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	s := server.New(server.Config{OverlaysDir: dir}, hub, latest, registry, reg, logger.Default())
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	return srv, hub
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func post(t *testing.T, url string) (int, map[string]string) {
	t.Helper()

	resp, err := http.Post(url, "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestTelemetryEmptyWhenDisconnected(t *testing.T) {
	srv, _ := newTestServer(t, staticLatest{})

	code, body := get(t, srv.URL+"/api/telemetry")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{}`, body)
}

func TestTelemetryLatestRecord(t *testing.T) {
	rec := metrics.NewRecord(metrics.Frame{Speed: 120, Gear: 4}, metrics.Fallback())
	srv, _ := newTestServer(t, staticLatest{rec: rec})

	code, body := get(t, srv.URL+"/api/telemetry")
	assert.Equal(t, http.StatusOK, code)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.Equal(t, 120.0, got["speed"])
	assert.Equal(t, 4.0, got["gear"])
	assert.Equal(t, 0.0, got["front_last_lap_time"])
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, staticLatest{})

	code, body := get(t, srv.URL+"/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"ok","channels":["lap_pace","input_telemetry"]}`, body)
}

func TestMetrics(t *testing.T) {
	srv, _ := newTestServer(t, staticLatest{})

	code, body := get(t, srv.URL+"/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "rahoverlay_test_total 1")
}

func TestOverlayRoutes(t *testing.T) {
	srv, _ := newTestServer(t, staticLatest{})

	code, body := get(t, srv.URL+"/api/overlays")
	require.Equal(t, http.StatusOK, code)

	var list []overlay.Overlay
	require.NoError(t, json.Unmarshal([]byte(body), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Lap Pace", list[0].DisplayName)
	assert.False(t, list[0].Running)

	code, resp := post(t, srv.URL+"/api/overlays/lap_pace/launch")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "success", resp["status"])
	assert.Contains(t, resp["message"], "launched")

	code, resp = post(t, srv.URL+"/api/overlays/lap_pace/launch")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, resp["message"], "already running")

	code, resp = post(t, srv.URL+"/api/overlays/lap_pace/close")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "success", resp["status"])

	code, resp = post(t, srv.URL+"/api/overlays/lap_pace/close")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "error", resp["status"])

	code, _ = post(t, srv.URL+"/api/overlays/missing/launch")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestOverlayFiles(t *testing.T) {
	srv, _ := newTestServer(t, staticLatest{})

	code, body := get(t, srv.URL+"/overlay/lap_pace/index.html")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "lap pace")

	code, _ = get(t, srv.URL+"/overlay/other/index.html")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestWebSocketChannel(t *testing.T) {
	srv, hub := newTestServer(t, staticLatest{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/input_telemetry"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.Eventually(t, func() bool {
		return hub.Subscribers("input_telemetry") == 1
	}, time.Second, 10*time.Millisecond)

	hub.Emit("telemetry_update", metrics.NewRecord(metrics.Frame{Gear: 3}, metrics.Fallback()), "input_telemetry")

	var msg struct {
		Event string         `json:"event"`
		Data  map[string]any `json:"data"`
	}
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, "telemetry_update", msg.Event)
	assert.Equal(t, 3.0, msg.Data["gear"])
}

func TestWebSocketUnknownChannel(t *testing.T) {
	srv, _ := newTestServer(t, staticLatest{})

	code, _ := get(t, srv.URL+"/ws/driver_in_front")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestRunShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	hub := broadcast.NewHub([]string{"lap_pace"})
	s := server.New(server.Config{Addr: addr}, hub, staticLatest{}, nil, nil, logger.Default())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	code, _ := get(t, "http://"+addr+"/api/overlays")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestBundledOverlaysServeRenderer(t *testing.T) {
	dir := filepath.Join("..", "..", "overlays")
	hub := broadcast.NewHub([]string{"input_telemetry", "lap_pace", "driver_in_front"})
	t.Cleanup(hub.Close)

	registry := overlay.NewRegistry(dir, func(name string) string { return "/overlay/" + name + "/" }, launcher{}, logger.Default())
	s := server.New(server.Config{OverlaysDir: dir}, hub, staticLatest{}, registry, nil, logger.Default())
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	list, err := registry.Catalog()
	require.NoError(t, err)
	require.Len(t, list, 3)

	for _, o := range list {
		t.Run(o.Name, func(t *testing.T) {
			assert.True(t, hub.Has(o.Name), "overlay %s has no channel", o.Name)

			code, body := get(t, srv.URL+o.URL)
			require.Equal(t, http.StatusOK, code)
			assert.Contains(t, body, `<script src="`+o.Name+`.js"></script>`)

			code, script := get(t, srv.URL+o.URL+o.Name+".js")
			require.Equal(t, http.StatusOK, code)
			assert.Contains(t, script, "/ws/"+o.Name)
		})
	}
}
