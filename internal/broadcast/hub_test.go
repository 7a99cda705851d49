package broadcast_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"codeberg.org/mutker/rahoverlay/internal/broadcast"
	"codeberg.org/mutker/rahoverlay/internal/errors"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lapTime struct {
	LapTime float64 `json:"lap_time"`
}

func decode(t *testing.T, raw []byte) (string, lapTime) {
	t.Helper()

	var msg broadcast.Message
	require.NoError(t, json.Unmarshal(raw, &msg))

	var payload lapTime
	require.NoError(t, json.Unmarshal(msg.Data, &payload))
	return msg.Event, payload
}

func TestNewHubOpensOneChannelPerName(t *testing.T) {
	hub := broadcast.NewHub([]string{"lap_pace", "input_telemetry", "lap_pace", ""})

	assert.Equal(t, []string{"lap_pace", "input_telemetry"}, hub.Channels())
	assert.True(t, hub.Has("lap_pace"))
	assert.False(t, hub.Has("driver_in_front"))
}

func TestEmitDeliversToChannelSubscribers(t *testing.T) {
	hub := broadcast.NewHub([]string{"lap_pace", "input_telemetry"})

	pace, err := hub.Subscribe("lap_pace")
	require.NoError(t, err)
	inputs, err := hub.Subscribe("input_telemetry")
	require.NoError(t, err)

	hub.Emit("lap_time_update", lapTime{LapTime: 91.2}, "lap_pace")

	select {
	case raw := <-pace.C:
		event, payload := decode(t, raw)
		assert.Equal(t, "lap_time_update", event)
		assert.Equal(t, 91.2, payload.LapTime)
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
	}

	select {
	case <-inputs.C:
		t.Fatal("message leaked to another channel")
	default:
	}
}

func TestEmitUnknownChannelIsIgnored(t *testing.T) {
	hub := broadcast.NewHub([]string{"lap_pace"})

	assert.NotPanics(t, func() {
		hub.Emit("telemetry_update", map[string]any{}, "nope")
	})

	_, err := hub.Subscribe("nope")
	assert.True(t, errors.HasCode(err, broadcast.ErrUnknownChannel))
}

func TestEmitDropsForSlowSubscriber(t *testing.T) {
	var dropped []string
	hub := broadcast.NewHub([]string{"lap_pace"},
		broadcast.WithQueueSize(2),
		broadcast.WithDropHook(func(ch string) { dropped = append(dropped, ch) }),
	)

	sub, err := hub.Subscribe("lap_pace")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		hub.Emit("lap_time_update", lapTime{LapTime: float64(i)}, "lap_pace")
	}

	assert.Len(t, sub.C, 2)
	assert.Equal(t, []string{"lap_pace", "lap_pace", "lap_pace"}, dropped)

	_, first := decode(t, <-sub.C)
	assert.Equal(t, 0.0, first.LapTime, "oldest queued frames are kept")
}

func TestCloseDetachesSubscribers(t *testing.T) {
	hub := broadcast.NewHub([]string{"lap_pace"})
	sub, err := hub.Subscribe("lap_pace")
	require.NoError(t, err)
	assert.Equal(t, 1, hub.Subscribers("lap_pace"))

	hub.Close()

	_, ok := <-sub.C
	assert.False(t, ok)
	assert.Zero(t, hub.Subscribers("lap_pace"))

	_, err = hub.Subscribe("lap_pace")
	assert.True(t, errors.HasCode(err, broadcast.ErrHubClosed))

	assert.NotPanics(t, func() {
		hub.Emit("lap_time_update", lapTime{}, "lap_pace")
		sub.Close()
	})
}

func TestServeWS(t *testing.T) {
	hub := broadcast.NewHub([]string{"lap_pace"})
	defer hub.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, strings.TrimPrefix(r.URL.Path, "/ws/"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/lap_pace", nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.Eventually(t, func() bool {
		return hub.Subscribers("lap_pace") == 1
	}, time.Second, 10*time.Millisecond)

	hub.Emit("lap_time_update", lapTime{LapTime: 88.4}, "lap_pace")

	var msg struct {
		Event string  `json:"event"`
		Data  lapTime `json:"data"`
	}
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, "lap_time_update", msg.Event)
	assert.Equal(t, 88.4, msg.Data.LapTime)

	conn.Close(websocket.StatusNormalClosure, "")
	require.Eventually(t, func() bool {
		return hub.Subscribers("lap_pace") == 0
	}, time.Second, 10*time.Millisecond)
}

func TestServeWSUnknownChannel(t *testing.T) {
	hub := broadcast.NewHub([]string{"lap_pace"})

	rec := httptest.NewRecorder()
	hub.ServeWS(rec, httptest.NewRequest(http.MethodGet, "/ws/other", nil), "other")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
