package sim_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"codeberg.org/mutker/rahoverlay/internal/errors"
	"codeberg.org/mutker/rahoverlay/internal/logger"
	"codeberg.org/mutker/rahoverlay/internal/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource is a scriptable Source
type fakeSource struct {
	mu        sync.Mutex
	startOK   bool
	connected bool
	freezes   int
	vars      map[string]any
	shutdowns int
}

func (f *fakeSource) Startup() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startOK {
		f.connected = true
	}
	return f.startOK
}

func (f *fakeSource) Shutdown() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shutdowns++
	f.connected = false
}

func (f *fakeSource) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeSource) Freeze() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.freezes++
}

func (f *fakeSource) Get(name string) (any, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.vars[name]
	return v, ok
}

func (f *fakeSource) drop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
}

func newProvider(src sim.Source) *sim.Provider {
	return sim.NewProvider(src, logger.WithComponent("sim"))
}

func TestSnapshotWhileDisconnected(t *testing.T) {
	src := &fakeSource{}
	p := newProvider(src)

	_, err := p.Snapshot()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, sim.ErrNotConnected))
	assert.Zero(t, src.freezes, "no SDK access while disconnected")
}

func TestConnectAndSnapshot(t *testing.T) {
	src := &fakeSource{
		startOK: true,
		vars: map[string]any{
			sim.VarSpeed:        float32(50),
			sim.VarGear:         3,
			sim.VarPlayerCarIdx: 1,
		},
	}
	p := newProvider(src)

	require.True(t, p.Connect())
	assert.True(t, p.IsConnected())

	s, err := p.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, float32(50), s.Speed)
	assert.Equal(t, 3, s.Gear)
	assert.Nil(t, s.Throttle, "unavailable variables stay nil")
	assert.Equal(t, 1, src.freezes)
}

func TestConnectFailsWithoutSimulator(t *testing.T) {
	p := newProvider(sim.NullSource{})

	assert.False(t, p.Connect())
	assert.False(t, p.IsConnected())
}

func TestSnapshotSourceLost(t *testing.T) {
	src := &fakeSource{startOK: true}
	p := newProvider(src)
	require.True(t, p.Connect())

	src.drop()

	_, err := p.Snapshot()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, sim.ErrSourceLost))
}

func TestDisconnectIsIdempotent(t *testing.T) {
	src := &fakeSource{startOK: true}
	p := newProvider(src)
	require.True(t, p.Connect())

	p.Disconnect()
	p.Disconnect()

	assert.False(t, p.IsConnected())
	assert.Equal(t, 1, src.shutdowns)

	_, err := p.Snapshot()
	assert.True(t, errors.HasCode(err, sim.ErrNotConnected))
}

func TestDisconnectDuringSnapshots(t *testing.T) {
	src := &fakeSource{startOK: true, vars: map[string]any{sim.VarSpeed: 10.0}}
	p := newProvider(src)
	require.True(t, p.Connect())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if _, err := p.Snapshot(); err != nil {
					assert.True(t, errors.HasCode(err, sim.ErrNotConnected))
				}
			}
		}()
	}
	p.Disconnect()
	wg.Wait()

	assert.False(t, p.IsConnected())
}

const replayDoc = `
session_info: |
  SessionInfo:
    Sessions:
      - SessionNum: 0
        SessionType: Race
ticks:
  - {Speed: 10.0, Gear: 1, CarIdxEstTime: [0, 3.5]}
  - {Speed: 20.0, Gear: 2}
`

func TestReplayPlaysTicksInOrder(t *testing.T) {
	src, err := sim.ParseReplay([]byte(replayDoc), false)
	require.NoError(t, err)
	assert.Equal(t, 2, src.Len())

	p := newProvider(src)
	require.True(t, p.Connect())

	s, err := p.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 10.0, s.Speed)
	assert.Equal(t, []any{0, 3.5}, s.CarIdxEstTime)
	assert.Contains(t, s.SessionInfo, "SessionType: Race")

	s, err = p.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 20.0, s.Speed)

	// played out: the replay behaves like a closed simulator
	_, err = p.Snapshot()
	assert.True(t, errors.HasCode(err, sim.ErrSourceLost))

	p.Disconnect()
	assert.False(t, p.Connect(), "finished replay does not restart")
}

func TestReplayLoops(t *testing.T) {
	src, err := sim.ParseReplay([]byte(replayDoc), true)
	require.NoError(t, err)

	p := newProvider(src)
	require.True(t, p.Connect())

	var speeds []any
	for i := 0; i < 4; i++ {
		s, err := p.Snapshot()
		require.NoError(t, err)
		speeds = append(speeds, s.Speed)
	}
	assert.Equal(t, []any{10.0, 20.0, 10.0, 20.0}, speeds)
}

func TestParseReplayRejectsEmpty(t *testing.T) {
	_, err := sim.ParseReplay([]byte("ticks: []\n"), false)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, sim.ErrReplayInvalid))

	_, err = sim.ParseReplay([]byte("ticks: [oops"), false)
	assert.True(t, errors.HasCode(err, sim.ErrReplayInvalid))
}

func TestLoadReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")
	require.NoError(t, os.WriteFile(path, []byte(replayDoc), 0o600))

	src, err := sim.LoadReplay(path, false)
	require.NoError(t, err)
	assert.Equal(t, 2, src.Len())

	_, err = sim.LoadReplay(filepath.Join(t.TempDir(), "missing.yaml"), false)
	assert.True(t, errors.HasCode(err, sim.ErrReplayLoad))
}
