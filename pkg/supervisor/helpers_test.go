package supervisor

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/core-tools/hsu-game-master/pkg/config"
	"github.com/core-tools/hsu-game-master/pkg/errors"
	"github.com/core-tools/hsu-game-master/pkg/probe"
	"github.com/core-tools/hsu-game-master/pkg/process"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) LogLevelf(level int, format string, args ...interface{}) {
	m.Called(level, format, args)
}
func (m *MockLogger) Debugf(format string, args ...interface{}) { m.Called(format, args) }
func (m *MockLogger) Infof(format string, args ...interface{})  { m.Called(format, args) }
func (m *MockLogger) Warnf(format string, args ...interface{})  { m.Called(format, args) }
func (m *MockLogger) Errorf(format string, args ...interface{}) { m.Called(format, args) }

func newMockLogger() *MockLogger {
	logger := &MockLogger{}
	logger.On("LogLevelf", mock.Anything, mock.Anything, mock.Anything).Maybe()
	logger.On("Debugf", mock.Anything, mock.Anything).Maybe()
	logger.On("Infof", mock.Anything, mock.Anything).Maybe()
	logger.On("Warnf", mock.Anything, mock.Anything).Maybe()
	logger.On("Errorf", mock.Anything, mock.Anything).Maybe()
	return logger
}

type fakeClock struct {
	mutex sync.Mutex
	now   time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.now = c.now.Add(d)
}

type fakeHandle struct {
	mutex sync.Mutex
	pid   int
	alive bool
	stops int
	// stubborn handles ignore graceful termination until ctx is done
	stubborn bool
	// stopErr makes Stop fail and leaves the process running
	stopErr error
}

func (h *fakeHandle) PID() int { return h.pid }

func (h *fakeHandle) IsAlive() bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.alive
}

func (h *fakeHandle) Stop(ctx context.Context) error {
	if h.stubborn {
		<-ctx.Done()
	}
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.stopErr != nil {
		return h.stopErr
	}
	if h.alive {
		h.stops++
	}
	h.alive = false
	return nil
}

func (h *fakeHandle) Die() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.alive = false
}

func (h *fakeHandle) FailStops(err error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.stopErr = err
}

func (h *fakeHandle) Stops() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.stops
}

type fakeLauncher struct {
	mutex    sync.Mutex
	nextPID  int
	launches []string
	handles  map[string][]*fakeHandle
	failures map[string]error
	panics   map[string]bool
	stubborn bool
	lastArgs map[string]process.ExecutionConfig
}

func newFakeLauncher() *fakeLauncher {
	return &fakeLauncher{
		nextPID:  1000,
		handles:  make(map[string][]*fakeHandle),
		failures: make(map[string]error),
		panics:   make(map[string]bool),
		lastArgs: make(map[string]process.ExecutionConfig),
	}
}

func (l *fakeLauncher) Launch(ctx context.Context, id string, execution process.ExecutionConfig) (process.Handle, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.panics[id] {
		panic("launcher exploded for " + id)
	}
	l.launches = append(l.launches, id)
	if err := l.failures[id]; err != nil {
		return nil, err
	}

	l.nextPID++
	handle := &fakeHandle{pid: l.nextPID, alive: true, stubborn: l.stubborn}
	l.handles[id] = append(l.handles[id], handle)
	l.lastArgs[id] = execution
	return handle, nil
}

func (l *fakeLauncher) Launches() []string {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return append([]string(nil), l.launches...)
}

// Current is the most recent handle of a server
func (l *fakeLauncher) Current(t *testing.T, id string) *fakeHandle {
	t.Helper()
	l.mutex.Lock()
	defer l.mutex.Unlock()
	handles := l.handles[id]
	require.NotEmpty(t, handles, "server %s was never launched", id)
	return handles[len(handles)-1]
}

func (l *fakeLauncher) Handles(id string) []*fakeHandle {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return append([]*fakeHandle(nil), l.handles[id]...)
}

type fakeProber struct {
	mutex  sync.Mutex
	online map[string]*probe.ServerInfo
	calls  int
}

func newFakeProber() *fakeProber {
	return &fakeProber{online: make(map[string]*probe.ServerInfo)}
}

func (p *fakeProber) SetOnline(address string, players, maxPlayers int) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.online[address] = &probe.ServerInfo{Address: address, Players: players, MaxPlayers: maxPlayers}
}

func (p *fakeProber) Query(ctx context.Context, address string) (*probe.ServerInfo, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.calls++
	if info, ok := p.online[address]; ok {
		copied := *info
		return &copied, nil
	}
	return nil, errors.NewTimeoutError("no answer", nil)
}

// syncBuffer is a bytes.Buffer safe for the console and the test to share
type syncBuffer struct {
	mutex sync.Mutex
	buf   bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.buf.String()
}

func serverConfig(name string, port, queryPort, restartMinutes int) config.ServerConfig {
	return config.ServerConfig{
		Name:           fmt.Sprintf("%s DayZ Server", name),
		ServerName:     name,
		Executable:     "/opt/dayz/DayZServer",
		ConfigFile:     "serverDZ.cfg",
		Port:           port,
		SteamQueryPort: queryPort,
		RestartTime:    restartMinutes,
		Profiles:       "profiles",
		CPU:            2,
	}
}

type testRig struct {
	sup      *Supervisor
	clock    *fakeClock
	launcher *fakeLauncher
	prober   *fakeProber
	out      *syncBuffer
}

func newRig(t *testing.T, options Options, servers ...config.ServerConfig) *testRig {
	t.Helper()
	rig := &testRig{
		clock:    newFakeClock(),
		launcher: newFakeLauncher(),
		prober:   newFakeProber(),
		out:      &syncBuffer{},
	}
	options.Launcher = rig.launcher
	options.Prober = rig.prober
	options.Out = rig.out
	options.Now = rig.clock.Now

	sup, err := NewSupervisor(servers, options, newMockLogger())
	require.NoError(t, err)
	rig.sup = sup
	return rig
}
