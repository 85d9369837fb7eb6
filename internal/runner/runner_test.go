package runner

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MoDevIO/unosim/internal/protocol"
)

// fakeEmitter records everything a Runner reports, guarded by a mutex
// since the pumps and the timeout goroutine call it concurrently.
type fakeEmitter struct {
	mu       sync.Mutex
	events   []protocol.Event
	raw      []string
	statuses []Status
}

func (f *fakeEmitter) EmitEvent(ev protocol.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

func (f *fakeEmitter) EmitRawSerial(line string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.raw = append(f.raw, line)
}

func (f *fakeEmitter) EmitStatus(s Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, s)
}

func (f *fakeEmitter) snapshotStatuses() []Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Status, len(f.statuses))
	copy(out, f.statuses)
	return out
}

func (f *fakeEmitter) snapshotRaw() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.raw))
	copy(out, f.raw)
	return out
}

func (f *fakeEmitter) snapshotEvents() []protocol.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]protocol.Event, len(f.events))
	copy(out, f.events)
	return out
}

// writeScript materializes an executable shell script standing in for
// the compiled simulation binary, since this package only ever shells
// out to a path (spec §4.5) and never cares what produced it.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-sim")
	script := "#!/bin/sh\n" + body
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.FailNow(t, "condition never became true")
}

func TestRunnerStartEmitsRunningAndDecodesChildSideband(t *testing.T) {
	binary := writeScript(t, `echo "[[PIN_MODE:13:1]]" >&2; sleep 1`)
	emitter := &fakeEmitter{}
	r := New(binary, 0, emitter)

	require.NoError(t, r.Start(context.Background()))
	defer r.Stop()

	waitFor(t, time.Second, func() bool {
		for _, ev := range emitter.snapshotEvents() {
			if ev.Tag == protocol.TagPinMode {
				return true
			}
		}
		return false
	})

	assert.Contains(t, emitter.snapshotStatuses(), StatusRunning)
}

func TestRunnerStopIsIdempotentAndTerminatesChild(t *testing.T) {
	binary := writeScript(t, `sleep 5`)
	emitter := &fakeEmitter{}
	r := New(binary, 0, emitter)
	require.NoError(t, r.Start(context.Background()))

	r.Stop()
	r.Stop()

	waitFor(t, time.Second, func() bool {
		return r.Status() == StatusStopped
	})
}

func TestRunnerTimeoutEmitsSyntheticLineThenStops(t *testing.T) {
	binary := writeScript(t, `sleep 5`)
	emitter := &fakeEmitter{}
	r := New(binary, 50*time.Millisecond, emitter)
	require.NoError(t, r.Start(context.Background()))

	waitFor(t, 2*time.Second, func() bool {
		return r.Status() == StatusStopped
	})

	found := false
	for _, line := range emitter.snapshotRaw() {
		if line == "--- Simulation timeout ---" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestRunnerPauseResumeRejectedOutsideRunningState(t *testing.T) {
	emitter := &fakeEmitter{}
	r := New("/bin/true", 0, emitter)

	assert.Error(t, r.Pause())
	assert.Error(t, r.Resume())
}

func TestRunnerSetPinRejectedWhenStopped(t *testing.T) {
	emitter := &fakeEmitter{}
	r := New("/bin/true", 0, emitter)
	assert.Error(t, r.SetPin("13", 1))
}

func TestRunnerUnexpectedChildExitEmitsCrashLine(t *testing.T) {
	binary := writeScript(t, `exit 1`)
	emitter := &fakeEmitter{}
	r := New(binary, 0, emitter)
	require.NoError(t, r.Start(context.Background()))

	waitFor(t, time.Second, func() bool {
		return r.Status() == StatusStopped
	})

	found := false
	for _, line := range emitter.snapshotRaw() {
		if line == "--- Simulation crashed ---" {
			found = true
		}
	}
	assert.True(t, found, "an unprompted child exit should emit the crash line")
}

func TestRunnerStopDoesNotEmitCrashLine(t *testing.T) {
	binary := writeScript(t, `trap 'exit 1' INT; sleep 5 & wait`)
	emitter := &fakeEmitter{}
	r := New(binary, 0, emitter)
	require.NoError(t, r.Start(context.Background()))

	r.Stop()

	waitFor(t, time.Second, func() bool {
		return r.Status() == StatusStopped
	})

	for _, line := range emitter.snapshotRaw() {
		assert.NotEqual(t, "--- Simulation crashed ---", line, "an intentional Stop() should not be reported as a crash")
	}
}

func TestRunnerRawStdoutSuppressedWithinDedupWindowExceptSystemLines(t *testing.T) {
	binary := writeScript(t, `
echo "[[SERIAL_EVENT:1:aGk=]]" >&2
sleep 0.1
echo "legacy duplicate line"
echo "--- Simulation crashed ---"
sleep 1
`)
	emitter := &fakeEmitter{}
	r := New(binary, 0, emitter)
	require.NoError(t, r.Start(context.Background()))
	defer r.Stop()

	waitFor(t, time.Second, func() bool {
		for _, line := range emitter.snapshotRaw() {
			if line == "--- Simulation crashed ---" {
				return true
			}
		}
		return false
	})

	for _, line := range emitter.snapshotRaw() {
		assert.NotEqual(t, "legacy duplicate line", line)
	}
}
