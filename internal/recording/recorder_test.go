package recording

import (
	"context"
	"fmt"
	"testing"
	"time"

	"prochat/internal/errors"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAudioDevice struct {
	permissionErr error
	startErr      error
	stopErr       error
	artifact      string
	discarded     bool
}

func (f *fakeAudioDevice) RequestPermission(ctx context.Context) error { return f.permissionErr }
func (f *fakeAudioDevice) Start(ctx context.Context) error            { return f.startErr }
func (f *fakeAudioDevice) Stop(ctx context.Context) (string, error)   { return f.artifact, f.stopErr }
func (f *fakeAudioDevice) Discard(ctx context.Context) error {
	f.discarded = true
	return nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

// manualTicker lets tests drive elapsed seconds by hand.
type manualTicker struct {
	ch chan time.Time
}

func newManualTicker() *manualTicker {
	return &manualTicker{ch: make(chan time.Time)}
}

func (m *manualTicker) install(r *Recorder) {
	r.ticker = func(time.Duration) (<-chan time.Time, func()) {
		return m.ch, func() {}
	}
}

func (m *manualTicker) tick(t *testing.T, r *Recorder, n int) {
	t.Helper()
	before := r.ElapsedSeconds()
	for i := 0; i < n; i++ {
		m.ch <- time.Time{}
	}
	// The tick goroutine consumed the sends; wait for the counter to settle.
	require.Eventually(t, func() bool {
		return r.ElapsedSeconds() >= before+n
	}, time.Second, time.Millisecond)
}

func TestStart_FromIdle(t *testing.T) {
	dev := &fakeAudioDevice{artifact: "file://rec.m4a"}
	r := NewRecorder(dev, testLogger())
	newManualTicker().install(r)

	err := r.Start(context.Background())

	require.NoError(t, err)
	assert.Equal(t, StateRecording, r.State())
	assert.Equal(t, 0, r.ElapsedSeconds())
}

func TestStart_WhileRecordingFails(t *testing.T) {
	dev := &fakeAudioDevice{artifact: "file://rec.m4a"}
	r := NewRecorder(dev, testLogger())
	newManualTicker().install(r)

	require.NoError(t, r.Start(context.Background()))
	err := r.Start(context.Background())

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidState))
	assert.Equal(t, StateRecording, r.State())
}

func TestStart_PermissionDeniedStaysIdle(t *testing.T) {
	dev := &fakeAudioDevice{permissionErr: fmt.Errorf("denied")}
	r := NewRecorder(dev, testLogger())

	err := r.Start(context.Background())

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodePermissionDenied))
	assert.Equal(t, StateIdle, r.State())

	// A later grant lets recording proceed.
	dev.permissionErr = nil
	dev.artifact = "file://rec.m4a"
	newManualTicker().install(r)
	require.NoError(t, r.Start(context.Background()))
	assert.Equal(t, StateRecording, r.State())
}

func TestStart_DeviceFailure(t *testing.T) {
	dev := &fakeAudioDevice{startErr: fmt.Errorf("mic busy")}
	r := NewRecorder(dev, testLogger())

	err := r.Start(context.Background())

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeRecordingFailed))
	assert.Equal(t, StateIdle, r.State())
}

func TestStop_CapturedAudioYieldsResult(t *testing.T) {
	dev := &fakeAudioDevice{artifact: "file://rec.m4a"}
	r := NewRecorder(dev, testLogger())
	ticker := newManualTicker()
	ticker.install(r)

	require.NoError(t, r.Start(context.Background()))
	ticker.tick(t, r, 3)

	result, err := r.Stop(context.Background())

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "file://rec.m4a", result.ArtifactRef)
	assert.Equal(t, 3, result.DurationSec)
	assert.Equal(t, StateStopped, r.State())

	r.Reset()
	assert.Equal(t, StateIdle, r.State())
	assert.Equal(t, 0, r.ElapsedSeconds())
}

func TestStop_ZeroSecondCaptureEmitsNothing(t *testing.T) {
	dev := &fakeAudioDevice{artifact: "file://rec.m4a"}
	r := NewRecorder(dev, testLogger())
	newManualTicker().install(r)

	require.NoError(t, r.Start(context.Background()))

	// Stop before the first tick: under one second of audio.
	result, err := r.Stop(context.Background())

	require.NoError(t, err)
	assert.Nil(t, result)
	assert.Equal(t, StateIdle, r.State())
}

func TestStop_EmptyArtifactEmitsNothing(t *testing.T) {
	dev := &fakeAudioDevice{artifact: ""}
	r := NewRecorder(dev, testLogger())
	ticker := newManualTicker()
	ticker.install(r)

	require.NoError(t, r.Start(context.Background()))
	ticker.tick(t, r, 2)

	result, err := r.Stop(context.Background())

	require.NoError(t, err)
	assert.Nil(t, result)
	assert.Equal(t, StateIdle, r.State())
}

func TestStop_FromIdleFails(t *testing.T) {
	r := NewRecorder(&fakeAudioDevice{}, testLogger())

	result, err := r.Stop(context.Background())

	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidState))
}

func TestStop_DeviceFailureReturnsToIdle(t *testing.T) {
	dev := &fakeAudioDevice{stopErr: fmt.Errorf("io error")}
	r := NewRecorder(dev, testLogger())
	ticker := newManualTicker()
	ticker.install(r)

	require.NoError(t, r.Start(context.Background()))
	ticker.tick(t, r, 1)

	result, err := r.Stop(context.Background())

	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, StateIdle, r.State())
}

func TestCancel_DiscardsCapture(t *testing.T) {
	dev := &fakeAudioDevice{artifact: "file://rec.m4a"}
	r := NewRecorder(dev, testLogger())
	ticker := newManualTicker()
	ticker.install(r)

	require.NoError(t, r.Start(context.Background()))
	ticker.tick(t, r, 2)

	err := r.Cancel(context.Background())

	require.NoError(t, err)
	assert.Equal(t, StateIdle, r.State())
	assert.Equal(t, 0, r.ElapsedSeconds())
	assert.True(t, dev.discarded)
}

func TestCancel_FromIdleFails(t *testing.T) {
	r := NewRecorder(&fakeAudioDevice{}, testLogger())

	err := r.Cancel(context.Background())

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidState))
}

func TestReset_OnlyLeavesStopped(t *testing.T) {
	dev := &fakeAudioDevice{artifact: "file://rec.m4a"}
	r := NewRecorder(dev, testLogger())
	newManualTicker().install(r)

	r.Reset()
	assert.Equal(t, StateIdle, r.State())

	require.NoError(t, r.Start(context.Background()))
	r.Reset()
	assert.Equal(t, StateRecording, r.State())
}

func TestFullCycle_RecordAgainAfterStop(t *testing.T) {
	dev := &fakeAudioDevice{artifact: "file://rec.m4a"}
	r := NewRecorder(dev, testLogger())
	ticker := newManualTicker()
	ticker.install(r)

	require.NoError(t, r.Start(context.Background()))
	ticker.tick(t, r, 1)
	result, err := r.Stop(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result)
	r.Reset()

	ticker2 := newManualTicker()
	ticker2.install(r)
	require.NoError(t, r.Start(context.Background()))
	assert.Equal(t, StateRecording, r.State())
	assert.Equal(t, 0, r.ElapsedSeconds())
}
