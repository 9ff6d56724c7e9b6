// Package recording governs the audio capture state machine for a chat
// session: Idle → Recording → {Stopped, Cancelled} → Idle.
package recording

import (
	"context"
	"sync"
	"time"

	"prochat/internal/constants"
	"prochat/internal/device"
	"prochat/internal/errors"

	"github.com/sirupsen/logrus"
)

// State is the recorder's current phase.
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StateStopped   State = "stopped"
	StateCancelled State = "cancelled"
)

// Result is the finalized capture handed back by Stop: what to send and how
// long it ran.
type Result struct {
	ArtifactRef string
	DurationSec int
}

// tickerFunc produces a tick channel and its stop function. Injectable so
// tests can drive elapsed time deterministically.
type tickerFunc func(d time.Duration) (<-chan time.Time, func())

func defaultTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Recorder tracks one recording session at a time. All transitions are
// guarded: calls from the wrong state return an error and change nothing.
type Recorder struct {
	device device.AudioRecorder
	logger *logrus.Logger
	ticker tickerFunc

	mu        sync.Mutex
	state     State
	startedAt int64
	elapsed   int
	stopTick  chan struct{}
	tickWG    sync.WaitGroup
}

// NewRecorder builds an idle recorder over the given device collaborator.
func NewRecorder(dev device.AudioRecorder, logger *logrus.Logger) *Recorder {
	return &Recorder{
		device: dev,
		logger: logger,
		ticker: defaultTicker,
		state:  StateIdle,
	}
}

// State returns the current phase.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// ElapsedSeconds returns the tick-derived duration of the current capture.
func (r *Recorder) ElapsedSeconds() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.elapsed
}

// Start requests the audio permission and begins capturing. Permitted only
// from Idle. On permission denial the recorder stays Idle and the denial is
// surfaced to the caller.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.state != StateIdle {
		state := r.state
		r.mu.Unlock()
		return errors.NewStateError("startRecording", string(state))
	}
	r.mu.Unlock()

	if err := r.device.RequestPermission(ctx); err != nil {
		return errors.NewPermissionError("microphone")
	}

	if err := r.device.Start(ctx); err != nil {
		return errors.Wrap(err, errors.ErrCodeRecordingFailed, "failed to start recording")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = StateRecording
	r.startedAt = time.Now().UnixMilli()
	r.elapsed = 0
	r.stopTick = make(chan struct{})

	tick, stop := r.ticker(constants.RecordingTickIntervalSec * time.Second)
	stopCh := r.stopTick
	r.tickWG.Add(1)
	go func() {
		defer r.tickWG.Done()
		defer stop()
		for {
			select {
			case <-stopCh:
				return
			case <-tick:
				r.mu.Lock()
				if r.state == StateRecording {
					r.elapsed++
				}
				r.mu.Unlock()
			}
		}
	}()

	return nil
}

// Stop finalizes the capture. Permitted only from Recording. A zero-second
// capture produces nothing and the recorder returns straight to Idle;
// otherwise the recorder parks in Stopped holding the result until Reset.
func (r *Recorder) Stop(ctx context.Context) (*Result, error) {
	r.mu.Lock()
	if r.state != StateRecording {
		state := r.state
		r.mu.Unlock()
		return nil, errors.NewStateError("stopRecording", string(state))
	}
	elapsed := r.elapsed
	r.haltTickLocked()
	r.mu.Unlock()

	artifact, err := r.device.Stop(ctx)
	if err != nil {
		r.mu.Lock()
		r.state = StateIdle
		r.mu.Unlock()
		return nil, errors.Wrap(err, errors.ErrCodeRecordingFailed, "failed to finalize recording")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if elapsed == 0 || artifact == "" {
		r.state = StateIdle
		r.logger.Debug("Recording stopped with no audio captured")
		return nil, nil
	}

	r.state = StateStopped
	return &Result{ArtifactRef: artifact, DurationSec: elapsed}, nil
}

// Cancel discards the in-progress capture. Permitted only from Recording.
// No message is emitted.
func (r *Recorder) Cancel(ctx context.Context) error {
	r.mu.Lock()
	if r.state != StateRecording {
		state := r.state
		r.mu.Unlock()
		return errors.NewStateError("cancelRecording", string(state))
	}
	r.haltTickLocked()
	r.state = StateCancelled
	r.mu.Unlock()

	if err := r.device.Discard(ctx); err != nil {
		r.logger.WithError(err).Warn("Failed to discard cancelled recording")
	}

	r.mu.Lock()
	r.state = StateIdle
	r.elapsed = 0
	r.mu.Unlock()
	return nil
}

// Reset returns a Stopped recorder to Idle once its result has been consumed.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateStopped {
		r.state = StateIdle
		r.elapsed = 0
	}
}

func (r *Recorder) haltTickLocked() {
	if r.stopTick != nil {
		close(r.stopTick)
		r.stopTick = nil
	}
}
