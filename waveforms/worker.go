package waveforms

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/ammarkh95/go-analog/internal/errors"
	"github.com/ammarkh95/go-analog/internal/logger"
)

// AcquisitionRequest is one queued scope acquisition.
type AcquisitionRequest struct {
	// ID labels the request; Submit assigns one when empty.
	ID     string          `json:"id"`
	Input  AnalogInput     `json:"input"`
	Config RecordingConfig `json:"config"`
}

// AcquisitionResult carries the samples or the failure of one request.
type AcquisitionResult struct {
	ID      string    `json:"id"`
	Samples []float64 `json:"samples,omitempty"`
	Err     error     `json:"-"`
}

// ScopeWorker serializes scope acquisitions onto a single goroutine.
// Results come back on Results in submission order. Requests still
// queued when Close is called are answered with a canceled error.
type ScopeWorker struct {
	dev      *Device
	requests chan AcquisitionRequest
	results  chan AcquisitionResult
	stopCh   chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
	log      *zap.Logger
}

// NewScopeWorker starts a worker over an acquired device. queue sets
// how many requests may be pending.
func NewScopeWorker(dev *Device, queue int) *ScopeWorker {
	if queue <= 0 {
		queue = 16
	}
	w := &ScopeWorker{
		dev:      dev,
		requests: make(chan AcquisitionRequest, queue),
		results:  make(chan AcquisitionResult, queue),
		stopCh:   make(chan struct{}),
		log:      logger.WithModule("scope-worker"),
	}

	w.wg.Add(1)
	go w.run()

	return w
}

// Submit queues one acquisition. The returned ID matches the result
// that will appear on Results.
func (w *ScopeWorker) Submit(ctx context.Context, req AcquisitionRequest) (string, error) {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	select {
	case <-w.stopCh:
		return "", apperrors.New(apperrors.ErrCanceled, "worker closed")
	default:
	}

	select {
	case w.requests <- req:
		return req.ID, nil
	case <-w.stopCh:
		return "", apperrors.New(apperrors.ErrCanceled, "worker closed")
	case <-ctx.Done():
		return "", apperrors.Wrap(ctx.Err(), apperrors.ErrTimeout, "submitting acquisition")
	}
}

// Results delivers completed acquisitions in submission order. The
// channel is closed after Close once the in-flight request finishes.
func (w *ScopeWorker) Results() <-chan AcquisitionResult {
	return w.results
}

// Close stops the worker and closes Results. Pending requests are
// answered with a canceled error while the results buffer has room;
// Close never waits on a consumer. Closing twice is safe.
func (w *ScopeWorker) Close() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
	w.wg.Wait()
}

func (w *ScopeWorker) run() {
	defer w.wg.Done()
	defer close(w.results)

	for {
		select {
		case <-w.stopCh:
			w.drain()
			return
		case req := <-w.requests:
			res := w.process(req)
			select {
			case w.results <- res:
			case <-w.stopCh:
				// consumer stopped reading; the result is dropped
			}
		}
	}
}

// drain fails whatever is still queued after stop. Results that no
// longer fit in the buffer are dropped rather than blocking shutdown.
func (w *ScopeWorker) drain() {
	for {
		select {
		case req := <-w.requests:
			res := AcquisitionResult{
				ID:  req.ID,
				Err: apperrors.New(apperrors.ErrCanceled, "worker closed"),
			}
			select {
			case w.results <- res:
			default:
			}
		default:
			return
		}
	}
}

func (w *ScopeWorker) process(req AcquisitionRequest) AcquisitionResult {
	ctx := context.Background()
	samples, err := w.dev.SingleAcquisition(ctx, req.Input, req.Config)
	if err != nil {
		w.log.Error("acquisition failed",
			zap.String("request_id", req.ID),
			zap.Error(err))
		return AcquisitionResult{ID: req.ID, Err: err}
	}
	return AcquisitionResult{ID: req.ID, Samples: samples}
}
