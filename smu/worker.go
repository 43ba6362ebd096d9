package smu

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/ammarkh95/go-analog/internal/errors"
	"github.com/ammarkh95/go-analog/internal/logger"
)

// ReadRequest is one queued stream read.
type ReadRequest struct {
	// ID labels the request; Submit assigns one when empty.
	ID      string        `json:"id"`
	Channel Channel       `json:"channel"`
	Count   int           `json:"count"`
	Timeout time.Duration `json:"timeout"`
}

// ReadResult carries the samples or the failure of one request.
type ReadResult struct {
	ID      string   `json:"id"`
	Samples []Sample `json:"samples,omitempty"`
	Err     error    `json:"-"`
}

// Worker serializes stream reads onto a single goroutine. Results
// come back on Results in submission order; requests still queued at
// Close are answered with a canceled error.
type Worker struct {
	dev      *Device
	requests chan ReadRequest
	results  chan ReadResult
	stopCh   chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
	log      *zap.Logger
}

// NewWorker starts a worker over an acquired board. queue sets how
// many requests may be pending.
func NewWorker(dev *Device, queue int) *Worker {
	if queue <= 0 {
		queue = 16
	}
	w := &Worker{
		dev:      dev,
		requests: make(chan ReadRequest, queue),
		results:  make(chan ReadResult, queue),
		stopCh:   make(chan struct{}),
		log:      logger.WithModule("smu-worker"),
	}

	w.wg.Add(1)
	go w.run()

	return w
}

// Submit queues one read. The returned ID matches the result that
// will appear on Results.
func (w *Worker) Submit(ctx context.Context, req ReadRequest) (string, error) {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if req.Timeout == 0 {
		req.Timeout = 5 * time.Second
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
		return "", apperrors.Wrap(ctx.Err(), apperrors.ErrTimeout, "submitting read")
	}
}

// Results delivers completed reads in submission order. The channel
// is closed after Close once the in-flight request finishes.
func (w *Worker) Results() <-chan ReadResult {
	return w.results
}

// Close stops the worker and closes Results. It never waits on a
// consumer. Closing twice is safe.
func (w *Worker) Close() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
	w.wg.Wait()
}

func (w *Worker) run() {
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

// drain answers whatever is still queued after stop. Results that no
// longer fit in the buffer are dropped rather than blocking shutdown.
func (w *Worker) drain() {
	for {
		select {
		case req := <-w.requests:
			res := ReadResult{
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

func (w *Worker) process(req ReadRequest) ReadResult {
	samples, err := w.dev.Read(req.Channel, req.Count, req.Timeout)
	if err != nil {
		w.log.Error("stream read failed",
			zap.String("request_id", req.ID),
			zap.Error(err))
		return ReadResult{ID: req.ID, Err: err}
	}
	return ReadResult{ID: req.ID, Samples: samples}
}
