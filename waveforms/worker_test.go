package waveforms

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ammarkh95/go-analog/internal/errors"
)

func TestScopeWorkerOrdering(t *testing.T) {
	dev, err := Open(-1, -1)
	require.NoError(t, err)
	defer dev.Close()

	require.NoError(t, dev.PlaySignal(WaveGen1, SignalConfig{
		Signal: SignalSine, Frequency: 1000, Amplitude: 1,
	}))

	worker := NewScopeWorker(dev, 8)

	cfg := RecordingConfig{SampleRate: 1e6, BufferSize: 256, Range: 5}
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		id, err := worker.Submit(ctx, AcquisitionRequest{
			ID:     fmt.Sprintf("req-%d", i),
			Input:  Input1,
			Config: cfg,
		})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	// results arrive in submission order
	for i := 0; i < 5; i++ {
		res := <-worker.Results()
		require.NoError(t, res.Err)
		assert.Equal(t, ids[i], res.ID)
		assert.Len(t, res.Samples, 256)
	}

	worker.Close()
}

func TestScopeWorkerAssignsIDs(t *testing.T) {
	dev, err := Open(-1, -1)
	require.NoError(t, err)
	defer dev.Close()

	worker := NewScopeWorker(dev, 4)
	defer worker.Close()

	id, err := worker.Submit(context.Background(), AcquisitionRequest{
		Input:  Input1,
		Config: RecordingConfig{SampleRate: 1e6, BufferSize: 64, Range: 5},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	res := <-worker.Results()
	assert.Equal(t, id, res.ID)
}

func TestScopeWorkerReportsFailures(t *testing.T) {
	dev, err := Open(-1, -1)
	require.NoError(t, err)
	defer dev.Close()

	worker := NewScopeWorker(dev, 4)
	defer worker.Close()

	// an invalid configuration fails the request, not the worker
	_, err = worker.Submit(context.Background(), AcquisitionRequest{
		Input:  Input1,
		Config: RecordingConfig{SampleRate: 0, BufferSize: 64, Range: 5},
	})
	require.NoError(t, err)

	res := <-worker.Results()
	assert.True(t, apperrors.Is(res.Err, apperrors.ErrInvalidParam))

	// the worker still serves later requests
	_, err = worker.Submit(context.Background(), AcquisitionRequest{
		Input:  Input1,
		Config: RecordingConfig{SampleRate: 1e6, BufferSize: 64, Range: 5},
	})
	require.NoError(t, err)

	res = <-worker.Results()
	assert.NoError(t, res.Err)
}

func TestScopeWorkerCloseWithUndrainedResults(t *testing.T) {
	dev, err := Open(-1, -1)
	require.NoError(t, err)
	defer dev.Close()

	worker := NewScopeWorker(dev, 2)

	cfg := RecordingConfig{SampleRate: 1e6, BufferSize: 64, Range: 5}
	for i := 0; i < 5; i++ {
		_, err := worker.Submit(context.Background(), AcquisitionRequest{
			Input:  Input1,
			Config: cfg,
		})
		require.NoError(t, err)
	}

	// Close must return even though nobody reads Results.
	done := make(chan struct{})
	go func() {
		worker.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked on an undrained results channel")
	}

	// buffered results stay readable until the channel closes
	for range worker.Results() {
	}
}

func TestScopeWorkerClose(t *testing.T) {
	dev, err := Open(-1, -1)
	require.NoError(t, err)
	defer dev.Close()

	worker := NewScopeWorker(dev, 4)
	worker.Close()
	worker.Close()

	_, err = worker.Submit(context.Background(), AcquisitionRequest{
		Input:  Input1,
		Config: RecordingConfig{SampleRate: 1e6, BufferSize: 64, Range: 5},
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrCanceled))

	// the results channel closes after shutdown
	_, open := <-worker.Results()
	assert.False(t, open)
}
