package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/ammarkh95/go-analog/internal/errors"
	"github.com/ammarkh95/go-analog/internal/recorder"
	"github.com/ammarkh95/go-analog/measure"
	"github.com/ammarkh95/go-analog/waveforms"
)

type playRequest struct {
	Output    int     `json:"output"`
	Signal    string  `json:"signal" binding:"required"`
	Frequency float64 `json:"frequency"`
	Amplitude float64 `json:"amplitude"`
	Offset    float64 `json:"offset"`
	Symmetry  float64 `json:"symmetry"`
	Phase     float64 `json:"phase"`
}

func (r *Router) playSignal(c *gin.Context) {
	if !r.requireScope(c) {
		return
	}

	var req playRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Wrap(err, apperrors.ErrRequestDecode))
		return
	}

	signal, ok := waveforms.ParseOutputSignal(req.Signal)
	if !ok {
		respondError(c, apperrors.Newf(apperrors.ErrInvalidParam, "signal %q", req.Signal))
		return
	}

	err := r.scope.PlaySignal(waveforms.AnalogOutput(req.Output), waveforms.SignalConfig{
		Signal:    signal,
		Frequency: req.Frequency,
		Amplitude: req.Amplitude,
		Offset:    req.Offset,
		Symmetry:  req.Symmetry,
		Phase:     req.Phase,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"output": req.Output, "signal": req.Signal})
}

type stopRequest struct {
	Output int `json:"output"`
}

func (r *Router) stopSignal(c *gin.Context) {
	if !r.requireScope(c) {
		return
	}

	var req stopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Wrap(err, apperrors.ErrRequestDecode))
		return
	}

	if err := r.scope.StopSignal(waveforms.AnalogOutput(req.Output)); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"output": req.Output})
}

type acquireRequest struct {
	Input      int     `json:"input"`
	SampleRate float64 `json:"sample_rate" binding:"required"`
	BufferSize int     `json:"buffer_size" binding:"required"`
	Range      float64 `json:"range" binding:"required"`
	Archive    bool    `json:"archive"`
	Note       string  `json:"note"`
}

type acquireResponse struct {
	Samples   []float64 `json:"samples"`
	DCAverage float64   `json:"dc_average"`
	ACRMS     float64   `json:"ac_rms"`
	Frequency float64   `json:"frequency"`
	CaptureID string    `json:"capture_id,omitempty"`
}

func (r *Router) acquire(c *gin.Context) {
	if !r.requireScope(c) {
		return
	}

	var req acquireRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Wrap(err, apperrors.ErrRequestDecode))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	samples, err := r.scope.SingleAcquisition(ctx, waveforms.AnalogInput(req.Input), waveforms.RecordingConfig{
		SampleRate: req.SampleRate,
		BufferSize: req.BufferSize,
		Range:      req.Range,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	resp := acquireResponse{
		Samples:   samples,
		DCAverage: measure.DCAverage(samples),
		ACRMS:     measure.ACRMS(samples),
	}
	if freq, err := measure.DominantFrequency(samples, req.SampleRate); err == nil {
		resp.Frequency = freq
	}

	if req.Archive && r.store != nil {
		id, err := r.store.SaveSamples(recorder.InstrumentScope, req.Input, req.SampleRate, samples, req.Note)
		if err != nil {
			respondError(c, err)
			return
		}
		resp.CaptureID = id
	}

	respondOK(c, resp)
}

type suppliesRequest struct {
	Positive float64 `json:"positive"`
	Negative float64 `json:"negative"`
}

func (r *Router) setSupplies(c *gin.Context) {
	if !r.requireScope(c) {
		return
	}

	var req suppliesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Wrap(err, apperrors.ErrRequestDecode))
		return
	}

	if err := r.scope.SetSupplies(req.Positive, req.Negative); err != nil {
		respondError(c, err)
		return
	}

	st, err := r.scope.Supplies()
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, st)
}

func (r *Router) suppliesStatus(c *gin.Context) {
	if !r.requireScope(c) {
		return
	}

	st, err := r.scope.Supplies()
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, st)
}

func (r *Router) disableSupplies(c *gin.Context) {
	if !r.requireScope(c) {
		return
	}

	if err := r.scope.DisableSupplies(); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"enabled": false})
}

type digitalRequest struct {
	Directions *uint16 `json:"directions"`
	Outputs    *uint16 `json:"outputs"`
}

func (r *Router) writeDigital(c *gin.Context) {
	if !r.requireScope(c) {
		return
	}

	var req digitalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Wrap(err, apperrors.ErrRequestDecode))
		return
	}

	if req.Directions != nil {
		if err := r.scope.SetDigitalDirections(*req.Directions); err != nil {
			respondError(c, err)
			return
		}
	}
	if req.Outputs != nil {
		if err := r.scope.WriteDigital(*req.Outputs); err != nil {
			respondError(c, err)
			return
		}
	}

	mask, err := r.scope.ReadDigital()
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"pins": mask})
}

func (r *Router) readDigital(c *gin.Context) {
	if !r.requireScope(c) {
		return
	}

	mask, err := r.scope.ReadDigital()
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"pins": mask})
}
