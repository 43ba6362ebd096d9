package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ammarkh95/go-analog/internal/config"
	"github.com/ammarkh95/go-analog/measure"
	"github.com/ammarkh95/go-analog/waveforms"
)

// scopeStreamHandler pushes repeated scope acquisitions over a
// websocket. The client opens the socket, sends one streamRequest
// and then receives streamFrame messages until it disconnects.
type scopeStreamHandler struct {
	cfg      *config.Config
	scope    *waveforms.Device
	upgrader websocket.Upgrader
	log      *zap.Logger
}

type streamRequest struct {
	Input      int     `json:"input"`
	SampleRate float64 `json:"sample_rate"`
	BufferSize int     `json:"buffer_size"`
	Range      float64 `json:"range"`
	Interval   int     `json:"interval_ms"`
}

type streamFrame struct {
	Sequence  uint64    `json:"sequence"`
	Samples   []float64 `json:"samples"`
	DCAverage float64   `json:"dc_average"`
	ACRMS     float64   `json:"ac_rms"`
	Timestamp int64     `json:"timestamp"`
}

func newScopeStreamHandler(cfg *config.Config, scope *waveforms.Device, log *zap.Logger) *scopeStreamHandler {
	return &scopeStreamHandler{
		cfg:   cfg,
		scope: scope,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
			WriteBufferSize: cfg.WebSocket.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		log: log.With(zap.String("module", "scope_stream")),
	}
}

func (h *scopeStreamHandler) handle(c *gin.Context) {
	if h.scope == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scope not available"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed",
			zap.String("ip", c.ClientIP()),
			zap.Error(err))
		return
	}
	defer conn.Close()

	var req streamRequest
	if err := conn.ReadJSON(&req); err != nil {
		h.log.Warn("stream request decode failed", zap.Error(err))
		return
	}
	if req.SampleRate <= 0 {
		req.SampleRate = 100000
	}
	if req.BufferSize <= 0 {
		req.BufferSize = 1024
	}
	if req.Range <= 0 {
		req.Range = 5.0
	}
	if req.Interval <= 0 {
		req.Interval = 100
	}

	h.log.Info("scope stream opened",
		zap.String("ip", c.ClientIP()),
		zap.Int("input", req.Input),
		zap.Float64("sample_rate", req.SampleRate),
		zap.Int("buffer_size", req.BufferSize))

	// The read pump only watches for the client going away; any
	// inbound message or error ends the stream.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	recCfg := waveforms.RecordingConfig{
		SampleRate: req.SampleRate,
		BufferSize: req.BufferSize,
		Range:      req.Range,
		Mode:       waveforms.AcquisitionSingle,
	}
	input := waveforms.AnalogInput(req.Input)
	ticker := time.NewTicker(time.Duration(req.Interval) * time.Millisecond)
	defer ticker.Stop()

	var sequence uint64
	for {
		select {
		case <-done:
			h.log.Info("scope stream closed", zap.Uint64("frames", sequence))
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		samples, err := h.scope.SingleAcquisition(ctx, input, recCfg)
		cancel()
		if err != nil {
			h.log.Error("stream acquisition failed", zap.Error(err))
			conn.WriteJSON(gin.H{"error": err.Error()})
			return
		}

		sequence++
		frame := streamFrame{
			Sequence:  sequence,
			Samples:   samples,
			DCAverage: measure.DCAverage(samples),
			ACRMS:     measure.ACRMS(samples),
			Timestamp: time.Now().UnixMilli(),
		}
		conn.SetWriteDeadline(time.Now().Add(h.cfg.WebSocket.WriteTimeout))
		if err := conn.WriteJSON(frame); err != nil {
			h.log.Info("scope stream write ended", zap.Error(err))
			return
		}
	}
}
