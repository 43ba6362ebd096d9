package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/ammarkh95/go-analog/internal/errors"
	"github.com/ammarkh95/go-analog/internal/recorder"
	"github.com/ammarkh95/go-analog/smu"
)

type smuChannelRequest struct {
	Channel int     `json:"channel"`
	Mode    string  `json:"mode" binding:"required"`
	Value   float64 `json:"value"`
}

var smuModes = map[string]smu.ChannelMode{
	"hi_z":       smu.HiZ,
	"svmi":       smu.SVMI,
	"simv":       smu.SIMV,
	"hi_z_split": smu.HiZSplit,
	"svmi_split": smu.SVMISplit,
	"simv_split": smu.SIMVSplit,
}

func (r *Router) configureSMUChannel(c *gin.Context) {
	if !r.requireSMU(c) {
		return
	}

	var req smuChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Wrap(err, apperrors.ErrRequestDecode))
		return
	}

	mode, ok := smuModes[req.Mode]
	if !ok {
		respondError(c, apperrors.Newf(apperrors.ErrInvalidParam, "mode %q", req.Mode))
		return
	}

	ch := smu.Channel(req.Channel)
	if err := r.smu.SetMode(ch, mode); err != nil {
		respondError(c, err)
		return
	}
	if mode != smu.HiZ && mode != smu.HiZSplit {
		if err := r.smu.SetConstant(ch, req.Value); err != nil {
			respondError(c, err)
			return
		}
	}

	respondOK(c, gin.H{"channel": req.Channel, "mode": req.Mode, "value": req.Value})
}

type smuReadResponse struct {
	Samples     []smu.Sample `json:"samples"`
	MeanVoltage float64      `json:"mean_voltage"`
	MeanCurrent float64      `json:"mean_current"`
	CaptureID   string       `json:"capture_id,omitempty"`
}

func (r *Router) readSMU(c *gin.Context) {
	if !r.requireSMU(c) {
		return
	}

	channel, err := strconv.Atoi(c.DefaultQuery("channel", "0"))
	if err != nil {
		respondError(c, apperrors.Wrap(err, apperrors.ErrInvalidParam, "channel"))
		return
	}
	count, err := strconv.Atoi(c.DefaultQuery("count", "100"))
	if err != nil {
		respondError(c, apperrors.Wrap(err, apperrors.ErrInvalidParam, "count"))
		return
	}
	archive := c.Query("archive") == "true"

	// a self-contained capture works whether or not the stream runs
	samples, err := r.smu.GetSamples(smu.Channel(channel), count)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := smuReadResponse{Samples: samples}
	for _, s := range samples {
		resp.MeanVoltage += s.Voltage
		resp.MeanCurrent += s.Current
	}
	if len(samples) > 0 {
		resp.MeanVoltage /= float64(len(samples))
		resp.MeanCurrent /= float64(len(samples))
	}

	if archive && r.store != nil {
		voltages := make([]float64, len(samples))
		for i, s := range samples {
			voltages[i] = s.Voltage
		}
		id, err := r.store.SaveSamples(recorder.InstrumentSMU, channel,
			float64(r.smu.SampleRate()), voltages, c.Query("note"))
		if err != nil {
			respondError(c, err)
			return
		}
		resp.CaptureID = id
	}

	respondOK(c, resp)
}

func (r *Router) smuStatus(c *gin.Context) {
	if !r.requireSMU(c) {
		return
	}

	modeA, err := r.smu.Mode(smu.ChannelA)
	if err != nil {
		respondError(c, err)
		return
	}
	modeB, err := r.smu.Mode(smu.ChannelB)
	if err != nil {
		respondError(c, err)
		return
	}
	overcurrent, err := r.smu.Overcurrent()
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, gin.H{
		"serial":          r.smu.Serial(),
		"sample_rate":     r.smu.SampleRate(),
		"capture_running": r.smu.CaptureRunning(),
		"mode_a":          int(modeA),
		"mode_b":          int(modeB),
		"overcurrent":     overcurrent,
		"time":            time.Now().Unix(),
	})
}
