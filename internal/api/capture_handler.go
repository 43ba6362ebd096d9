package api

import (
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/ammarkh95/go-analog/internal/errors"
	"github.com/ammarkh95/go-analog/internal/recorder"
)

type captureSummary struct {
	ID         string  `json:"id"`
	Instrument string  `json:"instrument"`
	Channel    int     `json:"channel"`
	SampleRate float64 `json:"sample_rate"`
	Length     int     `json:"length"`
	Note       string  `json:"note,omitempty"`
	CreatedAt  int64   `json:"created_at"`
}

func summarize(cap *recorder.Capture) captureSummary {
	return captureSummary{
		ID:         cap.ID,
		Instrument: cap.Instrument,
		Channel:    cap.Channel,
		SampleRate: cap.SampleRate,
		Length:     len(cap.Samples) / 8,
		Note:       cap.Note,
		CreatedAt:  cap.CreatedAt.Unix(),
	}
}

func (r *Router) listCaptures(c *gin.Context) {
	if !r.requireStore(c) {
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil {
		respondError(c, apperrors.Wrap(err, apperrors.ErrInvalidParam, "limit"))
		return
	}

	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil {
		respondError(c, apperrors.Wrap(err, apperrors.ErrInvalidParam, "offset"))
		return
	}

	var captures []recorder.Capture
	if instrument := c.Query("instrument"); instrument != "" {
		captures, err = r.store.ListByInstrument(instrument, limit, offset)
	} else {
		captures, err = r.store.List(limit, offset)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	summaries := make([]captureSummary, len(captures))
	for i := range captures {
		summaries[i] = summarize(&captures[i])
	}
	respondOK(c, gin.H{"captures": summaries, "count": len(summaries)})
}

func (r *Router) getCapture(c *gin.Context) {
	if !r.requireStore(c) {
		return
	}

	cap, err := r.store.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, gin.H{
		"capture": summarize(cap),
		"samples": recorder.DecodeSamples(cap.Samples),
	})
}

func (r *Router) deleteCapture(c *gin.Context) {
	if !r.requireStore(c) {
		return
	}

	id := c.Param("id")
	if err := r.store.Delete(id); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"deleted": id})
}
