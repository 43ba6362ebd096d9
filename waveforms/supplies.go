package waveforms

import (
	"go.uber.org/zap"
)

// SuppliesStatus reflects the programmable power supply state.
type SuppliesStatus struct {
	Enabled         bool    `json:"enabled"`
	PositiveVoltage float64 `json:"positive_voltage"`
	NegativeVoltage float64 `json:"negative_voltage"`
	USBVoltage      float64 `json:"usb_voltage"`
	USBCurrent      float64 `json:"usb_current"`
}

// SetSupplies programs and enables both power supply rails. Voltages
// outside the hardware rails are clamped, positive to [0, 5] and
// negative to [-5, 0].
func (d *Device) SetSupplies(positive, negative float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkAcquired(); err != nil {
		return err
	}

	clampedPos := clamp(positive, 0, SupplyPositiveMax)
	clampedNeg := clamp(negative, SupplyNegativeMin, 0)
	if clampedPos != positive || clampedNeg != negative {
		d.log.Warn("supply voltage clamped to rail",
			zap.Float64("requested_positive", positive),
			zap.Float64("requested_negative", negative),
			zap.Float64("positive", clampedPos),
			zap.Float64("negative", clampedNeg))
	}

	if err := d.backend.SuppliesConfigure(clampedPos, clampedNeg, true); err != nil {
		return err
	}

	d.log.Info("supplies enabled",
		zap.Float64("positive", clampedPos),
		zap.Float64("negative", clampedNeg))
	return nil
}

// DisableSupplies switches both rails off.
func (d *Device) DisableSupplies() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkAcquired(); err != nil {
		return err
	}
	if err := d.backend.SuppliesConfigure(0, 0, false); err != nil {
		return err
	}
	d.log.Info("supplies disabled")
	return nil
}

// Supplies reads back the supply state including the USB monitor.
func (d *Device) Supplies() (SuppliesStatus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkAcquired(); err != nil {
		return SuppliesStatus{}, err
	}

	st, err := d.backend.SuppliesStatus()
	if err != nil {
		return SuppliesStatus{}, err
	}
	return SuppliesStatus{
		Enabled:         st.Enabled,
		PositiveVoltage: st.PositiveVoltage,
		NegativeVoltage: st.NegativeVoltage,
		USBVoltage:      st.USBVoltage,
		USBCurrent:      st.USBCurrent,
	}, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
