package waveforms

import (
	"go.uber.org/zap"

	apperrors "github.com/ammarkh95/go-analog/internal/errors"
)

// SetDigitalDirections marks pins as outputs via a 16-bit mask. A set
// bit makes the pin an output, a clear bit an input.
func (d *Device) SetDigitalDirections(mask uint16) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkAcquired(); err != nil {
		return err
	}
	if err := d.backend.DigitalSetEnableMask(mask); err != nil {
		return err
	}
	d.digitalEnable = mask
	d.log.Debug("digital directions set", zap.Uint16("mask", mask))
	return nil
}

// WriteDigital drives all output pins from a 16-bit mask. Bits of
// pins configured as inputs are ignored by the hardware.
func (d *Device) WriteDigital(mask uint16) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkAcquired(); err != nil {
		return err
	}
	if err := d.backend.DigitalWrite(mask); err != nil {
		return err
	}
	d.log.Debug("digital outputs written", zap.Uint16("mask", mask))
	return nil
}

// ReadDigital returns the state of all 16 pins as a mask.
func (d *Device) ReadDigital() (uint16, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkAcquired(); err != nil {
		return 0, err
	}
	return d.backend.DigitalRead()
}

// SetPinOutput configures a single pin as output or input without
// touching the others.
func (d *Device) SetPinOutput(pin DigitalPin, output bool) error {
	if !pin.valid() {
		return apperrors.Newf(apperrors.ErrInvalidParam, "digital pin %d", int(pin))
	}

	d.mu.Lock()
	mask := d.digitalEnable
	d.mu.Unlock()

	if output {
		mask |= pin.Mask()
	} else {
		mask &^= pin.Mask()
	}
	return d.SetDigitalDirections(mask)
}

// WritePin drives a single output pin high or low.
func (d *Device) WritePin(pin DigitalPin, high bool) error {
	if !pin.valid() {
		return apperrors.Newf(apperrors.ErrInvalidParam, "digital pin %d", int(pin))
	}

	current, err := d.ReadDigital()
	if err != nil {
		return err
	}
	mask := current
	if high {
		mask |= pin.Mask()
	} else {
		mask &^= pin.Mask()
	}
	return d.WriteDigital(mask)
}

// ReadPin returns the level of a single pin.
func (d *Device) ReadPin(pin DigitalPin) (bool, error) {
	if !pin.valid() {
		return false, apperrors.Newf(apperrors.ErrInvalidParam, "digital pin %d", int(pin))
	}
	mask, err := d.ReadDigital()
	if err != nil {
		return false, err
	}
	return mask&pin.Mask() != 0, nil
}
