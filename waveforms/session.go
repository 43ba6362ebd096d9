package waveforms

import "context"

// ScopeWaveGenSession couples the waveform generator and the scope
// for stimulus-response measurements. The device is acquired on
// creation and fully released on Close; any use after Close fails
// with a not-acquired error.
type ScopeWaveGenSession struct {
	dev *Device
}

// NewScopeWaveGenSession acquires a device for generator and scope
// use.
func NewScopeWaveGenSession(deviceIndex, configNumber int) (*ScopeWaveGenSession, error) {
	dev, err := Open(deviceIndex, configNumber)
	if err != nil {
		return nil, err
	}
	return &ScopeWaveGenSession{dev: dev}, nil
}

// Device exposes the underlying device for advanced use.
func (s *ScopeWaveGenSession) Device() *Device { return s.dev }

// Play starts a waveform on a generator channel.
func (s *ScopeWaveGenSession) Play(out AnalogOutput, cfg SignalConfig) error {
	return s.dev.PlaySignal(out, cfg)
}

// Stop stops a generator channel.
func (s *ScopeWaveGenSession) Stop(out AnalogOutput) error {
	return s.dev.StopSignal(out)
}

// Acquire performs one single-shot acquisition on a scope channel.
func (s *ScopeWaveGenSession) Acquire(ctx context.Context, in AnalogInput, cfg RecordingConfig) ([]float64, error) {
	return s.dev.SingleAcquisition(ctx, in, cfg)
}

// Record configures, arms and reads a recording on a scope channel.
func (s *ScopeWaveGenSession) Record(ctx context.Context, in AnalogInput, cfg RecordingConfig) ([]float64, error) {
	cfg.Mode = AcquisitionRecord
	if err := s.dev.ConfigureScope(cfg); err != nil {
		return nil, err
	}
	if err := s.dev.StartScope(); err != nil {
		return nil, err
	}
	defer s.dev.StopScope()

	return s.dev.Record(ctx, in, cfg.BufferSize)
}

// Close stops both generator channels, stops the scope and releases
// the device. A second Close fails with ErrNotAcquired.
func (s *ScopeWaveGenSession) Close() error {
	if err := s.dev.checkClosable(); err != nil {
		return err
	}
	s.dev.StopSignal(WaveGen1)
	s.dev.StopSignal(WaveGen2)
	s.dev.StopScope()
	return s.dev.Close()
}

// PowerSupplySession scopes the programmable supplies: the rails are
// programmed and enabled on creation and switched off on Close.
type PowerSupplySession struct {
	dev *Device
}

// NewPowerSupplySession acquires a device and enables both rails at
// the given voltages.
func NewPowerSupplySession(deviceIndex, configNumber int, positive, negative float64) (*PowerSupplySession, error) {
	dev, err := Open(deviceIndex, configNumber)
	if err != nil {
		return nil, err
	}
	if err := dev.SetSupplies(positive, negative); err != nil {
		dev.Close()
		return nil, err
	}
	return &PowerSupplySession{dev: dev}, nil
}

// Set reprograms both rails.
func (s *PowerSupplySession) Set(positive, negative float64) error {
	return s.dev.SetSupplies(positive, negative)
}

// Status reads back the supply state.
func (s *PowerSupplySession) Status() (SuppliesStatus, error) {
	return s.dev.Supplies()
}

// Close disables the rails and releases the device. A second Close
// fails with ErrNotAcquired.
func (s *PowerSupplySession) Close() error {
	if err := s.dev.checkClosable(); err != nil {
		return err
	}
	s.dev.DisableSupplies()
	return s.dev.Close()
}

// DigitalIOSession scopes the 16 digital pins. Pin directions are
// programmed on creation and all outputs are released on Close.
type DigitalIOSession struct {
	dev *Device
}

// NewDigitalIOSession acquires a device and configures pin
// directions. A set bit in directions makes that pin an output.
func NewDigitalIOSession(deviceIndex, configNumber int, directions uint16) (*DigitalIOSession, error) {
	dev, err := Open(deviceIndex, configNumber)
	if err != nil {
		return nil, err
	}
	if err := dev.SetDigitalDirections(directions); err != nil {
		dev.Close()
		return nil, err
	}
	return &DigitalIOSession{dev: dev}, nil
}

// Write drives all output pins from a mask.
func (s *DigitalIOSession) Write(mask uint16) error {
	return s.dev.WriteDigital(mask)
}

// Read returns the state of all 16 pins.
func (s *DigitalIOSession) Read() (uint16, error) {
	return s.dev.ReadDigital()
}

// WritePin drives a single pin.
func (s *DigitalIOSession) WritePin(pin DigitalPin, high bool) error {
	return s.dev.WritePin(pin, high)
}

// ReadPin returns the level of a single pin.
func (s *DigitalIOSession) ReadPin(pin DigitalPin) (bool, error) {
	return s.dev.ReadPin(pin)
}

// Close releases all pins back to inputs and releases the device. A
// second Close fails with ErrNotAcquired.
func (s *DigitalIOSession) Close() error {
	if err := s.dev.checkClosable(); err != nil {
		return err
	}
	s.dev.WriteDigital(0)
	s.dev.SetDigitalDirections(0)
	return s.dev.Close()
}
