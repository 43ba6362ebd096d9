// Package waveforms drives Digilent Analog Discovery devices: the
// waveform generator, the oscilloscope, the programmable power
// supplies and the 16 digital IO pins. Scoped sessions acquire a
// device on creation and release it on Close, so a test never leaves
// an instrument running.
package waveforms

import (
	"sync"

	"go.uber.org/zap"

	"github.com/ammarkh95/go-analog/internal/dwf"
	apperrors "github.com/ammarkh95/go-analog/internal/errors"
	"github.com/ammarkh95/go-analog/internal/logger"
)

// Voltage rails of the Analog Discovery.
const (
	SupplyPositiveMax = 5.0
	SupplyNegativeMin = -5.0
	OutputVoltageMax  = 5.0
	OutputVoltageMin  = -5.0
)

// DeviceInfo describes one enumerated device.
type DeviceInfo struct {
	Index        int    `json:"index"`
	Name         string `json:"name"`
	SerialNumber string `json:"serial_number"`
	InUse        bool   `json:"in_use"`
}

// Enumerate lists all attached Analog Discovery devices without
// opening them.
func Enumerate() ([]DeviceInfo, error) {
	backends, err := dwf.Enumerate()
	if err != nil {
		return nil, err
	}
	infos := make([]DeviceInfo, len(backends))
	for i, b := range backends {
		infos[i] = DeviceInfo{
			Index:        b.Index,
			Name:         b.Name,
			SerialNumber: b.SerialNumber,
			InUse:        b.InUse,
		}
	}
	return infos, nil
}

// Device is one acquired Analog Discovery.
type Device struct {
	mu      sync.Mutex
	backend dwf.Device
	log     *zap.Logger

	acquired        bool
	scopeConfigured bool
	scopeRunning    bool
	recording       bool
	scopeConfig     RecordingConfig
	inputDisabled   [4]bool
	wavegenRunning  [2]bool
	digitalEnable   uint16
}

// Open acquires a device. deviceIndex -1 opens the first device found,
// configNumber -1 uses the default device configuration profile.
func Open(deviceIndex, configNumber int) (*Device, error) {
	backend, err := dwf.Open(deviceIndex, configNumber)
	if err != nil {
		return nil, err
	}

	d := &Device{
		backend:  backend,
		log:      logger.WithModule("waveforms"),
		acquired: true,
	}

	d.log.Info("analog discovery acquired",
		zap.String("name", backend.Name()),
		zap.String("serial", backend.SerialNumber()))

	return d, nil
}

// Name returns the device product name.
func (d *Device) Name() string {
	return d.backend.Name()
}

// SerialNumber returns the device serial number.
func (d *Device) SerialNumber() string {
	return d.backend.SerialNumber()
}

// Close resets all instruments and releases the device. A second
// Close fails with ErrNotAcquired, like any other call on a released
// device.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.checkAcquired(); err != nil {
		return err
	}
	d.acquired = false
	d.scopeConfigured = false
	d.scopeRunning = false
	d.recording = false

	if err := d.backend.Close(); err != nil {
		return err
	}
	d.log.Info("analog discovery released")
	return nil
}

// Reset returns every instrument to its default state while keeping
// the device acquired.
func (d *Device) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkAcquired(); err != nil {
		return err
	}
	d.scopeConfigured = false
	d.scopeRunning = false
	d.recording = false
	d.inputDisabled = [4]bool{}
	d.wavegenRunning = [2]bool{}
	d.digitalEnable = 0
	return d.backend.Reset()
}

// DeviceConfig describes the acquired device's instrument resources.
type DeviceConfig struct {
	AnalogInChannels   int `json:"analog_in_channels"`
	AnalogOutChannels  int `json:"analog_out_channels"`
	DigitalIOChannels  int `json:"digital_io_channels"`
	AnalogInBufferSize int `json:"analog_in_buffer_size"`
}

// Info describes the device's instrument resources.
func (d *Device) Info() (DeviceConfig, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkAcquired(); err != nil {
		return DeviceConfig{}, err
	}
	info, err := d.backend.Config()
	if err != nil {
		return DeviceConfig{}, err
	}
	return DeviceConfig{
		AnalogInChannels:   info.AnalogInChannels,
		AnalogOutChannels:  info.AnalogOutChannels,
		DigitalIOChannels:  info.DigitalIOChannels,
		AnalogInBufferSize: info.AnalogInBufferSize,
	}, nil
}

// ADCBits returns the scope converter resolution.
func (d *Device) ADCBits() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkAcquired(); err != nil {
		return 0, err
	}
	return d.backend.ADCBits()
}

func (d *Device) checkAcquired() error {
	if !d.acquired {
		return apperrors.New(apperrors.ErrNotAcquired)
	}
	return nil
}

// checkClosable is checkAcquired under the lock, for sessions that
// run their own teardown sequence before Close.
func (d *Device) checkClosable() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.checkAcquired()
}
