// Package harness provides test fixtures for bench instruments. Each
// helper acquires a device scoped to the test: the instrument is
// opened with values from the toolkit configuration and released
// through t.Cleanup, so a failing test never leaves an output
// driving the board under test.
package harness

import (
	"context"
	"testing"
	"time"

	"github.com/ammarkh95/go-analog/internal/config"
	"github.com/ammarkh95/go-analog/internal/recorder"
	"github.com/ammarkh95/go-analog/smu"
	"github.com/ammarkh95/go-analog/waveforms"
)

// settleTime is how long sourced outputs stabilize before the first
// measurement.
const settleTime = 100 * time.Millisecond

// Config returns the toolkit configuration, loading defaults when no
// file is present.
func Config(t *testing.T) *config.Config {
	t.Helper()
	if err := config.Init(""); err != nil {
		t.Fatalf("loading configuration: %v", err)
	}
	return config.Get()
}

// AnalogDiscovery acquires an Analog Discovery for the test.
func AnalogDiscovery(t *testing.T) *waveforms.Device {
	t.Helper()
	cfg := Config(t)

	dev, err := waveforms.Open(cfg.AnalogDiscovery.DeviceIndex, cfg.AnalogDiscovery.ConfigNumber)
	if err != nil {
		t.Fatalf("acquiring analog discovery: %v", err)
	}
	t.Cleanup(func() {
		if err := dev.Close(); err != nil {
			t.Errorf("releasing analog discovery: %v", err)
		}
	})
	return dev
}

// ScopeWaveGen opens a generator and scope session for the test.
func ScopeWaveGen(t *testing.T) *waveforms.ScopeWaveGenSession {
	t.Helper()
	cfg := Config(t)

	session, err := waveforms.NewScopeWaveGenSession(
		cfg.AnalogDiscovery.DeviceIndex, cfg.AnalogDiscovery.ConfigNumber)
	if err != nil {
		t.Fatalf("opening scope session: %v", err)
	}
	t.Cleanup(func() {
		if err := session.Close(); err != nil {
			t.Errorf("closing scope session: %v", err)
		}
	})
	return session
}

// Supplies powers the configured rails for the test and switches them
// off afterwards.
func Supplies(t *testing.T) *waveforms.PowerSupplySession {
	t.Helper()
	cfg := Config(t)

	session, err := waveforms.NewPowerSupplySession(
		cfg.AnalogDiscovery.DeviceIndex, cfg.AnalogDiscovery.ConfigNumber,
		cfg.AnalogDiscovery.Supplies.PositiveVoltage,
		cfg.AnalogDiscovery.Supplies.NegativeVoltage)
	if err != nil {
		t.Fatalf("enabling supplies: %v", err)
	}
	t.Cleanup(func() {
		if err := session.Close(); err != nil {
			t.Errorf("disabling supplies: %v", err)
		}
	})
	return session
}

// DigitalIO opens a digital IO session with the given pin directions.
func DigitalIO(t *testing.T, directions uint16) *waveforms.DigitalIOSession {
	t.Helper()
	cfg := Config(t)

	session, err := waveforms.NewDigitalIOSession(
		cfg.AnalogDiscovery.DeviceIndex, cfg.AnalogDiscovery.ConfigNumber, directions)
	if err != nil {
		t.Fatalf("opening digital io session: %v", err)
	}
	t.Cleanup(func() {
		if err := session.Close(); err != nil {
			t.Errorf("closing digital io session: %v", err)
		}
	})
	return session
}

// Recorder opens the capture archive for the test and closes it on
// cleanup. It returns nil when storage.enabled is false, so tests
// archive captures only on benches that opted in.
func Recorder(t *testing.T) *recorder.Store {
	t.Helper()
	cfg := Config(t)

	if !cfg.Storage.Enabled {
		return nil
	}
	store, err := recorder.Open(&cfg.Storage)
	if err != nil {
		t.Fatalf("opening capture archive: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("closing capture archive: %v", err)
		}
	})
	return store
}

// ArchiveSamples stores a captured buffer in the archive when one is
// open. A nil store makes it a no-op, so tests can archive
// unconditionally.
func ArchiveSamples(t *testing.T, store *recorder.Store, instrument string, channel int, sampleRate float64, samples []float64, note string) string {
	t.Helper()
	if store == nil {
		return ""
	}
	id, err := store.SaveSamples(instrument, channel, sampleRate, samples, note)
	if err != nil {
		t.Fatalf("archiving %s capture: %v", instrument, err)
	}
	return id
}

// SMU acquires an ADALM1000 for the test without programming the
// channels.
func SMU(t *testing.T) *smu.Device {
	t.Helper()
	cfg := Config(t)

	dev, err := smu.Open(cfg.ADALM1K.SampleRate, cfg.ADALM1K.QueueSize)
	if err != nil {
		t.Fatalf("acquiring adalm1000: %v", err)
	}
	t.Cleanup(func() {
		if err := dev.Close(); err != nil {
			t.Errorf("releasing adalm1000: %v", err)
		}
	})
	return dev
}

func sourceSession(t *testing.T, cfg smu.SourceConfig) *smu.SourceSession {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	session, err := smu.NewSourceSession(ctx, cfg)
	if err != nil {
		t.Fatalf("opening source session: %v", err)
	}
	t.Cleanup(func() {
		if err := session.Close(); err != nil {
			t.Errorf("closing source session: %v", err)
		}
	})
	return session
}

// SMUVoltageSource sources the configured voltages on both channels
// and starts the capture stream.
func SMUVoltageSource(t *testing.T) *smu.SourceSession {
	t.Helper()
	cfg := Config(t)

	return sourceSession(t, smu.SourceConfig{
		SampleRate: cfg.ADALM1K.SampleRate,
		QueueSize:  cfg.ADALM1K.QueueSize,
		ChannelA:   smu.ChannelSetup{Mode: smu.SVMI, Value: cfg.ADALM1K.ChannelAVoltage},
		ChannelB:   smu.ChannelSetup{Mode: smu.SVMI, Value: cfg.ADALM1K.ChannelBVoltage},
		Settle:     settleTime,
	})
}

// SMUCurrentSource sources the configured currents on both channels
// and starts the capture stream.
func SMUCurrentSource(t *testing.T) *smu.SourceSession {
	t.Helper()
	cfg := Config(t)

	return sourceSession(t, smu.SourceConfig{
		SampleRate: cfg.ADALM1K.SampleRate,
		QueueSize:  cfg.ADALM1K.QueueSize,
		ChannelA:   smu.ChannelSetup{Mode: smu.SIMV, Value: cfg.ADALM1K.ChannelACurrent},
		ChannelB:   smu.ChannelSetup{Mode: smu.SIMV, Value: cfg.ADALM1K.ChannelBCurrent},
		Settle:     settleTime,
	})
}
