//go:build dwf
// +build dwf

package dwf

/*
#cgo LDFLAGS: -ldwf
#include <stdlib.h>
#include <dwf.h>
*/
import "C"

import (
	"sync"

	"go.uber.org/zap"

	apperrors "github.com/ammarkh95/go-analog/internal/errors"
	"github.com/ammarkh95/go-analog/internal/logger"
)

func lastError() string {
	var buf [512]C.char
	C.FDwfGetLastErrorMsg(&buf[0])
	return C.GoString(&buf[0])
}

func sdkErr(call string) error {
	return apperrors.Newf(apperrors.ErrSDKFailure, "%s: %s", call, lastError())
}

// Enumerate lists attached WaveForms devices.
func Enumerate() ([]DeviceInfo, error) {
	var count C.int
	if C.FDwfEnum(C.enumfilterAll, &count) == 0 {
		return nil, sdkErr("FDwfEnum")
	}

	devices := make([]DeviceInfo, 0, int(count))
	for i := C.int(0); i < count; i++ {
		var name, sn [32]C.char
		var inUse C.int
		C.FDwfEnumDeviceName(i, &name[0])
		C.FDwfEnumSN(i, &sn[0])
		C.FDwfEnumDeviceIsOpened(i, &inUse)
		devices = append(devices, DeviceInfo{
			Index:        int(i),
			Name:         C.GoString(&name[0]),
			SerialNumber: C.GoString(&sn[0]),
			InUse:        inUse != 0,
		})
	}
	return devices, nil
}

// Open acquires a device. deviceIndex -1 opens the first device found,
// configIndex -1 uses the default configuration profile.
func Open(deviceIndex, configIndex int) (Device, error) {
	var hdwf C.HDWF
	var ok C.int
	if configIndex >= 0 {
		ok = C.FDwfDeviceConfigOpen(C.int(deviceIndex), C.int(configIndex), &hdwf)
	} else {
		ok = C.FDwfDeviceOpen(C.int(deviceIndex), &hdwf)
	}
	if ok == 0 || hdwf == C.hdwfNone {
		return nil, apperrors.Newf(apperrors.ErrDeviceNotFound,
			"device index %d: %s", deviceIndex, lastError())
	}

	d := &cgoDevice{
		hdwf: hdwf,
		log:  logger.WithModule("dwf"),
	}

	var name, sn [32]C.char
	if deviceIndex >= 0 {
		C.FDwfEnumDeviceName(C.int(deviceIndex), &name[0])
		C.FDwfEnumSN(C.int(deviceIndex), &sn[0])
		d.name = C.GoString(&name[0])
		d.serial = C.GoString(&sn[0])
	}

	d.log.Info("device opened",
		zap.Int("device_index", deviceIndex),
		zap.Int("config_index", configIndex),
		zap.String("serial", d.serial))

	return d, nil
}

type cgoDevice struct {
	mu     sync.Mutex
	hdwf   C.HDWF
	name   string
	serial string
	log    *zap.Logger
	closed bool
	scope  ScopeConfig
}

func (d *cgoDevice) Name() string         { return d.name }
func (d *cgoDevice) SerialNumber() string { return d.serial }

func (d *cgoDevice) checkOpen() error {
	if d.closed {
		return apperrors.New(apperrors.ErrNotAcquired)
	}
	return nil
}

func (d *cgoDevice) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return err
	}
	if C.FDwfDeviceReset(d.hdwf) == 0 {
		return sdkErr("FDwfDeviceReset")
	}
	return nil
}

func (d *cgoDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return err
	}
	C.FDwfDeviceReset(d.hdwf)
	if C.FDwfDeviceClose(d.hdwf) == 0 {
		return sdkErr("FDwfDeviceClose")
	}
	d.closed = true
	d.log.Info("device closed")
	return nil
}

func (d *cgoDevice) Config() (ConfigInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return ConfigInfo{}, err
	}

	var info ConfigInfo
	var n C.int
	if C.FDwfAnalogInChannelCount(d.hdwf, &n) == 0 {
		return ConfigInfo{}, sdkErr("FDwfAnalogInChannelCount")
	}
	info.AnalogInChannels = int(n)
	if C.FDwfAnalogOutCount(d.hdwf, &n) == 0 {
		return ConfigInfo{}, sdkErr("FDwfAnalogOutCount")
	}
	info.AnalogOutChannels = int(n)
	if C.FDwfDigitalInBitsInfo(d.hdwf, &n) == 0 {
		return ConfigInfo{}, sdkErr("FDwfDigitalInBitsInfo")
	}
	info.DigitalIOChannels = int(n)
	var min, max C.int
	if C.FDwfAnalogInBufferSizeInfo(d.hdwf, &min, &max) == 0 {
		return ConfigInfo{}, sdkErr("FDwfAnalogInBufferSizeInfo")
	}
	info.AnalogInBufferSize = int(max)
	return info, nil
}

func (d *cgoDevice) ADCBits() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return 0, err
	}
	var bits C.int
	if C.FDwfAnalogInBitsInfo(d.hdwf, &bits) == 0 {
		return 0, sdkErr("FDwfAnalogInBitsInfo")
	}
	return int(bits), nil
}

func (d *cgoDevice) WaveGenConfigure(channel int, cfg WaveGenConfig) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return err
	}

	ch := C.int(channel)
	node := C.AnalogOutNodeCarrier
	if C.FDwfAnalogOutNodeEnableSet(d.hdwf, ch, node, 1) == 0 {
		return sdkErr("FDwfAnalogOutNodeEnableSet")
	}
	if C.FDwfAnalogOutNodeFunctionSet(d.hdwf, ch, node, C.FUNC(cfg.Function)) == 0 {
		return sdkErr("FDwfAnalogOutNodeFunctionSet")
	}
	if C.FDwfAnalogOutNodeFrequencySet(d.hdwf, ch, node, C.double(cfg.Frequency)) == 0 {
		return sdkErr("FDwfAnalogOutNodeFrequencySet")
	}
	if C.FDwfAnalogOutNodeAmplitudeSet(d.hdwf, ch, node, C.double(cfg.Amplitude)) == 0 {
		return sdkErr("FDwfAnalogOutNodeAmplitudeSet")
	}
	if C.FDwfAnalogOutNodeOffsetSet(d.hdwf, ch, node, C.double(cfg.Offset)) == 0 {
		return sdkErr("FDwfAnalogOutNodeOffsetSet")
	}
	if C.FDwfAnalogOutNodeSymmetrySet(d.hdwf, ch, node, C.double(cfg.Symmetry)) == 0 {
		return sdkErr("FDwfAnalogOutNodeSymmetrySet")
	}
	if C.FDwfAnalogOutNodePhaseSet(d.hdwf, ch, node, C.double(cfg.Phase)) == 0 {
		return sdkErr("FDwfAnalogOutNodePhaseSet")
	}

	if len(cfg.Data) > 0 {
		buf := make([]C.double, len(cfg.Data))
		for i, v := range cfg.Data {
			buf[i] = C.double(v)
		}
		if C.FDwfAnalogOutNodeDataSet(d.hdwf, ch, node, &buf[0], C.int(len(buf))) == 0 {
			return sdkErr("FDwfAnalogOutNodeDataSet")
		}
	}

	if C.FDwfAnalogOutRunSet(d.hdwf, ch, C.double(cfg.RunSeconds)) == 0 {
		return sdkErr("FDwfAnalogOutRunSet")
	}
	if C.FDwfAnalogOutWaitSet(d.hdwf, ch, C.double(cfg.WaitSeconds)) == 0 {
		return sdkErr("FDwfAnalogOutWaitSet")
	}
	if C.FDwfAnalogOutRepeatSet(d.hdwf, ch, C.int(cfg.Repeat)) == 0 {
		return sdkErr("FDwfAnalogOutRepeatSet")
	}
	if C.FDwfAnalogOutIdleSet(d.hdwf, ch, C.DwfAnalogOutIdle(cfg.Idle)) == 0 {
		return sdkErr("FDwfAnalogOutIdleSet")
	}
	return nil
}

func (d *cgoDevice) WaveGenStart(channel int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return err
	}
	if C.FDwfAnalogOutConfigure(d.hdwf, C.int(channel), 1) == 0 {
		return sdkErr("FDwfAnalogOutConfigure")
	}
	return nil
}

func (d *cgoDevice) WaveGenStop(channel int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return err
	}
	if C.FDwfAnalogOutConfigure(d.hdwf, C.int(channel), 0) == 0 {
		return sdkErr("FDwfAnalogOutConfigure")
	}
	return nil
}

func (d *cgoDevice) ScopeConfigure(cfg ScopeConfig) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return err
	}

	if C.FDwfAnalogInFrequencySet(d.hdwf, C.double(cfg.SampleRate)) == 0 {
		return sdkErr("FDwfAnalogInFrequencySet")
	}
	if C.FDwfAnalogInBufferSizeSet(d.hdwf, C.int(cfg.BufferSize)) == 0 {
		return sdkErr("FDwfAnalogInBufferSizeSet")
	}
	if C.FDwfAnalogInAcquisitionModeSet(d.hdwf, C.ACQMODE(cfg.Mode)) == 0 {
		return sdkErr("FDwfAnalogInAcquisitionModeSet")
	}
	if cfg.Mode == AcqModeRecord {
		if C.FDwfAnalogInRecordLengthSet(d.hdwf, C.double(cfg.RecordLength)) == 0 {
			return sdkErr("FDwfAnalogInRecordLengthSet")
		}
	}

	// all channels share range, offset and filter
	if C.FDwfAnalogInChannelEnableSet(d.hdwf, -1, 1) == 0 {
		return sdkErr("FDwfAnalogInChannelEnableSet")
	}
	if C.FDwfAnalogInChannelRangeSet(d.hdwf, -1, C.double(cfg.Range)) == 0 {
		return sdkErr("FDwfAnalogInChannelRangeSet")
	}
	if C.FDwfAnalogInChannelOffsetSet(d.hdwf, -1, C.double(cfg.Offset)) == 0 {
		return sdkErr("FDwfAnalogInChannelOffsetSet")
	}
	if C.FDwfAnalogInChannelFilterSet(d.hdwf, -1, C.FILTER(cfg.Filter)) == 0 {
		return sdkErr("FDwfAnalogInChannelFilterSet")
	}

	if C.FDwfAnalogInTriggerSourceSet(d.hdwf, C.TRIGSRC(cfg.TriggerSource)) == 0 {
		return sdkErr("FDwfAnalogInTriggerSourceSet")
	}
	if cfg.TriggerSource != TrigSrcNone {
		if C.FDwfAnalogInTriggerTypeSet(d.hdwf, C.TRIGTYPE(cfg.TriggerType)) == 0 {
			return sdkErr("FDwfAnalogInTriggerTypeSet")
		}
		if C.FDwfAnalogInTriggerChannelSet(d.hdwf, C.int(cfg.TriggerChannel)) == 0 {
			return sdkErr("FDwfAnalogInTriggerChannelSet")
		}
		if C.FDwfAnalogInTriggerLevelSet(d.hdwf, C.double(cfg.TriggerLevel)) == 0 {
			return sdkErr("FDwfAnalogInTriggerLevelSet")
		}
		if C.FDwfAnalogInTriggerConditionSet(d.hdwf, C.DwfTriggerSlope(cfg.TriggerSlope)) == 0 {
			return sdkErr("FDwfAnalogInTriggerConditionSet")
		}
		if C.FDwfAnalogInTriggerAutoTimeoutSet(d.hdwf, C.double(cfg.TriggerTimeout)) == 0 {
			return sdkErr("FDwfAnalogInTriggerAutoTimeoutSet")
		}
	}

	d.scope = cfg
	return nil
}

func (d *cgoDevice) ScopeStart() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return err
	}
	if C.FDwfAnalogInConfigure(d.hdwf, 0, 1) == 0 {
		return sdkErr("FDwfAnalogInConfigure")
	}
	return nil
}

func (d *cgoDevice) ScopeStatus() (State, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return StateReady, err
	}
	var state C.DwfState
	if C.FDwfAnalogInStatus(d.hdwf, 1, &state) == 0 {
		return StateReady, sdkErr("FDwfAnalogInStatus")
	}
	return State(state), nil
}

func (d *cgoDevice) ScopeSamples(channel int, n int) ([]float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, apperrors.Newf(apperrors.ErrInvalidParam, "sample count %d", n)
	}

	buf := make([]C.double, n)
	if C.FDwfAnalogInStatusData(d.hdwf, C.int(channel), &buf[0], C.int(n)) == 0 {
		return nil, sdkErr("FDwfAnalogInStatusData")
	}

	samples := make([]float64, n)
	for i, v := range buf {
		samples[i] = float64(v)
	}
	return samples, nil
}

func (d *cgoDevice) ScopeChannelEnable(channel int, enable bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return err
	}
	var en C.int
	if enable {
		en = 1
	}
	if C.FDwfAnalogInChannelEnableSet(d.hdwf, C.int(channel), en) == 0 {
		return sdkErr("FDwfAnalogInChannelEnableSet")
	}
	return nil
}

func (d *cgoDevice) ScopeRecordStatus() (int, int, int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return 0, 0, 0, err
	}
	var state C.DwfState
	if C.FDwfAnalogInStatus(d.hdwf, 1, &state) == 0 {
		return 0, 0, 0, sdkErr("FDwfAnalogInStatus")
	}
	var avail, lost, corrupt C.int
	if C.FDwfAnalogInStatusRecord(d.hdwf, &avail, &lost, &corrupt) == 0 {
		return 0, 0, 0, sdkErr("FDwfAnalogInStatusRecord")
	}
	return int(avail), int(lost), int(corrupt), nil
}

func (d *cgoDevice) ScopeReadRecorded(channel, n int) ([]float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, apperrors.Newf(apperrors.ErrInvalidParam, "sample count %d", n)
	}

	buf := make([]C.double, n)
	if C.FDwfAnalogInStatusData(d.hdwf, C.int(channel), &buf[0], C.int(n)) == 0 {
		return nil, sdkErr("FDwfAnalogInStatusData")
	}
	samples := make([]float64, n)
	for i, v := range buf {
		samples[i] = float64(v)
	}
	return samples, nil
}

func (d *cgoDevice) ScopeStop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return err
	}
	if C.FDwfAnalogInConfigure(d.hdwf, 0, 0) == 0 {
		return sdkErr("FDwfAnalogInConfigure")
	}
	return nil
}

// Analog IO layout of the Analog Discovery: channel 0 is the positive
// supply, channel 1 the negative supply, channel 2 the USB monitor.
// Node 0 of a supply channel enables it, node 1 carries the voltage.
func (d *cgoDevice) SuppliesConfigure(positive, negative float64, enabled bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return err
	}

	var en C.double
	if enabled {
		en = 1
	}
	if C.FDwfAnalogIOChannelNodeSet(d.hdwf, 0, 0, en) == 0 {
		return sdkErr("FDwfAnalogIOChannelNodeSet")
	}
	if C.FDwfAnalogIOChannelNodeSet(d.hdwf, 0, 1, C.double(positive)) == 0 {
		return sdkErr("FDwfAnalogIOChannelNodeSet")
	}
	if C.FDwfAnalogIOChannelNodeSet(d.hdwf, 1, 0, en) == 0 {
		return sdkErr("FDwfAnalogIOChannelNodeSet")
	}
	if C.FDwfAnalogIOChannelNodeSet(d.hdwf, 1, 1, C.double(negative)) == 0 {
		return sdkErr("FDwfAnalogIOChannelNodeSet")
	}
	var master C.int
	if enabled {
		master = 1
	}
	if C.FDwfAnalogIOEnableSet(d.hdwf, master) == 0 {
		return sdkErr("FDwfAnalogIOEnableSet")
	}
	return nil
}

func (d *cgoDevice) SuppliesStatus() (SuppliesStatus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return SuppliesStatus{}, err
	}

	if C.FDwfAnalogIOStatus(d.hdwf) == 0 {
		return SuppliesStatus{}, sdkErr("FDwfAnalogIOStatus")
	}

	var st SuppliesStatus
	var enabled C.int
	if C.FDwfAnalogIOEnableStatus(d.hdwf, &enabled) == 0 {
		return SuppliesStatus{}, sdkErr("FDwfAnalogIOEnableStatus")
	}
	st.Enabled = enabled != 0

	var v C.double
	if C.FDwfAnalogIOChannelNodeStatus(d.hdwf, 0, 1, &v) == 0 {
		return SuppliesStatus{}, sdkErr("FDwfAnalogIOChannelNodeStatus")
	}
	st.PositiveVoltage = float64(v)
	if C.FDwfAnalogIOChannelNodeStatus(d.hdwf, 1, 1, &v) == 0 {
		return SuppliesStatus{}, sdkErr("FDwfAnalogIOChannelNodeStatus")
	}
	st.NegativeVoltage = float64(v)
	if C.FDwfAnalogIOChannelNodeStatus(d.hdwf, 2, 0, &v) == 0 {
		return SuppliesStatus{}, sdkErr("FDwfAnalogIOChannelNodeStatus")
	}
	st.USBVoltage = float64(v)
	if C.FDwfAnalogIOChannelNodeStatus(d.hdwf, 2, 1, &v) == 0 {
		return SuppliesStatus{}, sdkErr("FDwfAnalogIOChannelNodeStatus")
	}
	st.USBCurrent = float64(v)

	return st, nil
}

func (d *cgoDevice) DigitalSetEnableMask(mask uint16) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return err
	}
	if C.FDwfDigitalIOOutputEnableSet(d.hdwf, C.uint(mask)) == 0 {
		return sdkErr("FDwfDigitalIOOutputEnableSet")
	}
	return nil
}

func (d *cgoDevice) DigitalWrite(mask uint16) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return err
	}
	if C.FDwfDigitalIOOutputSet(d.hdwf, C.uint(mask)) == 0 {
		return sdkErr("FDwfDigitalIOOutputSet")
	}
	return nil
}

func (d *cgoDevice) DigitalRead() (uint16, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return 0, err
	}
	if C.FDwfDigitalIOStatus(d.hdwf) == 0 {
		return 0, sdkErr("FDwfDigitalIOStatus")
	}
	var pins C.uint
	if C.FDwfDigitalIOInputStatus(d.hdwf, &pins) == 0 {
		return 0, sdkErr("FDwfDigitalIOInputStatus")
	}
	return uint16(pins), nil
}
