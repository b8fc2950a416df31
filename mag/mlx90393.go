package mag

import (
	"context"
	"fmt"
	"math/bits"
	"sync"
	"time"

	"github.com/mklimuk/magneto"
)

// MLX90393 default 7-bit I2C address is 0x0C (A0 and A1 tied low).
const DefaultAddress = 0x0C

// Command map (per datasheet section 15)
//
//	0x1z: start burst mode on axes z
//	0x2z: start wake-on-change mode on axes z (not driven by this package)
//	0x3z: start single measurement on axes z
//	0x4z: read measurement for axes z (2 bytes per axis after the status byte)
//	0x50: read register, 0x60: write register
//	0xD0/0xE0: NV memory recall/store (not driven by this package)
const (
	cmdStartBurst    byte = 0x10
	cmdStartWOC      byte = 0x20
	cmdStartSingle   byte = 0x30
	cmdReadMeasure   byte = 0x40
	cmdReadRegister  byte = 0x50
	cmdWriteRegister byte = 0x60
	cmdExitMode      byte = 0x80
	cmdMemoryRecall  byte = 0xD0
	cmdMemoryStore   byte = 0xE0
	cmdReset         byte = 0xF0
)

// Status byte bit definitions:
// Bit7: BURST_MODE, Bit6: WOC_MODE, Bit5: SM_MODE, Bit4: ERROR, Bit3: SED
// Bit2: RS (set on the first read after reset), Bit1..0: response length field
// (masked off by the transaction layer, not meaningful to callers).
const (
	statusBurstMode byte = 0x80
	statusWOC       byte = 0x40
	statusSMMode    byte = 0x20
	statusError     byte = 0x10
	statusSED       byte = 0x08
	statusReset     byte = 0x04
	statusLenMask   byte = 0x03
)

var ErrStatus = fmt.Errorf("mlx90393: error flag set in status byte")
var ErrUnexpectedStatus = fmt.Errorf("mlx90393: unexpected status byte")
var ErrUnsupportedAxis = fmt.Errorf("mlx90393: unsupported axis")
var ErrShortBuffer = fmt.Errorf("mlx90393: output buffer smaller than requested axis count")

// Axis selects measurement channels; values match the ZYXT nibble of the
// burst/single/read commands and can be OR-ed into a mask.
type Axis byte

const (
	AxisT Axis = 0x01
	AxisX Axis = 0x02
	AxisY Axis = 0x04
	AxisZ Axis = 0x08

	// AxisAll covers the three magnetic axes. The temperature channel is not
	// supported by the conversion pipeline and is rejected by measurements.
	AxisAll = AxisX | AxisY | AxisZ
)

// Count returns the number of selected axes.
func (a Axis) Count() int {
	return bits.OnesCount8(byte(a))
}

// Gain is the analog chain gain selection (GAIN_SEL in CONF1). Higher values
// mean lower amplification; Gain1x is the least sensitive setting.
type Gain byte

const (
	Gain5x Gain = iota
	Gain4x
	Gain3x
	Gain2x5
	Gain2x
	Gain1x67
	Gain1x33
	Gain1x
)

// Resolution is the per-axis ADC resolution selection (RES_XYZ in CONF3).
// Res18 and Res19 shift the raw zero point; see calibration.go.
type Resolution byte

const (
	Res16 Resolution = iota
	Res17
	Res18
	Res19
)

// Filter is the digital filter setting (DIG_FILT in CONF3).
type Filter byte

const (
	Filter0 Filter = iota
	Filter1
	Filter2
	Filter3
	Filter4
	Filter5
	Filter6
	Filter7
)

// Oversampling is the magnetic sensor oversampling ratio (OSR in CONF3).
type Oversampling byte

const (
	OSR0 Oversampling = iota
	OSR1
	OSR2
	OSR3
)

type Opts struct {
	Address byte
	// ResetDelay is the settling time between the reset command write and the
	// status read back.
	ResetDelay time.Duration
	// ConversionMargin is added on top of the table conversion time before a
	// measurement is read back. Without it measurements are not always ready.
	ConversionMargin time.Duration
}

type Opt func(*Opts)

func WithAddress(addr byte) Opt {
	return func(o *Opts) {
		o.Address = addr
	}
}

func WithResetDelay(delay time.Duration) Opt {
	return func(o *Opts) {
		o.ResetDelay = delay
	}
}

func WithConversionMargin(margin time.Duration) Opt {
	return func(o *Opts) {
		o.ConversionMargin = margin
	}
}

// MLX90393 represents a Melexis MLX90393 triaxial magnetometer.
// Typical usage:
//
//	m := NewMLX90393(bus)
//	if err := m.Init(ctx); err != nil { ... }
//	x, y, z, err := m.ReadAll(ctx)
//
// Values are returned in microtesla. The session caches the gain, per-axis
// resolution, filter and oversampling last written to the device; the cache
// drives raw-count conversion, so a failed configuration write leaves it out
// of sync until the setting is written again.
//
// All operations are serialized on an internal mutex; the device must own its
// bus address exclusively.
type MLX90393 struct {
	mx sync.Mutex

	config    Opts
	transport magneto.I2CBus
	addr      byte

	gain   Gain
	resX   Resolution
	resY   Resolution
	resZ   Resolution
	filter Filter
	osr    Oversampling
}

func NewMLX90393(transport magneto.I2CBus, opts ...Opt) *MLX90393 {
	config := Opts{
		Address:          DefaultAddress,
		ResetDelay:       5 * time.Millisecond,
		ConversionMargin: 10 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&config)
	}
	return &MLX90393{
		config:    config,
		transport: transport,
		addr:      config.Address,
	}
}

// Init forces the device to idle, soft-resets it and programs the default
// acquisition settings: gain 1x, 16-bit resolution on all axes, oversampling
// 3, filter 7, TRIG/INT pin in TRIG function.
func (d *MLX90393) Init(ctx context.Context) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if err := d.exitMode(ctx); err != nil {
		return fmt.Errorf("could not exit current mode: %w", err)
	}
	if err := d.reset(ctx); err != nil {
		return fmt.Errorf("could not reset device: %w", err)
	}
	if err := d.setGain(ctx, Gain1x); err != nil {
		return err
	}
	for _, axis := range []Axis{AxisX, AxisY, AxisZ} {
		if err := d.setResolution(ctx, axis, Res16); err != nil {
			return err
		}
	}
	if err := d.setOversampling(ctx, OSR3); err != nil {
		return err
	}
	if err := d.setFilter(ctx, Filter7); err != nil {
		return err
	}
	return d.setTrigInt(ctx, false)
}

// ExitMode takes the device out of burst, wake-on-change or single
// measurement mode.
func (d *MLX90393) ExitMode(ctx context.Context) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.exitMode(ctx)
}

func (d *MLX90393) exitMode(ctx context.Context) error {
	status, _, err := d.transceive(ctx, []byte{cmdExitMode}, 0, 0)
	if err != nil {
		return err
	}
	if status&(statusBurstMode|statusSMMode|statusWOC|statusError) != 0 {
		return fmt.Errorf("%w: exit acknowledged with %#02x", ErrUnexpectedStatus, status)
	}
	return nil
}

// Reset performs a soft reset. The device acknowledges with the RS flag and
// nothing else; any other status is a failure.
func (d *MLX90393) Reset(ctx context.Context) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.reset(ctx)
}

func (d *MLX90393) reset(ctx context.Context) error {
	status, _, err := d.transceive(ctx, []byte{cmdReset}, 0, d.config.ResetDelay)
	if err != nil {
		return err
	}
	if status != statusReset {
		return fmt.Errorf("%w: reset acknowledged with %#02x", ErrUnexpectedStatus, status)
	}
	return nil
}

// ReadRegister reads one 16-bit configuration register.
func (d *MLX90393) ReadRegister(ctx context.Context, reg byte) (uint16, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.readRegister(ctx, reg)
}

func (d *MLX90393) readRegister(ctx context.Context, reg byte) (uint16, error) {
	// register address sits in bits 7:2 of the second command byte
	status, payload, err := d.transceive(ctx, []byte{cmdReadRegister, reg << 2}, 2, 0)
	if err != nil {
		return 0, err
	}
	if status&statusError != 0 {
		return 0, fmt.Errorf("%w: read of register %#02x", ErrStatus, reg)
	}
	return uint16(payload[0])<<8 | uint16(payload[1]), nil
}

// WriteRegister writes one 16-bit configuration register. The device has no
// per-bit write capability, so callers are expected to read-modify-write.
func (d *MLX90393) WriteRegister(ctx context.Context, reg byte, value uint16) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.writeRegister(ctx, reg, value)
}

func (d *MLX90393) writeRegister(ctx context.Context, reg byte, value uint16) error {
	status, _, err := d.transceive(ctx, []byte{cmdWriteRegister, byte(value >> 8), byte(value), reg << 2}, 0, 0)
	if err != nil {
		return err
	}
	if status&statusError != 0 {
		return fmt.Errorf("%w: write of register %#02x", ErrStatus, reg)
	}
	return nil
}

// SetGain programs the analog gain and updates the cached value used for
// measurement conversion.
func (d *MLX90393) SetGain(ctx context.Context, gain Gain) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.setGain(ctx, gain)
}

func (d *MLX90393) setGain(ctx context.Context, gain Gain) error {
	data, err := d.readRegister(ctx, RegConf1)
	if err != nil {
		return fmt.Errorf("could not read CONF1: %w", err)
	}
	if err = d.writeRegister(ctx, RegConf1, uint16(Conf1(data).WithGain(gain))); err != nil {
		return fmt.Errorf("could not set gain: %w", err)
	}
	d.gain = gain
	return nil
}

// GetGain reads the gain back from the device rather than the cache.
func (d *MLX90393) GetGain(ctx context.Context) (Gain, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	data, err := d.readRegister(ctx, RegConf1)
	if err != nil {
		return 0, fmt.Errorf("could not read CONF1: %w", err)
	}
	return Conf1(data).Gain(), nil
}

// SetResolution programs the ADC resolution of one magnetic axis. Settings of
// the other axes sharing CONF3 are preserved by a fresh read-modify-write.
func (d *MLX90393) SetResolution(ctx context.Context, axis Axis, res Resolution) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.setResolution(ctx, axis, res)
}

func (d *MLX90393) setResolution(ctx context.Context, axis Axis, res Resolution) error {
	if axis != AxisX && axis != AxisY && axis != AxisZ {
		return fmt.Errorf("%w: resolution applies to X, Y or Z", ErrUnsupportedAxis)
	}
	data, err := d.readRegister(ctx, RegConf3)
	if err != nil {
		return fmt.Errorf("could not read CONF3: %w", err)
	}
	if err = d.writeRegister(ctx, RegConf3, uint16(Conf3(data).WithResolution(axis, res))); err != nil {
		return fmt.Errorf("could not set resolution: %w", err)
	}
	switch axis {
	case AxisX:
		d.resX = res
	case AxisY:
		d.resY = res
	case AxisZ:
		d.resZ = res
	}
	return nil
}

// GetResolution answers from the session cache. Requesting the temperature
// channel or a multi-axis mask is a contract violation and returns an error.
func (d *MLX90393) GetResolution(axis Axis) (Resolution, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.resolution(axis)
}

func (d *MLX90393) resolution(axis Axis) (Resolution, error) {
	switch axis {
	case AxisX:
		return d.resX, nil
	case AxisY:
		return d.resY, nil
	case AxisZ:
		return d.resZ, nil
	}
	return 0, fmt.Errorf("%w: no resolution for axis mask %#02x", ErrUnsupportedAxis, byte(axis))
}

// SetFilter programs the digital filter and updates the cache.
func (d *MLX90393) SetFilter(ctx context.Context, filter Filter) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.setFilter(ctx, filter)
}

func (d *MLX90393) setFilter(ctx context.Context, filter Filter) error {
	data, err := d.readRegister(ctx, RegConf3)
	if err != nil {
		return fmt.Errorf("could not read CONF3: %w", err)
	}
	if err = d.writeRegister(ctx, RegConf3, uint16(Conf3(data).WithFilter(filter))); err != nil {
		return fmt.Errorf("could not set filter: %w", err)
	}
	d.filter = filter
	return nil
}

// GetFilter answers from the session cache.
func (d *MLX90393) GetFilter() Filter {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.filter
}

// SetOversampling programs the oversampling ratio and updates the cache.
func (d *MLX90393) SetOversampling(ctx context.Context, osr Oversampling) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.setOversampling(ctx, osr)
}

func (d *MLX90393) setOversampling(ctx context.Context, osr Oversampling) error {
	data, err := d.readRegister(ctx, RegConf3)
	if err != nil {
		return fmt.Errorf("could not read CONF3: %w", err)
	}
	if err = d.writeRegister(ctx, RegConf3, uint16(Conf3(data).WithOversampling(osr))); err != nil {
		return fmt.Errorf("could not set oversampling: %w", err)
	}
	d.osr = osr
	return nil
}

// GetOversampling answers from the session cache.
func (d *MLX90393) GetOversampling() Oversampling {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.osr
}

// SetTrigInt selects the function of the TRIG/INT pin: true routes the
// data-ready interrupt to the pin, false makes it an external trigger input.
func (d *MLX90393) SetTrigInt(ctx context.Context, interrupt bool) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.setTrigInt(ctx, interrupt)
}

func (d *MLX90393) setTrigInt(ctx context.Context, interrupt bool) error {
	data, err := d.readRegister(ctx, RegConf2)
	if err != nil {
		return fmt.Errorf("could not read CONF2: %w", err)
	}
	if err = d.writeRegister(ctx, RegConf2, uint16(Conf2(data).WithTrigInt(interrupt))); err != nil {
		return fmt.Errorf("could not set TRIG/INT function: %w", err)
	}
	return nil
}

// SetBurstRate programs the burst mode period. The device quantizes the
// period to 20ms steps in a 6-bit field, so the effective range is 0-1260ms;
// out-of-range requests are clamped.
func (d *MLX90393) SetBurstRate(ctx context.Context, period time.Duration) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	steps := int(period / burstRateStep)
	if steps < 0 {
		steps = 0
	}
	if steps > burstRateMax {
		steps = burstRateMax
	}
	data, err := d.readRegister(ctx, RegConf2)
	if err != nil {
		return fmt.Errorf("could not read CONF2: %w", err)
	}
	if err = d.writeRegister(ctx, RegConf2, uint16(Conf2(data).WithBurstRate(byte(steps)))); err != nil {
		return fmt.Errorf("could not set burst rate: %w", err)
	}
	return nil
}

// StartBurstMode puts the device in continuous acquisition of the selected
// axes at the period programmed with SetBurstRate.
func (d *MLX90393) StartBurstMode(ctx context.Context, axes Axis) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	status, _, err := d.transceive(ctx, []byte{cmdStartBurst | byte(axes)}, 0, 0)
	if err != nil {
		return err
	}
	if status&statusBurstMode == 0 {
		return fmt.Errorf("%w: burst start acknowledged with %#02x", ErrUnexpectedStatus, status)
	}
	if status&statusSED != 0 {
		return fmt.Errorf("%w: single error detected flag set (%#02x)", ErrUnexpectedStatus, status)
	}
	return nil
}

// StartSingleMeasurement requests one conversion of the selected axes. The
// device acknowledges either without the error flag or with a status equal to
// the SM_MODE flag alone; both mean the conversion started. This tolerance
// matches observed device behavior and must not be tightened.
func (d *MLX90393) StartSingleMeasurement(ctx context.Context, axes Axis) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.startSingleMeasurement(ctx, axes)
}

func (d *MLX90393) startSingleMeasurement(ctx context.Context, axes Axis) error {
	status, _, err := d.transceive(ctx, []byte{cmdStartSingle | byte(axes)}, 0, 0)
	if err != nil {
		return err
	}
	if status&statusError == 0 || status == statusSMMode {
		return nil
	}
	return fmt.Errorf("%w: single measurement", ErrStatus)
}

// ReadMeasurement reads the latest conversion of the selected axes and stores
// the converted microtesla values into dest, in X, Y, Z order restricted to
// the requested axes. The temperature channel is not supported. Contract
// violations are detected before any bus traffic.
func (d *MLX90393) ReadMeasurement(ctx context.Context, axes Axis, dest []float32) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.readMeasurement(ctx, axes, dest)
}

func (d *MLX90393) readMeasurement(ctx context.Context, axes Axis, dest []float32) error {
	if axes&AxisT != 0 {
		return fmt.Errorf("%w: temperature channel has no conversion support", ErrUnsupportedAxis)
	}
	count := axes.Count()
	if count > len(dest) {
		return fmt.Errorf("%w: %d axes into %d slots", ErrShortBuffer, count, len(dest))
	}
	status, payload, err := d.transceive(ctx, []byte{cmdReadMeasure | byte(axes)}, 2*count, 0)
	if err != nil {
		return err
	}
	if status&statusError != 0 {
		return fmt.Errorf("%w: measurement read", ErrStatus)
	}
	i := 0
	for _, axis := range []Axis{AxisX, AxisY, AxisZ} {
		if axes&axis == 0 {
			continue
		}
		raw := int16(uint16(payload[2*i])<<8 | uint16(payload[2*i+1]))
		dest[i], err = d.convert(axis, raw)
		if err != nil {
			return err
		}
		i++
	}
	return nil
}

// ReadData performs a full single-shot acquisition: it starts a conversion,
// waits the conversion time for the current filter and oversampling settings
// plus the configured margin, and reads the result. There is no completion
// polling; calling this faster than the device can convert yields garbage.
func (d *MLX90393) ReadData(ctx context.Context, axes Axis, dest []float32) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if err := d.startSingleMeasurement(ctx, axes); err != nil {
		return err
	}
	time.Sleep(conversionTime(d.filter, d.osr) + d.config.ConversionMargin)
	return d.readMeasurement(ctx, axes, dest)
}

// ReadAll is a convenience single-shot read of all three magnetic axes.
func (d *MLX90393) ReadAll(ctx context.Context) (x, y, z float32, err error) {
	var buf [3]float32
	if err = d.ReadData(ctx, AxisAll, buf[:]); err != nil {
		return 0, 0, 0, err
	}
	return buf[0], buf[1], buf[2], nil
}

// convert scales one raw sample to microtesla using the cached gain and the
// cached resolution of its axis.
func (d *MLX90393) convert(axis Axis, raw int16) (float32, error) {
	res, err := d.resolution(axis)
	if err != nil {
		return 0, err
	}
	return float32(offsetCorrect(raw, res)) * microteslaPerCount(d.gain, res, axis), nil
}
