package mag

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockI2CBus is a mock implementation of magneto.I2CBus using testify/mock
type MockI2CBus struct {
	mock.Mock
}

func (m *MockI2CBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	args := m.Called(ctx, address, buffer)
	return args.Error(0)
}

func (m *MockI2CBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	args := m.Called(ctx, address, buffer)
	if args.Get(0) != nil {
		// Copy mock data to buffer if provided
		if data, ok := args.Get(0).([]byte); ok && len(data) <= len(buffer) {
			copy(buffer, data)
		}
	}
	return args.Error(1)
}

func (m *MockI2CBus) Release(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func expectCommand(bus *MockI2CBus, request []byte, response []byte) {
	bus.On("WriteToAddr", mock.Anything, byte(DefaultAddress), request).Return(nil).Once()
	bus.On("ReadFromAddr", mock.Anything, byte(DefaultAddress), mock.Anything).Return(response, nil).Once()
}

func TestMLX90393_ExitThenReset(t *testing.T) {
	bus := new(MockI2CBus)
	d := NewMLX90393(bus, WithResetDelay(0))
	ctx := context.Background()

	expectCommand(bus, []byte{cmdExitMode}, []byte{0x00})
	assert.NoError(t, d.ExitMode(ctx))

	expectCommand(bus, []byte{cmdReset}, []byte{statusReset})
	assert.NoError(t, d.Reset(ctx))

	bus.AssertExpectations(t)
}

func TestMLX90393_ResetRejectsDirtyStatus(t *testing.T) {
	bus := new(MockI2CBus)
	d := NewMLX90393(bus, WithResetDelay(0))

	expectCommand(bus, []byte{cmdReset}, []byte{statusReset | statusError})
	err := d.Reset(context.Background())
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
	bus.AssertExpectations(t)
}

func TestMLX90393_ExitModeRejectsActiveModes(t *testing.T) {
	tests := []struct {
		name   string
		status byte
	}{
		{"burst active", statusBurstMode},
		{"single measurement pending", statusSMMode},
		{"wake on change active", statusWOC},
		{"error flag", statusError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := new(MockI2CBus)
			d := NewMLX90393(bus)
			expectCommand(bus, []byte{cmdExitMode}, []byte{tt.status})
			err := d.ExitMode(context.Background())
			assert.ErrorIs(t, err, ErrUnexpectedStatus)
			bus.AssertExpectations(t)
		})
	}
}

func TestMLX90393_ReadRegister(t *testing.T) {
	bus := new(MockI2CBus)
	d := NewMLX90393(bus)

	expectCommand(bus, []byte{cmdReadRegister, RegConf3 << 2}, []byte{0x00, 0x12, 0x34})
	val, err := d.ReadRegister(context.Background(), RegConf3)
	assert.NoError(t, err)
	assert.Equal(t, uint16(0x1234), val)
	bus.AssertExpectations(t)
}

func TestMLX90393_ReadRegisterError(t *testing.T) {
	bus := new(MockI2CBus)
	d := NewMLX90393(bus)

	expectCommand(bus, []byte{cmdReadRegister, RegConf1 << 2}, []byte{statusError, 0x00, 0x00})
	_, err := d.ReadRegister(context.Background(), RegConf1)
	assert.ErrorIs(t, err, ErrStatus)
	bus.AssertExpectations(t)
}

func TestMLX90393_WriteRegisterTransportFailure(t *testing.T) {
	bus := new(MockI2CBus)
	d := NewMLX90393(bus)

	bus.On("WriteToAddr", mock.Anything, byte(DefaultAddress), mock.Anything).
		Return(errors.New("i2c write failed")).Once()
	err := d.WriteRegister(context.Background(), RegConf2, 0xBEEF)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "i2c write failed")
	bus.AssertExpectations(t)
}

func TestMLX90393_SetResolutionPreservesSiblingBits(t *testing.T) {
	bus := new(MockI2CBus)
	d := NewMLX90393(bus)
	ctx := context.Background()

	// CONF3 with resZ=3, resY=2, resX=1, filter=5, osr=2 => 0x0736
	expectCommand(bus, []byte{cmdReadRegister, RegConf3 << 2}, []byte{0x00, 0x07, 0x36})
	// only the RES_Y field may change: 0x0736 -> 0x07B6
	expectCommand(bus, []byte{cmdWriteRegister, 0x07, 0xB6, RegConf3 << 2}, []byte{0x00})

	assert.NoError(t, d.SetResolution(ctx, AxisY, Res19))

	resY, err := d.GetResolution(AxisY)
	assert.NoError(t, err)
	assert.Equal(t, Res19, resY)
	// cached X and Z resolutions stay untouched
	resX, err := d.GetResolution(AxisX)
	assert.NoError(t, err)
	assert.Equal(t, Res16, resX)
	resZ, err := d.GetResolution(AxisZ)
	assert.NoError(t, err)
	assert.Equal(t, Res16, resZ)

	bus.AssertExpectations(t)
}

func TestMLX90393_SetResolutionRejectsTemperature(t *testing.T) {
	bus := new(MockI2CBus)
	d := NewMLX90393(bus)

	err := d.SetResolution(context.Background(), AxisT, Res16)
	assert.ErrorIs(t, err, ErrUnsupportedAxis)
	bus.AssertNotCalled(t, "WriteToAddr", mock.Anything, mock.Anything, mock.Anything)
}

func TestMLX90393_GetResolutionRejectsTemperature(t *testing.T) {
	d := NewMLX90393(new(MockI2CBus))
	_, err := d.GetResolution(AxisT)
	assert.ErrorIs(t, err, ErrUnsupportedAxis)
}

func TestMLX90393_SetGainPayload(t *testing.T) {
	bus := new(MockI2CBus)
	d := NewMLX90393(bus)

	// CONF1 with hallconf=0xC and gain=7 => 0x007C; switching to gain 2 must
	// keep the hallconf bits: 0x002C
	expectCommand(bus, []byte{cmdReadRegister, RegConf1 << 2}, []byte{0x00, 0x00, 0x7C})
	expectCommand(bus, []byte{cmdWriteRegister, 0x00, 0x2C, RegConf1 << 2}, []byte{0x00})

	assert.NoError(t, d.SetGain(context.Background(), Gain3x))
	bus.AssertExpectations(t)
}

func TestMLX90393_SetBurstRateClamps(t *testing.T) {
	bus := new(MockI2CBus)
	d := NewMLX90393(bus)

	// CONF2 with TRIG_INT set and rate 1 => 0x8001; a 5s request saturates
	// the 6-bit field: 0x803F
	expectCommand(bus, []byte{cmdReadRegister, RegConf2 << 2}, []byte{0x00, 0x80, 0x01})
	expectCommand(bus, []byte{cmdWriteRegister, 0x80, 0x3F, RegConf2 << 2}, []byte{0x00})

	assert.NoError(t, d.SetBurstRate(context.Background(), 5*time.Second))
	bus.AssertExpectations(t)
}

func TestMLX90393_StartBurstMode(t *testing.T) {
	tests := []struct {
		name   string
		status byte
		ok     bool
	}{
		{"burst acknowledged", statusBurstMode, true},
		{"burst with woc carryover", statusBurstMode | statusWOC, true},
		{"burst flag missing", 0x00, false},
		{"single error detected", statusBurstMode | statusSED, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := new(MockI2CBus)
			d := NewMLX90393(bus)
			expectCommand(bus, []byte{cmdStartBurst | byte(AxisAll)}, []byte{tt.status})
			err := d.StartBurstMode(context.Background(), AxisAll)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrUnexpectedStatus)
			}
			bus.AssertExpectations(t)
		})
	}
}

func TestMLX90393_StartSingleMeasurementTolerance(t *testing.T) {
	tests := []struct {
		name   string
		status byte
		ok     bool
	}{
		{"clean ack", 0x00, true},
		{"sm mode flag", statusSMMode, true},
		{"error flag", statusError, false},
		{"error with sm mode", statusError | statusSMMode, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := new(MockI2CBus)
			d := NewMLX90393(bus)
			expectCommand(bus, []byte{cmdStartSingle | byte(AxisAll)}, []byte{tt.status})
			err := d.StartSingleMeasurement(context.Background(), AxisAll)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrStatus)
			}
			bus.AssertExpectations(t)
		})
	}
}

func TestMLX90393_ReadMeasurementShortBuffer(t *testing.T) {
	bus := new(MockI2CBus)
	d := NewMLX90393(bus)

	dest := make([]float32, 2)
	err := d.ReadMeasurement(context.Background(), AxisAll, dest)
	assert.ErrorIs(t, err, ErrShortBuffer)
	// contract violations must be caught before any bus traffic
	bus.AssertNotCalled(t, "WriteToAddr", mock.Anything, mock.Anything, mock.Anything)
	bus.AssertNotCalled(t, "ReadFromAddr", mock.Anything, mock.Anything, mock.Anything)
}

func TestMLX90393_ReadMeasurementRejectsTemperature(t *testing.T) {
	bus := new(MockI2CBus)
	d := NewMLX90393(bus)

	dest := make([]float32, 4)
	err := d.ReadMeasurement(context.Background(), AxisAll|AxisT, dest)
	assert.ErrorIs(t, err, ErrUnsupportedAxis)
	bus.AssertNotCalled(t, "WriteToAddr", mock.Anything, mock.Anything, mock.Anything)
}

func TestMLX90393_ReadMeasurementFullDecode(t *testing.T) {
	bus := new(MockI2CBus)
	d := NewMLX90393(bus)
	d.gain = Gain1x

	// X=0x1000 (4096), Y=0x2000 (8192), Z=0x0080 (128), big-endian
	expectCommand(bus,
		[]byte{cmdReadMeasure | byte(AxisAll)},
		[]byte{0x00, 0x10, 0x00, 0x20, 0x00, 0x00, 0x80})

	dest := make([]float32, 3)
	assert.NoError(t, d.ReadMeasurement(context.Background(), AxisAll, dest))

	scaleXY := lsbLookup[hallConfIndex][Gain1x][Res16][0]
	scaleZ := lsbLookup[hallConfIndex][Gain1x][Res16][1]
	assert.InDelta(t, 4096*scaleXY, dest[0], 1e-4)
	assert.InDelta(t, 8192*scaleXY, dest[1], 1e-4)
	assert.InDelta(t, 128*scaleZ, dest[2], 1e-4)
	bus.AssertExpectations(t)
}

func TestMLX90393_ReadMeasurementSubset(t *testing.T) {
	bus := new(MockI2CBus)
	d := NewMLX90393(bus)
	d.gain = Gain1x

	// X and Z only: two samples, packed in X,Z order
	expectCommand(bus,
		[]byte{cmdReadMeasure | byte(AxisX|AxisZ)},
		[]byte{0x00, 0x00, 0x64, 0x00, 0x32})

	dest := make([]float32, 2)
	assert.NoError(t, d.ReadMeasurement(context.Background(), AxisX|AxisZ, dest))

	assert.InDelta(t, 100*lsbLookup[hallConfIndex][Gain1x][Res16][0], dest[0], 1e-4)
	assert.InDelta(t, 50*lsbLookup[hallConfIndex][Gain1x][Res16][1], dest[1], 1e-4)
	bus.AssertExpectations(t)
}

func TestMLX90393_ReadMeasurementErrorStatus(t *testing.T) {
	bus := new(MockI2CBus)
	d := NewMLX90393(bus)

	expectCommand(bus,
		[]byte{cmdReadMeasure | byte(AxisAll)},
		[]byte{statusError, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00})

	dest := make([]float32, 3)
	err := d.ReadMeasurement(context.Background(), AxisAll, dest)
	assert.ErrorIs(t, err, ErrStatus)
	bus.AssertExpectations(t)
}

func TestMLX90393_ReadDataSequence(t *testing.T) {
	bus := new(MockI2CBus)
	d := NewMLX90393(bus, WithConversionMargin(0))
	d.gain = Gain1x

	expectCommand(bus, []byte{cmdStartSingle | byte(AxisAll)}, []byte{statusSMMode})
	expectCommand(bus,
		[]byte{cmdReadMeasure | byte(AxisAll)},
		[]byte{0x00, 0x00, 0x01, 0x00, 0x02, 0x00, 0x03})

	x, y, z, err := d.ReadAll(context.Background())
	assert.NoError(t, err)
	assert.InDelta(t, 1*lsbLookup[hallConfIndex][Gain1x][Res16][0], x, 1e-5)
	assert.InDelta(t, 2*lsbLookup[hallConfIndex][Gain1x][Res16][0], y, 1e-5)
	assert.InDelta(t, 3*lsbLookup[hallConfIndex][Gain1x][Res16][1], z, 1e-5)
	bus.AssertExpectations(t)
}

func TestMLX90393_ReadDataAbortsWhenStartFails(t *testing.T) {
	bus := new(MockI2CBus)
	d := NewMLX90393(bus, WithConversionMargin(0))

	expectCommand(bus, []byte{cmdStartSingle | byte(AxisAll)}, []byte{statusError})

	dest := make([]float32, 3)
	err := d.ReadData(context.Background(), AxisAll, dest)
	assert.ErrorIs(t, err, ErrStatus)
	bus.AssertExpectations(t)
}
