package mag

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConversionLinearity(t *testing.T) {
	d := NewMLX90393(nil)
	for gain := Gain5x; gain <= Gain1x; gain++ {
		for _, res := range []Resolution{Res16, Res17} {
			t.Run(fmt.Sprintf("gain%d_res%d", gain, res), func(t *testing.T) {
				d.gain = gain
				d.resX, d.resY, d.resZ = res, res, res
				for _, axis := range []Axis{AxisX, AxisY, AxisZ} {
					single, err := d.convert(axis, 525)
					assert.NoError(t, err)
					double, err := d.convert(axis, 1050)
					assert.NoError(t, err)
					assert.InEpsilon(t, 2*single, double, 1e-6)
				}
			})
		}
	}
}

func TestOffsetCorrection(t *testing.T) {
	tests := []struct {
		raw      int16
		res      Resolution
		expected int16
	}{
		{int16(-0x8000), Res18, 0}, // raw 0x8000 is the 18-bit zero point
		{int16(-0x7FFF), Res18, 1},
		{0x7FFF, Res18, -1},
		{0x4000, Res19, 0},
		{0x4001, Res19, 1},
		{0x3FFF, Res19, -1},
		{-1234, Res16, -1234},
		{-1234, Res17, -1234},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("res%d_raw%#x", tt.res, uint16(tt.raw)), func(t *testing.T) {
			assert.Equal(t, tt.expected, offsetCorrect(tt.raw, tt.res))
		})
	}
}

func TestZeroPointConvertsToZero(t *testing.T) {
	d := NewMLX90393(nil)
	d.resX = Res18
	v, err := d.convert(AxisX, int16(-0x8000))
	assert.NoError(t, err)
	assert.Equal(t, float32(0), v)
}

func TestZAxisUsesOwnSensitivityColumn(t *testing.T) {
	d := NewMLX90393(nil)
	d.gain = Gain1x
	xy, err := d.convert(AxisX, 1000)
	assert.NoError(t, err)
	z, err := d.convert(AxisZ, 1000)
	assert.NoError(t, err)
	assert.InDelta(t, 1000*0.150, xy, 1e-3)
	assert.InDelta(t, 1000*0.242, z, 1e-3)
}

func TestConversionTime(t *testing.T) {
	tests := []struct {
		filter   Filter
		osr      Oversampling
		expected time.Duration
	}{
		{Filter0, OSR0, 1270 * time.Microsecond},
		{Filter7, OSR3, 200370 * time.Microsecond},
		{Filter5, OSR1, 13750 * time.Microsecond},
	}
	for _, tt := range tests {
		assert.InDelta(t, float64(tt.expected), float64(conversionTime(tt.filter, tt.osr)), float64(time.Microsecond))
	}
}

func TestConversionTimeGrowsWithFilterAndOversampling(t *testing.T) {
	for f := Filter0; f < Filter7; f++ {
		for o := OSR0; o < OSR3; o++ {
			assert.Less(t, conversionTime(f, o), conversionTime(f+1, o))
			assert.Less(t, conversionTime(f, o), conversionTime(f, o+1))
		}
	}
}
