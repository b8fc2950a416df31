package mag

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConf1Gain(t *testing.T) {
	// hallconf nibble and everything above the gain field must survive
	r := Conf1(0xFF8C)
	for g := Gain5x; g <= Gain1x; g++ {
		out := r.WithGain(g)
		assert.Equal(t, g, out.Gain())
		assert.Equal(t, Conf1(0xFF8C), out&^conf1GainMask)
	}
}

func TestConf2TrigInt(t *testing.T) {
	r := Conf2(0x1234)
	assert.False(t, r.TrigInt())
	set := r.WithTrigInt(true)
	assert.True(t, set.TrigInt())
	assert.Equal(t, r, set.WithTrigInt(false))
}

func TestConf2BurstRate(t *testing.T) {
	r := Conf2(0x8000)
	out := r.WithBurstRate(0x2A)
	assert.Equal(t, byte(0x2A), out.BurstRate())
	assert.True(t, out.TrigInt())
	// field is 6 bits wide; overflowing values are truncated, not spread
	out = r.WithBurstRate(0xFF)
	assert.Equal(t, byte(0x3F), out.BurstRate())
	assert.Equal(t, Conf2(0x8000), out&^conf2BurstRateMask)
}

func TestConf3ResolutionFieldsAreDisjoint(t *testing.T) {
	axes := []Axis{AxisX, AxisY, AxisZ}
	for _, axis := range axes {
		t.Run(fmt.Sprintf("axis_%#02x", byte(axis)), func(t *testing.T) {
			r := Conf3(0xF81F) // all non-resolution bits set
			out := r.WithResolution(axis, Res19)
			assert.Equal(t, Res19, out.Resolution(axis))
			for _, other := range axes {
				if other == axis {
					continue
				}
				assert.Equal(t, Res16, out.Resolution(other))
			}
			// filter and oversampling bits untouched
			assert.Equal(t, r.Filter(), out.Filter())
			assert.Equal(t, r.Oversampling(), out.Oversampling())
		})
	}
}

func TestConf3FilterAndOversampling(t *testing.T) {
	r := Conf3(0x0736)
	out := r.WithFilter(Filter2)
	assert.Equal(t, Filter2, out.Filter())
	assert.Equal(t, r.Oversampling(), out.Oversampling())
	assert.Equal(t, r.Resolution(AxisX), out.Resolution(AxisX))

	out = r.WithOversampling(OSR1)
	assert.Equal(t, OSR1, out.Oversampling())
	assert.Equal(t, r.Filter(), out.Filter())
	assert.Equal(t, r.Resolution(AxisZ), out.Resolution(AxisZ))
}
