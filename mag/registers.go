package mag

import "time"

// Configuration register addresses. Each register packs several independent
// settings, so every setter re-reads the register and merges only the bits it
// owns before writing the whole value back.
const (
	RegConf1 byte = 0x00
	RegConf2 byte = 0x01
	RegConf3 byte = 0x02
)

// Conf1 layout: GAIN_SEL on bits 6:4, HALLCONF on bits 3:0.
type Conf1 uint16

const (
	conf1GainMask  = 0x0070
	conf1GainShift = 4
)

func (r Conf1) Gain() Gain {
	return Gain((r & conf1GainMask) >> conf1GainShift)
}

func (r Conf1) WithGain(gain Gain) Conf1 {
	return r&^conf1GainMask | Conf1(gain)<<conf1GainShift
}

// Conf2 layout: TRIG_INT on bit 15, BURST_DATA_RATE on bits 5:0 (in 20ms
// steps). The burst axis selection bits in between are left to the burst
// start command.
type Conf2 uint16

const (
	conf2TrigIntMask   = 0x8000
	conf2BurstRateMask = 0x003F
)

// The burst period field counts in 20ms steps and is 6 bits wide, giving an
// effective range of 0-1260ms.
const (
	burstRateStep = 20 * time.Millisecond
	burstRateMax  = 0x3F
)

func (r Conf2) TrigInt() bool {
	return r&conf2TrigIntMask != 0
}

func (r Conf2) WithTrigInt(interrupt bool) Conf2 {
	if interrupt {
		return r | conf2TrigIntMask
	}
	return r &^ conf2TrigIntMask
}

// BurstRate returns the burst period field in 20ms steps.
func (r Conf2) BurstRate() byte {
	return byte(r & conf2BurstRateMask)
}

func (r Conf2) WithBurstRate(steps byte) Conf2 {
	return r&^conf2BurstRateMask | Conf2(steps&conf2BurstRateMask)
}

// Conf3 layout: OSR on bits 1:0, DIG_FILT on bits 4:2, RES_X on bits 6:5,
// RES_Y on bits 8:7, RES_Z on bits 10:9.
type Conf3 uint16

const (
	conf3OSRMask     = 0x0003
	conf3FilterMask  = 0x001C
	conf3FilterShift = 2
	conf3ResMask     = 0x0003
)

func (r Conf3) Oversampling() Oversampling {
	return Oversampling(r & conf3OSRMask)
}

func (r Conf3) WithOversampling(osr Oversampling) Conf3 {
	return r&^conf3OSRMask | Conf3(osr)
}

func (r Conf3) Filter() Filter {
	return Filter((r & conf3FilterMask) >> conf3FilterShift)
}

func (r Conf3) WithFilter(filter Filter) Conf3 {
	return r&^conf3FilterMask | Conf3(filter)<<conf3FilterShift
}

// resolutionShift maps a single magnetic axis to the position of its RES
// field within CONF3. Callers validate the axis first.
func resolutionShift(axis Axis) int {
	switch axis {
	case AxisY:
		return 7
	case AxisZ:
		return 9
	}
	return 5
}

func (r Conf3) Resolution(axis Axis) Resolution {
	return Resolution((r >> resolutionShift(axis)) & conf3ResMask)
}

func (r Conf3) WithResolution(axis Axis, res Resolution) Conf3 {
	shift := resolutionShift(axis)
	return r&^(Conf3(conf3ResMask)<<shift) | Conf3(res)<<shift
}
