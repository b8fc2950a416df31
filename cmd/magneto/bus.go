package main

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"
	"gobot.io/x/gobot/v2/platforms/friendlyelec/nanopi"
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/magneto"
	"github.com/mklimuk/magneto/adapter"
	"github.com/mklimuk/magneto/cmd/magneto/console"
	"github.com/mklimuk/magneto/i2c"
	"github.com/mklimuk/magneto/mag"
)

var busFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "adapter",
		Aliases: []string{"a"},
		Value:   "mcp2221",
		Usage:   "bus adapter: mcp2221, generic or nanopi",
	},
	&cli.StringFlag{
		Name:    "device",
		Aliases: []string{"d"},
		Value:   "/dev/i2c-1",
		Usage:   "i2c device path for the generic adapter",
	},
	&cli.IntFlag{
		Name:  "bus",
		Value: -1,
		Usage: "i2c bus number for the nanopi adapter (-1 = platform default)",
	},
	&cli.IntFlag{
		Name:  "addr",
		Value: mag.DefaultAddress,
		Usage: "sensor i2c address",
	},
	&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}},
}

// openBus builds the transport selected on the command line. The returned
// cleanup function is safe to call on every path.
func openBus(c *cli.Context) (magneto.I2CBus, func(), error) {
	switch c.String("adapter") {
	case "mcp2221":
		ad := adapter.NewMCP2221()
		if err := ad.Init(); err != nil {
			return nil, func() {}, fmt.Errorf("adapter initialization error: %w", err)
		}
		return ad, func() { _ = ad.Close() }, nil
	case "generic":
		bus, err := i2c.NewGenericBus(c.String("device"))
		if err != nil {
			return nil, func() {}, fmt.Errorf("adapter initialization error: %w", err)
		}
		if err = bus.SetSpeed(400 * physic.KiloHertz); err != nil {
			console.Warnf("could not set bus speed: %s", err)
		}
		return bus, func() { _ = bus.Close() }, nil
	case "nanopi":
		npi := nanopi.NewNeoAdaptor()
		if err := npi.I2cBusAdaptor.Connect(); err != nil {
			return nil, func() {}, fmt.Errorf("adaptor connect error: %w", err)
		}
		bus := adapter.NewGobotBus(npi, c.Int("bus"))
		return bus, func() { _ = npi.I2cBusAdaptor.Finalize() }, nil
	}
	return nil, func() {}, fmt.Errorf("unknown adapter %q", c.String("adapter"))
}

func openSensor(c *cli.Context) (*mag.MLX90393, func(), error) {
	bus, closer, err := openBus(c)
	if err != nil {
		return nil, closer, err
	}
	return mag.NewMLX90393(bus, mag.WithAddress(byte(c.Int("addr")))), closer, nil
}

// parseAxes turns a selector like "xz" into an axis mask.
func parseAxes(s string) (mag.Axis, error) {
	var axes mag.Axis
	for _, r := range strings.ToLower(s) {
		switch r {
		case 'x':
			axes |= mag.AxisX
		case 'y':
			axes |= mag.AxisY
		case 'z':
			axes |= mag.AxisZ
		default:
			return 0, fmt.Errorf("unknown axis %q", string(r))
		}
	}
	if axes == 0 {
		return 0, fmt.Errorf("empty axis selection")
	}
	return axes, nil
}
