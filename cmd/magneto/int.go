package main

import (
	"context"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/magneto/adapter"
	"github.com/mklimuk/magneto/cmd/magneto/console"
	"github.com/mklimuk/magneto/mag"
)

// The INT/TRIG pin signals data-ready when TRIG_INT is set in CONF2.
// Watching it requires the MCP2221 adapter since that is where the pin
// is wired on the breakout rig.
var intCmd = cli.Command{
	Name:  "int",
	Usage: "watch the sensor INT pin during a single measurement",
	Flags: append([]cli.Flag{
		&cli.IntFlag{
			Name:  "pin",
			Value: 1,
			Usage: "adapter GPIO pin the INT line is wired to",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Value: 500 * time.Millisecond,
			Usage: "how long to wait for the pin to assert",
		},
	}, busFlags...),
	Action: func(c *cli.Context) error {
		ctx := console.SetVerbose(context.Background(), c.Bool("verbose"))
		if c.String("adapter") != "mcp2221" {
			return console.Exit(1, "the int command requires the mcp2221 adapter")
		}
		ad := adapter.NewMCP2221()
		if err := ad.Init(); err != nil {
			return console.Exit(1, "adapter initialization error: %s", console.Red(err))
		}
		defer func() { _ = ad.Close() }()
		m := mag.NewMLX90393(ad, mag.WithAddress(byte(c.Int("addr"))))
		if err := m.Init(ctx); err != nil {
			return console.Exit(1, "sensor initialization error: %s", console.Red(err))
		}
		if err := m.SetTrigInt(ctx, true); err != nil {
			return console.Exit(1, "error enabling interrupt output: %s", console.Red(err))
		}
		if err := m.StartSingleMeasurement(ctx, mag.AxisAll); err != nil {
			return console.Exit(1, "error starting measurement: %s", console.Red(err))
		}
		pin := c.Int("pin")
		deadline := time.Now().Add(c.Duration("timeout"))
		for time.Now().Before(deadline) {
			asserted, err := ad.ReadIntPin(ctx, pin)
			if err != nil {
				return console.Exit(1, "error reading pin: %s", console.Red(err))
			}
			if asserted {
				console.PInfof(console.PictoPin, "INT asserted on pin %d", pin)
				values := make([]float32, mag.AxisAll.Count())
				if err = m.ReadMeasurement(ctx, mag.AxisAll, values); err != nil {
					return console.Exit(1, "error reading measurement: %s", console.Red(err))
				}
				printField(mag.AxisAll, values)
				return nil
			}
			time.Sleep(5 * time.Millisecond)
		}
		return console.Exit(1, "%s INT pin did not assert within %s", console.PictoStop, c.Duration("timeout"))
	},
}
