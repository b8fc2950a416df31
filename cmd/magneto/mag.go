package main

import (
	"context"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/magneto/cmd/magneto/console"
	"github.com/mklimuk/magneto/mag"
)

var readCmd = cli.Command{
	Name:    "read",
	Aliases: []string{"rd"},
	Usage:   "perform a single-shot measurement of the magnetic field",
	Flags: append([]cli.Flag{
		&cli.StringFlag{
			Name:  "axes",
			Value: "xyz",
			Usage: "axes to read, any combination of x, y and z",
		},
	}, busFlags...),
	Action: func(c *cli.Context) error {
		ctx := console.SetVerbose(context.Background(), c.Bool("verbose"))
		axes, err := parseAxes(c.String("axes"))
		if err != nil {
			return console.Exit(1, "invalid axis selection: %s", console.Red(err))
		}
		m, closer, err := openSensor(c)
		defer closer()
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		if err = m.Init(ctx); err != nil {
			return console.Exit(1, "sensor initialization error: %s", console.Red(err))
		}
		values := make([]float32, axes.Count())
		if err = m.ReadData(ctx, axes, values); err != nil {
			return console.Exit(1, "error reading magnetic field: %s", console.Red(err))
		}
		printField(axes, values)
		return nil
	},
}

var burstCmd = cli.Command{
	Name:  "burst",
	Usage: "acquire continuously in burst mode",
	Flags: append([]cli.Flag{
		&cli.StringFlag{
			Name:  "axes",
			Value: "xyz",
		},
		&cli.DurationFlag{
			Name:  "rate",
			Value: 200 * time.Millisecond,
			Usage: "burst period (quantized to 20ms steps, max 1260ms)",
		},
		&cli.IntFlag{
			Name:  "count",
			Value: 10,
			Usage: "number of samples to read before exiting burst mode",
		},
	}, busFlags...),
	Action: func(c *cli.Context) error {
		ctx := console.SetVerbose(context.Background(), c.Bool("verbose"))
		axes, err := parseAxes(c.String("axes"))
		if err != nil {
			return console.Exit(1, "invalid axis selection: %s", console.Red(err))
		}
		m, closer, err := openSensor(c)
		defer closer()
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		if err = m.Init(ctx); err != nil {
			return console.Exit(1, "sensor initialization error: %s", console.Red(err))
		}
		rate := c.Duration("rate")
		if err = m.SetBurstRate(ctx, rate); err != nil {
			return console.Exit(1, "error setting burst rate: %s", console.Red(err))
		}
		if err = m.StartBurstMode(ctx, axes); err != nil {
			return console.Exit(1, "error starting burst mode: %s", console.Red(err))
		}
		console.PInfof(console.PictoBolt, "burst mode started, %d samples at %s", c.Int("count"), rate)
		values := make([]float32, axes.Count())
		for i := 0; i < c.Int("count"); i++ {
			time.Sleep(rate)
			if err = m.ReadMeasurement(ctx, axes, values); err != nil {
				console.Errorf("sample %d failed: %s", i, console.Red(err))
				continue
			}
			printField(axes, values)
		}
		if err = m.ExitMode(ctx); err != nil {
			return console.Exit(1, "error leaving burst mode: %s", console.Red(err))
		}
		console.PInfof(console.PictoFinish, "burst mode stopped")
		return nil
	},
}

func printField(axes mag.Axis, values []float32) {
	labels := []struct {
		axis mag.Axis
		name string
	}{
		{mag.AxisX, "X"},
		{mag.AxisY, "Y"},
		{mag.AxisZ, "Z"},
	}
	i := 0
	for _, l := range labels {
		if axes&l.axis == 0 {
			continue
		}
		console.Printf("%s %s: %s µT\n", console.PictoMagnet, l.name, console.White(values[i]))
		i++
	}
}
