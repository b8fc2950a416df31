package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/magneto/cmd/magneto/console"
	"github.com/mklimuk/magneto/mag"
)

type sensorConfig struct {
	Gain         string `yaml:"gain"`
	TrigInt      bool   `yaml:"trig_int"`
	BurstRate    byte   `yaml:"burst_rate"`
	Filter       byte   `yaml:"filter"`
	Oversampling byte   `yaml:"oversampling"`
	ResolutionX  byte   `yaml:"resolution_x"`
	ResolutionY  byte   `yaml:"resolution_y"`
	ResolutionZ  byte   `yaml:"resolution_z"`
}

var gainNames = map[mag.Gain]string{
	mag.Gain5x:   "5x",
	mag.Gain4x:   "4x",
	mag.Gain3x:   "3x",
	mag.Gain2x5:  "2.5x",
	mag.Gain2x:   "2x",
	mag.Gain1x67: "1.67x",
	mag.Gain1x33: "1.33x",
	mag.Gain1x:   "1x",
}

var gainValues = map[string]mag.Gain{
	"5x":    mag.Gain5x,
	"4x":    mag.Gain4x,
	"3x":    mag.Gain3x,
	"2.5x":  mag.Gain2x5,
	"2x":    mag.Gain2x,
	"1.67x": mag.Gain1x67,
	"1.33x": mag.Gain1x33,
	"1x":    mag.Gain1x,
}

var configCmd = cli.Command{
	Name:  "config",
	Usage: "inspect and modify sensor configuration registers",
	Subcommands: cli.Commands{
		{
			Name:  "get",
			Usage: "dump the current configuration",
			Flags: busFlags,
			Action: func(c *cli.Context) error {
				ctx := console.SetVerbose(context.Background(), c.Bool("verbose"))
				m, closer, err := openSensor(c)
				defer closer()
				if err != nil {
					return console.Exit(1, "%s", console.Red(err))
				}
				cfg, err := readConfig(ctx, m)
				if err != nil {
					return console.Exit(1, "error reading configuration: %s", console.Red(err))
				}
				enc := yaml.NewEncoder(os.Stdout)
				defer enc.Close()
				if err = enc.Encode(cfg); err != nil {
					return console.Exit(1, "encoding error: %s", console.Red(err))
				}
				return nil
			},
		},
		{
			Name:  "set",
			Usage: "apply configuration values",
			Flags: append([]cli.Flag{
				&cli.StringFlag{Name: "gain", Usage: "analog gain: 1x, 1.33x, 1.67x, 2x, 2.5x, 3x, 4x or 5x"},
				&cli.IntFlag{Name: "filter", Value: -1, Usage: "digital filter setting (0-7)"},
				&cli.IntFlag{Name: "osr", Value: -1, Usage: "oversampling ratio (0-3)"},
				&cli.IntFlag{Name: "res", Value: -1, Usage: "resolution applied to all magnetic axes (0-3)"},
			}, busFlags...),
			Action: func(c *cli.Context) error {
				ctx := console.SetVerbose(context.Background(), c.Bool("verbose"))
				m, closer, err := openSensor(c)
				defer closer()
				if err != nil {
					return console.Exit(1, "%s", console.Red(err))
				}
				if name := c.String("gain"); name != "" {
					gain, ok := gainValues[name]
					if !ok {
						return console.Exit(1, "unknown gain %q", name)
					}
					if err = m.SetGain(ctx, gain); err != nil {
						return console.Exit(1, "error setting gain: %s", console.Red(err))
					}
				}
				if f := c.Int("filter"); f >= 0 {
					if err = m.SetFilter(ctx, mag.Filter(f)); err != nil {
						return console.Exit(1, "error setting filter: %s", console.Red(err))
					}
				}
				if o := c.Int("osr"); o >= 0 {
					if err = m.SetOversampling(ctx, mag.Oversampling(o)); err != nil {
						return console.Exit(1, "error setting oversampling: %s", console.Red(err))
					}
				}
				if r := c.Int("res"); r >= 0 {
					for _, axis := range []mag.Axis{mag.AxisX, mag.AxisY, mag.AxisZ} {
						if err = m.SetResolution(ctx, axis, mag.Resolution(r)); err != nil {
							return console.Exit(1, "error setting resolution: %s", console.Red(err))
						}
					}
				}
				console.PInfof(console.PictoFinish, "configuration applied")
				return nil
			},
		},
		{
			Name:  "reset",
			Usage: "soft-reset the sensor",
			Flags: busFlags,
			Action: func(c *cli.Context) error {
				ctx := console.SetVerbose(context.Background(), c.Bool("verbose"))
				answer, err := console.YesOrNo("reset the sensor and drop volatile configuration?")
				if err != nil {
					return console.Exit(1, "%s", console.Red(err))
				}
				if answer != "y" {
					console.PInfof(console.PictoStop, "aborted")
					return nil
				}
				m, closer, err := openSensor(c)
				defer closer()
				if err != nil {
					return console.Exit(1, "%s", console.Red(err))
				}
				if err = m.ExitMode(ctx); err != nil {
					return console.Exit(1, "error leaving active mode: %s", console.Red(err))
				}
				if err = m.Reset(ctx); err != nil {
					return console.Exit(1, "reset error: %s", console.Red(err))
				}
				console.PInfof(console.PictoFinish, "sensor reset")
				return nil
			},
		},
	},
}

func readConfig(ctx context.Context, m *mag.MLX90393) (*sensorConfig, error) {
	conf1, err := m.ReadRegister(ctx, mag.RegConf1)
	if err != nil {
		return nil, fmt.Errorf("could not read CONF1: %w", err)
	}
	conf2, err := m.ReadRegister(ctx, mag.RegConf2)
	if err != nil {
		return nil, fmt.Errorf("could not read CONF2: %w", err)
	}
	conf3, err := m.ReadRegister(ctx, mag.RegConf3)
	if err != nil {
		return nil, fmt.Errorf("could not read CONF3: %w", err)
	}
	c1, c2, c3 := mag.Conf1(conf1), mag.Conf2(conf2), mag.Conf3(conf3)
	return &sensorConfig{
		Gain:         gainNames[c1.Gain()],
		TrigInt:      c2.TrigInt(),
		BurstRate:    c2.BurstRate(),
		Filter:       byte(c3.Filter()),
		Oversampling: byte(c3.Oversampling()),
		ResolutionX:  byte(c3.Resolution(mag.AxisX)),
		ResolutionY:  byte(c3.Resolution(mag.AxisY)),
		ResolutionZ:  byte(c3.Resolution(mag.AxisZ)),
	}, nil
}
