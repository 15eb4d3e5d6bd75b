//go:build linux

// Command avrisp drives an AVR target's serial programming interface from a
// Linux SPI device, holding the target in reset with a sysfs GPIO line.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	avrisp "github.com/ZaparooProject/go-avrisp"
	"github.com/ZaparooProject/go-avrisp/detection"
	"github.com/ZaparooProject/go-avrisp/linuxspi"
	"github.com/ZaparooProject/go-avrisp/transport/periph"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

const (
	flagDevice    = "device"
	flagResetPin  = "reset-pin"
	flagSpeed     = "speed"
	flagPart      = "part"
	flagPartsFile = "parts-file"
	flagDebug     = "debug"

	defaultDevice = "/dev/spidev0.0"
	defaultPart   = "m328p"
)

// openFunc opens a programmer session; tests replace linuxspi.Open
type openFunc func(cfg avrisp.Config, opts ...avrisp.Option) (*avrisp.Programmer, error)

func main() {
	r := &runner{
		open:  linuxspi.Open,
		ports: periph.Ports,
		scan:  detection.DefaultOptions(),
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newApp(os.Stdout, r).RunContext(ctx, os.Args)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "avrisp:", err)
		os.Exit(1)
	}
}

func newApp(out io.Writer, r *runner) *cli.App {
	return &cli.App{
		Name:      "avrisp",
		Usage:     linuxspi.Description,
		Writer:    out,
		ErrWriter: out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagDevice,
				Aliases: []string{"P"},
				Value:   defaultDevice,
				EnvVars: []string{"AVRISP_DEVICE"},
				Usage:   "SPI device path, or a periph.io port name such as SPI0.0",
			},
			&cli.StringFlag{
				Name:    flagResetPin,
				Aliases: []string{"r"},
				EnvVars: []string{"AVRISP_RESET_PIN"},
				Usage:   "sysfs GPIO line wired to RESET; prefix with ~ for an inverted line",
			},
			&cli.StringFlag{
				Name:    flagSpeed,
				EnvVars: []string{"AVRISP_SPEED"},
				Usage:   "SPI clock, e.g. 400kHz or 1MHz; plain numbers are Hz",
			},
			&cli.StringFlag{
				Name:    flagPart,
				Aliases: []string{"p"},
				Value:   defaultPart,
				EnvVars: []string{"AVRISP_PART"},
				Usage:   "target part id or name",
			},
			&cli.StringFlag{
				Name:    flagPartsFile,
				EnvVars: []string{"AVRISP_PARTS"},
				Usage:   "load part descriptions from `FILE` instead of the built-in catalog",
			},
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
		},
		Before: setupLogging,
		After: func(*cli.Context) error {
			_ = avrisp.Logger().Sync()
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "enable",
				Usage:  "put the target into programming mode and report whether it answered",
				Action: r.enable,
			},
			{
				Name:   "erase",
				Usage:  "erase flash and EEPROM",
				Action: r.erase,
			},
			{
				Name:      "cmd",
				Usage:     "send one raw 4-byte instruction and print the reply",
				ArgsUsage: "<hex bytes, e.g. 30 00 00 00>",
				Action:    r.command,
			},
			{
				Name:   "devices",
				Usage:  "list SPI devices and periph.io SPI ports",
				Action: r.devices,
			},
			{
				Name:   "parts",
				Usage:  "list known parts",
				Action: r.parts,
			},
		},
	}
}

func setupLogging(c *cli.Context) error {
	if !c.Bool(flagDebug) {
		return nil
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	avrisp.SetLogger(logger)
	avrisp.SetDebugEnabled(true)
	return nil
}
