//go:build linux

package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	avrisp "github.com/ZaparooProject/go-avrisp"
	"github.com/ZaparooProject/go-avrisp/detection"
	"github.com/ZaparooProject/go-avrisp/isp"
	"github.com/ZaparooProject/go-avrisp/partdb"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/physic"
)

type runner struct {
	open  openFunc
	ports func() ([]string, error)
	scan  detection.Options
}

func (r *runner) enable(c *cli.Context) (err error) {
	prog, err := r.session(c)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, prog.Close()) }()

	if err := prog.ProgramEnableContext(c.Context); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s: device responded to program enable\n", prog.Part().Name)
	return nil
}

func (r *runner) erase(c *cli.Context) (err error) {
	prog, err := r.session(c)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, prog.Close()) }()

	if err := prog.ProgramEnableContext(c.Context); err != nil {
		return err
	}
	if err := prog.ChipEraseContext(c.Context); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s: chip erased\n", prog.Part().Name)
	return nil
}

func (r *runner) command(c *cli.Context) (err error) {
	frame, err := parseFrame(c.Args().Slice())
	if err != nil {
		return err
	}

	prog, err := r.session(c)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, prog.Close()) }()

	if err := prog.ProgramEnableContext(c.Context); err != nil {
		return err
	}
	response, err := prog.Command(frame)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s -> %s\n", frame, response)
	return nil
}

func (*runner) parts(c *cli.Context) error {
	db, err := loadParts(c)
	if err != nil {
		return err
	}
	for _, id := range db.IDs() {
		part, err := db.Lookup(id)
		if err != nil {
			return err
		}
		note := ""
		if part.TPIOnly {
			note = "\t(TPI only, unsupported)"
		}
		fmt.Fprintf(c.App.Writer, "%-8s %s%s\n", id, part.Name, note)
	}
	return nil
}

func (r *runner) devices(c *cli.Context) error {
	devices, err := detection.FindSPIDevices(r.scan)
	if err != nil && !errors.Is(err, detection.ErrNoDevicesFound) {
		return err
	}
	for _, d := range devices {
		fmt.Fprintf(c.App.Writer, "%s\t%s\n", d.Path, d.Name)
	}

	ports, err := r.ports()
	if err != nil {
		avrisp.Logger().Warn("periph.io host init failed", zap.Error(err))
	}
	for _, name := range ports {
		fmt.Fprintf(c.App.Writer, "%s\tperiph.io port\n", name)
	}

	if len(devices) == 0 && len(ports) == 0 {
		return detection.ErrNoDevicesFound
	}
	return nil
}

// session builds the configuration from the global flags and opens it
func (r *runner) session(c *cli.Context) (*avrisp.Programmer, error) {
	db, err := loadParts(c)
	if err != nil {
		return nil, err
	}
	part, err := db.Lookup(c.String(flagPart))
	if err != nil {
		return nil, err
	}

	cfg := avrisp.Config{
		DevicePath: c.String(flagDevice),
		Part:       part,
	}
	if raw := c.String(flagResetPin); raw != "" {
		pin, err := avrisp.ParsePin(raw)
		if err != nil {
			return nil, err
		}
		cfg.ResetPin = pin.Raw()
	}
	if raw := c.String(flagSpeed); raw != "" {
		speed, err := parseSpeed(raw)
		if err != nil {
			return nil, err
		}
		cfg.Speed = speed
	}

	return r.open(cfg)
}

func loadParts(c *cli.Context) (*partdb.Database, error) {
	if path := c.String(flagPartsFile); path != "" {
		return partdb.Load(path)
	}
	return partdb.Default()
}

// parseSpeed accepts a bare number of hertz or a periph frequency string
func parseSpeed(s string) (physic.Frequency, error) {
	s = strings.TrimSpace(s)
	if hz, err := strconv.ParseInt(s, 10, 64); err == nil {
		if hz < 0 {
			return 0, &avrisp.ConfigError{Field: "speed", Reason: fmt.Sprintf("negative clock rate %q", s)}
		}
		return physic.Frequency(hz) * physic.Hertz, nil
	}
	var f physic.Frequency
	if err := f.Set(s); err != nil {
		return 0, &avrisp.ConfigError{Field: "speed", Reason: fmt.Sprintf("invalid clock rate %q: %v", s, err)}
	}
	return f, nil
}

// parseFrame reads four hex bytes, either as separate arguments or as one
// word such as 0xAC530000
func parseFrame(args []string) (isp.Frame, error) {
	var frame isp.Frame
	text := strings.ReplaceAll(strings.Join(args, ""), " ", "")
	text = strings.TrimPrefix(strings.TrimPrefix(text, "0x"), "0X")
	if text == "" {
		return frame, errors.New("cmd needs a 4-byte instruction")
	}

	data, err := hex.DecodeString(text)
	if err != nil {
		return frame, fmt.Errorf("invalid instruction %q: %w", strings.Join(args, " "), err)
	}
	if len(data) != isp.FrameSize {
		return frame, fmt.Errorf("instruction must be %d bytes, got %d", isp.FrameSize, len(data))
	}
	copy(frame[:], data)
	return frame, nil
}
