//go:build linux

package linuxspi

import (
	"strings"

	avrisp "github.com/ZaparooProject/go-avrisp"
	"github.com/ZaparooProject/go-avrisp/gpio/sysfs"
	"github.com/ZaparooProject/go-avrisp/transport/periph"
	"github.com/ZaparooProject/go-avrisp/transport/spidev"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/physic"
)

type openFunc func(path string, speed physic.Frequency) (avrisp.Transport, error)

// Factory returns a transport factory that opens device paths ("/dev/...")
// with the spidev ioctl interface and anything else as a periph.io port name
// such as "SPI0.0"
func Factory(logger *zap.Logger) avrisp.TransportFactory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return factory(
		func(path string, speed physic.Frequency) (avrisp.Transport, error) {
			t, err := spidev.Open(path, speed, spidev.WithLogger(logger))
			if err != nil {
				return nil, err
			}
			return t, nil
		},
		func(name string, speed physic.Frequency) (avrisp.Transport, error) {
			t, err := periph.Open(name, speed)
			if err != nil {
				return nil, err
			}
			return t, nil
		},
	)
}

func factory(openSpidev, openPeriph openFunc) avrisp.TransportFactory {
	return func(path string, speed physic.Frequency) (avrisp.Transport, error) {
		if IsDevicePath(path) {
			return openSpidev(path, speed)
		}
		return openPeriph(path, speed)
	}
}

// IsDevicePath reports whether path names a character device rather than a
// periph.io port
func IsDevicePath(path string) bool {
	return strings.HasPrefix(path, "/") || strings.HasPrefix(path, ".")
}

// Open opens a programmer session with the Linux backends. Options given
// here are applied after the defaults, so tests and callers can replace the
// transport factory or the line controller.
func Open(cfg avrisp.Config, opts ...avrisp.Option) (*avrisp.Programmer, error) {
	logger := avrisp.Logger()
	defaults := []avrisp.Option{
		avrisp.WithTransportFactory(Factory(logger)),
		avrisp.WithLineController(sysfs.New(sysfs.WithLogger(logger))),
	}
	return avrisp.Open(cfg, append(defaults, opts...)...)
}
