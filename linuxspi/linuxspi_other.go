//go:build !linux

package linuxspi

import (
	avrisp "github.com/ZaparooProject/go-avrisp"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/physic"
)

// Factory is a stub for non-Linux platforms
func Factory(*zap.Logger) avrisp.TransportFactory {
	return func(path string, _ physic.Frequency) (avrisp.Transport, error) {
		return nil, avrisp.NewTransportError("open", path, ErrUnsupportedPlatform)
	}
}

// IsDevicePath reports whether path names a character device rather than a
// periph.io port
func IsDevicePath(path string) bool {
	return len(path) > 0 && (path[0] == '/' || path[0] == '.')
}

// Open is a stub for non-Linux platforms. Configuration is still validated
// first so misconfiguration reports the same error everywhere.
func Open(cfg avrisp.Config, _ ...avrisp.Option) (*avrisp.Programmer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return nil, ErrUnsupportedPlatform
}
