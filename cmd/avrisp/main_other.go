//go:build !linux

// Command avrisp drives an AVR target's serial programming interface from a
// Linux SPI device. On other platforms it only reports that it is unavailable.
package main

import (
	"fmt"
	"os"

	"github.com/ZaparooProject/go-avrisp/linuxspi"
)

func main() {
	fmt.Fprintln(os.Stderr, "avrisp:", linuxspi.ErrUnsupportedPlatform)
	os.Exit(1)
}
