//go:build linux

// Package spidev provides the SPI transport over the Linux spidev character
// device
package spidev

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"
	"unsafe"

	avrisp "github.com/ZaparooProject/go-avrisp"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
)

const (
	// BitsPerWord is fixed for the AVR serial programming interface.
	BitsPerWord = 8
	// WordDelay is the pause the kernel inserts after each transfer.
	WordDelay = time.Microsecond

	// spiIOCWrMode is _IOW('k', 1, __u8)
	spiIOCWrMode = 0x40016B01
	// spiIOCMessage1 is SPI_IOC_MESSAGE(1), _IOW('k', 0, char[32])
	spiIOCMessage1 = 0x40206B00

	spiMode0 = 0
)

// spiIOCTransfer mirrors struct spi_ioc_transfer from linux/spi/spidev.h
type spiIOCTransfer struct {
	txBuf          uint64
	rxBuf          uint64
	length         uint32
	speedHz        uint32
	delayUsecs     uint16
	bitsPerWord    uint8
	csChange       uint8
	txNbits        uint8
	rxNbits        uint8
	wordDelayUsecs uint8
	pad            uint8
}

// newTransferRequest builds the kernel request for one full-duplex exchange
func newTransferRequest(tx, rx []byte, speed physic.Frequency) spiIOCTransfer {
	return spiIOCTransfer{
		txBuf:       uint64(uintptr(unsafe.Pointer(&tx[0]))),
		rxBuf:       uint64(uintptr(unsafe.Pointer(&rx[0]))),
		length:      uint32(len(tx)), //nolint:gosec // frames are a few bytes
		speedHz:     uint32(speed / physic.Hertz),
		delayUsecs:  uint16(WordDelay / time.Microsecond),
		bitsPerWord: BitsPerWord,
	}
}

type (
	ioctlFunc   func(fd, req uintptr, arg unsafe.Pointer) (int, error)
	messageFunc func(fd uintptr, xfer *spiIOCTransfer, rx []byte) (int, error)
)

func sysIoctl(fd, req uintptr, arg unsafe.Pointer) (int, error) {
	r, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, req, uintptr(arg))
	if errno != 0 {
		return -1, errno
	}
	return int(r), nil
}

func sysMessage(fd uintptr, xfer *spiIOCTransfer, _ []byte) (int, error) {
	return sysIoctl(fd, spiIOCMessage1, unsafe.Pointer(xfer))
}

// Transport implements avrisp.Transport over /dev/spidevB.C
type Transport struct {
	file    *os.File
	logger  *zap.Logger
	ioctl   ioctlFunc
	message messageFunc
	path    string
	speed   physic.Frequency
	mu      sync.Mutex
}

// Option configures a Transport
type Option func(*Transport)

// WithLogger sets the logger for the transport
func WithLogger(logger *zap.Logger) Option {
	return func(t *Transport) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// Open opens the spidev device at path for read/write and puts it in SPI
// mode 0. A zero speed selects avrisp.DefaultSpeed.
func Open(path string, speed physic.Frequency, opts ...Option) (*Transport, error) {
	t := newTransport(path, speed, opts...)
	if err := t.open(); err != nil {
		return nil, err
	}
	return t, nil
}

func newTransport(path string, speed physic.Frequency, opts ...Option) *Transport {
	t := &Transport{
		logger:  zap.NewNop(),
		ioctl:   sysIoctl,
		message: sysMessage,
		path:    path,
		speed:   avrisp.ResolveSpeed(speed),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Transport) open() error {
	f, err := os.OpenFile(t.path, os.O_RDWR, 0)
	if err != nil {
		return avrisp.NewTransportError("open", t.path, err)
	}

	mode := uint8(spiMode0)
	if _, err := t.ioctl(f.Fd(), spiIOCWrMode, unsafe.Pointer(&mode)); err != nil {
		_ = f.Close()
		return avrisp.NewTransportError("set mode", t.path, err)
	}

	t.file = f
	return nil
}

// Transfer clocks out tx and returns the bytes clocked in at the same time
func (t *Transport) Transfer(tx []byte) ([]byte, error) {
	rx := make([]byte, len(tx))
	if err := t.Tx(tx, rx); err != nil {
		return nil, err
	}
	return rx, nil
}

// Tx implements conn.Conn. w and r must have the same length.
func (t *Transport) Tx(w, r []byte) error {
	if len(w) == 0 {
		return avrisp.NewTransportError("transfer", t.path, errors.New("empty transfer"))
	}
	if len(r) != len(w) {
		return avrisp.NewTransportError("transfer", t.path,
			fmt.Errorf("buffer length mismatch: tx %d, rx %d", len(w), len(r)))
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.file == nil {
		return avrisp.NewTransportError("transfer", t.path, avrisp.ErrSessionClosed)
	}

	xfer := newTransferRequest(w, r, t.speed)
	moved, err := t.message(t.file.Fd(), &xfer, r)
	runtime.KeepAlive(w)
	runtime.KeepAlive(r)
	if err != nil {
		return avrisp.NewTransportError("transfer", t.path, err)
	}
	if moved != len(w) {
		t.logger.Warn("short spi transfer",
			zap.String("device", t.path),
			zap.Int("requested", len(w)),
			zap.Int("moved", moved))
		return avrisp.NewShortTransferError("transfer", t.path, len(w), moved)
	}
	return nil
}

// Duplex implements conn.Conn
func (*Transport) Duplex() conn.Duplex {
	return conn.Full
}

// Close closes the device handle. Closing twice is a no-op.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.file == nil {
		return nil
	}
	err := t.file.Close()
	t.file = nil
	if err != nil {
		return avrisp.NewTransportError("close", t.path, err)
	}
	return nil
}

// Speed returns the clock rate used for transfers
func (t *Transport) Speed() physic.Frequency {
	return t.speed
}

// Type returns the transport type
func (*Transport) Type() avrisp.TransportType {
	return avrisp.TransportSpidev
}

func (t *Transport) String() string {
	return fmt.Sprintf("spidev(%s@%s)", t.path, t.speed)
}

// Ensure Transport implements avrisp.Transport and conn.Conn
var (
	_ avrisp.Transport = (*Transport)(nil)
	_ conn.Conn        = (*Transport)(nil)
)
