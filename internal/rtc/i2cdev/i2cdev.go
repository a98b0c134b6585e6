//go:build linux

// Package i2cdev exposes a Linux /dev/i2c-N adapter as a tinygo drivers.I2C
// bus so device drivers written for microcontrollers run on a Linux OBC.
package i2cdev

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
	"tinygo.org/x/drivers"
)

// ioctlSlave is I2C_SLAVE from <linux/i2c-dev.h>.
const ioctlSlave = 0x0703

// errClosed is returned for transactions on a closed bus.
var errClosed = errors.New("i2c bus closed")

// Bus is an open i2c-dev character device.
type Bus struct {
	// mu serialises transactions; the slave address is per file descriptor.
	mu sync.Mutex
	// fd is the open device, -1 after Close.
	fd int
	// addr is the slave address last selected with ioctlSlave.
	addr uint16
	// path is the device node, for error messages.
	path string
}

var _ drivers.I2C = (*Bus)(nil)

// Open opens the adapter at path, for example /dev/i2c-1.
func Open(path string) (*Bus, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	return &Bus{
		fd:   fd,
		addr: 0xFFFF,
		path: path,
	}, nil
}

// Tx writes w then reads len(r) bytes from the device at addr.
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.fd < 0 {
		return errClosed
	}

	if addr != b.addr {
		if err := unix.IoctlSetInt(b.fd, ioctlSlave, int(addr)); err != nil {
			return fmt.Errorf("select slave %#x on %s: %w", addr, b.path, err)
		}

		b.addr = addr
	}

	if len(w) > 0 {
		if _, err := unix.Write(b.fd, w); err != nil {
			return fmt.Errorf("write %s: %w", b.path, err)
		}
	}

	if len(r) > 0 {
		if _, err := unix.Read(b.fd, r); err != nil {
			return fmt.Errorf("read %s: %w", b.path, err)
		}
	}

	return nil
}

// Close releases the device.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.fd < 0 {
		return nil
	}

	err := unix.Close(b.fd)
	b.fd = -1

	return err
}
