// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package serialbridge

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/motion_suit/internal/suit"
)

// maxQueuedCommands bounds each half's status queue when nobody polls it.
const maxQueuedCommands = 64

// Driver implements suit.Driver over a dongle link. A reader goroutine keeps
// the latest frame and the pending status codes of each half, so every
// suit.Driver method returns without blocking on the link.
type Driver struct {
	port io.ReadWriteCloser

	writeMu sync.Mutex

	mu       sync.Mutex
	frames   map[suit.DeviceType][]byte
	commands map[suit.DeviceType][]suit.InputCommand
	readErr  error

	done chan struct{}
}

// Open opens a serial port and starts reading from it.
func Open(portName string, baud uint) (*Driver, error) {
	opts := serial.OpenOptions{
		PortName:              portName,
		BaudRate:              baud,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	port, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("serialbridge: open %s: %w", portName, err)
	}
	log.Printf("serialbridge: port opened on %s at %d baud", portName, baud)
	return NewDriver(port), nil
}

// NewDriver starts reading packets from port.
func NewDriver(port io.ReadWriteCloser) *Driver {
	d := &Driver{
		port:     port,
		frames:   make(map[suit.DeviceType][]byte),
		commands: make(map[suit.DeviceType][]suit.InputCommand),
		done:     make(chan struct{}),
	}
	go d.readLoop()
	return d
}

func (d *Driver) readLoop() {
	defer close(d.done)
	dec := NewDecoder(d.port)
	for {
		p, err := dec.Next()
		if errors.Is(err, ErrChecksum) {
			log.Printf("serialbridge: %v", err)
			continue
		}
		if err != nil {
			d.mu.Lock()
			d.readErr = fmt.Errorf("serialbridge: link: %w", err)
			d.mu.Unlock()
			return
		}
		d.handle(p)
	}
}

func (d *Driver) handle(p Packet) {
	if p.Device != suit.Shirt && p.Device != suit.Pants {
		log.Printf("serialbridge: %s packet for unknown device %d", p.Type, int(p.Device))
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	switch p.Type {
	case PacketFrame:
		d.frames[p.Device] = p.Payload
	case PacketStatus:
		cmd, err := p.Status()
		if err != nil {
			log.Printf("serialbridge: %v", err)
			return
		}
		q := d.commands[p.Device]
		if len(q) >= maxQueuedCommands {
			q = q[1:]
		}
		d.commands[p.Device] = append(q, cmd)
	default:
		log.Printf("serialbridge: unexpected %s packet", p.Type)
	}
}

func (d *Driver) send(p Packet) error {
	b, err := p.MarshalBinary()
	if err != nil {
		return err
	}
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	if _, err := d.port.Write(b); err != nil {
		return fmt.Errorf("serialbridge: write %s: %w", p.Type, err)
	}
	return nil
}

func (d *Driver) StartStreaming(device suit.DeviceType) error {
	return d.send(Packet{Type: PacketStartStreaming, Device: device})
}

// EndStreaming stops both halves and drops whatever they had buffered.
func (d *Driver) EndStreaming() error {
	d.mu.Lock()
	clear(d.frames)
	clear(d.commands)
	d.mu.Unlock()
	return d.send(Packet{Type: PacketEndStreaming, Device: suit.All})
}

func (d *Driver) StartCalibration(device suit.DeviceType) error {
	return d.send(Packet{Type: PacketStartCalibration, Device: device})
}

func (d *Driver) PopCommand(device suit.DeviceType) (suit.InputCommand, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	q := d.commands[device]
	if len(q) == 0 {
		return 0, false
	}
	d.commands[device] = q[1:]
	return q[0], true
}

// ReadFrame returns the latest frame received for device. A link failure is
// reported once; afterwards the driver simply has no frames.
func (d *Driver) ReadFrame(device suit.DeviceType, buf []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.readErr != nil {
		err := d.readErr
		d.readErr = nil
		return 0, err
	}
	f, ok := d.frames[device]
	if !ok {
		return 0, nil
	}
	delete(d.frames, device)
	return copy(buf, f), nil
}

// Close closes the port and waits for the reader to exit.
func (d *Driver) Close() error {
	err := d.port.Close()
	<-d.done
	return err
}
