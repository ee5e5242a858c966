// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package serialbridge talks to the suit's BLE dongle over a serial link.
//
// Every packet is framed as
//
//	0xA5 0x5A type device len payload... xor
//
// where xor is the XOR of type, device, len and every payload byte.
package serialbridge

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/relabs-tech/motion_suit/internal/suit"
)

const (
	sync0 = 0xA5
	sync1 = 0x5A

	maxPayload = 255
)

var (
	ErrChecksum       = errors.New("serialbridge: checksum mismatch")
	ErrPayloadTooLong = errors.New("serialbridge: payload too long")
	ErrBadStatus      = errors.New("serialbridge: malformed status payload")
)

// PacketType identifies the payload of a packet.
type PacketType byte

const (
	// dongle -> host
	PacketStatus PacketType = 0x01
	PacketFrame  PacketType = 0x02

	// host -> dongle
	PacketStartStreaming   PacketType = 0x10
	PacketEndStreaming     PacketType = 0x11
	PacketStartCalibration PacketType = 0x12
)

func (t PacketType) String() string {
	switch t {
	case PacketStatus:
		return "status"
	case PacketFrame:
		return "frame"
	case PacketStartStreaming:
		return "start-streaming"
	case PacketEndStreaming:
		return "end-streaming"
	case PacketStartCalibration:
		return "start-calibration"
	}
	return fmt.Sprintf("packet(0x%02x)", byte(t))
}

// Packet is one framed message.
type Packet struct {
	Type    PacketType
	Device  suit.DeviceType
	Payload []byte
}

// MarshalBinary frames p for the wire.
func (p Packet) MarshalBinary() ([]byte, error) {
	if len(p.Payload) > maxPayload {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLong, len(p.Payload))
	}
	buf := make([]byte, 0, 6+len(p.Payload))
	buf = append(buf, sync0, sync1, byte(p.Type), byte(p.Device), byte(len(p.Payload)))
	buf = append(buf, p.Payload...)
	return append(buf, checksum(buf[2:])), nil
}

// StatusPacket builds a status packet carrying cmd as a little-endian int16.
func StatusPacket(device suit.DeviceType, cmd suit.InputCommand) Packet {
	payload := make([]byte, 2)
	binary.LittleEndian.PutUint16(payload, uint16(int16(cmd)))
	return Packet{Type: PacketStatus, Device: device, Payload: payload}
}

// Status decodes the command of a status packet.
func (p Packet) Status() (suit.InputCommand, error) {
	if p.Type != PacketStatus || len(p.Payload) != 2 {
		return 0, fmt.Errorf("%w: %s with %d bytes", ErrBadStatus, p.Type, len(p.Payload))
	}
	return suit.InputCommand(int16(binary.LittleEndian.Uint16(p.Payload))), nil
}

// Decoder reads packets from a byte stream, skipping noise between packets.
type Decoder struct {
	r *bufio.Reader
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Next returns the next packet. ErrChecksum means one packet was dropped and
// the stream can still be read.
func (d *Decoder) Next() (Packet, error) {
	if err := d.sync(); err != nil {
		return Packet{}, err
	}

	var head [3]byte
	if _, err := io.ReadFull(d.r, head[:]); err != nil {
		return Packet{}, err
	}
	body := make([]byte, int(head[2])+1)
	if _, err := io.ReadFull(d.r, body); err != nil {
		return Packet{}, err
	}

	payload := body[:len(body)-1]
	sum := checksum(head[:]) ^ checksum(payload)
	if sum != body[len(body)-1] {
		return Packet{}, fmt.Errorf("%w: %s packet", ErrChecksum, PacketType(head[0]))
	}
	return Packet{Type: PacketType(head[0]), Device: suit.DeviceType(head[1]), Payload: payload}, nil
}

func (d *Decoder) sync() error {
	prev := byte(0)
	for {
		b, err := d.r.ReadByte()
		if err != nil {
			return err
		}
		if prev == sync0 && b == sync1 {
			return nil
		}
		prev = b
	}
}

func checksum(b []byte) byte {
	var x byte
	for _, v := range b {
		x ^= v
	}
	return x
}
