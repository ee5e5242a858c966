// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package serialbridge

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/relabs-tech/motion_suit/internal/orientation"
	"github.com/relabs-tech/motion_suit/internal/suit"
)

func mustMarshal(t *testing.T, p Packet) []byte {
	t.Helper()
	b, err := p.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary() error = %v", err)
	}
	return b
}

func TestPacket_Wire(t *testing.T) {
	p := Packet{Type: PacketStartStreaming, Device: suit.All}
	got := mustMarshal(t, p)
	want := []byte{0xA5, 0x5A, 0x10, 0x03, 0x00, 0x10 ^ 0x03}
	if !bytes.Equal(got, want) {
		t.Errorf("MarshalBinary() = % x, want % x", got, want)
	}

	if _, err := (Packet{Payload: make([]byte, 256)}).MarshalBinary(); !errors.Is(err, ErrPayloadTooLong) {
		t.Errorf("256 byte payload error = %v, want ErrPayloadTooLong", err)
	}
}

func TestDecoder_SkipsNoise(t *testing.T) {
	frame := orientation.Encode(orientation.MockModuleSet(1.5))
	var stream bytes.Buffer
	stream.Write([]byte{0x00, 0xA5, 0x13, 0x5A})
	stream.Write(mustMarshal(t, Packet{Type: PacketFrame, Device: suit.Pants, Payload: frame[:]}))
	stream.Write([]byte{0xFF})
	stream.Write(mustMarshal(t, StatusPacket(suit.Shirt, suit.CommandDeviceConnected)))

	dec := NewDecoder(&stream)

	p, err := dec.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if p.Type != PacketFrame || p.Device != suit.Pants || !bytes.Equal(p.Payload, frame[:]) {
		t.Errorf("first packet = %+v", p)
	}

	p, err = dec.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	cmd, err := p.Status()
	if err != nil || cmd != suit.CommandDeviceConnected || p.Device != suit.Shirt {
		t.Errorf("second packet = %+v (%v, %v)", p, cmd, err)
	}

	if _, err := dec.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Next() at end error = %v, want EOF", err)
	}
}

func TestDecoder_ChecksumRecovers(t *testing.T) {
	bad := mustMarshal(t, StatusPacket(suit.Shirt, suit.CommandResetOrientation))
	bad[len(bad)-1] ^= 0x01
	good := mustMarshal(t, StatusPacket(suit.Pants, suit.CommandCalibrationStarted))

	dec := NewDecoder(bytes.NewReader(append(bad, good...)))
	if _, err := dec.Next(); !errors.Is(err, ErrChecksum) {
		t.Fatalf("Next() error = %v, want ErrChecksum", err)
	}
	p, err := dec.Next()
	if err != nil {
		t.Fatalf("Next() after bad packet error = %v", err)
	}
	if cmd, _ := p.Status(); cmd != suit.CommandCalibrationStarted {
		t.Errorf("status = %v, want calibration-started", cmd)
	}
}

func TestStatus_AllCodes(t *testing.T) {
	codes := []suit.InputCommand{
		suit.CommandResetOrientation, suit.CommandCalibrationFinished, suit.CommandCalibrationStarted,
		suit.CommandDeviceConnected, suit.CommandDeviceDisconnected,
		suit.CommandErrorNoCalibration, suit.CommandErrorNoShirtPants, suit.CommandErrorCalibrationFailed,
	}
	for _, c := range codes {
		got, err := StatusPacket(suit.Pants, c).Status()
		if err != nil || got != c {
			t.Errorf("Status() = %v, %v; want %v", got, err, c)
		}
	}
	if _, err := (Packet{Type: PacketStatus, Payload: []byte{1}}).Status(); !errors.Is(err, ErrBadStatus) {
		t.Errorf("one byte status error = %v, want ErrBadStatus", err)
	}
}

func TestPickPort(t *testing.T) {
	tests := []struct {
		ports []string
		want  string
		ok    bool
	}{
		{[]string{"/dev/ttyS0", "/dev/ttyUSB0", "/dev/ttyACM1"}, "/dev/ttyACM1", true},
		{[]string{"/dev/cu.Bluetooth-Incoming-Port", "/dev/cu.usbmodem1101"}, "/dev/cu.usbmodem1101", true},
		{[]string{"COM3"}, "COM3", true},
		{[]string{"/dev/ttyS0"}, "", false},
		{nil, "", false},
	}
	for _, tt := range tests {
		got, ok := pickPort(tt.ports)
		if got != tt.want || ok != tt.ok {
			t.Errorf("pickPort(%v) = %q, %v; want %q, %v", tt.ports, got, ok, tt.want, tt.ok)
		}
	}
}

type pipePort struct {
	r *io.PipeReader
	w *io.PipeWriter

	mu      sync.Mutex
	written bytes.Buffer
}

func newPipePort() *pipePort {
	r, w := io.Pipe()
	return &pipePort{r: r, w: w}
}

func (p *pipePort) Read(b []byte) (int, error) { return p.r.Read(b) }

func (p *pipePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.Write(b)
}

func (p *pipePort) Close() error { return p.r.Close() }

func (p *pipePort) sent() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.written.Bytes()...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestDriver_BuffersPerDevice(t *testing.T) {
	port := newPipePort()
	d := NewDriver(port)
	defer d.Close()

	shirt := orientation.Encode(orientation.MockModuleSet(0.5))
	pants := orientation.Encode(orientation.MockModuleSet(2.5))
	for _, p := range []Packet{
		StatusPacket(suit.Shirt, suit.CommandDeviceConnected),
		StatusPacket(suit.Shirt, suit.CommandCalibrationStarted),
		{Type: PacketFrame, Device: suit.Shirt, Payload: shirt[:]},
		{Type: PacketFrame, Device: suit.Pants, Payload: pants[:]},
	} {
		if _, err := port.w.Write(mustMarshal(t, p)); err != nil {
			t.Fatal(err)
		}
	}

	var buf [orientation.FrameSize]byte
	var n int
	waitFor(t, "pants frame", func() bool {
		var err error
		n, err = d.ReadFrame(suit.Pants, buf[:])
		if err != nil {
			t.Fatalf("ReadFrame() error = %v", err)
		}
		return n > 0
	})
	if n != orientation.FrameSize || orientation.Frame(buf) != pants {
		t.Errorf("pants frame = % x, want % x", buf[:n], pants)
	}
	if n, _ := d.ReadFrame(suit.Pants, buf[:]); n != 0 {
		t.Errorf("pants frame returned twice")
	}

	n, _ = d.ReadFrame(suit.Shirt, buf[:])
	if orientation.Frame(buf) != shirt || n != orientation.FrameSize {
		t.Errorf("shirt frame = % x, want % x", buf[:n], shirt)
	}

	for _, want := range []suit.InputCommand{suit.CommandDeviceConnected, suit.CommandCalibrationStarted} {
		got, ok := d.PopCommand(suit.Shirt)
		if !ok || got != want {
			t.Errorf("PopCommand(Shirt) = %v, %v; want %v", got, ok, want)
		}
	}
	if _, ok := d.PopCommand(suit.Pants); ok {
		t.Errorf("pants got a shirt command")
	}
}

func TestDriver_Requests(t *testing.T) {
	port := newPipePort()
	d := NewDriver(port)
	defer d.Close()

	if err := d.StartStreaming(suit.Shirt); err != nil {
		t.Fatal(err)
	}
	if err := d.StartCalibration(suit.Pants); err != nil {
		t.Fatal(err)
	}
	if err := d.EndStreaming(); err != nil {
		t.Fatal(err)
	}

	var want []byte
	want = append(want, mustMarshal(t, Packet{Type: PacketStartStreaming, Device: suit.Shirt})...)
	want = append(want, mustMarshal(t, Packet{Type: PacketStartCalibration, Device: suit.Pants})...)
	want = append(want, mustMarshal(t, Packet{Type: PacketEndStreaming, Device: suit.All})...)
	if got := port.sent(); !bytes.Equal(got, want) {
		t.Errorf("sent % x, want % x", got, want)
	}
}

func TestDriver_LinkErrorReportedOnce(t *testing.T) {
	port := newPipePort()
	d := NewDriver(port)
	port.w.CloseWithError(errors.New("unplugged"))
	<-d.done

	var buf [orientation.FrameSize]byte
	if _, err := d.ReadFrame(suit.Shirt, buf[:]); err == nil {
		t.Fatalf("ReadFrame() after link loss returned no error")
	}
	if _, err := d.ReadFrame(suit.Shirt, buf[:]); err != nil {
		t.Errorf("link error reported twice: %v", err)
	}
}

func TestDriver_WithManager(t *testing.T) {
	port := newPipePort()
	d := NewDriver(port)
	defer d.Close()

	m := suit.NewManager(d)
	if err := m.Connect(suit.Shirt); err != nil {
		t.Fatal(err)
	}

	short := []byte{1, 2, 3}
	if _, err := port.w.Write(mustMarshal(t, Packet{Type: PacketFrame, Device: suit.Shirt, Payload: short})); err != nil {
		t.Fatal(err)
	}
	var tickErr error
	waitFor(t, "short frame", func() bool {
		tickErr = m.Tick()
		return tickErr != nil
	})
	if !errors.Is(tickErr, orientation.ErrShortFrame) {
		t.Errorf("Tick() error = %v, want ErrShortFrame", tickErr)
	}

	frame := orientation.Encode(orientation.MockModuleSet(3))
	if _, err := port.w.Write(mustMarshal(t, Packet{Type: PacketFrame, Device: suit.Shirt, Payload: frame[:]})); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "streaming", func() bool {
		if err := m.Tick(); err != nil {
			t.Fatalf("Tick() error = %v", err)
		}
		return m.ShirtState() == suit.Streaming
	})
}
