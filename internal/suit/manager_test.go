// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package suit

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/relabs-tech/motion_suit/internal/humanoid"
	"github.com/relabs-tech/motion_suit/internal/orientation"
)

type fakeDriver struct {
	started    []DeviceType
	calibrated []DeviceType
	ended      int

	commands map[DeviceType][]InputCommand
	frames   map[DeviceType][]byte
	readErr  error
	startErr error
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		commands: map[DeviceType][]InputCommand{},
		frames:   map[DeviceType][]byte{},
	}
}

func (d *fakeDriver) StartStreaming(device DeviceType) error {
	d.started = append(d.started, device)
	return d.startErr
}

func (d *fakeDriver) EndStreaming() error {
	d.ended++
	return nil
}

func (d *fakeDriver) StartCalibration(device DeviceType) error {
	d.calibrated = append(d.calibrated, device)
	return nil
}

func (d *fakeDriver) PopCommand(device DeviceType) (InputCommand, bool) {
	q := d.commands[device]
	if len(q) == 0 {
		return 0, false
	}
	d.commands[device] = q[1:]
	return q[0], true
}

func (d *fakeDriver) ReadFrame(device DeviceType, buf []byte) (int, error) {
	if d.readErr != nil {
		return 0, d.readErr
	}
	f, ok := d.frames[device]
	if !ok {
		return 0, nil
	}
	delete(d.frames, device)
	return copy(buf, f), nil
}

func (d *fakeDriver) pushFrame(device DeviceType, f orientation.Frame) {
	d.frames[device] = append([]byte(nil), f[:]...)
}

func (d *fakeDriver) pushCommand(device DeviceType, cmd InputCommand) {
	d.commands[device] = append(d.commands[device], cmd)
}

type eventLog struct {
	changes       []string
	notifications []string
	errors        []string
}

func (l *eventLog) handler() EventHandler {
	return EventFuncs{
		OnStateChange: func(device DeviceType, c StateChange) {
			l.changes = append(l.changes, fmt.Sprintf("%s %s->%s", device, c.Previous, c.Next))
		},
		OnNotification: func(device DeviceType, n Notification) {
			l.notifications = append(l.notifications, fmt.Sprintf("%s %s", device, n))
		},
		OnError: func(device DeviceType, err DeviceError) {
			l.errors = append(l.errors, fmt.Sprintf("%s %v", device, err))
		},
	}
}

func poseFrame(roll, yaw float64) orientation.Frame {
	return orientation.Encode(orientation.ModuleSet{
		Center:    orientation.Sample{Roll: roll, Yaw: yaw},
		LeftUpper: orientation.Sample{Pitch: 0.3},
	})
}

func mustTick(t *testing.T, m *Manager) {
	t.Helper()
	if err := m.Tick(); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
}

func streamingManager(t *testing.T, device DeviceType) (*Manager, *fakeDriver) {
	t.Helper()
	d := newFakeDriver()
	m := NewManager(d)
	if err := m.Connect(device); err != nil {
		t.Fatalf("Connect(%s) error = %v", device, err)
	}
	if device.Has(Shirt) {
		d.pushFrame(Shirt, poseFrame(0.2, 0.4))
	}
	if device.Has(Pants) {
		d.pushFrame(Pants, poseFrame(-0.1, 0.8))
	}
	mustTick(t, m)
	return m, d
}

func TestManager_ConnectToStreaming(t *testing.T) {
	d := newFakeDriver()
	m := NewManager(d)
	var events eventLog
	m.Subscribe(events.handler())

	if err := m.Connect(Shirt); err != nil {
		t.Fatalf("Connect(Shirt) error = %v", err)
	}
	if m.ShirtState() != Initializing {
		t.Fatalf("ShirtState() = %s, want initializing", m.ShirtState())
	}
	if m.PantsState() != Disconnected {
		t.Errorf("PantsState() = %s, want disconnected", m.PantsState())
	}

	// zero frames mean the device is not sending data yet
	d.pushFrame(Shirt, orientation.Frame{})
	mustTick(t, m)
	if m.ShirtState() != Initializing {
		t.Fatalf("after zero frame ShirtState() = %s, want initializing", m.ShirtState())
	}

	f := poseFrame(0.5, 1.0)
	d.pushFrame(Shirt, f)
	mustTick(t, m)
	if m.ShirtState() != Streaming {
		t.Fatalf("ShirtState() = %s, want streaming", m.ShirtState())
	}

	want := humanoid.UpperFromModules(orientation.DecodeFrame(&f))
	if got := m.Absolute.Upper(); got != want {
		t.Errorf("Absolute.Upper() = %+v, want %+v", got, want)
	}
	if got := m.ShirtBaseOrientation(); got != want.Chest {
		t.Errorf("ShirtBaseOrientation() = %v, want chest %v", got, want.Chest)
	}

	wantChanges := []string{"shirt disconnected->initializing", "shirt initializing->streaming"}
	if fmt.Sprint(events.changes) != fmt.Sprint(wantChanges) {
		t.Errorf("state changes = %v, want %v", events.changes, wantChanges)
	}
	wantNotes := []string{"shirt reset-orientation", "pants reset-orientation"}
	if fmt.Sprint(events.notifications) != fmt.Sprint(wantNotes) {
		t.Errorf("notifications = %v, want %v", events.notifications, wantNotes)
	}
	if s := m.Stats(); s.ShirtFrames != 1 || s.PantsFrames != 0 {
		t.Errorf("Stats() = %+v, want one shirt frame", s)
	}
}

func TestManager_DisconnectKeepsBaseOrientations(t *testing.T) {
	for _, state := range []DeviceState{Initializing, Connected, Calibrating, Streaming} {
		t.Run(state.String(), func(t *testing.T) {
			m, d := streamingManager(t, All)
			m.SetShirtBaseOrientation(humanoid.Vec3{X: 1, Y: 2, Z: 3})
			m.SetPantsBaseOrientation(humanoid.Vec3{Z: -40})
			m.setShirtState(state)

			if err := m.Disconnect(); err != nil {
				t.Fatalf("Disconnect() error = %v", err)
			}
			if m.ShirtState() != Disconnected || m.PantsState() != Disconnected {
				t.Errorf("states = %s/%s, want disconnected", m.ShirtState(), m.PantsState())
			}
			if d.ended != 1 {
				t.Errorf("EndStreaming calls = %d, want 1", d.ended)
			}
			if got := m.ShirtBaseOrientation(); got != (humanoid.Vec3{X: 1, Y: 2, Z: 3}) {
				t.Errorf("ShirtBaseOrientation() = %v after disconnect", got)
			}
			if got := m.PantsBaseOrientation(); got != (humanoid.Vec3{Z: -40}) {
				t.Errorf("PantsBaseOrientation() = %v after disconnect", got)
			}
		})
	}
}

func TestManager_DisconnectWithoutDevice(t *testing.T) {
	d := newFakeDriver()
	m := NewManager(d)
	if err := m.Disconnect(); !errors.Is(err, ErrNothingConnected) {
		t.Fatalf("Disconnect() error = %v, want ErrNothingConnected", err)
	}
	if d.ended != 0 {
		t.Errorf("EndStreaming called %d times for a no-op disconnect", d.ended)
	}
}

func TestManager_ConnectGuards(t *testing.T) {
	tests := []struct {
		name      string
		active    DeviceType
		connect   DeviceType
		wantErr   error
		wantStart []DeviceType
		wantEnded int
		wantShirt DeviceState
		wantPants DeviceState
	}{
		{
			name:    "none",
			connect: None, wantErr: ErrNoDevice,
			wantShirt: Disconnected, wantPants: Disconnected,
		},
		{
			name:   "shirt twice",
			active: Shirt, connect: Shirt, wantErr: ErrAlreadyActive,
			wantStart: []DeviceType{Shirt},
			wantShirt: Streaming, wantPants: Disconnected,
		},
		{
			name:   "all while shirt active connects pants",
			active: Shirt, connect: All,
			wantStart: []DeviceType{Shirt, Pants},
			wantShirt: Streaming, wantPants: Initializing,
		},
		{
			name:   "all while pants active connects shirt",
			active: Pants, connect: All,
			wantStart: []DeviceType{Pants, Shirt},
			wantShirt: Initializing, wantPants: Streaming,
		},
		{
			name:   "shirt while pants active reconnects both",
			active: Pants, connect: Shirt,
			wantStart: []DeviceType{Pants, All}, wantEnded: 1,
			wantShirt: Initializing, wantPants: Initializing,
		},
		{
			name:   "pants while shirt active reconnects both",
			active: Shirt, connect: Pants,
			wantStart: []DeviceType{Shirt, All}, wantEnded: 1,
			wantShirt: Initializing, wantPants: Initializing,
		},
		{
			name:   "all twice",
			active: All, connect: All, wantErr: ErrAlreadyActive,
			wantStart: []DeviceType{All},
			wantShirt: Streaming, wantPants: Streaming,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				m *Manager
				d *fakeDriver
			)
			if tt.active != None {
				m, d = streamingManager(t, tt.active)
			} else {
				d = newFakeDriver()
				m = NewManager(d)
			}

			err := m.Connect(tt.connect)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Connect(%s) error = %v, want %v", tt.connect, err, tt.wantErr)
			}
			if fmt.Sprint(d.started) != fmt.Sprint(tt.wantStart) {
				t.Errorf("StartStreaming calls = %v, want %v", d.started, tt.wantStart)
			}
			if d.ended != tt.wantEnded {
				t.Errorf("EndStreaming calls = %d, want %d", d.ended, tt.wantEnded)
			}
			if m.ShirtState() != tt.wantShirt || m.PantsState() != tt.wantPants {
				t.Errorf("states = %s/%s, want %s/%s",
					m.ShirtState(), m.PantsState(), tt.wantShirt, tt.wantPants)
			}
		})
	}
}

func TestManager_SwapFailureNamesLostHalf(t *testing.T) {
	m, d := streamingManager(t, Pants)
	linkDown := errors.New("link down")
	d.startErr = linkDown

	err := m.Connect(Shirt)
	if !errors.Is(err, linkDown) {
		t.Fatalf("Connect(shirt) error = %v, want %v", err, linkDown)
	}
	if want := "pants left disconnected"; !strings.Contains(err.Error(), want) {
		t.Errorf("Connect(shirt) error = %q, want it to contain %q", err, want)
	}
	if m.ShirtState() != Disconnected || m.PantsState() != Disconnected {
		t.Errorf("states = %s/%s, want disconnected/disconnected", m.ShirtState(), m.PantsState())
	}
}

func TestManager_StartFailureKeepsDisconnected(t *testing.T) {
	d := newFakeDriver()
	d.startErr = errors.New("no dongle")
	m := NewManager(d)

	err := m.Connect(Shirt)
	if err == nil || strings.Contains(err.Error(), "left disconnected") {
		t.Fatalf("Connect(shirt) error = %v, want a plain start failure", err)
	}
	if m.IsAnyActive() {
		t.Error("suit active after failed connect")
	}
}

func TestManager_CalibrateRequiresDisconnected(t *testing.T) {
	m, d := streamingManager(t, Shirt)

	if err := m.Calibrate(Shirt); !errors.Is(err, ErrNotDisconnected) {
		t.Errorf("Calibrate(Shirt) error = %v, want ErrNotDisconnected", err)
	}
	if err := m.Calibrate(All); !errors.Is(err, ErrNotDisconnected) {
		t.Errorf("Calibrate(All) error = %v, want ErrNotDisconnected", err)
	}
	if err := m.Calibrate(None); !errors.Is(err, ErrNoDevice) {
		t.Errorf("Calibrate(None) error = %v, want ErrNoDevice", err)
	}
	if err := m.Calibrate(Pants); err != nil {
		t.Errorf("Calibrate(Pants) error = %v", err)
	}
	if len(d.calibrated) != 1 || d.calibrated[0] != Pants {
		t.Errorf("StartCalibration calls = %v, want [pants]", d.calibrated)
	}
}

func TestManager_CalibrationLifecycle(t *testing.T) {
	d := newFakeDriver()
	m := NewManager(d)

	if err := m.Calibrate(Pants); err != nil {
		t.Fatalf("Calibrate(Pants) error = %v", err)
	}
	d.pushCommand(Pants, CommandCalibrationStarted)
	mustTick(t, m)
	if m.PantsState() != Calibrating {
		t.Fatalf("PantsState() = %s, want calibrating", m.PantsState())
	}

	d.pushCommand(Pants, CommandCalibrationFinished)
	mustTick(t, m)
	if m.PantsState() != Disconnected {
		t.Errorf("PantsState() = %s, want disconnected", m.PantsState())
	}
	if d.ended != 1 {
		t.Errorf("EndStreaming calls = %d, want 1", d.ended)
	}
}

func TestManager_DeviceErrors(t *testing.T) {
	tests := []struct {
		cmd     InputCommand
		device  DeviceType
		wantErr DeviceError
	}{
		{CommandErrorCalibrationFailed, Shirt, CalibrationFailed},
		{CommandErrorNoCalibration, Shirt, NoCalibration},
		{CommandErrorNoShirtPants, Shirt, UnknownDevice},
		{CommandErrorCalibrationFailed, Pants, CalibrationFailed},
		{CommandErrorNoCalibration, Pants, NoCalibration},
		{CommandErrorNoShirtPants, Pants, UnknownDevice},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s", tt.device, tt.cmd), func(t *testing.T) {
			d := newFakeDriver()
			m := NewManager(d)
			var events eventLog
			m.Subscribe(events.handler())

			d.pushCommand(tt.device, CommandCalibrationStarted)
			d.pushCommand(tt.device, tt.cmd)
			if err := m.Tick(); err != nil {
				t.Fatalf("device errors must not fail the tick: %v", err)
			}

			if got := m.state(tt.device); got != Connected {
				t.Errorf("%s state = %s, want connected", tt.device, got)
			}
			want := []string{fmt.Sprintf("%s %v", tt.device, tt.wantErr)}
			if fmt.Sprint(events.errors) != fmt.Sprint(want) {
				t.Errorf("errors = %v, want %v", events.errors, want)
			}
			if d.ended != 0 {
				t.Errorf("device error ended the session")
			}
		})
	}
}

func TestManager_ResetOrientationCommand(t *testing.T) {
	m, d := streamingManager(t, All)
	m.SetShirtBaseOrientation(humanoid.Vec3{})
	m.SetPantsBaseOrientation(humanoid.Vec3{})

	d.pushCommand(Pants, CommandResetOrientation)
	mustTick(t, m)

	if got, want := m.ShirtBaseOrientation(), m.Absolute.Chest(); got != want {
		t.Errorf("ShirtBaseOrientation() = %v, want %v", got, want)
	}
	if got, want := m.PantsBaseOrientation(), m.Absolute.Waist(); got != want {
		t.Errorf("PantsBaseOrientation() = %v, want %v", got, want)
	}
}

func TestManager_ShortFrameIsRejected(t *testing.T) {
	d := newFakeDriver()
	m := NewManager(d)
	if err := m.Connect(Shirt); err != nil {
		t.Fatal(err)
	}
	f := poseFrame(0.5, 0)
	d.frames[Shirt] = f[:12]

	err := m.Tick()
	if !errors.Is(err, orientation.ErrShortFrame) {
		t.Fatalf("Tick() error = %v, want ErrShortFrame", err)
	}
	if m.ShirtState() != Initializing {
		t.Errorf("ShirtState() = %s, short frame must not advance the session", m.ShirtState())
	}
	if got := m.Absolute.Chest(); got != (humanoid.Vec3{}) {
		t.Errorf("Absolute.Chest() = %v, short frame must not be applied", got)
	}
	if s := m.Stats(); s.DecodeErrors != 1 {
		t.Errorf("Stats().DecodeErrors = %d, want 1", s.DecodeErrors)
	}
}

func TestManager_DriverErrorSurfaces(t *testing.T) {
	m, d := streamingManager(t, Shirt)
	d.readErr = errors.New("link lost")

	err := m.Tick()
	if err == nil || !errors.Is(err, d.readErr) {
		t.Fatalf("Tick() error = %v, want wrapped driver error", err)
	}
	if m.ShirtState() != Streaming {
		t.Errorf("ShirtState() = %s, a read failure must not change state", m.ShirtState())
	}
}

func TestManager_FramesDoNotAlias(t *testing.T) {
	d := newFakeDriver()
	m := NewManager(d)
	if err := m.Connect(All); err != nil {
		t.Fatal(err)
	}

	var tapped []orientation.Frame
	m.SetFrameTap(func(device DeviceType, f orientation.Frame) {
		tapped = append(tapped, f)
	})

	shirt := poseFrame(0.5, 1.0)
	pants := poseFrame(-0.7, -2.0)
	d.pushFrame(Shirt, shirt)
	d.pushFrame(Pants, pants)
	mustTick(t, m)

	if got, want := m.Absolute.Chest(), humanoid.UpperFromModules(orientation.DecodeFrame(&shirt)).Chest; got != want {
		t.Errorf("Absolute.Chest() = %v, want %v", got, want)
	}
	if got, want := m.Absolute.Waist(), humanoid.LowerFromModules(orientation.DecodeFrame(&pants)).Waist; got != want {
		t.Errorf("Absolute.Waist() = %v, want %v", got, want)
	}
	if len(tapped) != 2 || tapped[0] != shirt || tapped[1] != pants {
		t.Fatalf("tapped frames = %v, want shirt then pants", tapped)
	}

	// the tap gets a copy, not the manager's buffer
	tapped[0][0] ^= 0xFF
	if m.shirtBuf[0] != shirt[0] {
		t.Errorf("tap aliases the shirt buffer")
	}
}

func TestManager_ShutdownIsUnconditional(t *testing.T) {
	d := newFakeDriver()
	m := NewManager(d)
	if err := m.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if d.ended != 1 {
		t.Errorf("EndStreaming calls = %d, want 1", d.ended)
	}
}

func TestStream_ResetIsIdempotent(t *testing.T) {
	s := NewStream()
	var events eventLog
	s.Subscribe(events.handler())

	s.Absolute.SetChest(humanoid.Vec3{X: 4, Y: -3, Z: 120})
	s.Absolute.SetWaist(humanoid.Vec3{Z: 95})

	s.ResetBaseOrientation(Shirt)
	first := s.ShirtBaseOrientation()
	s.ResetBaseOrientation(Shirt)
	if got := s.ShirtBaseOrientation(); got != first {
		t.Errorf("second reset changed base: %v -> %v", first, got)
	}
	if first != (humanoid.Vec3{X: 4, Y: -3, Z: 120}) {
		t.Errorf("ShirtBaseOrientation() = %v, want chest", first)
	}
	if got := s.PantsBaseOrientation(); got != (humanoid.Vec3{}) {
		t.Errorf("shirt reset touched pants base: %v", got)
	}

	s.ResetBaseOrientation(All)
	if got := s.PantsBaseOrientation(); got != (humanoid.Vec3{Z: 95}) {
		t.Errorf("PantsBaseOrientation() = %v, want waist", got)
	}

	want := []string{
		"shirt reset-orientation", "shirt reset-orientation",
		"shirt reset-orientation", "pants reset-orientation",
	}
	if fmt.Sprint(events.notifications) != fmt.Sprint(want) {
		t.Errorf("notifications = %v, want %v", events.notifications, want)
	}
}

func TestStream_Unsubscribe(t *testing.T) {
	s := NewStream()
	var events eventLog
	unsubscribe := s.Subscribe(events.handler())
	s.ResetShirtBaseOrientation()
	unsubscribe()
	s.ResetShirtBaseOrientation()
	if len(events.notifications) != 1 {
		t.Errorf("notifications = %v, want one before unsubscribe", events.notifications)
	}
}

func TestMockDriver_Session(t *testing.T) {
	m := NewManager(NewMockDriver())
	if err := m.Connect(All); err != nil {
		t.Fatal(err)
	}
	mustTick(t, m)
	if m.ShirtState() != Streaming || m.PantsState() != Streaming {
		t.Fatalf("states = %s/%s, want streaming", m.ShirtState(), m.PantsState())
	}

	if err := m.Disconnect(); err != nil {
		t.Fatal(err)
	}
	if err := m.Calibrate(Shirt); err != nil {
		t.Fatal(err)
	}
	mustTick(t, m)
	if m.ShirtState() != Calibrating {
		t.Fatalf("ShirtState() = %s, want calibrating", m.ShirtState())
	}
	for i := 0; i < mockCalibrationPolls && m.ShirtState() == Calibrating; i++ {
		mustTick(t, m)
	}
	if m.ShirtState() != Disconnected {
		t.Errorf("ShirtState() = %s, want disconnected after calibration", m.ShirtState())
	}
}

func TestParseDeviceType(t *testing.T) {
	tests := []struct {
		in      string
		want    DeviceType
		wantErr bool
	}{
		{"shirt", Shirt, false},
		{"Pants", Pants, false},
		{" all ", All, false},
		{"both", All, false},
		{"", None, false},
		{"hat", None, true},
	}
	for _, tt := range tests {
		got, err := ParseDeviceType(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseDeviceType(%q) = %s, %v; want %s, err %v", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}
