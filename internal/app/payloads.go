// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"gonum.org/v1/gonum/num/quat"

	"github.com/relabs-tech/motion_suit/internal/humanoid"
	"github.com/relabs-tech/motion_suit/internal/suit"
)

// Quat is the wire form of a rotation.
type Quat struct {
	W float64 `json:"w"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func quatOf(q quat.Number) Quat {
	return Quat{W: q.Real, X: q.Imag, Y: q.Jmag, Z: q.Kmag}
}

// AbsoluteUpperMsg is published on TOPIC_ABSOLUTE_UPPER, degrees.
type AbsoluteUpperMsg struct {
	Time   string                            `json:"time"`
	Joints humanoid.UpperBody[humanoid.Vec3] `json:"joints"`
}

// AbsoluteLowerMsg is published on TOPIC_ABSOLUTE_LOWER, degrees.
type AbsoluteLowerMsg struct {
	Time   string                            `json:"time"`
	Joints humanoid.LowerBody[humanoid.Vec3] `json:"joints"`
}

// LocalUpperMsg is published on TOPIC_LOCAL_UPPER.
type LocalUpperMsg struct {
	Time   string                   `json:"time"`
	Joints humanoid.UpperBody[Quat] `json:"joints"`
}

// LocalLowerMsg is published on TOPIC_LOCAL_LOWER.
type LocalLowerMsg struct {
	Time   string                   `json:"time"`
	Joints humanoid.LowerBody[Quat] `json:"joints"`
}

// stateTopic is the retained topic holding one half's latest state change.
func stateTopic(events string, device suit.DeviceType) string {
	return events + "/state/" + device.String()
}

// eventsFilter matches TOPIC_EVENTS and the state topics below it.
func eventsFilter(events string) string {
	return events + "/#"
}

// Event kinds on TOPIC_EVENTS.
const (
	EventState        = "state"
	EventNotification = "notification"
	EventError        = "error"
)

// EventMsg is one device event. Only the field matching Kind is set.
type EventMsg struct {
	Time         string            `json:"time"`
	Device       suit.DeviceType   `json:"device"`
	Kind         string            `json:"kind"`
	State        *suit.StateChange `json:"state,omitempty"`
	Notification string            `json:"notification,omitempty"`
	Error        string            `json:"error,omitempty"`
}

func (e EventMsg) String() string {
	switch e.Kind {
	case EventState:
		if e.State != nil {
			return fmt.Sprintf("%s %s -> %s", e.Device, e.State.Previous, e.State.Next)
		}
	case EventNotification:
		return fmt.Sprintf("%s %s", e.Device, e.Notification)
	case EventError:
		return fmt.Sprintf("%s error: %s", e.Device, e.Error)
	}
	return fmt.Sprintf("%s %s", e.Device, e.Kind)
}

// Command actions accepted on TOPIC_COMMAND.
const (
	ActionConnect    = "connect"
	ActionDisconnect = "disconnect"
	ActionCalibrate  = "calibrate"
	ActionReset      = "reset"
)

// CommandMsg asks the streamer to act on the suit.
type CommandMsg struct {
	Action string          `json:"action"`
	Device suit.DeviceType `json:"device,omitempty"`
}

func now() string {
	return time.Now().Format(time.RFC3339Nano)
}

func upperMsg(abs *humanoid.AbsoluteAngles) AbsoluteUpperMsg {
	return AbsoluteUpperMsg{Time: now(), Joints: abs.Upper()}
}

func lowerMsg(abs *humanoid.AbsoluteAngles) AbsoluteLowerMsg {
	return AbsoluteLowerMsg{Time: now(), Joints: abs.Lower()}
}

func localUpperMsg(local *humanoid.LocalAngles) LocalUpperMsg {
	u := local.Upper()
	return LocalUpperMsg{Time: now(), Joints: humanoid.UpperBody[Quat]{
		Chest:         quatOf(u.Chest),
		LeftUpperArm:  quatOf(u.LeftUpperArm),
		LeftLowerArm:  quatOf(u.LeftLowerArm),
		RightUpperArm: quatOf(u.RightUpperArm),
		RightLowerArm: quatOf(u.RightLowerArm),
	}}
}

func localLowerMsg(local *humanoid.LocalAngles) LocalLowerMsg {
	l := local.Lower()
	return LocalLowerMsg{Time: now(), Joints: humanoid.LowerBody[Quat]{
		Waist:         quatOf(l.Waist),
		LeftUpperLeg:  quatOf(l.LeftUpperLeg),
		LeftLowerLeg:  quatOf(l.LeftLowerLeg),
		RightUpperLeg: quatOf(l.RightUpperLeg),
		RightLowerLeg: quatOf(l.RightLowerLeg),
	}}
}

// publishJSON marshals v and publishes it, logging failures under component.
func publishJSON(client mqtt.Client, component, topic string, retained bool, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Printf("%s: json marshal error (%s): %v", component, topic, err)
		return
	}
	if token := client.Publish(topic, 0, retained, payload); token.Wait() && token.Error() != nil {
		log.Printf("%s: MQTT publish error (%s): %v", component, topic, token.Error())
	}
}

// subscribeJSON decodes every message on topic into a fresh T and hands it to fn.
func subscribeJSON[T any](client mqtt.Client, component, topic string, fn func(T)) error {
	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var v T
		if err := json.Unmarshal(msg.Payload(), &v); err != nil {
			log.Printf("%s: %s unmarshal error: %v", component, topic, err)
			return
		}
		fn(v)
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("%s: subscribed to %s", component, topic)
	return nil
}

func connectMQTT(component, broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("%s: MQTT connect: %w", component, token.Error())
	}
	log.Printf("%s: connected to MQTT broker at %s", component, broker)
	return client, nil
}
