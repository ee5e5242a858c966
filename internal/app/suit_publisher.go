// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"errors"
	"fmt"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"gonum.org/v1/gonum/num/quat"

	"github.com/relabs-tech/motion_suit/internal/config"
	"github.com/relabs-tech/motion_suit/internal/humanoid"
	"github.com/relabs-tech/motion_suit/internal/suit"
)

// publisher sends one JSON payload to a topic.
type publisher interface {
	Publish(topic string, retained bool, v any)
}

type mqttPublisher struct {
	client    mqtt.Client
	component string
}

func (p mqttPublisher) Publish(topic string, retained bool, v any) {
	publishJSON(p.client, p.component, topic, retained, v)
}

// attachPublisher mirrors a suit stream onto the configured topics: absolute
// and local angles per body half, plus every device event. The returned
// function detaches all observers again.
func attachPublisher(pub publisher, cfg *config.Config, stream *suit.Stream, body *humanoid.Humanoid) (detach func()) {
	unsubAbs := stream.Absolute.Subscribe(humanoid.ObserverFuncs[humanoid.Vec3]{
		Upper: func(a *humanoid.AbsoluteAngles) {
			pub.Publish(cfg.TopicAbsoluteUpper, false, upperMsg(a))
		},
		Lower: func(a *humanoid.AbsoluteAngles) {
			pub.Publish(cfg.TopicAbsoluteLower, false, lowerMsg(a))
		},
	})

	unsubLocal := body.Local.Subscribe(humanoid.ObserverFuncs[quat.Number]{
		Upper: func(l *humanoid.LocalAngles) {
			pub.Publish(cfg.TopicLocalUpper, false, localUpperMsg(l))
		},
		Lower: func(l *humanoid.LocalAngles) {
			pub.Publish(cfg.TopicLocalLower, false, localLowerMsg(l))
		},
	})

	unsubEvents := stream.Subscribe(suit.EventFuncs{
		OnStateChange: func(device suit.DeviceType, c suit.StateChange) {
			// one retained topic per half so a late subscriber sees both
			pub.Publish(stateTopic(cfg.TopicEvents, device), true, EventMsg{Time: now(), Device: device, Kind: EventState, State: &c})
		},
		OnNotification: func(device suit.DeviceType, n suit.Notification) {
			pub.Publish(cfg.TopicEvents, false, EventMsg{Time: now(), Device: device, Kind: EventNotification, Notification: n.String()})
		},
		OnError: func(device suit.DeviceType, err suit.DeviceError) {
			pub.Publish(cfg.TopicEvents, false, EventMsg{Time: now(), Device: device, Kind: EventError, Error: err.Error()})
		},
	})

	return func() {
		unsubAbs()
		unsubLocal()
		unsubEvents()
	}
}

var errUnknownAction = errors.New("unknown action")

// applyCommand runs one remote command against the manager. Operational
// errors are returned for the caller to report; none of them are fatal.
func applyCommand(m *suit.Manager, cmd CommandMsg) error {
	log.Printf("streamer: command %s %s", cmd.Action, cmd.Device)
	switch cmd.Action {
	case ActionConnect:
		return m.Connect(cmd.Device)
	case ActionDisconnect:
		return m.Disconnect()
	case ActionCalibrate:
		return m.Calibrate(cmd.Device)
	case ActionReset:
		device := cmd.Device
		if device == suit.None {
			device = suit.All
		}
		m.ResetBaseOrientation(device)
		return nil
	}
	return fmt.Errorf("%w: %q", errUnknownAction, cmd.Action)
}
