// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/motion_suit/internal/suit"
)

// anglesPushInterval is how often /ws/angles checks for a newer snapshot.
const anglesPushInterval = 50 * time.Millisecond

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WSMessage is a control request from the browser.
type WSMessage struct {
	Action string `json:"action"` // connect, disconnect, calibrate, reset
	Device string `json:"device,omitempty"`
}

// WSResponse is everything the control socket sends back.
type WSResponse struct {
	Type    string    `json:"type"` // ack, event, error
	Action  string    `json:"action,omitempty"`
	Device  string    `json:"device,omitempty"`
	Event   *EventMsg `json:"event,omitempty"`
	Message string    `json:"message,omitempty"`
}

// ControlSession serialises writes on one control socket.
type ControlSession struct {
	Conn *websocket.Conn
	mu   sync.Mutex
}

func (s *ControlSession) send(resp WSResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.Conn.WriteJSON(resp); err != nil {
		log.Printf("control: websocket write error: %v", err)
	}
}

func (s *ControlSession) sendError(message string) {
	s.send(WSResponse{Type: "error", Message: message})
}

// commandFromWS validates a browser request and turns it into a streamer command.
func commandFromWS(msg WSMessage) (CommandMsg, error) {
	device, err := suit.ParseDeviceType(msg.Device)
	if err != nil {
		return CommandMsg{}, err
	}
	switch msg.Action {
	case ActionConnect, ActionCalibrate:
		if device == suit.None {
			return CommandMsg{}, fmt.Errorf("%s needs a device", msg.Action)
		}
	case ActionDisconnect, ActionReset:
	default:
		return CommandMsg{}, fmt.Errorf("%w: %q", errUnknownAction, msg.Action)
	}
	return CommandMsg{Action: msg.Action, Device: device}, nil
}

// handleControlWS forwards browser actions to the streamer and relays every
// device event back, so the page sees the outcome of what it asked for.
func (s *webServer) handleControlWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("control: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	session := &ControlSession{Conn: conn}

	events, unsubscribe := s.cache.subscribeEvents()
	defer unsubscribe()
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case e := <-events:
				session.send(WSResponse{Type: "event", Device: e.Device.String(), Event: &e})
			case <-done:
				return
			}
		}
	}()

	// Main message loop
	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("control: websocket read error: %v", err)
			}
			return
		}

		cmd, err := commandFromWS(msg)
		if err != nil {
			session.sendError(err.Error())
			continue
		}
		log.Printf("control: %s %s", cmd.Action, cmd.Device)
		s.pub.Publish(s.commandTopic, false, cmd)
		session.send(WSResponse{Type: "ack", Action: cmd.Action, Device: cmd.Device.String()})
	}
}

// handleAnglesWS pushes a snapshot whenever the cache has moved on.
func (s *webServer) handleAnglesWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("angles: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	// Reader only notices the close; clients never send anything useful.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(anglesPushInterval)
	defer ticker.Stop()

	var lastSeq uint64
	for {
		select {
		case <-ticker.C:
			snap := s.cache.snapshot()
			if snap.Seq == lastSeq {
				continue
			}
			lastSeq = snap.Seq
			if err := conn.WriteJSON(snap); err != nil {
				log.Printf("angles: websocket write error: %v", err)
				return
			}
		case <-closed:
			return
		}
	}
}
