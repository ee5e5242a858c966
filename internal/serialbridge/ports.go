// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package serialbridge

import (
	"errors"
	"strings"

	"go.bug.st/serial"
)

var ErrNoPort = errors.New("serialbridge: no dongle port found")

// dongle ports on linux, macOS and windows, in order of preference
var portHints = []string{"ttyACM", "ttyUSB", "usbmodem", "usbserial", "COM"}

// FindPort returns the first serial port that looks like a USB dongle.
func FindPort() (string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return "", err
	}
	if p, ok := pickPort(ports); ok {
		return p, nil
	}
	return "", ErrNoPort
}

func pickPort(ports []string) (string, bool) {
	for _, hint := range portHints {
		for _, p := range ports {
			// Skip Bluetooth ports on macOS
			if strings.Contains(p, "Bluetooth") {
				continue
			}
			if strings.Contains(p, hint) {
				return p, true
			}
		}
	}
	return "", false
}
