// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"time"

	"github.com/relabs-tech/motion_suit/internal/config"
	"github.com/relabs-tech/motion_suit/internal/humanoid"
	"github.com/relabs-tech/motion_suit/internal/suit"
)

// RunMockConsole drives a mock suit through a full session without MQTT and
// prints absolute angles plus local chest and waist yaw.
func RunMockConsole() error {
	cfg := config.Get()

	manager := suit.NewManager(suit.NewMockDriver())
	body := humanoid.New(manager)
	body.Attach(&manager.Absolute)
	defer body.Detach()

	unsubscribe := manager.Subscribe(suit.EventFuncs{
		OnStateChange: func(device suit.DeviceType, c suit.StateChange) {
			fmt.Printf("[EVENT]   %s %s -> %s\n", device, c.Previous, c.Next)
		},
		OnNotification: func(device suit.DeviceType, n suit.Notification) {
			fmt.Printf("[EVENT]   %s %s\n", device, n)
		},
	})
	defer unsubscribe()

	if err := manager.Connect(suit.All); err != nil {
		return err
	}

	ticker := time.NewTicker(time.Duration(cfg.SuitTickInterval) * time.Millisecond)
	defer ticker.Stop()
	printEvery := time.Duration(cfg.ConsoleLogInterval) * time.Millisecond
	var lastPrint time.Time

	for t := range ticker.C {
		if err := manager.Tick(); err != nil {
			return err
		}
		if t.Sub(lastPrint) < printEvery {
			continue
		}
		lastPrint = t

		fmt.Println(formatUpper(manager.Absolute.Upper()))
		fmt.Println(formatLower(manager.Absolute.Lower()))
		chest := humanoid.QuatToEuler(body.Local.Chest())
		waist := humanoid.QuatToEuler(body.Local.Waist())
		fmt.Printf("[LOCAL]   chest yaw=%7.2f  waist yaw=%7.2f\n", chest.Z, waist.Z)
	}
	return nil
}
