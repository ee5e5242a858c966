// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"fmt"

	"github.com/relabs-tech/motion_suit/internal/app"
	"github.com/relabs-tech/motion_suit/internal/config"
)

type LiveCommand struct{}

func (c *LiveCommand) Execute(args []string) error {
	if err := config.InitGlobal(opts.Config); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	return app.RunMonitor()
}
