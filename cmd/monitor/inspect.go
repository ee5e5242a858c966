// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/relabs-tech/motion_suit/internal/recording"
	"github.com/relabs-tech/motion_suit/internal/suit"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type InspectCommand struct {
	Args struct {
		File string `positional-arg-name:"file" required:"yes" description:"Recording to inspect"`
	} `positional-args:"yes"`
}

func (c *InspectCommand) Execute(args []string) error {
	f, err := os.Open(c.Args.File)
	if err != nil {
		return err
	}
	defer f.Close()

	// Replay into a detached stream as fast as possible; this checks every record.
	player := recording.NewPlayer(suit.NewStream())
	player.Realtime = false
	stats, err := player.Play(context.Background(), f)
	if err != nil {
		return fmt.Errorf("%s: %w", c.Args.File, err)
	}

	h := stats.Header
	fmt.Println(headerStyle.Render(c.Args.File))
	fmt.Printf("  version     %d / frame %d\n", h.HeaderVersion, h.FrameVersion)
	fmt.Printf("  duration    %v\n", h.Duration())
	fmt.Printf("  shirt       %d frames, base %s\n", h.NumShirtFrames, h.ShirtBase)
	fmt.Printf("  pants       %d frames, base %s\n", h.NumPantsFrames, h.PantsBase)

	if stats.ShirtFrames != h.NumShirtFrames || stats.PantsFrames != h.NumPantsFrames {
		fmt.Println(dimStyle.Render(fmt.Sprintf("  header counts differ from records: %d shirt, %d pants",
			stats.ShirtFrames, stats.PantsFrames)))
		return nil
	}
	fmt.Println(successStyle.Render(fmt.Sprintf("  ok, last record at %v", stats.LastTimestamp)))
	return nil
}
