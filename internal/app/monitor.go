// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"strings"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/relabs-tech/motion_suit/internal/config"
	"github.com/relabs-tech/motion_suit/internal/suit"
)

const (
	headerHeight = 3 // title + states + blank line
	legendHeight = 2 // legend row + blank
	footerHeight = 7 // log box height
	maxLogs      = 5 // number of log messages to show
	borderSize   = 2 // chart border
)

// Series plotted by the monitor, with their colors.
var monitorSeries = []struct {
	name  string
	color string
}{
	{"chest", "196"}, // red
	{"waist", "51"},  // cyan
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	stateStyles = map[suit.DeviceState]lipgloss.Style{
		suit.Streaming:    lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		suit.Calibrating:  lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		suit.Initializing: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		suit.Connected:    lipgloss.NewStyle().Foreground(lipgloss.Color("14")),
	}
)

// Messages from MQTT
type yawUpdate struct {
	series string
	yaw    float64
}
type eventUpdate EventMsg

func waitForUpdate(updates <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-updates
	}
}

type monitorModel struct {
	chart    *streamlinechart.Model
	updates  <-chan tea.Msg
	send     func(CommandMsg)
	width    int
	height   int
	shirt    suit.DeviceState
	pants    suit.DeviceState
	logs     []string
	quitting bool
}

func newMonitorModel(updates <-chan tea.Msg, send func(CommandMsg)) monitorModel {
	chart := streamlinechart.New(80, 20,
		streamlinechart.WithYRange(-180, 180),
	)
	for _, s := range monitorSeries {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(s.color))
		chart.SetDataSetStyles(s.name, runes.ThinLineStyle, style)
	}
	return monitorModel{chart: &chart, updates: updates, send: send}
}

func (m *monitorModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// chartSize calculates the size of the chart based on terminal dimensions
func (m *monitorModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 20
	}
	width = max(m.width-borderSize-2, 40)
	height = max(m.height-headerHeight-legendHeight-footerHeight-borderSize, 10)
	return width, height
}

func (m monitorModel) Init() tea.Cmd {
	return waitForUpdate(m.updates)
}

// monitorKeys maps key presses to commands for the whole suit.
var monitorKeys = map[string]CommandMsg{
	"c": {Action: ActionConnect, Device: suit.All},
	"d": {Action: ActionDisconnect},
	"k": {Action: ActionCalibrate, Device: suit.All},
	"r": {Action: ActionReset, Device: suit.All},
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.chart.Resize(m.chartSize())
		return m, nil

	case tea.KeyMsg:
		key := msg.String()
		if key == "q" || key == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
		if cmd, ok := monitorKeys[key]; ok {
			m.send(cmd)
			m.addLog(fmt.Sprintf("sent %s %s", cmd.Action, cmd.Device))
		}
		return m, nil

	case yawUpdate:
		m.chart.PushDataSet(msg.series, msg.yaw)
		m.chart.DrawAll()
		return m, waitForUpdate(m.updates)

	case eventUpdate:
		e := EventMsg(msg)
		if e.Kind == EventState && e.State != nil {
			if e.Device.Has(suit.Shirt) {
				m.shirt = e.State.Next
			}
			if e.Device.Has(suit.Pants) {
				m.pants = e.State.Next
			}
		} else {
			m.addLog(e.String())
		}
		return m, waitForUpdate(m.updates)
	}

	return m, nil
}

func renderState(label string, s suit.DeviceState) string {
	style, ok := stateStyles[s]
	if !ok {
		style = statusStyle
	}
	return label + " " + style.Render(s.String())
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Monitor stopped.\n"
	}

	var sb strings.Builder

	// Header
	sb.WriteString(titleStyle.Render("Motion Suit Monitor"))
	sb.WriteString(" - chest and waist yaw")
	if m.width > 0 {
		sb.WriteString(statusStyle.Render(fmt.Sprintf("  [%dx%d]", m.width, m.height)))
	}
	sb.WriteString("\n")
	sb.WriteString(renderState("shirt", m.shirt) + "   " + renderState("pants", m.pants))
	sb.WriteString("\n\n")

	// Chart
	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")

	// Legend
	var items []string
	for _, s := range monitorSeries {
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(s.color)).Bold(true)
		items = append(items, colorStyle.Render("━━")+" "+s.name)
	}
	sb.WriteString(strings.Join(items, "  "))
	sb.WriteString("\n")

	// Log box
	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(max(m.width-4, 20))

	var logLines string
	if len(m.logs) == 0 {
		logLines = statusStyle.Render("c connect  d disconnect  k calibrate  r reset  q quit")
	} else {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

// RunMonitor shows live yaw and device states from MQTT and sends suit
// commands from the keyboard.
func RunMonitor() error {
	cfg := config.Get()

	client, err := connectMQTT("monitor", cfg.MQTTBroker, cfg.MQTTClientIDMonitor)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	updates := make(chan tea.Msg, 256)
	push := func(msg tea.Msg) {
		select {
		case updates <- msg:
		default:
		}
	}

	if err := subscribeJSON(client, "monitor", cfg.TopicAbsoluteUpper, func(m AbsoluteUpperMsg) {
		push(yawUpdate{series: "chest", yaw: m.Joints.Chest.Z})
	}); err != nil {
		return err
	}
	if err := subscribeJSON(client, "monitor", cfg.TopicAbsoluteLower, func(m AbsoluteLowerMsg) {
		push(yawUpdate{series: "waist", yaw: m.Joints.Waist.Z})
	}); err != nil {
		return err
	}
	if err := subscribeJSON(client, "monitor", eventsFilter(cfg.TopicEvents), func(e EventMsg) {
		push(eventUpdate(e))
	}); err != nil {
		return err
	}

	pub := mqttPublisher{client: client, component: "monitor"}
	send := func(cmd CommandMsg) { pub.Publish(cfg.TopicCommand, false, cmd) }

	p := tea.NewProgram(newMonitorModel(updates, send), tea.WithAltScreen())
	_, err = p.Run()
	return err
}
