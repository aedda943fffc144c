// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Thermoquad/rfestat/pkg/rfe"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	maxCommandHistory = 50
	eventLogLines     = 8
)

// Focus states
const (
	focusDeviceList = iota
	focusCommandInput
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// device represents a connected RF Explorer
type device struct {
	port      string
	info      string
	identity  rfe.Identity
	connected bool
	lastSeen  time.Time
}

// Implement list.Item interface
func (d device) Title() string { return d.port }
func (d device) Description() string {
	if !d.connected {
		return "reconnecting..."
	}
	return describeIdentity(d.identity)
}
func (d device) FilterValue() string { return d.port }

func describeIdentity(id rfe.Identity) string {
	desc := id.MainModel.String()
	if id.ExpansionModel != rfe.ModelNone {
		desc += " + " + id.ExpansionModel.String()
	}
	if id.Firmware != "" {
		desc += " v" + id.Firmware
	}
	return desc
}

// deviceView is the latest state of one device as reported to the TUI.
type deviceView struct {
	config    *rfe.AnalyzerConfig
	sweep     *rfe.Sweep
	generator rfe.Message
	status    []string
}

// controlModel is the Bubble Tea model for the control TUI
type controlModel struct {
	// Connection manager (for sending commands and reconnection)
	connMgr *connectionManager

	// Device tracking
	devices    []device
	deviceList list.Model
	views      map[string]*deviceView

	// Discovery state
	discoveryDone bool
	discoveryErr  error

	// Monitoring (reused from tui.go patterns)
	stats         rfe.Statistics
	eventLog      []eventLogEntry
	maxLogEntries int

	// Control
	cmdInput     textinput.Model
	history      []string
	historyIdx   int
	focusedField int

	// UI state
	width    int
	height   int
	quitting bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type controlTickMsg time.Time

type controlBatchMsg struct {
	events []controlEvent
}

type deviceFoundMsg struct {
	port     string
	info     string
	identity rfe.Identity
}

type discoveryCompleteMsg struct {
	count int
}

type discoveryErrorMsg struct {
	err error
}

type connectionLostMsg struct {
	port string
	err  error
}

type reconnectedMsg struct {
	port     string
	info     string
	identity rfe.Identity
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialControlModel(connMgr *connectionManager) controlModel {
	// Initialize the command line
	ti := textinput.New()
	ti.Placeholder = "config 2.4G 2.5G 0 -110"
	ti.Prompt = "> "
	ti.CharLimit = 128
	ti.Width = 50

	// Initialize device list with empty items
	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	deviceList := list.New([]list.Item{}, delegate, 30, 10)
	deviceList.Title = "Devices"
	deviceList.SetShowStatusBar(false)
	deviceList.SetShowHelp(false)
	deviceList.SetFilteringEnabled(false)

	return controlModel{
		connMgr:       connMgr,
		devices:       make([]device, 0),
		deviceList:    deviceList,
		views:         make(map[string]*deviceView),
		stats:         *rfe.NewStatistics(),
		maxLogEntries: 100,
		cmdInput:      ti,
		focusedField:  focusDeviceList,
		width:         80,
		height:        24,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m controlModel) Init() tea.Cmd {
	return controlTickCmd()
}

func controlTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return controlTickMsg(t)
	})
}

func (m controlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.MouseMsg:
		return m.handleMouseMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateListSize()

	case controlTickMsg:
		m.refreshStats()
		return m, controlTickCmd()

	case deviceFoundMsg:
		m.devices = append(m.devices, device{
			port:      msg.port,
			info:      msg.info,
			identity:  msg.identity,
			connected: true,
			lastSeen:  time.Now(),
		})
		sort.Slice(m.devices, func(i, j int) bool { return m.devices[i].port < m.devices[j].port })
		m.updateDeviceList()
		m.addLogEntry(fmt.Sprintf("Device found: %s (%s)", msg.port, describeIdentity(msg.identity)), false)

	case discoveryCompleteMsg:
		m.discoveryDone = true
		m.addLogEntry(fmt.Sprintf("Discovery complete: %d device(s)", msg.count), msg.count == 0)
		if msg.count > 0 {
			m.setFocus(focusCommandInput)
		}

	case discoveryErrorMsg:
		m.discoveryErr = msg.err
		m.addLogEntry(fmt.Sprintf("Discovery failed: %v", msg.err), true)

	case controlBatchMsg:
		for _, ev := range msg.events {
			m.processEvent(ev)
		}

	case connectionLostMsg:
		m.setConnected(msg.port, false)
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("%s: connection lost (%v), reconnecting...", msg.port, msg.err), true)
		} else {
			m.addLogEntry(fmt.Sprintf("%s: connection lost, reconnecting...", msg.port), true)
		}

	case reconnectedMsg:
		for i := range m.devices {
			if m.devices[i].port == msg.port {
				m.devices[i].info = msg.info
				m.devices[i].identity = msg.identity
			}
		}
		m.setConnected(msg.port, true)
		m.addLogEntry(fmt.Sprintf("%s: reconnected (%s)", msg.port, msg.info), false)
	}

	// Update child components
	var cmd tea.Cmd
	if m.focusedField == focusCommandInput {
		m.cmdInput, cmd = m.cmdInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	if m.focusedField == focusDeviceList {
		m.deviceList, cmd = m.deviceList.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *controlModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "q":
		// A q typed into the command line is text
		if m.focusedField != focusCommandInput {
			m.quitting = true
			return m, tea.Quit
		}

	case "tab", "shift+tab":
		if m.focusedField == focusDeviceList {
			m.setFocus(focusCommandInput)
		} else {
			m.setFocus(focusDeviceList)
		}
		return m, nil

	case "enter":
		if m.focusedField == focusDeviceList {
			m.setFocus(focusCommandInput)
			return m, nil
		}
		return m.runCommandLine()

	case "up", "down":
		if m.focusedField == focusCommandInput {
			m.browseHistory(msg.String() == "up")
			return m, nil
		}
		m.deviceList, _ = m.deviceList.Update(msg)
		m.refreshStats()
		return m, nil

	case "k", "j":
		if m.focusedField == focusDeviceList {
			m.deviceList, _ = m.deviceList.Update(msg)
			m.refreshStats()
			return m, nil
		}
	}

	// Pass through to focused component
	if m.focusedField == focusCommandInput {
		var cmd tea.Cmd
		m.cmdInput, cmd = m.cmdInput.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *controlModel) handleMouseMsg(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if msg.Action != tea.MouseActionRelease || msg.Button != tea.MouseButtonLeft {
		return m, nil
	}

	// Pass clicks to the list
	m.deviceList, _ = m.deviceList.Update(msg)
	m.refreshStats()

	return m, nil
}

func (m *controlModel) setFocus(field int) {
	m.focusedField = field
	if field == focusCommandInput {
		m.cmdInput.Focus()
	} else {
		m.cmdInput.Blur()
	}
}

func (m *controlModel) browseHistory(older bool) {
	if len(m.history) == 0 {
		return
	}
	if older {
		if m.historyIdx > 0 {
			m.historyIdx--
		}
	} else if m.historyIdx < len(m.history) {
		m.historyIdx++
	}
	if m.historyIdx == len(m.history) {
		m.cmdInput.SetValue("")
		return
	}
	m.cmdInput.SetValue(m.history[m.historyIdx])
	m.cmdInput.CursorEnd()
}

func (m controlModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	focusedBoxStyle := boxStyle.
		BorderForeground(lipgloss.Color("12"))

	// Header
	helpText := "ctrl+c=quit"
	if m.discoveryDone {
		helpText = "ctrl+c=quit Tab=switch Enter=send help=commands"
	}
	s.WriteString(titleStyle.Render("RFESTAT CONTROL"))
	s.WriteString(" ")
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %d device(s) | %s", len(m.devices), helpText)))
	s.WriteString("\n\n")

	if !m.discoveryDone {
		// Discovery mode view
		s.WriteString(m.renderDiscoveryView(statsLabelStyle, warningStyle, errorStyle, boxStyle))
	} else {
		// Normal control view
		s.WriteString(m.renderControlView(statsLabelStyle, statsValueStyle, errorStyle, warningStyle, headerStyle, boxStyle, focusedBoxStyle))
	}

	return s.String()
}

//////////////////////////////////////////////////////////////
// View Helpers
//////////////////////////////////////////////////////////////

func (m controlModel) renderDiscoveryView(statsLabelStyle, warningStyle, errorStyle, boxStyle lipgloss.Style) string {
	var s strings.Builder

	if m.discoveryErr != nil {
		s.WriteString(errorStyle.Render(fmt.Sprintf("Discovery failed: %v", m.discoveryErr)))
	} else {
		s.WriteString(warningStyle.Render("Discovering devices..."))
	}
	s.WriteString("\n")
	s.WriteString(fmt.Sprintf("Found: %d device(s)\n\n", len(m.devices)))

	// Event log during discovery
	s.WriteString(m.renderEventLog(statsLabelStyle, warningStyle, boxStyle))

	return s.String()
}

func (m controlModel) renderControlView(statsLabelStyle, statsValueStyle, errorStyle, warningStyle, headerStyle, boxStyle, focusedBoxStyle lipgloss.Style) string {
	var s strings.Builder

	// Layout: left panel (devices) | right panel (device state)
	leftWidth := 30
	rightWidth := m.width - leftWidth - 6

	// Device list panel
	listStyle := boxStyle.Width(leftWidth)
	if m.focusedField == focusDeviceList {
		listStyle = focusedBoxStyle.Width(leftWidth)
	}
	devicePanel := listStyle.Render(m.deviceList.View())

	// Device panel
	stateContent := m.renderDevicePanel(statsLabelStyle, statsValueStyle, headerStyle, rightWidth)
	statePanel := boxStyle.Width(rightWidth).Render(stateContent)

	// Join panels horizontally
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, devicePanel, " ", statePanel))
	s.WriteString("\n")

	// Command line
	inputStyle := boxStyle.Width(m.width - 4)
	if m.focusedField == focusCommandInput {
		inputStyle = focusedBoxStyle.Width(m.width - 4)
	}
	s.WriteString(inputStyle.Render(m.cmdInput.View()))
	s.WriteString("\n")

	// Statistics bar
	s.WriteString(m.renderStatisticsBar(statsLabelStyle, statsValueStyle, errorStyle, boxStyle))
	s.WriteString("\n")

	// Event log
	s.WriteString(m.renderEventLog(statsLabelStyle, warningStyle, boxStyle))

	return s.String()
}

func (m controlModel) renderDevicePanel(statsLabelStyle, statsValueStyle, headerStyle lipgloss.Style, width int) string {
	var s strings.Builder

	selected := m.getSelectedDevice()
	if selected == nil {
		s.WriteString(headerStyle.Render("No device selected"))
		return s.String()
	}

	s.WriteString(fmt.Sprintf("%s %s\n", statsLabelStyle.Render("Selected:"), selected.port))
	s.WriteString(fmt.Sprintf("%s %s\n", statsLabelStyle.Render("Model:"), statsValueStyle.Render(describeIdentity(selected.identity))))
	if selected.identity.SerialNumber != "" {
		s.WriteString(fmt.Sprintf("%s %s\n", statsLabelStyle.Render("Serial:"), string(selected.identity.SerialNumber)))
	}
	s.WriteString(headerStyle.Render(selected.info))
	s.WriteString("\n\n")

	view := m.views[selected.port]
	if view == nil {
		s.WriteString(headerStyle.Render("Waiting for data..."))
		return s.String()
	}

	if view.config != nil {
		cfg := *view.config
		s.WriteString(fmt.Sprintf("%s %s\n", statsLabelStyle.Render("Sweep:"), formatConfigSummary(cfg)))
		if view.sweep != nil {
			s.WriteString(fmt.Sprintf("%s %s\n", statsLabelStyle.Render("Peak:"),
				statsValueStyle.Render(formatPeak(cfg, *view.sweep))))
			chartWidth := width - 30
			if chartWidth >= 10 {
				s.WriteString(strings.TrimRight(renderSweepChart(cfg, *view.sweep, 6, chartWidth), "\n"))
				s.WriteString("\n")
			}
		}
	}
	if view.generator != nil {
		s.WriteString(fmt.Sprintf("%s %s\n", statsLabelStyle.Render("Generator:"),
			formatStatus(view.generator)))
	}
	if len(view.status) > 0 {
		s.WriteString(headerStyle.Render(strings.Join(view.status, "\n")))
	}

	return s.String()
}

func (m controlModel) renderStatisticsBar(statsLabelStyle, statsValueStyle, errorStyle, boxStyle lipgloss.Style) string {
	stats := m.stats
	stats.CalculateRates()
	var validPercent, errorPercent float64
	if stats.TotalFrames > 0 {
		validPercent = float64(stats.ValidFrames) * 100.0 / float64(stats.TotalFrames)
		errorPercent = float64(stats.Errors()) * 100.0 / float64(stats.TotalFrames)
	}

	content := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s  %s %s",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", stats.TotalFrames)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%.1f%%", validPercent)),
		statsLabelStyle.Render("Errors:"), func() string {
			if errorPercent > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f%%", errorPercent))
			}
			return statsValueStyle.Render("0.0%")
		}(),
		statsLabelStyle.Render("Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f frames/s", stats.FrameRate)),
		statsLabelStyle.Render("Sweeps:"), statsValueStyle.Render(fmt.Sprintf("%.1f/s", stats.SweepRate)),
	)

	return boxStyle.Width(m.width - 4).Render(content)
}

func (m controlModel) renderEventLog(statsLabelStyle, warningStyle, boxStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(statsLabelStyle.Render("EVENTS"))
	s.WriteString("\n")

	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyleLocal := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

	logHeight := eventLogLines
	if len(m.eventLog) < logHeight {
		logHeight = len(m.eventLog)
	}
	startIdx := len(m.eventLog) - logHeight

	if len(m.eventLog) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			icon := "i"
			style := warningStyle
			if entry.isError {
				icon = "x"
				style = errorStyleLocal
			}
			s.WriteString(fmt.Sprintf("%s %s %s\n",
				headerStyle.Render(timestamp),
				style.Render(icon),
				entry.message))
		}
	}

	return boxStyle.Width(m.width - 4).Render(s.String())
}

//////////////////////////////////////////////////////////////
// Data Processing
//////////////////////////////////////////////////////////////

func (m *controlModel) processEvent(ev controlEvent) {
	view := m.views[ev.port]
	if view == nil {
		view = &deviceView{}
		m.views[ev.port] = view
	}
	for i := range m.devices {
		if m.devices[i].port == ev.port {
			m.devices[i].lastSeen = time.Now()
		}
	}

	switch v := ev.message.(type) {
	case rfe.AnalyzerConfig:
		if view.config == nil || *view.config != v {
			m.addLogEntry(fmt.Sprintf("%s: config %s", ev.port, formatConfigSummary(v)), false)
		}
		view.config = &v

	case rfe.Sweep:
		view.sweep = &v

	case rfe.GeneratorConfig, rfe.CwConfig, rfe.AmpSweepConfig, rfe.FreqSweepConfig:
		view.generator = v
		m.addLogEntry(fmt.Sprintf("%s: %s", ev.port, rfe.FormatMessageType(v)), false)

	case rfe.Setup, rfe.SerialNumber:
		if d := m.connMgr.device(ev.port); d != nil {
			m.setIdentity(ev.port, identityOf(d))
		}

	case rfe.Temperature, rfe.DspMode, rfe.InputStage, rfe.TrackingStatus:
		view.setStatus(formatStatus(v))

	case rfe.Unknown:
		m.addLogEntry(fmt.Sprintf("%s: %v", ev.port, v.Err), true)
	}

	for _, a := range rfe.Inspect(ev.message) {
		if _, unknown := ev.message.(rfe.Unknown); unknown {
			break
		}
		m.addLogEntry(fmt.Sprintf("%s: %s: %s", ev.port, rfe.FormatMessageType(ev.message), a.Message), true)
	}
}

// setStatus keeps one line per status kind, replacing the previous one.
func (v *deviceView) setStatus(line string) {
	kind, _, _ := strings.Cut(line, ":")
	for i, existing := range v.status {
		if k, _, _ := strings.Cut(existing, ":"); k == kind {
			v.status[i] = line
			return
		}
	}
	v.status = append(v.status, line)
}

//////////////////////////////////////////////////////////////
// Commands
//////////////////////////////////////////////////////////////

func (m *controlModel) runCommandLine() (tea.Model, tea.Cmd) {
	line := strings.TrimSpace(m.cmdInput.Value())
	if line == "" {
		return m, nil
	}
	m.cmdInput.SetValue("")
	m.history = append(m.history, line)
	if len(m.history) > maxCommandHistory {
		m.history = m.history[len(m.history)-maxCommandHistory:]
	}
	m.historyIdx = len(m.history)

	if line == "help" {
		for _, l := range strings.Split(strings.TrimRight(commandUsage(), "\n"), "\n") {
			m.addLogEntry(strings.TrimSpace(l), false)
		}
		return m, nil
	}

	selected := m.getSelectedDevice()
	if selected == nil {
		m.addLogEntry("No device selected", true)
		return m, nil
	}
	d := m.connMgr.device(selected.port)
	if d == nil || !selected.connected {
		m.addLogEntry(fmt.Sprintf("Cannot send command: %s is not connected", selected.port), true)
		return m, nil
	}

	command, err := buildCommand(d.Encoder(), strings.Fields(line))
	if err != nil {
		m.addLogEntry(err.Error(), true)
		return m, nil
	}
	if err := d.Send(command); err != nil {
		m.addLogEntry(fmt.Sprintf("Failed to send command: %v", err), true)
		return m, nil
	}

	m.addLogEntry(fmt.Sprintf("Sent %s to %s", command.Name, selected.port), false)
	return m, nil
}

//////////////////////////////////////////////////////////////
// Helpers
//////////////////////////////////////////////////////////////

func (m *controlModel) addLogEntry(message string, isError bool) {
	entry := eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

func (m *controlModel) getSelectedDevice() *device {
	if len(m.devices) == 0 {
		return nil
	}

	idx := m.deviceList.Index()
	if idx < 0 || idx >= len(m.devices) {
		return nil
	}

	return &m.devices[idx]
}

// refreshStats shows the statistics of the selected device.
func (m *controlModel) refreshStats() {
	selected := m.getSelectedDevice()
	if selected == nil {
		return
	}
	if d := m.connMgr.device(selected.port); d != nil {
		m.stats = d.Stats()
	}
}

func (m *controlModel) setConnected(port string, connected bool) {
	for i := range m.devices {
		if m.devices[i].port == port {
			m.devices[i].connected = connected
		}
	}
	m.updateDeviceList()
}

func (m *controlModel) setIdentity(port string, id rfe.Identity) {
	for i := range m.devices {
		if m.devices[i].port == port {
			m.devices[i].identity = id
		}
	}
	m.updateDeviceList()
}

func (m *controlModel) updateDeviceList() {
	items := make([]list.Item, len(m.devices))
	for i, d := range m.devices {
		items[i] = d
	}
	m.deviceList.SetItems(items)
}

func (m *controlModel) updateListSize() {
	// Adjust list size based on terminal size
	listHeight := m.height / 3
	if listHeight < 5 {
		listHeight = 5
	}
	m.deviceList.SetSize(28, listHeight)
	m.cmdInput.Width = m.width - 10
}
