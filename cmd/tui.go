// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/rfestat/pkg/rfe"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Event log entry
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for anomalies, false for informational events
}

// Messages shared by the monitor TUI and its text mode
type tickMsg time.Time

type frameMsg struct {
	message   rfe.Message
	anomalies []rfe.Anomaly
}

type statsMsg rfe.Statistics

type syncMsg struct {
	skipped uint64
}

type disconnectedMsg struct {
	err error
}

// monitorModel is the bubbletea model of the monitor command.
type monitorModel struct {
	source        string
	showAll       bool
	chartRows     int
	stats         rfe.Statistics
	eventLog      []eventLogEntry
	maxLogEntries int
	synchronized  bool
	skipped       uint64
	width         int
	height        int
	quitting      bool
	disconnected  bool

	config    *rfe.AnalyzerConfig
	generator rfe.Message
	sweep     *rfe.Sweep
}

func newMonitorModel(source string, showAll bool) monitorModel {
	return monitorModel{
		source:        source,
		showAll:       showAll,
		chartRows:     8,
		stats:         *rfe.NewStatistics(),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "a":
			m.showAll = !m.showAll
		case "c":
			m.eventLog = nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.stats.CalculateRates()
		return m, tickCmd()

	case statsMsg:
		m.stats = rfe.Statistics(msg)

	case syncMsg:
		m.synchronized = true
		m.skipped = msg.skipped
		if msg.skipped > 0 {
			m.addLogEntry(fmt.Sprintf("Synchronized after skipping %d bytes", msg.skipped), false)
		} else {
			m.addLogEntry("Synchronized", false)
		}

	case disconnectedMsg:
		m.disconnected = true
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Disconnected: %v", msg.err), true)
		} else {
			m.addLogEntry("Connection closed", true)
		}

	case frameMsg:
		m.observe(msg.message)
		msgType := rfe.FormatMessageType(msg.message)
		for _, a := range msg.anomalies {
			m.addLogEntry(fmt.Sprintf("%s: %s", msgType, a.Message), true)
		}
		if len(msg.anomalies) == 0 && m.showAll {
			m.addLogEntry(fmt.Sprintf("%s (valid)", msgType), false)
		}
	}

	return m, nil
}

// observe keeps the latest configuration and sweep for display.
func (m *monitorModel) observe(msg rfe.Message) {
	switch v := msg.(type) {
	case rfe.AnalyzerConfig:
		if m.config == nil || *m.config != v {
			m.addLogEntry("Config: "+formatConfigSummary(v), false)
		}
		m.config = &v
	case rfe.GeneratorConfig, rfe.CwConfig, rfe.AmpSweepConfig, rfe.FreqSweepConfig:
		m.generator = v
	case rfe.Sweep:
		s := v.Clone()
		m.sweep = &s
	case rfe.Setup, rfe.Temperature, rfe.DspMode, rfe.InputStage, rfe.TrackingStatus:
		m.addLogEntry(formatStatus(v), false)
	}
}

// oneLine collapses a formatted body onto a single line.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// formatStatus renders a short message as "TYPE: fields".
func formatStatus(m rfe.Message) string {
	return rfe.FormatMessageType(m) + ": " + oneLine(rfe.FormatBody(m))
}

func formatConfigSummary(cfg rfe.AnalyzerConfig) string {
	return fmt.Sprintf("%s .. %s, %d points, %d..%d dBm",
		rfe.FormatFrequency(cfg.StartHz), rfe.FormatFrequency(cfg.StopHz()),
		cfg.SweepPoints, cfg.MinAmpDBm, cfg.MaxAmpDBm)
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	entry := eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	// Keep only last N entries
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

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

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("RFESTAT - MONITOR"))
	s.WriteString("\n")
	mode := "Anomalies only"
	if m.showAll {
		mode = "All frames"
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Mode: %s | 'a' toggle mode, 'c' clear, 'q' quit",
		m.source, mode)))
	s.WriteString("\n\n")

	// Sync status
	switch {
	case m.disconnected:
		s.WriteString(errorStyle.Render("✗ Disconnected"))
	case !m.synchronized:
		s.WriteString(warningStyle.Render("⏳ Waiting for the first frame..."))
	default:
		s.WriteString(statsValueStyle.Render("✓ Synchronized"))
		if m.skipped > 0 {
			s.WriteString(headerStyle.Render(fmt.Sprintf(" (skipped %d bytes)", m.skipped)))
		}
	}
	s.WriteString("\n\n")

	// Statistics
	stats := m.stats
	stats.CalculateRates()
	errCount := stats.Errors()
	var validPercent, errorPercent float64
	if stats.TotalFrames > 0 {
		validPercent = float64(stats.ValidFrames) * 100.0 / float64(stats.TotalFrames)
		errorPercent = float64(errCount) * 100.0 / float64(stats.TotalFrames)
	}

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", stats.TotalFrames)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", stats.ValidFrames, validPercent)),
		statsLabelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d (%.1f%%)", errCount, errorPercent)),
	))
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Sweeps:"), statsValueStyle.Render(fmt.Sprintf("%d", stats.Sweeps)),
		statsLabelStyle.Render("Configs:"), statsValueStyle.Render(fmt.Sprintf("%d", stats.Configs)),
		statsLabelStyle.Render("Screens:"), statsValueStyle.Render(fmt.Sprintf("%d", stats.ScreenDumps)),
	))

	if stats.UnknownFrames > 0 || stats.DecodeErrors > 0 || stats.UnknownCodes > 0 || stats.InvalidRanges > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s   %s %s\n",
			statsLabelStyle.Render("Unknown:"), errorStyle.Render(fmt.Sprintf("%d", stats.UnknownFrames)),
			statsLabelStyle.Render("Decode:"), errorStyle.Render(fmt.Sprintf("%d", stats.DecodeErrors)),
			statsLabelStyle.Render("Codes:"), warningStyle.Render(fmt.Sprintf("%d", stats.UnknownCodes)),
			statsLabelStyle.Render("Ranges:"), warningStyle.Render(fmt.Sprintf("%d", stats.InvalidRanges)),
		))
	}

	if stats.DiscardedBytes > 0 || stats.EEOTDrops > 0 || stats.Oversized > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s (%s: %d, %s: %d)\n",
			statsLabelStyle.Render("Discarded:"), warningStyle.Render(fmt.Sprintf("%d bytes", stats.DiscardedBytes)),
			headerStyle.Render("EEOT drops"), stats.EEOTDrops,
			headerStyle.Render("oversized"), stats.Oversized,
		))
	}

	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s",
		statsLabelStyle.Render("Frame Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f/s", stats.FrameRate)),
		statsLabelStyle.Render("Sweep Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f/s", stats.SweepRate)),
		statsLabelStyle.Render("Error Rate:"), func() string {
			if stats.ErrorRate > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f err/s", stats.ErrorRate))
			}
			return statsValueStyle.Render(fmt.Sprintf("%.1f err/s", stats.ErrorRate))
		}(),
	))

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Latest sweep, only once a config gives it a frequency axis
	if m.config != nil && m.sweep != nil {
		s.WriteString(statsLabelStyle.Render("Latest Sweep:"))
		s.WriteString("\n")
		chartWidth := m.width - 40
		if chartWidth < 10 {
			chartWidth = 10
		}
		s.WriteString(boxStyle.Render(strings.TrimRight(
			renderSweepChart(*m.config, *m.sweep, m.chartRows, chartWidth), "\n")))
		s.WriteString("\n\n")
	} else if m.generator != nil {
		s.WriteString(statsLabelStyle.Render("Generator:"))
		s.WriteString("\n")
		s.WriteString(boxStyle.Render(strings.TrimSpace(rfe.FormatMessage(m.generator))))
		s.WriteString("\n\n")
	}

	// Event log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	// Calculate how many log entries we can show
	logHeight := m.height - 15 // Reserve space for header and stats
	if m.config != nil && m.sweep != nil {
		logHeight -= m.chartRows + 3
	}
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("01/02/06 15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}
