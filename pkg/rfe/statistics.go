// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rfe

import (
	"fmt"
	"time"
)

// Statistics tracks frame counts and error rates of one stream. It is not
// safe for concurrent use; Device guards its copy.
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalFrames    uint64
	ValidFrames    uint64
	UnknownFrames  uint64
	DecodeErrors   uint64
	UnknownCodes   uint64
	InvalidRanges  uint64
	Sweeps         uint64
	Configs        uint64
	ScreenDumps    uint64
	DiscardedBytes uint64
	EEOTDrops      uint64
	Oversized      uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	SweepRate float64 // sweeps/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update counts one decoded message and its anomalies.
func (s *Statistics) Update(m Message, anomalies []Anomaly) {
	s.TotalFrames++

	switch m.Category() {
	case CategorySweep:
		s.Sweeps++
	case CategoryConfig, CategoryConfigCw, CategoryConfigAmpSweep, CategoryConfigFreqSweep:
		s.Configs++
	case CategoryScreenData:
		s.ScreenDumps++
	}

	if len(anomalies) == 0 {
		s.ValidFrames++
	}
	for _, a := range anomalies {
		switch a.Type {
		case AnomalyUnknownPrefix:
			s.UnknownFrames++
		case AnomalyDecodeError, AnomalyLengthMismatch:
			s.DecodeErrors++
		case AnomalyUnknownCode:
			s.UnknownCodes++
		case AnomalyInvalidRange:
			s.InvalidRanges++
		}
	}

	s.LastUpdateTime = time.Now()
}

// SetFramerCounters copies the resynchronization counters of a framer.
func (s *Statistics) SetFramerCounters(f *Framer) {
	s.DiscardedBytes = f.Discarded()
	s.EEOTDrops = f.EEOTDrops()
	s.Oversized = f.Oversized()
}

// Errors returns the number of frames that failed to decode or were lost.
func (s *Statistics) Errors() uint64 {
	return s.UnknownFrames + s.DecodeErrors + s.EEOTDrops + s.Oversized
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		s.SweepRate = float64(s.Sweeps) / elapsed
		s.ErrorRate = float64(s.Errors()) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var validPercent float64
	if s.TotalFrames > 0 {
		validPercent = float64(s.ValidFrames) * 100.0 / float64(s.TotalFrames)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Frames:    %8d\n", s.TotalFrames)
	result += fmt.Sprintf("Valid Frames:    %8d (%.1f%%)\n", s.ValidFrames, validPercent)
	result += fmt.Sprintf("  Sweeps:          %6d\n", s.Sweeps)
	result += fmt.Sprintf("  Configs:         %6d\n", s.Configs)
	if s.ScreenDumps > 0 {
		result += fmt.Sprintf("  Screen Dumps:    %6d\n", s.ScreenDumps)
	}
	if s.UnknownFrames > 0 {
		result += fmt.Sprintf("Unknown Frames:  %8d\n", s.UnknownFrames)
	}
	if s.DecodeErrors > 0 {
		result += fmt.Sprintf("Decode Errors:   %8d\n", s.DecodeErrors)
	}
	if s.UnknownCodes > 0 {
		result += fmt.Sprintf("Unknown Codes:   %8d\n", s.UnknownCodes)
	}
	if s.InvalidRanges > 0 {
		result += fmt.Sprintf("Invalid Ranges:  %8d\n", s.InvalidRanges)
	}
	if s.DiscardedBytes > 0 {
		result += fmt.Sprintf("Discarded Bytes: %8d\n", s.DiscardedBytes)
	}
	if s.EEOTDrops > 0 {
		result += fmt.Sprintf("EEOT Drops:      %8d\n", s.EEOTDrops)
	}
	if s.Oversized > 0 {
		result += fmt.Sprintf("Oversized:       %8d\n", s.Oversized)
	}

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Sweep Rate:      %8.1f sweeps/sec\n", s.SweepRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
