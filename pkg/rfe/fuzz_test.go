// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rfe

import (
	"bytes"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

// newFuzzRng creates a new random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

// randomSamples returns amplitude bytes that can never form an EEOT marker
func randomSamples(rng *rand.Rand, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(rng.Intn(0xF0))
	}
	return out
}

// randomRecord builds one valid wire record and returns it with its frame
func randomRecord(rng *rand.Rand) (wire, frame []byte) {
	switch rng.Intn(8) {
	case 0:
		wire = sweepRecord(randomSamples(rng, 1+rng.Intn(255))...)
		return wire, wire[:len(wire)-2]
	case 1:
		wire = extSweepRecord(randomSamples(rng, 16*(1+rng.Intn(16))))
		return wire, wire[:len(wire)-2]
	case 2:
		wire = largeSweepRecord(randomSamples(rng, 1+rng.Intn(2000)))
		return wire, wire[:len(wire)-2]
	case 3:
		s := fmt.Sprintf("#C2-F:%07d,%07d,-030,-118,0112,0,000,4850000,6100000,0600000",
			4850000+rng.Intn(1000), rng.Intn(1000000))
		return line(s), []byte(s)
	case 4:
		s := fmt.Sprintf("DSP:%d", rng.Intn(4))
		return line(s), []byte(s)
	case 5:
		s := fmt.Sprintf("#T:%d", rng.Intn(7))
		return line(s), []byte(s)
	case 6:
		s := "#K" + string([]byte{byte(rng.Intn(2))})
		return line(s), []byte(s)
	default:
		s := fmt.Sprintf("#C2-M:%03d,255,01.%02dB26", rng.Intn(19), rng.Intn(100))
		return line(s), []byte(s)
	}
}

// randomGarbage returns noise without frame start bytes, terminators or EEOT bytes
func randomGarbage(rng *rand.Rand) []byte {
	const alphabet = "abcefghijklmnopqrstuvwxyz0123456789 .,:;-_+=!?"
	out := make([]byte, rng.Intn(8))
	for i := range out {
		out[i] = alphabet[rng.Intn(len(alphabet))]
	}
	return out
}

// chunk splits data into random pieces
func chunk(rng *rand.Rand, data []byte) [][]byte {
	var out [][]byte
	for len(data) > 0 {
		n := 1 + rng.Intn(64)
		if n > len(data) {
			n = len(data)
		}
		out = append(out, data[:n])
		data = data[n:]
	}
	return out
}

// ============================================================
// Framer Fuzz Tests
// ============================================================

func TestFuzz_FramerRecoversRecordsFromNoise(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for round := 0; round < rounds; round++ {
		var stream []byte
		var want [][]byte
		for i := 0; i < 1+rng.Intn(10); i++ {
			stream = append(stream, randomGarbage(rng)...)
			wire, frame := randomRecord(rng)
			stream = append(stream, wire...)
			want = append(want, frame)
		}

		f := NewFramer()
		got := framesOf(f, chunk(rng, stream)...)
		if len(got) != len(want) {
			t.Fatalf("round %d: got %d frames, want %d", round, len(got), len(want))
		}
		for i := range want {
			if !bytes.Equal(got[i], want[i]) {
				t.Fatalf("round %d frame %d: got %q, want %q", round, i, got[i], want[i])
			}
		}
	}
}

func TestFuzz_FramerRandomBytes(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for round := 0; round < rounds; round++ {
		data := make([]byte, rng.Intn(512))
		rng.Read(data)

		f := NewFramer()
		f.SetMaxFrameLen(256)
		for _, fr := range framesOf(f, chunk(rng, data)...) {
			if len(fr) == 0 {
				t.Fatalf("round %d: empty frame", round)
			}
			if len(fr) > 256 {
				t.Fatalf("round %d: frame of %d bytes exceeds limit", round, len(fr))
			}
			if fr[0] != ASCIIStart && fr[0] != BinaryStart && !bytes.HasPrefix(fr, []byte(PrefixDspMode)) {
				t.Fatalf("round %d: frame starts with 0x%02X", round, fr[0])
			}
		}
		if len(f.Pending()) > 256+4 {
			t.Fatalf("round %d: %d bytes pending, want bounded buffer", round, len(f.Pending()))
		}
	}
}

// ============================================================
// Decoder Fuzz Tests
// ============================================================

func TestFuzz_DecoderNeverPanics(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	prefixes := make([]string, 0, len(parsers))
	for _, p := range parsers {
		prefixes = append(prefixes, p.prefix)
	}

	for round := 0; round < rounds; round++ {
		frame := []byte(prefixes[rng.Intn(len(prefixes))])
		tail := make([]byte, rng.Intn(96))
		rng.Read(tail)
		frame = append(frame, tail...)

		m := Decode(frame)
		if m == nil {
			t.Fatalf("round %d: Decode(%q) returned nil", round, frame)
		}
		if u, ok := m.(Unknown); ok && u.Err == nil {
			t.Fatalf("round %d: Unknown without reason for %q", round, frame)
		}
	}
}

func TestFuzz_SweepAmplitudes(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for round := 0; round < rounds; round++ {
		samples := randomSamples(rng, 1+rng.Intn(255))
		wire := sweepRecord(samples...)
		m := Decode(wire[:len(wire)-2])

		s, ok := m.(Sweep)
		if !ok {
			t.Fatalf("round %d: Decode() = %T, want Sweep", round, m)
		}
		for i, b := range samples {
			if want := float32(b) / -2; s.Amplitudes[i] != want {
				t.Fatalf("round %d sample %d: got %v, want %v", round, i, s.Amplitudes[i], want)
			}
		}
	}
}
