package wav

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payloads := [][]byte{
		{},
		{0x01},
		{0x01, 0x02},
		bytes.Repeat([]byte{0xAA, 0x55}, 1200),
	}

	for _, pcm := range payloads {
		enc := Encode(pcm, 24000)

		if len(enc) != 44+len(pcm) {
			t.Fatalf("encoded size = %d, want %d", len(enc), 44+len(pcm))
		}

		got, rate, err := Decode(enc)
		if err != nil {
			t.Fatalf("Decode failed for payload len %d: %v", len(pcm), err)
		}
		if rate != 24000 {
			t.Errorf("sample rate = %d, want 24000", rate)
		}
		if !bytes.Equal(got, pcm) {
			t.Errorf("payload mismatch for len %d", len(pcm))
		}
	}
}

func TestHeaderFields(t *testing.T) {
	pcm := make([]byte, 480)
	enc := Encode(pcm, 24000)

	if string(enc[0:4]) != "RIFF" || string(enc[8:12]) != "WAVE" {
		t.Fatal("missing RIFF/WAVE markers")
	}
	if got := binary.LittleEndian.Uint32(enc[4:8]); got != uint32(36+len(pcm)) {
		t.Errorf("riff size = %d, want %d", got, 36+len(pcm))
	}
	if got := binary.LittleEndian.Uint32(enc[28:32]); got != 48000 {
		t.Errorf("byte rate = %d, want 48000", got)
	}
	if got := binary.LittleEndian.Uint32(enc[40:44]); got != uint32(len(pcm)) {
		t.Errorf("data size = %d, want %d", got, len(pcm))
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, _, err := Decode([]byte("not a wav file, clearly too short header")); err == nil {
		t.Error("expected error for non-WAV input")
	}
	if _, _, err := Decode(nil); err == nil {
		t.Error("expected error for empty input")
	}
}

func TestEstimateDurationLinear(t *testing.T) {
	// 2 bytes per sample, mono: one second of 24kHz audio is 48000 bytes.
	if d := EstimateDuration(48000, 24000); math.Abs(d-1.0) > 1e-9 {
		t.Errorf("duration = %f, want 1.0", d)
	}

	base := EstimateDuration(1000, 24000)
	for k := 2; k <= 5; k++ {
		got := EstimateDuration(1000*k, 24000)
		if math.Abs(got-base*float64(k)) > 1e-9 {
			t.Errorf("EstimateDuration not linear at k=%d: %f vs %f", k, got, base*float64(k))
		}
	}

	if d := EstimateDuration(0, 24000); d != 0 {
		t.Errorf("zero payload should have zero duration, got %f", d)
	}
}

func TestSamplesBytesRoundTrip(t *testing.T) {
	in := []int16{0, 1, -1, 32767, -32768, 12345}
	if got := Samples(Bytes(in)); len(got) != len(in) {
		t.Fatalf("length mismatch: %d vs %d", len(got), len(in))
	} else {
		for i := range in {
			if got[i] != in[i] {
				t.Errorf("sample %d: got %d, want %d", i, got[i], in[i])
			}
		}
	}
}
