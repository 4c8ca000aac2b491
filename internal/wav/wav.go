package wav

import (
	"encoding/binary"
	"fmt"
)

// The speech producer returns raw linear PCM: 16-bit little endian, mono.
// Encode wraps such a payload in a minimal RIFF/WAVE container so that any
// player (or ffmpeg) can consume it. No resampling or transcoding happens
// here; the payload bytes are copied verbatim after the 44-byte header.

const (
	headerSize     = 44
	numChannels    = 1
	bitsPerSample  = 16
	bytesPerSample = bitsPerSample / 8
)

// Encode produces container bytes for a raw 16-bit mono PCM payload.
func Encode(pcm []byte, sampleRate int) []byte {
	byteRate := sampleRate * numChannels * bytesPerSample
	blockAlign := numChannels * bytesPerSample
	dataSize := len(pcm)

	buf := make([]byte, headerSize+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16) // PCM fmt chunk size
	binary.LittleEndian.PutUint16(buf[20:22], 1)  // audio format: PCM
	binary.LittleEndian.PutUint16(buf[22:24], numChannels)
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], bitsPerSample)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))

	copy(buf[headerSize:], pcm)
	return buf
}

// Decode parses a container produced by Encode (or any plain 16-bit mono
// PCM WAV with the fmt chunk first) and returns the payload and sample rate.
func Decode(data []byte) (pcm []byte, sampleRate int, err error) {
	if len(data) < headerSize {
		return nil, 0, fmt.Errorf("wav: container too short (%d bytes)", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("wav: missing RIFF/WAVE marker")
	}
	if string(data[12:16]) != "fmt " {
		return nil, 0, fmt.Errorf("wav: fmt chunk not found")
	}
	if format := binary.LittleEndian.Uint16(data[20:22]); format != 1 {
		return nil, 0, fmt.Errorf("wav: unsupported audio format %d (want PCM)", format)
	}
	if ch := binary.LittleEndian.Uint16(data[22:24]); ch != numChannels {
		return nil, 0, fmt.Errorf("wav: unsupported channel count %d", ch)
	}
	if bits := binary.LittleEndian.Uint16(data[34:36]); bits != bitsPerSample {
		return nil, 0, fmt.Errorf("wav: unsupported bit depth %d", bits)
	}
	if string(data[36:40]) != "data" {
		return nil, 0, fmt.Errorf("wav: data chunk not found")
	}

	sampleRate = int(binary.LittleEndian.Uint32(data[24:28]))
	dataSize := int(binary.LittleEndian.Uint32(data[40:44]))
	payload := data[headerSize:]
	if dataSize > len(payload) {
		dataSize = len(payload)
	}
	return payload[:dataSize], sampleRate, nil
}

// EstimateDuration returns the playback length in seconds of a raw payload
// without decoding anything. Needed right after speech generation, before
// any playback engine has parsed the container.
func EstimateDuration(payloadBytes int, sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(payloadBytes) / float64(sampleRate*numChannels*bytesPerSample)
}

// Samples converts a payload to int16 samples. Odd trailing bytes are dropped.
func Samples(pcm []byte) []int16 {
	n := len(pcm) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[2*i : 2*i+2]))
	}
	return out
}

// Bytes converts int16 samples back to a little endian payload.
func Bytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:2*i+2], uint16(s))
	}
	return out
}
