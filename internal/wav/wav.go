// Package wav builds and inspects WAV containers around raw PCM audio.
package wav

import (
	"encoding/binary"
	"errors"
	"time"
)

// WAV format constants.
const (
	// HeaderSize is the size of a canonical WAV header in bytes.
	HeaderSize = 44
	// FormatPCM is the audio format code for uncompressed PCM.
	FormatPCM = 1
)

// Piper output format.
const (
	PiperSampleRate    = 22050
	PiperChannels      = 1
	PiperBitsPerSample = 16
)

var (
	// ErrTooShort is returned when the data cannot hold a WAV header.
	ErrTooShort = errors.New("wav: data too short")
	// ErrNotWAV is returned when the RIFF/WAVE magic is missing.
	ErrNotWAV = errors.New("wav: not a RIFF/WAVE stream")
	// ErrMissingChunk is returned when the fmt or data chunk is absent.
	ErrMissingChunk = errors.New("wav: missing fmt or data chunk")
)

// Info describes a parsed WAV stream.
type Info struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
	// Data is the PCM payload, sharing memory with the parsed input.
	Data []byte
}

// Duration returns the playing time of the PCM payload.
func (i Info) Duration() time.Duration {
	return PCMDuration(len(i.Data), i.SampleRate, i.Channels, i.BitsPerSample)
}

// PCMDuration returns the playing time of n bytes of interleaved PCM.
func PCMDuration(n, sampleRate, channels, bitsPerSample int) time.Duration {
	bytesPerSecond := sampleRate * channels * bitsPerSample / 8
	if bytesPerSecond <= 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(bytesPerSecond))
}

// WrapRawPCM adds a canonical 44-byte WAV header to raw PCM data.
func WrapRawPCM(pcm []byte, sampleRate, channels, bitsPerSample int) []byte {
	dataSize := len(pcm)
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	header := make([]byte, HeaderSize)

	copy(header[0:4], "RIFF")
	PutLE32(header[4:8], uint32(36+dataSize))
	copy(header[8:12], "WAVE")

	copy(header[12:16], "fmt ")
	PutLE32(header[16:20], 16)
	PutLE16(header[20:22], FormatPCM)
	PutLE16(header[22:24], uint16(channels))
	PutLE32(header[24:28], uint32(sampleRate))
	PutLE32(header[28:32], uint32(byteRate))
	PutLE16(header[32:34], uint16(blockAlign))
	PutLE16(header[34:36], uint16(bitsPerSample))

	copy(header[36:40], "data")
	PutLE32(header[40:44], uint32(dataSize))

	return append(header, pcm...)
}

// Parse walks the RIFF chunks of a WAV stream and returns its format and PCM
// payload. A data chunk whose declared size overruns the input is truncated
// to what is present, which is how streamed WAV output usually arrives.
func Parse(data []byte) (Info, error) {
	if len(data) < HeaderSize {
		return Info{}, ErrTooShort
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Info{}, ErrNotWAV
	}

	var info Info
	var haveFmt bool
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8

		switch id {
		case "fmt ":
			if size >= 16 && body+16 <= len(data) {
				info.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
				info.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
				info.BitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
				haveFmt = true
			}
		case "data":
			end := body + size
			if end > len(data) || end < body {
				end = len(data)
			}
			info.Data = data[body:end]
			if !haveFmt {
				return Info{}, ErrMissingChunk
			}
			return info, nil
		}

		pos = body + size
		if size%2 != 0 {
			pos++
		}
	}

	return Info{}, ErrMissingChunk
}

// PutLE16 writes v little-endian into b[0:2].
func PutLE16(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

// PutLE32 writes v little-endian into b[0:4].
func PutLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
