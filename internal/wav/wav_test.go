package wav

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func TestLittleEndianHelpers(t *testing.T) {
	b16 := make([]byte, 2)
	PutLE16(b16, 0x1234)
	if !bytes.Equal(b16, []byte{0x34, 0x12}) {
		t.Errorf("PutLE16 = %v", b16)
	}

	b32 := make([]byte, 4)
	PutLE32(b32, 0x12345678)
	if !bytes.Equal(b32, []byte{0x78, 0x56, 0x34, 0x12}) {
		t.Errorf("PutLE32 = %v", b32)
	}
}

func le16(b []byte) int { return int(b[0]) | int(b[1])<<8 }
func le32(b []byte) int { return le16(b) | le16(b[2:])<<16 }

func TestWrapRawPCM_Header(t *testing.T) {
	tests := []struct {
		name       string
		pcm        []byte
		rate       int
		channels   int
		byteRate   int
		blockAlign int
	}{
		{name: "piper mono", pcm: []byte{1, 2, 3, 4}, rate: PiperSampleRate, channels: PiperChannels, byteRate: 44100, blockAlign: 2},
		{name: "stereo", pcm: []byte{1, 2, 3, 4, 5, 6, 7, 8}, rate: 44100, channels: 2, byteRate: 176400, blockAlign: 4},
		{name: "empty", pcm: nil, rate: 22050, channels: 1, byteRate: 44100, blockAlign: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := WrapRawPCM(tt.pcm, tt.rate, tt.channels, 16)
			if len(w) != HeaderSize+len(tt.pcm) {
				t.Fatalf("length = %d, want %d", len(w), HeaderSize+len(tt.pcm))
			}
			for off, tag := range map[int]string{0: "RIFF", 8: "WAVE", 12: "fmt ", 36: "data"} {
				if string(w[off:off+4]) != tag {
					t.Errorf("bytes %d-%d = %q, want %q", off, off+4, w[off:off+4], tag)
				}
			}
			checks := []struct {
				field string
				got   int
				want  int
			}{
				{"riff size", le32(w[4:]), 36 + len(tt.pcm)},
				{"format", le16(w[20:]), FormatPCM},
				{"channels", le16(w[22:]), tt.channels},
				{"sample rate", le32(w[24:]), tt.rate},
				{"byte rate", le32(w[28:]), tt.byteRate},
				{"block align", le16(w[32:]), tt.blockAlign},
				{"bits", le16(w[34:]), 16},
				{"data size", le32(w[40:]), len(tt.pcm)},
			}
			for _, c := range checks {
				if c.got != c.want {
					t.Errorf("%s = %d, want %d", c.field, c.got, c.want)
				}
			}
			if !bytes.Equal(w[HeaderSize:], tt.pcm) {
				t.Error("PCM payload mismatch")
			}
		})
	}
}

func TestWrapRawPCM_PiperFormat(t *testing.T) {
	w := WrapRawPCM(make([]byte, 200), PiperSampleRate, PiperChannels, PiperBitsPerSample)
	info, err := Parse(w)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if info.SampleRate != PiperSampleRate || info.Channels != PiperChannels || info.BitsPerSample != PiperBitsPerSample {
		t.Errorf("format = %+v", info)
	}
	if len(info.Data) != 200 || !bytes.Equal(info.Data, make([]byte, 200)) {
		t.Errorf("expected 200 bytes of silence, got %d", len(info.Data))
	}
}

func TestParse_RoundTripsHeader(t *testing.T) {
	pcm := make([]byte, 48000*2*2)
	info, err := Parse(WrapRawPCM(pcm, 48000, 2, 16))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if info.SampleRate != 48000 || info.Channels != 2 || info.BitsPerSample != 16 {
		t.Errorf("unexpected format: %+v", info)
	}
	if len(info.Data) != len(pcm) {
		t.Errorf("data length = %d, want %d", len(info.Data), len(pcm))
	}
	if info.Duration() != time.Second {
		t.Errorf("Duration() = %v, want 1s", info.Duration())
	}
}

func TestParse_SkipsUnknownChunks(t *testing.T) {
	base := WrapRawPCM([]byte{1, 2, 3, 4}, 22050, 1, 16)

	// Insert an odd-sized LIST chunk (padded to even) between fmt and data.
	list := []byte("LIST")
	size := make([]byte, 4)
	PutLE32(size, 3)
	list = append(list, size...)
	list = append(list, 'a', 'b', 'c', 0)

	data := append([]byte{}, base[:36]...)
	data = append(data, list...)
	data = append(data, base[36:]...)

	info, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !bytes.Equal(info.Data, []byte{1, 2, 3, 4}) {
		t.Errorf("data = %v, want [1 2 3 4]", info.Data)
	}
}

func TestParse_TruncatedDataChunk(t *testing.T) {
	data := WrapRawPCM(make([]byte, 100), 22050, 1, 16)
	info, err := Parse(data[:HeaderSize+40])
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(info.Data) != 40 {
		t.Errorf("data length = %d, want 40", len(info.Data))
	}
}

func TestParse_Errors(t *testing.T) {
	valid := WrapRawPCM([]byte{0, 0}, 22050, 1, 16)

	notWAV := append([]byte{}, valid...)
	copy(notWAV[8:12], "AVI ")

	noData := append([]byte{}, valid[:36]...)
	noData = append(noData, make([]byte, 8)...)
	copy(noData[36:40], "junk")

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"short", []byte("RIFF"), ErrTooShort},
		{"not wave", notWAV, ErrNotWAV},
		{"no data chunk", noData, ErrMissingChunk},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.data); !errors.Is(err, tt.want) {
				t.Errorf("Parse() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPCMDuration(t *testing.T) {
	if got := PCMDuration(3840, 48000, 2, 16); got != 20*time.Millisecond {
		t.Errorf("PCMDuration(3840) = %v, want 20ms", got)
	}
	if got := PCMDuration(100, 0, 2, 16); got != 0 {
		t.Errorf("PCMDuration with zero rate = %v, want 0", got)
	}
}
