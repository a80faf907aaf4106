package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/dgnsrekt/narrator/internal/wav"
)

func TestNativeDecoder_UpmixAndResample(t *testing.T) {
	// One second of mono 24kHz audio with a constant sample value.
	pcm := make([]byte, 24000*2)
	for i := 0; i < len(pcm); i += 2 {
		binary.LittleEndian.PutUint16(pcm[i:], uint16(1000))
	}

	out, err := NativeDecoder{}.Decode(context.Background(), wav.WrapRawPCM(pcm, 24000, 1, 16), DiscordFormat)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(out) != DiscordFormat.BytesPerSecond() {
		t.Fatalf("Decode() length = %d, want %d", len(out), DiscordFormat.BytesPerSecond())
	}
	for i := 0; i < len(out); i += 2 {
		if v := int16(binary.LittleEndian.Uint16(out[i:])); v != 1000 {
			t.Fatalf("sample %d = %d, want 1000", i/2, v)
		}
	}
}

func TestNativeDecoder_Downmix(t *testing.T) {
	pcm := make([]byte, 8)
	binary.LittleEndian.PutUint16(pcm[0:], uint16(100))
	binary.LittleEndian.PutUint16(pcm[2:], uint16(300))
	binary.LittleEndian.PutUint16(pcm[4:], uint16(0xFFFF)) // -1
	binary.LittleEndian.PutUint16(pcm[6:], uint16(0xFFFD)) // -3

	out, err := NativeDecoder{}.Decode(context.Background(), wav.WrapRawPCM(pcm, 8000, 2, 16), Format{SampleRate: 8000, Channels: 1})
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(out) != 4 {
		t.Fatalf("Decode() length = %d, want 4", len(out))
	}
	if v := int16(binary.LittleEndian.Uint16(out[0:])); v != 200 {
		t.Errorf("sample 0 = %d, want 200", v)
	}
	if v := int16(binary.LittleEndian.Uint16(out[2:])); v != -2 {
		t.Errorf("sample 1 = %d, want -2", v)
	}
}

func TestNativeDecoder_Errors(t *testing.T) {
	ctx := context.Background()

	if _, err := (NativeDecoder{}).Decode(ctx, nil, DiscordFormat); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput, got %v", err)
	}
	if _, err := (NativeDecoder{}).Decode(ctx, []byte("definitely not a wav file at all, sorry about that"), DiscordFormat); !errors.Is(err, ErrUnsupportedWAV) {
		t.Errorf("expected ErrUnsupportedWAV, got %v", err)
	}
	eight := wav.WrapRawPCM([]byte{1, 2, 3, 4}, 8000, 1, 8)
	if _, err := (NativeDecoder{}).Decode(ctx, eight, DiscordFormat); !errors.Is(err, ErrUnsupportedWAV) {
		t.Errorf("expected ErrUnsupportedWAV for 8-bit audio, got %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := (NativeDecoder{}).Decode(cancelled, silentPiperWAV(10), DiscordFormat); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
