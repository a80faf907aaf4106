package audio

import (
	"io"
	"testing"
)

func TestPCMFrameReader_ReadFrame(t *testing.T) {
	// Create PCM data for exactly 2 frames
	data := make([]byte, DiscordFrameBytes*2)
	for i := range data {
		data[i] = byte(i % 256)
	}

	reader := NewPCMFrameReader(data)

	// Read first frame
	frame1, err := reader.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() 1 error = %v", err)
	}
	if len(frame1) != DiscordFrameBytes {
		t.Errorf("frame1 length = %d, want %d", len(frame1), DiscordFrameBytes)
	}

	// Read second frame
	frame2, err := reader.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() 2 error = %v", err)
	}
	if len(frame2) != DiscordFrameBytes {
		t.Errorf("frame2 length = %d, want %d", len(frame2), DiscordFrameBytes)
	}

	// Third read should return EOF
	_, err = reader.ReadFrame()
	if err != io.EOF {
		t.Errorf("ReadFrame() 3 error = %v, want io.EOF", err)
	}
}

func TestPCMFrameReader_PartialFrame(t *testing.T) {
	// Create PCM data for 1.5 frames (partial last frame)
	data := make([]byte, DiscordFrameBytes+DiscordFrameBytes/2)

	reader := NewPCMFrameReader(data)

	// First frame should succeed
	_, err := reader.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() 1 error = %v", err)
	}

	// Second read returns the remainder padded with silence
	frame, err := reader.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() 2 error = %v", err)
	}
	if len(frame) != DiscordFrameBytes {
		t.Errorf("frame length = %d, want %d", len(frame), DiscordFrameBytes)
	}

	_, err = reader.ReadFrame()
	if err != io.EOF {
		t.Errorf("ReadFrame() 3 error = %v, want io.EOF", err)
	}
}

func TestPCMFrameReader_Reset(t *testing.T) {
	data := make([]byte, DiscordFrameBytes)
	reader := NewPCMFrameReader(data)

	// Read the frame
	_, _ = reader.ReadFrame()
	if reader.Remaining() != 0 {
		t.Errorf("Remaining() = %d, want 0", reader.Remaining())
	}

	// Reset and read again
	reader.Reset()
	if reader.Remaining() != DiscordFrameBytes {
		t.Errorf("Remaining() after reset = %d, want %d", reader.Remaining(), DiscordFrameBytes)
	}

	frame, err := reader.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() after reset error = %v", err)
	}
	if len(frame) != DiscordFrameBytes {
		t.Errorf("frame length = %d, want %d", len(frame), DiscordFrameBytes)
	}
}

func TestPCMFrameReader_Seek(t *testing.T) {
	reader := NewFrameReader(make([]byte, 100), 10)

	reader.Seek(45)
	if reader.Offset() != 45 {
		t.Errorf("Offset() = %d, want 45", reader.Offset())
	}
	reader.Seek(-5)
	if reader.Offset() != 0 {
		t.Errorf("Offset() after negative seek = %d, want 0", reader.Offset())
	}
	reader.Seek(500)
	if reader.Offset() != 100 {
		t.Errorf("Offset() after overlong seek = %d, want 100", reader.Offset())
	}
	if _, err := reader.ReadFrame(); err != io.EOF {
		t.Errorf("ReadFrame() at end error = %v, want io.EOF", err)
	}
	if reader.Len() != 100 {
		t.Errorf("Len() = %d, want 100", reader.Len())
	}
}
