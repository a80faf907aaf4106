package audio

import "io"

// PCMFrameReader slices raw PCM into fixed-size frames. The final partial
// frame is zero-padded so no audio is dropped.
type PCMFrameReader struct {
	data       []byte
	offset     int
	frameBytes int
}

// NewPCMFrameReader creates a reader producing Discord-sized frames.
func NewPCMFrameReader(pcmData []byte) *PCMFrameReader {
	return NewFrameReader(pcmData, DiscordFrameBytes)
}

// NewFrameReader creates a reader producing frames of frameBytes.
func NewFrameReader(pcmData []byte, frameBytes int) *PCMFrameReader {
	if frameBytes <= 0 {
		frameBytes = DiscordFrameBytes
	}
	return &PCMFrameReader{data: pcmData, frameBytes: frameBytes}
}

// ReadFrame returns the next frame, or io.EOF once all data has been read.
func (r *PCMFrameReader) ReadFrame() ([]byte, error) {
	if r.offset >= len(r.data) {
		return nil, io.EOF
	}

	end := r.offset + r.frameBytes
	if end <= len(r.data) {
		frame := r.data[r.offset:end]
		r.offset = end
		return frame, nil
	}

	frame := make([]byte, r.frameBytes)
	copy(frame, r.data[r.offset:])
	r.offset = len(r.data)
	return frame, nil
}

// Seek moves the read position to offset, clamped to the data bounds.
func (r *PCMFrameReader) Seek(offset int) {
	switch {
	case offset < 0:
		offset = 0
	case offset > len(r.data):
		offset = len(r.data)
	}
	r.offset = offset
}

// Offset returns the current read position in bytes.
func (r *PCMFrameReader) Offset() int {
	return r.offset
}

// Len returns the total number of bytes.
func (r *PCMFrameReader) Len() int {
	return len(r.data)
}

// Reset resets the reader to the beginning.
func (r *PCMFrameReader) Reset() {
	r.offset = 0
}

// Remaining returns the number of bytes remaining.
func (r *PCMFrameReader) Remaining() int {
	return len(r.data) - r.offset
}
