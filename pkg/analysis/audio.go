// Package analysis provides audio decoding, beat detection and cue building.
// This file provides audio file loading at full or reduced fidelity.
package analysis

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

// ReducedSampleRate is the mono rate used for BPM-only decoding. It is plenty
// for tempo estimation and keeps memory and CPU down.
const ReducedSampleRate = 22050

// Buffer holds decoded PCM in [-1, 1]. Samples are interleaved when
// Channels > 1.
type Buffer struct {
	Samples    []float64
	Channels   int
	SampleRate int
}

// Duration returns the buffer length in seconds.
func (b *Buffer) Duration() float64 {
	if b.SampleRate == 0 || b.Channels == 0 {
		return 0
	}
	return float64(len(b.Samples)/b.Channels) / float64(b.SampleRate)
}

// Mono returns a single-channel view of the buffer, averaging channels when
// the source is multichannel.
func (b *Buffer) Mono() []float64 {
	if b.Channels <= 1 {
		return b.Samples
	}
	frames := len(b.Samples) / b.Channels
	mono := make([]float64, frames)
	for i := 0; i < frames; i++ {
		sum := 0.0
		for c := 0; c < b.Channels; c++ {
			sum += b.Samples[i*b.Channels+c]
		}
		mono[i] = sum / float64(b.Channels)
	}
	return mono
}

// Decode loads an audio file. With fullFidelity the file's native sample rate
// and channel layout are preserved; otherwise the result is mono at
// ReducedSampleRate, which is what tempo estimation wants.
func Decode(path string, fullFidelity bool) (*Buffer, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	var (
		buf *Buffer
		err error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".mp3":
		buf, err = decodeMP3(path)
	case ".wav":
		buf, err = decodeWAV(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, err
	}

	if !fullFidelity {
		mono := buf.Mono()
		if buf.SampleRate != ReducedSampleRate {
			mono = Resample(mono, buf.SampleRate, ReducedSampleRate)
		}
		buf = &Buffer{Samples: mono, Channels: 1, SampleRate: ReducedSampleRate}
	}
	return buf, nil
}

// Additional samples that go-mp3 produces compared to browser's decoder
// Measured: browser first transient at 48446, go-mp3 at 50735
// LAME header said 1365, so go-mp3 adds: 50735 - 48446 - 1365 = 924 samples
const goMP3DecoderDelay = 924

// Default encoder delay if we can't read it from the LAME header
const defaultEncoderDelay = 576

// readMP3Delay reads the total delay to skip for an MP3 file.
// Combines LAME encoder delay (from header) + go-mp3 decoder delay.
func readMP3Delay(path string) int {
	return readLAMEEncoderDelay(path) + goMP3DecoderDelay
}

// readLAMEEncoderDelay reads the encoder delay from LAME/Xing header if present.
func readLAMEEncoderDelay(path string) int {
	f, err := os.Open(path)
	if err != nil {
		return defaultEncoderDelay
	}
	defer f.Close()

	// Read first 4KB which should contain any Xing/LAME header
	buf := make([]byte, 4096)
	n, err := f.Read(buf)
	if err != nil || n < 200 {
		return defaultEncoderDelay
	}
	buf = buf[:n]

	lameIdx := bytes.Index(buf, []byte("LAME"))
	if lameIdx == -1 {
		return defaultEncoderDelay
	}

	// LAME header structure: at offset 21 from "LAME" is a 3-byte field
	// containing encoder delay (12 bits) and padding (12 bits)
	delayOffset := lameIdx + 21
	if delayOffset+3 > len(buf) {
		return defaultEncoderDelay
	}

	// Encoder delay is in the upper 12 bits of the 24-bit value
	b := buf[delayOffset : delayOffset+3]
	delay := (int(b[0]) << 4) | (int(b[1]) >> 4)

	// Sanity check - delay should be reasonable (typically 576-1152)
	if delay < 0 || delay > 4096 {
		return defaultEncoderDelay
	}

	return delay
}

// decodeMP3 decodes an MP3 file into an interleaved stereo buffer.
func decodeMP3(path string) (*Buffer, error) {
	totalDelay := readMP3Delay(path)

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	sampleRate := decoder.SampleRate()

	// go-mp3 outputs 16-bit signed stereo (4 bytes per sample pair)
	pcmData, err := io.ReadAll(decoder)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	numFrames := len(pcmData) / 4
	samples := make([]float64, numFrames*2)
	for i := 0; i < numFrames; i++ {
		offset := i * 4
		left := int16(binary.LittleEndian.Uint16(pcmData[offset:]))
		right := int16(binary.LittleEndian.Uint16(pcmData[offset+2:]))
		samples[i*2] = float64(left) / 32768.0
		samples[i*2+1] = float64(right) / 32768.0
	}

	// Skip encoder+decoder delay so timestamps line up with playback.
	if numFrames > totalDelay {
		samples = samples[totalDelay*2:]
	}

	return &Buffer{Samples: samples, Channels: 2, SampleRate: sampleRate}, nil
}

// decodeWAV decodes a PCM WAV file, keeping the source channel layout.
func decodeWAV(path string) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("%w: not a valid WAV file", ErrDecode)
	}
	if decoder.BitDepth != 16 && decoder.BitDepth != 24 && decoder.BitDepth != 32 {
		return nil, fmt.Errorf("%w: %d-bit WAV", ErrUnsupportedFormat, decoder.BitDepth)
	}
	if decoder.NumChans != 1 && decoder.NumChans != 2 {
		return nil, fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, decoder.NumChans)
	}

	divisor := float64(int(1) << (decoder.BitDepth - 1))
	channels := int(decoder.NumChans)
	sampleRate := int(decoder.SampleRate)

	var samples []float64
	intBuf := &audio.IntBuffer{
		Data:   make([]int, 32768),
		Format: &audio.Format{SampleRate: sampleRate, NumChannels: channels},
	}
	for {
		n, err := decoder.PCMBuffer(intBuf)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		if n == 0 {
			break
		}
		for _, s := range intBuf.Data[:n] {
			samples = append(samples, float64(s)/divisor)
		}
	}

	return &Buffer{Samples: samples, Channels: channels, SampleRate: sampleRate}, nil
}

// Resample converts mono samples from srcRate to dstRate using linear
// interpolation.
func Resample(samples []float64, srcRate, dstRate int) []float64 {
	if srcRate == dstRate {
		return samples
	}

	ratio := float64(srcRate) / float64(dstRate)
	newLen := int(float64(len(samples)) / ratio)
	result := make([]float64, newLen)

	for i := range result {
		srcIdx := float64(i) * ratio
		srcIdxInt := int(srcIdx)
		frac := srcIdx - float64(srcIdxInt)

		if srcIdxInt+1 < len(samples) {
			result[i] = samples[srcIdxInt]*(1-frac) + samples[srcIdxInt+1]*frac
		} else if srcIdxInt < len(samples) {
			result[i] = samples[srcIdxInt]
		}
	}

	return result
}
