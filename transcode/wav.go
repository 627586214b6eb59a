package transcode

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVBitDepth is the PCM depth used when writing waveforms
const WAVBitDepth = 16

// ReadWAV reads a PCM WAV file and downmixes it to mono
func ReadWAV(path string) (*Waveform, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("couldn't open %s: %w", path, err)
	}
	defer f.Close()

	return DecodeWAV(f)
}

// DecodeWAV decodes a PCM WAV stream and downmixes it to mono
func DecodeWAV(r io.ReadSeeker) (*Waveform, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("not a valid wav stream")
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode pcm: %w", err)
	}
	if buf == nil || buf.Format == nil {
		return nil, fmt.Errorf("wav stream has no format chunk")
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = int(decoder.BitDepth)
	}
	if bitDepth <= 0 || bitDepth > 32 {
		return nil, fmt.Errorf("unsupported wav bit depth %d", bitDepth)
	}

	scale := math.Pow(2, float64(bitDepth-1))
	interleaved := make([]float64, len(buf.Data))
	for i, s := range buf.Data {
		interleaved[i] = float64(s) / scale
	}

	return &Waveform{
		Samples:    downmix(interleaved, buf.Format.NumChannels),
		SampleRate: buf.Format.SampleRate,
	}, nil
}

// WriteWAV writes w as a 16-bit mono PCM WAV file. Samples outside [-1, 1]
// are clipped.
func WriteWAV(path string, w *Waveform) error {
	if err := w.Validate(); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("couldn't create %s: %w", path, err)
	}

	if err := EncodeWAV(f, w); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// EncodeWAV writes w as 16-bit mono PCM to ws
func EncodeWAV(ws io.WriteSeeker, w *Waveform) error {
	maxValue := math.Pow(2, WAVBitDepth-1) - 1

	data := make([]int, len(w.Samples))
	for i, s := range w.Samples {
		s = math.Max(-1, math.Min(1, s))
		data[i] = int(math.Round(s * maxValue))
	}

	encoder := wav.NewEncoder(ws, w.SampleRate, WAVBitDepth, 1, 1)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: 1,
			SampleRate:  w.SampleRate,
		},
		Data:           data,
		SourceBitDepth: WAVBitDepth,
	}

	if err := encoder.Write(buf); err != nil {
		return fmt.Errorf("failed to write pcm: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("failed to finalize wav: %w", err)
	}
	return nil
}
