package spectral

import (
	"fmt"
	"math/cmplx"
	"runtime"
	"sync"

	"github.com/RyanBlaney/sonido-melodia/algorithms/common"
)

// STFT computes short-time Fourier transforms with a bounded worker pool
type STFT struct {
	fft     *FFT
	workers int
}

// STFTResult holds a Time x Frequency spectrogram
type STFTResult struct {
	Magnitude      [][]float64    `json:"magnitude"`
	Complex        [][]complex128 `json:"-"`
	TimeFrames     int            `json:"time_frames"`
	FreqBins       int            `json:"freq_bins"`
	SampleRate     int            `json:"sample_rate"`
	WindowSize     int            `json:"window_size"`
	HopSize        int            `json:"hop_size"`
	Centered       bool           `json:"centered"`
	FreqResolution float64        `json:"freq_resolution"` // Hz/bin
	TimeResolution float64        `json:"time_resolution"` // seconds/frame
}

// Window interface for windowing functions
type Window interface {
	ApplyInPlace(signal []float64) error
}

// NewSTFT creates a new STFT calculator. workers <= 0 picks a count from the
// frame count and the machine.
func NewSTFT(workers int) *STFT {
	return &STFT{
		fft:     NewFFT(),
		workers: workers,
	}
}

// ComputeCentered pads signal by windowSize/2 on both sides with reflection
// so frame t is centered on sample t*hopSize
func (s *STFT) ComputeCentered(signal []float64, windowSize, hopSize, sampleRate int, window Window) (*STFTResult, error) {
	if len(signal) == 0 {
		return nil, fmt.Errorf("empty signal")
	}
	result, err := s.ComputeWithWindow(common.ReflectPad(signal, windowSize/2), windowSize, hopSize, sampleRate, window)
	if err != nil {
		return nil, err
	}
	result.Centered = true
	return result, nil
}

// ComputeWithWindow computes STFT with parallel processing and custom window type
func (s *STFT) ComputeWithWindow(signal []float64, windowSize int, hopSize int, sampleRate int, window Window) (*STFTResult, error) {
	if len(signal) == 0 {
		return nil, fmt.Errorf("empty signal")
	}

	if windowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive")
	}

	if hopSize <= 0 {
		return nil, fmt.Errorf("hop size must be positive")
	}

	if len(signal) < windowSize {
		return nil, fmt.Errorf("signal too short for given window size and hop size")
	}
	numFrames := (len(signal)-windowSize)/hopSize + 1

	// positive frequencies only
	freqBins := windowSize/2 + 1

	magnitude := make([][]float64, numFrames)
	complexSpectrum := make([][]complex128, numFrames)
	for i := 0; i < numFrames; i++ {
		magnitude[i] = make([]float64, freqBins)
		complexSpectrum[i] = make([]complex128, freqBins)
	}

	numWorkers := s.workerCount(numFrames)

	jobs := make(chan int, numFrames)
	errs := make(chan error, numWorkers)

	var wg sync.WaitGroup
	for _i := 0; _i < numWorkers; _i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// reused per worker
			frameBuffer := make([]float64, windowSize)

			for frameIdx := range jobs {
				start := frameIdx * hopSize
				copy(frameBuffer, signal[start:start+windowSize])

				if window != nil {
					if err := window.ApplyInPlace(frameBuffer); err != nil {
						errs <- fmt.Errorf("frame %d: %w", frameIdx, err)
						return
					}
				}

				fftResult := s.fft.Compute(frameBuffer)
				for i := 0; i < freqBins; i++ {
					complexSpectrum[frameIdx][i] = fftResult[i]
					magnitude[frameIdx][i] = cmplx.Abs(fftResult[i])
				}
			}
		}()
	}

	for frameIdx := 0; frameIdx < numFrames; frameIdx++ {
		jobs <- frameIdx
	}
	close(jobs)

	wg.Wait()
	close(errs)
	if err := <-errs; err != nil {
		return nil, err
	}

	return &STFTResult{
		Magnitude:      magnitude,
		Complex:        complexSpectrum,
		TimeFrames:     numFrames,
		FreqBins:       freqBins,
		SampleRate:     sampleRate,
		WindowSize:     windowSize,
		HopSize:        hopSize,
		FreqResolution: float64(sampleRate) / float64(windowSize),
		TimeResolution: float64(hopSize) / float64(sampleRate),
	}, nil
}

// Inverse resynthesizes a signal of exactly length samples from frames of
// non-negative frequency bins using windowed overlap-add. centered undoes
// the padding added by ComputeCentered.
func (s *STFT) Inverse(frames [][]complex128, windowSize, hopSize int, window []float64, centered bool, length int) ([]float64, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames to invert")
	}
	if len(window) != windowSize {
		return nil, fmt.Errorf("window length %d doesn't match window size %d", len(window), windowSize)
	}

	oab := common.NewOverlapAddBuffer(window, hopSize, len(frames))
	for t, frame := range frames {
		if err := oab.AddFrame(s.fft.InverseHalfSpectrum(frame, windowSize)); err != nil {
			return nil, fmt.Errorf("frame %d: %w", t, err)
		}
	}

	out := oab.Output()
	if centered {
		out = out[min(windowSize/2, len(out)):]
	}
	return common.FixLength(out, length), nil
}

// Power returns |X|^2 for every frame
func (r *STFTResult) Power() [][]float64 {
	ps := NewPowerSpectrum()
	power := make([][]float64, r.TimeFrames)
	for t := 0; t < r.TimeFrames; t++ {
		power[t] = ps.Compute(r.Magnitude[t])
	}
	return power
}

// workerCount never returns less than one
func (s *STFT) workerCount(numFrames int) int {
	if s.workers > 0 {
		return max(1, min(s.workers, numFrames))
	}

	numCPU := runtime.NumCPU()

	// small workloads don't benefit from fan-out
	if numFrames < 100 {
		return max(1, min(numCPU/2, numFrames))
	}
	if numFrames < 1000 {
		return min(numCPU, 8)
	}
	return numCPU
}
