// Package audio analyses students' recorded performances.
package audio

import (
	"context"
	"io"
	"math"
	"sort"

	"github.com/go-audio/wav"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// PitchAccuracyPending is reported until pitch accuracy scoring exists.
const PitchAccuracyPending = "Further analysis needed"

var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Analysis is the result of analysing a recording.
type Analysis struct {
	Tempo         int     `json:"tempo"` // BPM, rounded
	PitchAccuracy string  `json:"pitch_accuracy"`
	PitchHz       float64 `json:"pitch_hz"` // median detected pitch, 0 when none
	Duration      float64 `json:"duration"` // seconds
	SampleRate    int     `json:"sample_rate"`
}

// Analyzer estimates tempo & pitch. The zero value is not usable, see NewAnalyzer.
type Analyzer struct {
	SampleRate     int // recordings are resampled to this rate before analysis
	HopLength      int // onset envelope hop, in samples
	FrameLength    int // onset envelope frame, in samples
	MinBPM, MaxBPM float64
	StartBPM       float64 // center of the tempo prior

	PitchFrameLength int
	MaxPitchFrames   int
	MinPitchHz       float64
	MaxPitchHz       float64
}

func NewAnalyzer() *Analyzer {
	return &Analyzer{
		SampleRate:       22050,
		HopLength:        512,
		FrameLength:      1024,
		MinBPM:           30,
		MaxBPM:           300,
		StartBPM:         120,
		PitchFrameLength: 2048,
		MaxPitchFrames:   200,
		MinPitchHz:       60,
		MaxPitchHz:       2000,
	}
}

// Analyze decodes a WAV recording and analyses it.
func (a *Analyzer) Analyze(ctx context.Context, r io.ReadSeeker) (Analysis, error) {
	samples, sr, err := DecodeWAV(r)
	if err != nil {
		return Analysis{}, err
	}
	return a.AnalyzeSamples(ctx, samples, sr)
}

// AnalyzeSamples analyses mono samples in [-1, 1] recorded at sampleRate.
func (a *Analyzer) AnalyzeSamples(ctx context.Context, samples []float64, sampleRate int) (Analysis, error) {
	if sampleRate <= 0 {
		return Analysis{}, ErrUnsupportedFormat
	}
	res := Analysis{
		PitchAccuracy: PitchAccuracyPending,
		Duration:      round(float64(len(samples))/float64(sampleRate), 2),
		SampleRate:    sampleRate,
	}

	y := resample(samples, sampleRate, a.SampleRate)

	var tempo, pitch float64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		tempo, err = a.tempo(gctx, y)
		return err
	})
	g.Go(func() (err error) {
		pitch, err = a.pitch(gctx, y)
		return err
	})
	if err := g.Wait(); err != nil {
		return Analysis{}, err
	}

	res.Tempo = int(math.Round(tempo))
	res.PitchHz = round(pitch, 2)
	return res, nil
}

// DecodeWAV returns the mono mix of a WAV file, normalized to [-1, 1], and its sample rate.
func DecodeWAV(r io.ReadSeeker) ([]float64, int, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, 0, ErrUnsupportedFormat
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, 0, errors.Wrap(ErrUnsupportedFormat, err.Error())
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels <= 0 || buf.Format.SampleRate <= 0 {
		return nil, 0, ErrUnsupportedFormat
	}

	bitDepth := int(d.BitDepth)
	if bitDepth <= 0 || bitDepth > 32 {
		return nil, 0, ErrUnsupportedFormat
	}
	scale := float64(int64(1) << (bitDepth - 1))
	offset := 0.0
	if bitDepth == 8 { // 8 bit PCM is unsigned
		offset = scale
	}

	chans := buf.Format.NumChannels
	n := len(buf.Data) / chans
	samples := make([]float64, n)
	for i := 0; i < n; i++ {
		var sum float64
		for c := 0; c < chans; c++ {
			sum += (float64(buf.Data[i*chans+c]) - offset) / scale
		}
		samples[i] = sum / float64(chans)
	}
	return samples, buf.Format.SampleRate, nil
}

// tempo estimates the tempo in BPM from the autocorrelation of the onset strength envelope,
// weighted by a log-normal prior around StartBPM. Silence yields 0.
func (a *Analyzer) tempo(ctx context.Context, y []float64) (float64, error) {
	env := a.onsetEnvelope(y)
	if len(env) < 2 {
		return 0, nil
	}
	var peak float64
	for _, v := range env {
		peak = math.Max(peak, v)
	}
	if peak == 0 {
		return 0, nil
	}
	env = centered(smooth(env, 1))

	framesPerMinute := 60 * float64(a.SampleRate) / float64(a.HopLength)
	minLag := int(math.Max(1, math.Floor(framesPerMinute/a.MaxBPM)))
	maxLag := int(math.Ceil(framesPerMinute / a.MinBPM))
	if maxLag > len(env)-1 {
		maxLag = len(env) - 1
	}
	if minLag > maxLag {
		return 0, nil
	}

	ac := make([]float64, maxLag+2)
	for lag := minLag; lag <= maxLag+1 && lag < len(env); lag++ {
		if lag%64 == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		var sum float64
		for i := 0; i+lag < len(env); i++ {
			sum += env[i] * env[i+lag]
		}
		ac[lag] = sum / float64(len(env)-lag) // unbiased
	}

	bestLag, bestScore := 0, 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		bpm := framesPerMinute / float64(lag)
		octaves := math.Log2(bpm / a.StartBPM)
		score := ac[lag] * math.Exp(-0.5*octaves*octaves)
		if score > bestScore {
			bestLag, bestScore = lag, score
		}
	}
	if bestLag == 0 {
		return 0, nil
	}

	lag := float64(bestLag)
	if bestLag > minLag && bestLag+1 < len(ac) {
		lag += parabolicOffset(ac[bestLag-1], ac[bestLag], ac[bestLag+1])
	}
	return framesPerMinute / lag, nil
}

// onsetEnvelope is the half-wave rectified difference of the frames' log energy.
func (a *Analyzer) onsetEnvelope(y []float64) []float64 {
	if len(y) < a.FrameLength {
		return nil
	}
	numFrames := 1 + (len(y)-a.FrameLength)/a.HopLength
	energy := make([]float64, numFrames)
	for f := 0; f < numFrames; f++ {
		start := f * a.HopLength
		var sum float64
		for _, v := range y[start : start+a.FrameLength] {
			sum += v * v
		}
		energy[f] = math.Log1p(1000 * sum / float64(a.FrameLength))
	}

	env := make([]float64, numFrames-1)
	for f := 1; f < numFrames; f++ {
		env[f-1] = math.Max(0, energy[f]-energy[f-1])
	}
	return env
}

// smooth convolves x with a gaussian kernel of the given standard deviation, in frames.
func smooth(x []float64, sigma float64) []float64 {
	radius := int(math.Ceil(3 * sigma))
	kernel := make([]float64, 2*radius+1)
	var total float64
	for i := range kernel {
		d := float64(i - radius)
		kernel[i] = math.Exp(-0.5 * d * d / (sigma * sigma))
		total += kernel[i]
	}

	out := make([]float64, len(x))
	for i := range x {
		var sum float64
		for k, w := range kernel {
			if j := i + k - radius; j >= 0 && j < len(x) {
				sum += w * x[j]
			}
		}
		out[i] = sum / total
	}
	return out
}

func centered(x []float64) []float64 {
	var mean float64
	for _, v := range x {
		mean += v
	}
	mean /= float64(len(x))
	for i := range x {
		x[i] -= mean
	}
	return x
}

// pitch returns the median fundamental frequency of the voiced frames, using the YIN difference function.
func (a *Analyzer) pitch(ctx context.Context, y []float64) (float64, error) {
	sr := float64(a.SampleRate)
	window := a.PitchFrameLength / 2
	minTau := int(math.Floor(sr / a.MaxPitchHz))
	maxTau := int(math.Ceil(sr / a.MinPitchHz))
	if minTau < 2 {
		minTau = 2
	}
	if maxTau > a.PitchFrameLength-window-1 {
		maxTau = a.PitchFrameLength - window - 1
	}
	if len(y) < a.PitchFrameLength || minTau >= maxTau {
		return 0, nil
	}

	numFrames := len(y) / a.PitchFrameLength
	step := 1
	if a.MaxPitchFrames > 0 && numFrames > a.MaxPitchFrames {
		step = int(math.Ceil(float64(numFrames) / float64(a.MaxPitchFrames)))
	}

	diff := make([]float64, maxTau+1)
	var pitches []float64
	for f := 0; f < numFrames; f += step {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		frame := y[f*a.PitchFrameLength : (f+1)*a.PitchFrameLength]
		if rms(frame) < 0.01 { // unvoiced / silent
			continue
		}
		if hz := yin(frame, window, minTau, maxTau, diff, sr); hz > 0 {
			pitches = append(pitches, hz)
		}
	}
	return median(pitches), nil
}

func yin(frame []float64, window, minTau, maxTau int, diff []float64, sr float64) float64 {
	const threshold = 0.15

	diff[0] = 1
	var running float64
	for tau := 1; tau <= maxTau; tau++ {
		var d float64
		for j := 0; j < window; j++ {
			delta := frame[j] - frame[j+tau]
			d += delta * delta
		}
		running += d
		if running == 0 {
			diff[tau] = 1
		} else {
			diff[tau] = d * float64(tau) / running // cumulative mean normalized
		}
	}

	for tau := minTau; tau < maxTau; tau++ {
		if diff[tau] < threshold {
			for tau+1 < maxTau && diff[tau+1] < diff[tau] {
				tau++
			}
			t := float64(tau) + parabolicOffset(diff[tau-1], diff[tau], diff[tau+1])
			return sr / t
		}
	}
	return 0
}

// resample converts x from rate `from` to rate `to` by linear interpolation.
func resample(x []float64, from, to int) []float64 {
	if from == to || len(x) == 0 {
		return x
	}
	ratio := float64(from) / float64(to)
	n := int(float64(len(x)) / ratio)
	out := make([]float64, n)
	for i := range out {
		pos := float64(i) * ratio
		j := int(pos)
		frac := pos - float64(j)
		if j+1 < len(x) {
			out[i] = x[j]*(1-frac) + x[j+1]*frac
		} else {
			out[i] = x[len(x)-1]
		}
	}
	return out
}

// parabolicOffset is the offset of the vertex of the parabola through 3 equally spaced points, in [-0.5, 0.5].
func parabolicOffset(left, center, right float64) float64 {
	denom := left - 2*center + right
	if denom == 0 {
		return 0
	}
	off := 0.5 * (left - right) / denom
	return math.Max(-0.5, math.Min(0.5, off))
}

func rms(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

func median(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	sorted := append([]float64(nil), x...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}
