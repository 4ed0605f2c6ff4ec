package audio

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRate = 22050

// clickTrack returns `seconds` of short 1kHz bursts at the given tempo.
func clickTrack(bpm float64, seconds float64, rate int) []float64 {
	samples := make([]float64, int(seconds*float64(rate)))
	period := 60 / bpm * float64(rate)
	burst := int(0.02 * float64(rate))
	for start := 0.0; int(start) < len(samples); start += period {
		for i := 0; i < burst && int(start)+i < len(samples); i++ {
			samples[int(start)+i] = 0.8 * math.Sin(2*math.Pi*1000*float64(i)/float64(rate))
		}
	}
	return samples
}

func sine(hz float64, seconds float64, rate int) []float64 {
	samples := make([]float64, int(seconds*float64(rate)))
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*hz*float64(i)/float64(rate))
	}
	return samples
}

func writeWAV(t *testing.T, samples []float64, rate, channels int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "take.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	data := make([]int, 0, len(samples)*channels)
	for _, s := range samples {
		for c := 0; c < channels; c++ {
			data = append(data, int(s*32767))
		}
	}

	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
	return path
}

func TestAnalyzer_AnalyzeSamples(t *testing.T) {
	a := NewAnalyzer()
	ctx := context.Background()

	tests := []struct {
		name      string
		samples   []float64
		wantTempo int
		delta     float64
	}{
		{name: "120 bpm", samples: clickTrack(120, 10, testRate), wantTempo: 120, delta: 2},
		{name: "90 bpm", samples: clickTrack(90, 12, testRate), wantTempo: 90, delta: 2},
		{name: "silence", samples: make([]float64, 5*testRate), wantTempo: 0, delta: 0},
		{name: "too short", samples: make([]float64, 100), wantTempo: 0, delta: 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := a.AnalyzeSamples(ctx, tc.samples, testRate)
			require.NoError(t, err)
			assert.InDelta(t, tc.wantTempo, res.Tempo, tc.delta)
			assert.Equal(t, PitchAccuracyPending, res.PitchAccuracy)
			assert.Equal(t, testRate, res.SampleRate)
		})
	}
}

func TestAnalyzer_Pitch(t *testing.T) {
	res, err := NewAnalyzer().AnalyzeSamples(context.Background(), sine(440, 2, testRate), testRate)
	require.NoError(t, err)
	assert.InDelta(t, 440, res.PitchHz, 3)
	assert.Equal(t, 2.0, res.Duration)

	res, err = NewAnalyzer().AnalyzeSamples(context.Background(), make([]float64, testRate), testRate)
	require.NoError(t, err)
	assert.Zero(t, res.PitchHz, "silence has no pitch")
}

func TestAnalyzer_Resamples(t *testing.T) {
	res, err := NewAnalyzer().AnalyzeSamples(context.Background(), sine(220, 2, 44100), 44100)
	require.NoError(t, err)
	assert.InDelta(t, 220, res.PitchHz, 2)
	assert.Equal(t, 44100, res.SampleRate, "reports the recording's rate")
	assert.Equal(t, 2.0, res.Duration)
}

func TestAnalyzer_Analyze(t *testing.T) {
	path := writeWAV(t, clickTrack(120, 8, 44100), 44100, 2)
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	res, err := NewAnalyzer().Analyze(context.Background(), f)
	require.NoError(t, err)
	assert.InDelta(t, 120, res.Tempo, 2)
	assert.Equal(t, 44100, res.SampleRate)
	assert.InDelta(t, 8, res.Duration, 0.01)
}

func TestAnalyzer_Analyze_unsupported(t *testing.T) {
	_, err := NewAnalyzer().Analyze(context.Background(), bytes.NewReader([]byte("ID3 definitely not a wav file")))
	assert.Equal(t, ErrUnsupportedFormat, err)
}

func TestAnalyzer_canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewAnalyzer().AnalyzeSamples(ctx, sine(440, 5, testRate), testRate)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecodeWAV_mixesChannels(t *testing.T) {
	path := writeWAV(t, []float64{0.5, -0.5, 0.25}, 8000, 2)
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	samples, rate, err := DecodeWAV(f)
	require.NoError(t, err)
	assert.Equal(t, 8000, rate)
	require.Len(t, samples, 3)
	assert.InDelta(t, 0.5, samples[0], 0.001)
	assert.InDelta(t, -0.5, samples[1], 0.001)
	assert.InDelta(t, 0.25, samples[2], 0.001)
}

func TestMedian(t *testing.T) {
	assert.Zero(t, median(nil))
	assert.Equal(t, 2.0, median([]float64{3, 1, 2}))
	assert.Equal(t, 2.5, median([]float64{4, 1, 2, 3}))
}
