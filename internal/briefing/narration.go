package briefing

import (
	"fmt"
	"sort"

	"github.com/podsmith/backend/internal/models"
)

// Speed presets: spoken words per minute and the TTS playback rate.
var speeds = map[string]struct {
	wpm  int
	rate float64
}{
	"Slow":      {wpm: 134, rate: 0.75},
	"Normal":    {wpm: 178, rate: 1.0},
	"Fast":      {wpm: 223, rate: 1.25},
	"Very Fast": {wpm: 267, rate: 1.5},
}

// Voice presets map request names to provider voices.
var voices = map[string]string{
	"male1":   "ballad",
	"male2":   "echo",
	"female1": "fable",
	"female2": "shimmer",
}

const (
	DefaultSpeed = "Normal"
	DefaultVoice = "male1"
)

// Speeds lists the accepted speed names.
func Speeds() []string {
	return sortedKeys(speeds)
}

// Voices lists the accepted voice names.
func Voices() []string {
	return sortedKeys(voices)
}

// WordBounds gives the script length window for a podcast of the given
// minutes at the given speed: target ±1%, truncated. Minutes must be in
// [1, MaxLengthMinutes].
func WordBounds(minutes int, speed string) (models.WordCount, error) {
	preset, ok := speeds[speed]
	if !ok {
		return models.WordCount{}, fmt.Errorf("%w: unknown speed %q", ErrInvalidRequest, speed)
	}
	if minutes <= 0 || minutes > MaxLengthMinutes {
		return models.WordCount{}, fmt.Errorf("%w: length %d out of range", ErrInvalidRequest, minutes)
	}
	target := minutes * preset.wpm
	return models.WordCount{
		Target: target,
		Low:    int(float64(target) * 0.99),
		High:   int(float64(target) * 1.01),
	}, nil
}

// SpeechRate returns the playback multiplier of a speed preset.
func SpeechRate(speed string) (float64, bool) {
	preset, ok := speeds[speed]
	return preset.rate, ok
}

// ProviderVoice maps a request voice to the provider's voice name.
func ProviderVoice(voice string) (string, bool) {
	v, ok := voices[voice]
	return v, ok
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
