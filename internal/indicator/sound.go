package indicator

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rbright/orb/internal/audio"
	"github.com/rbright/orb/internal/config"
)

type cueKind int

const (
	cueStart cueKind = iota + 1
	cueStop
	cueComplete
	cueCancel
	cueError
)

const (
	cueSampleRate = 16000
	cueVolume     = 0.18
	cueGap        = 22 * time.Millisecond
	// cueMaxRamp caps the fade at each note edge.
	cueMaxRamp = 5 * time.Millisecond
)

type note struct {
	hz  float64
	dur time.Duration
}

// cueNotes are the melodies; rising for start and completion, falling for
// cancel and error.
var cueNotes = map[cueKind][]note{
	cueStart:    {{880, 70 * time.Millisecond}, {1175, 70 * time.Millisecond}},
	cueStop:     {{620, 120 * time.Millisecond}},
	cueComplete: {{740, 65 * time.Millisecond}, {988, 90 * time.Millisecond}},
	cueCancel:   {{480, 75 * time.Millisecond}, {360, 90 * time.Millisecond}},
	cueError:    {{330, 110 * time.Millisecond}, {262, 160 * time.Millisecond}},
}

var cuePCM = func() map[cueKind][]int16 {
	out := make(map[cueKind][]int16, len(cueNotes))
	for kind, notes := range cueNotes {
		out[kind] = renderCue(notes, cueVolume)
	}
	return out
}()

const cueDeadline = 4 * time.Second

// emitCue plays a cue through the configured player command, or straight to
// the pulse sink when none is set.
func emitCue(ctx context.Context, kind cueKind, cfg config.IndicatorConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	samples := cueSamples(kind)
	if len(samples) == 0 {
		return nil
	}
	if len(cfg.SoundPlayer.Argv) > 0 {
		return playCueCommand(ctx, cfg.SoundPlayer.Argv, samples)
	}
	player := audio.Player{MediaName: "orb indicator cue"}
	return player.Play(ctx, audio.Clip{Samples: samples, SampleRate: cueSampleRate}, nil)
}

// playCueCommand writes the cue to a temporary WAV and appends its path to argv.
func playCueCommand(ctx context.Context, argv []string, samples []int16) error {
	data, err := audio.EncodeWAV(samples, cueSampleRate)
	if err != nil {
		return fmt.Errorf("encode cue: %w", err)
	}

	file, err := os.CreateTemp("", "orb-cue-*.wav")
	if err != nil {
		return fmt.Errorf("create cue file: %w", err)
	}
	path := file.Name()
	defer func() { _ = os.Remove(path) }()

	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		return fmt.Errorf("write cue file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close cue file: %w", err)
	}

	args := append(append([]string(nil), argv[1:]...), path)
	out, err := exec.CommandContext(ctx, argv[0], args...).CombinedOutput()
	if err != nil {
		trimmed := strings.TrimSpace(string(out))
		if trimmed == "" {
			return fmt.Errorf("play cue via %s: %w", argv[0], err)
		}
		return fmt.Errorf("play cue via %s: %w (%s)", argv[0], err, trimmed)
	}
	return nil
}

func cueSamples(kind cueKind) []int16 {
	return cuePCM[kind]
}

// renderCue concatenates notes with a short silence between them.
func renderCue(notes []note, volume float64) []int16 {
	gap := samplesForDuration(cueGap)
	var pcm []int16
	for i, n := range notes {
		if i > 0 {
			pcm = append(pcm, make([]int16, gap)...)
		}
		pcm = append(pcm, tone(n.hz, samplesForDuration(n.dur), volume)...)
	}
	return pcm
}

// tone renders a sine with raised-cosine fades so note edges do not click.
func tone(hz float64, n int, volume float64) []int16 {
	if n <= 0 || hz <= 0 || volume <= 0 {
		return nil
	}
	ramp := min(n/10, samplesForDuration(cueMaxRamp))
	ramp = max(ramp, 1)

	pcm := make([]int16, n)
	for i := range n {
		gain := 1.0
		if edge := min(i, n-1-i); edge < ramp {
			gain = 0.5 - 0.5*math.Cos(math.Pi*float64(edge)/float64(ramp))
		}
		phase := 2 * math.Pi * hz * float64(i) / cueSampleRate
		pcm[i] = int16(math.Round(math.Sin(phase) * volume * gain * math.MaxInt16))
	}
	return pcm
}

func samplesForDuration(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * cueSampleRate))
}
