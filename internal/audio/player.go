package audio

import (
	"context"
	"fmt"

	"github.com/jfreymuth/pulse"
)

// Clip is decoded mono s16 audio ready for playback.
type Clip struct {
	Samples    []int16
	SampleRate int
}

// Duration reports the clip length in seconds.
func (c Clip) Duration() float64 {
	if c.SampleRate <= 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate)
}

// Player plays clips on the default pulse sink.
type Player struct {
	MediaName string
}

// Play blocks until the clip drains or ctx is cancelled. tap, when set,
// sees every buffer handed to the sink.
func (p Player) Play(ctx context.Context, clip Clip, tap func([]int16)) error {
	if len(clip.Samples) == 0 {
		return nil
	}
	rate := clip.SampleRate
	if rate <= 0 {
		rate = DefaultSampleRate
	}
	name := p.MediaName
	if name == "" {
		name = "orb speech"
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	reader := pulse.Int16Reader(clipReader(ctx, clip.Samples, tap))
	stream, err := client.NewPlayback(
		reader,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(rate),
		pulse.PlaybackLatency(0.02),
		pulse.PlaybackMediaName(name),
	)
	if err != nil {
		return fmt.Errorf("create pulse playback stream: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	if err := stream.Error(); err != nil {
		return fmt.Errorf("play pulse stream: %w", err)
	}
	return ctx.Err()
}

// clipReader feeds samples to the sink and ends the stream early on cancel.
func clipReader(ctx context.Context, samples []int16, tap func([]int16)) func([]int16) (int, error) {
	cursor := 0
	return func(buf []int16) (int, error) {
		if ctx.Err() != nil || cursor >= len(samples) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, samples[cursor:])
		cursor += n
		if tap != nil {
			tap(buf[:n])
		}
		if cursor >= len(samples) {
			return n, pulse.EndOfData
		}
		return n, nil
	}
}
