package piper

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"

	"github.com/commis-ai/commis/pkg/domain/interfaces"
	"github.com/commis-ai/commis/pkg/utils/async"
)

type speaker struct {
	binaryPath string
	modelPath  string
	player     string
	playing    atomic.Bool
}

// SpeakerOption is a functional option for the speaker
type SpeakerOption func(*speaker)

// WithPlayer overrides the audio playback command (default "aplay")
func WithPlayer(player string) SpeakerOption {
	return func(s *speaker) {
		s.player = player
	}
}

// NewSpeaker creates a Speaker backed by the installed piper binary. Text is
// synthesized to a scratch WAV file and handed to the system audio player;
// playback runs in the background so the session loop is never blocked.
func NewSpeaker(binaryPath, modelPath string, opts ...SpeakerOption) interfaces.Speaker {
	s := &speaker{
		binaryPath: binaryPath,
		modelPath:  modelPath,
		player:     "aplay",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Say starts background playback of the given text. It returns once
// synthesis has been dispatched, not once audio has finished.
func (s *speaker) Say(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}

	s.playing.Store(true)
	async.Dispatch(ctx, func(ctx context.Context) error {
		defer s.playing.Store(false)
		return s.play(ctx, text)
	})

	return nil
}

// Playing reports whether background playback is still running
func (s *speaker) Playing() bool {
	return s.playing.Load()
}

func (s *speaker) play(ctx context.Context, text string) error {
	wavPath := filepath.Join(os.TempDir(), "commis-say-"+uuid.NewString()+".wav")
	defer os.Remove(wavPath)

	synth := exec.CommandContext(ctx, s.binaryPath,
		"--model", s.modelPath,
		"--output_file", wavPath,
	)
	synth.Stdin = strings.NewReader(text)
	if out, err := synth.CombinedOutput(); err != nil {
		return goerr.Wrap(err, "speech synthesis failed",
			goerr.V("binary", s.binaryPath),
			goerr.V("output", strings.TrimSpace(string(out))))
	}

	play := exec.CommandContext(ctx, s.player, "-q", wavPath)
	if out, err := play.CombinedOutput(); err != nil {
		return goerr.Wrap(err, "audio playback failed",
			goerr.V("player", s.player),
			goerr.V("output", strings.TrimSpace(string(out))))
	}

	return nil
}
