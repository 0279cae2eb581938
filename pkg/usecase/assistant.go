package usecase

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/commis-ai/commis/pkg/domain/interfaces"
	"github.com/commis-ai/commis/pkg/domain/model"
)

//go:embed prompts/assistant_system.md
var assistantSystemPrompt string

//go:embed states.toml
var defaultStatesTOML []byte

type assistant struct {
	adviser    interfaces.Adviser
	camera     interfaces.Camera
	microphone interfaces.Microphone
	speaker    interfaces.Speaker

	states       model.StateTable
	current      model.StateName
	transcript   model.Transcript
	monitorPause time.Duration
	clock        func() time.Time
}

// AssistantOption is a functional option for the assistant
type AssistantOption func(*assistant) error

// WithStatesFile replaces the built-in state machine definition with one
// loaded from a TOML file
func WithStatesFile(path string) AssistantOption {
	return func(a *assistant) error {
		data, err := os.ReadFile(path)
		if err != nil {
			return goerr.Wrap(err, "failed to read states file", goerr.V("path", path))
		}
		table, err := model.ParseStateTable(data)
		if err != nil {
			return err
		}
		a.states = table
		return nil
	}
}

// WithMonitorPause sets the delay between quiet monitoring turns
func WithMonitorPause(d time.Duration) AssistantOption {
	return func(a *assistant) error {
		a.monitorPause = d
		return nil
	}
}

// WithClock overrides the wall clock used for timer notifications
func WithClock(clock func() time.Time) AssistantOption {
	return func(a *assistant) error {
		a.clock = clock
		return nil
	}
}

// NewAssistant creates an AssistantUseCase with the built-in cooking state
// machine
func NewAssistant(
	adviser interfaces.Adviser,
	camera interfaces.Camera,
	microphone interfaces.Microphone,
	speaker interfaces.Speaker,
	opts ...AssistantOption,
) (interfaces.AssistantUseCase, error) {
	states, err := model.ParseStateTable(defaultStatesTOML)
	if err != nil {
		return nil, err
	}

	a := &assistant{
		adviser:      adviser,
		camera:       camera,
		microphone:   microphone,
		speaker:      speaker,
		states:       states,
		current:      model.StateStart,
		monitorPause: 2 * time.Second,
		clock:        time.Now,
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// turnContext is what the LLM sees for a single turn
type turnContext struct {
	CurrentState    model.StateName   `json:"current_state"`
	StateGoal       string            `json:"state_goal"`
	ValidNextStates []model.StateName `json:"valid_next_states"`
	UserVoiceInput  string            `json:"user_voice_input"`
	ImageProvided   bool              `json:"image_provided"`
	ImageDataURL    string            `json:"image_data_url,omitempty"`
	Transcript      []model.Entry     `json:"transcript"`
}

// RunSession drives the session loop until FINISHED
func (a *assistant) RunSession(ctx context.Context) error {
	logger := ctxlog.From(ctx)
	sessionID := uuid.NewString()

	logger.Info("Starting cooking session", "session_id", sessionID)

	if err := a.speaker.Say(ctx, "System starting."); err != nil {
		logger.Warn("Failed to speak startup message", "error", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		state := a.states[a.current]
		logger.Debug("Session turn", "state", state.Name)

		var image string
		if state.RequiresImage {
			frame, err := a.camera.Capture(ctx)
			if err != nil {
				logger.Warn("Frame capture failed, continuing without image", "error", err)
			} else {
				image = frame
			}
		}

		if err := a.waitForQuiet(ctx); err != nil {
			return err
		}

		utterance, err := a.microphone.ReadText(ctx)
		if errors.Is(err, io.EOF) {
			logger.Info("Input closed, ending session", "session_id", sessionID)
			return nil
		} else if err != nil {
			return goerr.Wrap(err, "failed to read user input")
		}

		if utterance == "" && image == "" && a.current != model.StateStart {
			continue
		}

		reply, err := a.advise(ctx, state, utterance, image)
		if err != nil {
			logger.Error("Assistant turn failed", "error", err)
			continue
		}

		if err := a.act(ctx, reply); err != nil {
			return err
		}

		switch {
		case !state.CanTransition(reply.Next):
			logger.Warn("Invalid transition proposed, staying put",
				"state", state.Name,
				"proposed", reply.Next,
			)
		default:
			a.current = reply.Next
		}

		if a.current == model.StateFinished {
			logger.Info("Cooking session complete", "session_id", sessionID)
			return nil
		}
	}
}

// waitForQuiet blocks until background playback has finished, so the
// microphone does not pick up the assistant's own voice
func (a *assistant) waitForQuiet(ctx context.Context) error {
	for a.speaker.Playing() {
		select {
		case <-time.After(20 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// advise runs one LLM turn and records it in the transcript
func (a *assistant) advise(ctx context.Context, state model.State, utterance, image string) (*model.Reply, error) {
	tc := turnContext{
		CurrentState:    state.Name,
		StateGoal:       state.Description,
		ValidNextStates: state.Next,
		UserVoiceInput:  utterance,
		ImageProvided:   image != "",
		Transcript:      a.transcript.Entries(),
	}
	if image != "" {
		tc.ImageDataURL = "data:image/jpeg;base64," + image
	}

	payload, err := json.Marshal(tc)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encode turn context")
	}

	raw, err := a.adviser.Advise(ctx, assistantSystemPrompt, string(payload))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get assistant reply")
	}

	var reply model.Reply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return nil, goerr.Wrap(err, "failed to parse assistant reply",
			goerr.V("response", raw))
	}

	// The transcript records the utterance, not the full turn context, so
	// feeding it back each turn does not compound
	userRecord := utterance
	if userRecord == "" && image != "" {
		userRecord = "[camera frame provided]"
	}
	a.transcript.AppendUser(userRecord)
	a.transcript.AppendAssistant(reply)

	return &reply, nil
}

// act carries out the reply: speaking, quiet monitoring, or timer handling
func (a *assistant) act(ctx context.Context, reply *model.Reply) error {
	logger := ctxlog.From(ctx)

	switch reply.Speech {
	case model.SpeechMonitorNormal:
		logger.Debug("Monitoring reports normal, pausing")
		select {
		case <-time.After(a.monitorPause):
		case <-ctx.Done():
			return ctx.Err()
		}

	case model.SpeechStartTimer:
		startedAt := a.clock().Format("15:04:05")
		logger.Info("Timer started", "at", startedAt)
		a.transcript.AppendSystemNote("Timer successfully started at " + startedAt)
		if err := a.speaker.Say(ctx, "Okay, I've started the timer at "+startedAt+"."); err != nil {
			logger.Warn("Failed to speak timer confirmation", "error", err)
		}

	default:
		if err := a.speaker.Say(ctx, reply.Speech); err != nil {
			logger.Warn("Failed to speak reply", "error", err)
		}
	}

	return nil
}
