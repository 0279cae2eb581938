package interfaces

import (
	"context"

	"github.com/commis-ai/commis/pkg/domain/model"
)

// Fetcher downloads a remote artifact to its destination path.
// Implementations must be resumable: an interrupted prior attempt is
// continued rather than restarted, and the destination path only appears
// once the transfer has fully completed.
type Fetcher interface {
	Fetch(ctx context.Context, artifact model.RemoteArtifact) (*model.FetchResult, error)
}

// Extractor unpacks a downloaded archive into a directory and returns the
// relative paths of the extracted entries
type Extractor interface {
	Extract(ctx context.Context, archivePath, destDir string) ([]string, error)
}

// VersionProber invokes an installed binary with its version-query argument
// and returns the reported version string
type VersionProber interface {
	Probe(ctx context.Context, binaryPath string) (string, error)
}

// Camera captures a single frame and returns it as base64-encoded JPEG
type Camera interface {
	Capture(ctx context.Context) (string, error)
}

// Microphone yields the user's next utterance as text
type Microphone interface {
	ReadText(ctx context.Context) (string, error)
}

// Speaker voices text to the user. Say returns once playback has been
// started; Playing reports whether audio is still being played back.
type Speaker interface {
	Say(ctx context.Context, text string) error
	Playing() bool
}

// Adviser generates one structured assistant turn from a system prompt and a
// JSON-encoded turn context
type Adviser interface {
	Advise(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
