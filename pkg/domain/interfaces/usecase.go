package interfaces

import (
	"context"

	"github.com/commis-ai/commis/pkg/domain/model"
)

// InstallUseCase provisions the speech-synthesis binary and voice model
type InstallUseCase interface {
	// Install runs the full install pipeline once and returns a report.
	// A failed post-install probe is recorded in the report, not returned
	// as an error.
	Install(ctx context.Context) (*model.InstallReport, error)
}

// AssistantUseCase drives an interactive cooking session
type AssistantUseCase interface {
	// RunSession runs the session loop until the FINISHED state is reached
	// or the context is cancelled
	RunSession(ctx context.Context) error
}
