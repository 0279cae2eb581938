package piper

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/commis-ai/commis/pkg/domain/interfaces"
)

const probeTimeout = 15 * time.Second

type prober struct{}

// NewProber creates a version prober for the installed binary
func NewProber() interfaces.VersionProber {
	return &prober{}
}

// Probe runs the binary with --version and returns its reported version.
// The binary is treated as an opaque collaborator; any non-zero exit
// (typically an unresolved shared library) is returned as an error with the
// captured output attached.
func (p *prober) Probe(ctx context.Context, binaryPath string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, binaryPath, "--version")
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", goerr.Wrap(err, "version probe failed",
			goerr.V("binary", binaryPath),
			goerr.V("output", strings.TrimSpace(string(out))))
	}

	return strings.TrimSpace(string(out)), nil
}
