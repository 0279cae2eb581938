package peripheral

import (
	"context"
	"encoding/base64"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"

	"github.com/commis-ai/commis/pkg/domain/interfaces"
)

type ffmpegCamera struct {
	device string
}

// NewCamera creates a Camera that grabs single frames from a V4L2 device via
// ffmpeg. device defaults to /dev/video0 when empty.
func NewCamera(device string) interfaces.Camera {
	if device == "" {
		device = "/dev/video0"
	}
	return &ffmpegCamera{device: device}
}

// Capture grabs one frame and returns it as base64-encoded JPEG
func (c *ffmpegCamera) Capture(ctx context.Context) (string, error) {
	framePath := filepath.Join(os.TempDir(), "commis-frame-"+uuid.NewString()+".jpg")
	defer os.Remove(framePath)

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-loglevel", "error",
		"-f", "v4l2",
		"-i", c.device,
		"-frames:v", "1",
		"-y", framePath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", goerr.Wrap(err, "frame capture failed",
			goerr.V("device", c.device),
			goerr.V("output", strings.TrimSpace(string(out))))
	}

	data, err := os.ReadFile(framePath)
	if err != nil {
		return "", goerr.Wrap(err, "failed to read captured frame",
			goerr.V("path", framePath))
	}

	return base64.StdEncoding.EncodeToString(data), nil
}
