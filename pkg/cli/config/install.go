package config

import (
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/commis-ai/commis/pkg/domain/model"
	"github.com/commis-ai/commis/pkg/domain/types"
)

// Install holds artifact installer configuration. Defaults are the baked-in
// constants; flags and environment variables exist as overrides only.
type Install struct {
	Version string
	OS      string
	Arch    string
	DataDir string
	Voice   string
}

// Flags returns CLI flags for installer configuration
func (c *Install) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "piper-version",
			Usage:       "piper release tag to install",
			Value:       "2023.11.14-2",
			Destination: &c.Version,
			Sources:     cli.EnvVars("COMMIS_PIPER_VERSION"),
		},
		&cli.StringFlag{
			Name:        "piper-os",
			Usage:       "Target operating system tag of the release archive",
			Value:       "linux",
			Destination: &c.OS,
			Sources:     cli.EnvVars("COMMIS_PIPER_OS"),
		},
		&cli.StringFlag{
			Name:        "piper-arch",
			Usage:       "Target architecture tag of the release archive",
			Value:       "x86_64",
			Destination: &c.Arch,
			Sources:     cli.EnvVars("COMMIS_PIPER_ARCH"),
		},
		&cli.StringFlag{
			Name:        "data-dir",
			Usage:       "Base directory for installed binaries and voices",
			Destination: &c.DataDir,
			Sources:     cli.EnvVars("COMMIS_DATA_DIR"),
		},
		&cli.StringFlag{
			Name:        "voice",
			Usage:       "Voice model to install (<locale>-<name>-<quality>)",
			Value:       "en_US-lessac-medium",
			Destination: &c.Voice,
			Sources:     cli.EnvVars("COMMIS_VOICE"),
		},
	}
}

// ResolveDataDir returns the base data directory, defaulting to
// ~/.local/share/commis when unset
func (c *Install) ResolveDataDir() (string, error) {
	if c.DataDir != "" {
		return c.DataDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", goerr.Wrap(err, "failed to resolve home directory")
	}
	return filepath.Join(home, ".local", "share", types.AppName), nil
}

// BinDir is where the binary archive payload is installed
func (c *Install) BinDir(dataDir string) string {
	return filepath.Join(dataDir, "piper")
}

// ModelDir is where voice model files are installed
func (c *Install) ModelDir(dataDir string) string {
	return filepath.Join(dataDir, "voices")
}

// Plan builds the immutable install plan from this configuration
func (c *Install) Plan() (*model.InstallPlan, error) {
	dataDir, err := c.ResolveDataDir()
	if err != nil {
		return nil, err
	}

	return model.NewInstallPlan(
		c.Version, c.OS, c.Arch, c.Voice,
		c.BinDir(dataDir), c.ModelDir(dataDir),
	)
}
