package cli

import (
	"context"

	"github.com/fatih/color"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/commis-ai/commis/pkg/cli/config"
	"github.com/commis-ai/commis/pkg/infra/archive"
	"github.com/commis-ai/commis/pkg/infra/fetch"
	"github.com/commis-ai/commis/pkg/infra/piper"
	"github.com/commis-ai/commis/pkg/usecase"
)

func cmdInstall() *cli.Command {
	var installCfg config.Install

	return &cli.Command{
		Name:    "install",
		Aliases: []string{"i"},
		Usage:   "Download and install the piper binary and voice model",
		Flags:   installCfg.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := ctxlog.From(ctx)

			plan, err := installCfg.Plan()
			if err != nil {
				return goerr.Wrap(err, "failed to build install plan")
			}

			uc := usecase.NewInstaller(
				fetch.New(),
				archive.NewTarGz(),
				piper.NewProber(),
				plan,
			)

			report, err := uc.Install(ctx)
			if err != nil {
				return goerr.Wrap(err, "install failed")
			}

			color.New(color.FgGreen, color.Bold).Printf(
				"piper %s installed to %s (%d files, voice %s)\n",
				plan.Version, plan.Target.BinDir, len(report.InstalledFiles), plan.Voice,
			)

			if report.ProbeOK {
				color.Green("piper reports version: %s", report.ProbeOutput)
			} else {
				color.Yellow("warning: installed binary failed its version probe; " +
					"a shared library dependency (libespeak-ng, onnxruntime) may be missing")
			}

			logger.Info("Install command finished", "run_id", report.RunID)
			return nil
		},
	}
}
