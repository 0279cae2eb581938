package cli

import (
	"context"
	"os"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/commis-ai/commis/pkg/cli/config"
	"github.com/commis-ai/commis/pkg/infra/llm"
	"github.com/commis-ai/commis/pkg/infra/peripheral"
	"github.com/commis-ai/commis/pkg/infra/piper"
	"github.com/commis-ai/commis/pkg/usecase"
)

func cmdAssist() *cli.Command {
	var (
		installCfg config.Install
		openaiCfg  config.OpenAI
		cameraDev  string
		statesFile string
	)

	flags := append(installCfg.Flags(), openaiCfg.Flags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:        "camera-device",
			Usage:       "V4L2 camera device",
			Value:       "/dev/video0",
			Destination: &cameraDev,
			Sources:     cli.EnvVars("COMMIS_CAMERA_DEVICE"),
		},
		&cli.StringFlag{
			Name:        "states",
			Usage:       "Override the session state machine with a TOML file",
			Destination: &statesFile,
			Sources:     cli.EnvVars("COMMIS_STATES"),
		},
	)

	return &cli.Command{
		Name:    "assist",
		Aliases: []string{"a"},
		Usage:   "Run an interactive guided cooking session",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := ctxlog.From(ctx)

			plan, err := installCfg.Plan()
			if err != nil {
				return goerr.Wrap(err, "failed to resolve install layout")
			}

			if _, err := os.Stat(plan.BinaryPath()); err != nil {
				return goerr.Wrap(err, "piper is not installed, run `commis install` first",
					goerr.V("binary", plan.BinaryPath()))
			}

			adviser, err := llm.NewOpenAI(ctx, openaiCfg.APIKey, openaiCfg.Model)
			if err != nil {
				return goerr.Wrap(err, "failed to create LLM client")
			}

			var opts []usecase.AssistantOption
			if statesFile != "" {
				opts = append(opts, usecase.WithStatesFile(statesFile))
			}

			uc, err := usecase.NewAssistant(
				adviser,
				peripheral.NewCamera(cameraDev),
				peripheral.NewConsoleMicrophone(os.Stdin),
				piper.NewSpeaker(plan.BinaryPath(), plan.VoiceModel.Dest),
				opts...,
			)
			if err != nil {
				return goerr.Wrap(err, "failed to create assistant")
			}

			logger.Info("Starting assistant", "model", openaiCfg.Model)
			return uc.RunSession(ctx)
		},
	}
}
