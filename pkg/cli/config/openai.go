package config

import "github.com/urfave/cli/v3"

// OpenAI holds LLM configuration
type OpenAI struct {
	APIKey string `masq:"secret"`
	Model  string
}

// Flags returns CLI flags for OpenAI configuration
func (c *OpenAI) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "openai-api-key",
			Usage:       "OpenAI API key",
			Required:    true,
			Destination: &c.APIKey,
			Sources:     cli.EnvVars("OPENAI_API_KEY"),
		},
		&cli.StringFlag{
			Name:        "openai-model",
			Usage:       "OpenAI model to use",
			Value:       "gpt-4o",
			Destination: &c.Model,
			Sources:     cli.EnvVars("COMMIS_OPENAI_MODEL"),
		},
	}
}
