package llm

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gollem/llm/openai"

	"github.com/commis-ai/commis/pkg/domain/interfaces"
)

type adviser struct {
	client gollem.LLMClient
}

// NewOpenAI creates an Adviser backed by an OpenAI model via gollem
func NewOpenAI(ctx context.Context, apiKey, modelName string) (interfaces.Adviser, error) {
	client, err := openai.New(ctx, apiKey, openai.WithModel(modelName))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create OpenAI client")
	}

	return &adviser{client: client}, nil
}

// NewWithClient wraps an existing gollem client
func NewWithClient(client gollem.LLMClient) interfaces.Adviser {
	return &adviser{client: client}
}

// Advise generates one structured turn. A fresh session is created per call;
// conversation history travels inside the turn context, so the LLM side
// stays stateless.
func (a *adviser) Advise(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	session, err := a.client.NewSession(ctx,
		gollem.WithSessionContentType(gollem.ContentTypeJSON),
		gollem.WithSessionSystemPrompt(systemPrompt),
	)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create LLM session")
	}

	resp, err := session.GenerateContent(ctx, gollem.Text(userPrompt))
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate LLM content")
	}
	if len(resp.Texts) == 0 {
		return "", goerr.New("no response from LLM")
	}

	return resp.Texts[0], nil
}
