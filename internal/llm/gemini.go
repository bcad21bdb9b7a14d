package llm

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/edgard/jaiminho/internal/config"
)

const defaultGeminiModel = "gemini-2.0-flash"

var responseSchemas = map[string]*genai.Schema{
	CallUrgency: {
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"urgent":     {Type: genai.TypeBoolean, Description: "Whether the message needs the user's attention now."},
			"confidence": {Type: genai.TypeNumber, Description: "Confidence between 0 and 1."},
			"reason":     {Type: genai.TypeString, Description: "Short justification."},
		},
		Required: []string{"urgent", "confidence", "reason"},
	},
	CallCategory: {
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"category":   {Type: genai.TypeString, Description: "One of the listed category ids."},
			"summary":    {Type: genai.TypeString, Description: "One-line summary of the message."},
			"routing":    {Type: genai.TypeString, Enum: []string{"immediate", "digest", "spam"}},
			"reasoning":  {Type: genai.TypeString},
			"confidence": {Type: genai.TypeNumber},
		},
		Required: []string{"category", "summary", "routing", "confidence"},
	},
}

type geminiCompleter struct {
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int32
}

// NewGeminiCompleter creates a completer backed by the Gemini API.
func NewGeminiCompleter(ctx context.Context, cfg config.ClassifierConfig) (Completer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}
	return &geminiCompleter{
		client:      client,
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   int32(cfg.MaxTokens),
	}, nil
}

func (g *geminiCompleter) Name() string { return "gemini" }

func (g *geminiCompleter) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	temperature := g.temperature
	genCfg := &genai.GenerateContentConfig{
		Temperature:      &temperature,
		MaxOutputTokens:  g.maxTokens,
		ResponseMIMEType: "application/json",
		ResponseSchema:   responseSchemas[req.Call],
	}
	if req.System != "" {
		genCfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}

	contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, genCfg)
	if err != nil {
		var apiErr *genai.APIError
		if errors.As(err, &apiErr) && retryableStatus(apiErr.Code) {
			return nil, transient(err)
		}
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		reason := fmt.Sprintf("%v", resp.PromptFeedback.BlockReason)
		if resp.PromptFeedback.BlockReasonMessage != "" {
			reason = resp.PromptFeedback.BlockReasonMessage
		}
		return nil, fmt.Errorf("gemini request blocked: %s", reason)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, ErrEmptyResponse
	}

	out := &CompletionResponse{Content: resp.Text(), Model: g.model}
	if resp.UsageMetadata != nil {
		out.TokensIn = int(resp.UsageMetadata.PromptTokenCount)
		out.TokensOut = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return out, nil
}
