package generation

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sashabaranov/go-openai"
)

// OpenAIClient implements Generator and Enhancer against the OpenAI API.
type OpenAIClient struct {
	client     *openai.Client
	chatModel  string
	imageModel string
}

// NewOpenAIClient creates a client for the given API key and models.
func NewOpenAIClient(apiKey, chatModel, imageModel string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	slog.Info("initializing OpenAI client", "chat_model", chatModel, "image_model", imageModel)
	return &OpenAIClient{
		client:     openai.NewClient(apiKey),
		chatModel:  chatModel,
		imageModel: imageModel,
	}, nil
}

const enhanceSystemPrompt = "You rewrite rough image-generation prompts into vivid, specific ones. " +
	"Keep the subject and intent, add concrete visual detail (lighting, composition, style, mood). " +
	"Reply with the rewritten prompt only, no commentary."

// Enhance rewrites prompt via a chat completion. Cancellation of ctx
// aborts the API call and returns ctx's error.
func (c *OpenAIClient) Enhance(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: enhanceSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", providerError("enhancement", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("enhancement returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Generate produces req.Count images in one API call. The negative
// prompt is folded into the prompt text since the images endpoint has no
// separate field for it.
func (c *OpenAIClient) Generate(ctx context.Context, req Request) ([]Output, error) {
	model := req.Model
	if model == "" {
		model = c.imageModel
	}
	count := req.Count
	if count < 1 {
		count = 1
	}

	prompt := req.Prompt
	if req.NegativePrompt != "" {
		prompt = fmt.Sprintf("%s\n\nAvoid: %s", prompt, req.NegativePrompt)
	}

	width, height := 1024, 1024
	if req.Params.Image != nil {
		width, height = req.Params.Image.Width, req.Params.Image.Height
	}

	resp, err := c.client.CreateImage(ctx, openai.ImageRequest{
		Model:          model,
		Prompt:         prompt,
		N:              count,
		Size:           fmt.Sprintf("%dx%d", width, height),
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, providerError("generation", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("generation returned no images")
	}

	outputs := make([]Output, 0, len(resp.Data))
	for i, item := range resp.Data {
		data, err := base64.StdEncoding.DecodeString(item.B64JSON)
		if err != nil {
			return nil, fmt.Errorf("failed to decode image %d: %w", i, err)
		}
		outputs = append(outputs, Output{
			Data:        data,
			ContentType: "image/png",
			Width:       width,
			Height:      height,
		})
	}
	return outputs, nil
}

// providerError surfaces the API's status and message without leaking
// request internals into client-facing errors.
func providerError(op string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s failed: provider returned %d: %s", op, apiErr.HTTPStatusCode, apiErr.Message)
	}
	return fmt.Errorf("%s failed: %w", op, err)
}

var (
	_ Generator = (*OpenAIClient)(nil)
	_ Enhancer  = (*OpenAIClient)(nil)
)
