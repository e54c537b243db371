// Package llmutil holds prompt template and chat helpers shared by the
// generation components.
package llmutil

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/bakkerme/social-agent/internal/llm"
)

type ResponseDecoder func(content string) error

func ParseTemplate(name, text string) (*template.Template, error) {
	if name == "" {
		name = "llm"
	}
	tmpl, err := template.New(name).Option("missingkey=zero").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse %s template: %w", name, err)
	}
	return tmpl, nil
}

func ExecuteTemplate(tmpl *template.Template, data any) (string, error) {
	builder := &strings.Builder{}
	if err := tmpl.Execute(builder, data); err != nil {
		return "", err
	}
	return builder.String(), nil
}

func ModelOrDefault(model, defaultModel string) string {
	if model != "" {
		return model
	}
	return defaultModel
}

// ChatCompletionWithRetries repeats the request while decode rejects the
// content. The messages are not modified between attempts.
func ChatCompletionWithRetries(
	ctx context.Context,
	client llm.Client,
	model string,
	messages []llm.Message,
	decodeRetries int,
	decode ResponseDecoder,
	temperature *float64,
) (llm.ChatResponse, error) {
	attempts := decodeRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	var lastResp llm.ChatResponse
	var lastDecodeErr error
	for attempt := 0; attempt < attempts; attempt++ {
		resp, err := client.ChatCompletion(ctx, llm.ChatRequest{
			Model:       model,
			Messages:    messages,
			Temperature: temperature,
		})
		if err != nil {
			return llm.ChatResponse{}, err
		}
		lastResp = resp
		if decode == nil {
			return resp, nil
		}
		if err := decode(resp.Content); err != nil {
			lastDecodeErr = err
			continue
		}
		return resp, nil
	}

	return lastResp, fmt.Errorf("decode response after %d attempt(s): %w; content=%q", attempts, lastDecodeErr, lastResp.Content)
}

func ChatSystemUserWithRetries(
	ctx context.Context,
	client llm.Client,
	model, systemPrompt, userPrompt string,
	decodeRetries int,
	decode ResponseDecoder,
	temperature *float64,
) (llm.ChatResponse, error) {
	return ChatCompletionWithRetries(ctx, client, model, []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: userPrompt},
	}, decodeRetries, decode, temperature)
}

// UserMessageWithImages builds a multimodal user message. imageURLs may be
// remote URLs or data URLs.
func UserMessageWithImages(userPrompt string, imageURLs []string) llm.Message {
	if len(imageURLs) == 0 {
		return llm.Message{Role: llm.RoleUser, Content: userPrompt}
	}
	parts := make([]llm.MessagePart, 0, len(imageURLs)+1)
	if userPrompt != "" {
		parts = append(parts, llm.MessagePart{Type: llm.MessagePartText, Text: userPrompt})
	}
	for _, url := range imageURLs {
		if url == "" {
			continue
		}
		parts = append(parts, llm.MessagePart{Type: llm.MessagePartImageURL, ImageURL: url})
	}
	return llm.Message{Role: llm.RoleUser, Parts: parts}
}
