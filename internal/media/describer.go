// Package media describes image attachments with a vision capable model.
package media

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/bakkerme/social-agent/internal/core"
	"github.com/bakkerme/social-agent/internal/llm"
	"github.com/bakkerme/social-agent/internal/llm/llmutil"
)

const defaultPrompt = "Describe this image in one or two sentences for someone who cannot see it."

type Config struct {
	Model          string
	Prompt         string
	Temperature    *float64
	MaxImages      int
	MaxBytes       int64
	MaxConcurrency int
	FetchTimeout   time.Duration
}

type Describer struct {
	cfg        Config
	client     llm.Client
	httpClient *http.Client
	logger     *slog.Logger
}

func NewDescriber(cfg Config, client llm.Client, httpClient *http.Client, logger *slog.Logger) *Describer {
	if cfg.Prompt == "" {
		cfg.Prompt = defaultPrompt
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 8 << 20
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 1
	}
	if httpClient == nil {
		timeout := cfg.FetchTimeout
		if timeout <= 0 {
			timeout = 20 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Describer{cfg: cfg, client: client, httpClient: httpClient, logger: logger}
}

// Describe fills item.ImageDescriptions in attachment order. Images that fail
// to download or describe are logged and left out.
func (d *Describer) Describe(ctx context.Context, item *core.Item) {
	if item == nil {
		return
	}
	var images []core.Media
	for _, m := range item.Media {
		if m.IsImage() && m.URL != "" {
			images = append(images, m)
		}
	}
	if d.cfg.MaxImages > 0 && len(images) > d.cfg.MaxImages {
		images = images[:d.cfg.MaxImages]
	}
	if len(images) == 0 {
		return
	}

	results := make([]string, len(images))
	sem := make(chan struct{}, d.cfg.MaxConcurrency)
	var wg sync.WaitGroup
	for i, image := range images {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return
		}
		wg.Add(1)
		go func(i int, image core.Media) {
			defer wg.Done()
			defer func() { <-sem }()
			if image.Description != "" {
				results[i] = image.Description
				return
			}
			desc, err := d.describeOne(ctx, image)
			if err != nil {
				core.LoggerOr(ctx, d.logger).Warn("image description failed", "item_id", item.ID, "media_id", image.ID, "error", err)
				return
			}
			results[i] = desc
		}(i, image)
	}
	wg.Wait()

	item.ImageDescriptions = item.ImageDescriptions[:0]
	for _, desc := range results {
		if desc != "" {
			item.ImageDescriptions = append(item.ImageDescriptions, desc)
		}
	}
}

func (d *Describer) describeOne(ctx context.Context, image core.Media) (string, error) {
	dataURL, err := d.fetchDataURL(ctx, image.URL)
	if err != nil {
		return "", err
	}
	resp, err := llmutil.ChatCompletionWithRetries(ctx, d.client, d.cfg.Model, []llm.Message{
		llmutil.UserMessageWithImages(d.cfg.Prompt, []string{dataURL}),
	}, 1, nonEmpty, d.cfg.Temperature)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

func nonEmpty(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("empty description")
	}
	return nil
}

func (d *Describer) fetchDataURL(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, d.cfg.MaxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if int64(len(data)) > d.cfg.MaxBytes {
		return "", fmt.Errorf("image exceeds %d bytes", d.cfg.MaxBytes)
	}
	contentType := mimetype.Detect(data).String()
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("unsupported media type %q", contentType)
	}
	return fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(data)), nil
}
