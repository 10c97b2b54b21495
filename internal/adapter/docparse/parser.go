package docparse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"docingest/internal/ingest"
	"docingest/internal/text"
)

// Parser converts raw document bytes into ordered text fragments. Markdown
// is chunked locally; binary formats (pdf, docx, html) go to the external
// parse service. A 4xx from the service means the document itself is bad
// and classifies Permanent; transport errors and 5xx classify Transient.
type Parser struct {
	serviceURL string
	client     *http.Client
	maxTokens  int
}

func NewParser(serviceURL string, timeout time.Duration, maxTokens int) *Parser {
	return &Parser{
		serviceURL: strings.TrimRight(serviceURL, "/"),
		client:     &http.Client{Timeout: timeout},
		maxTokens:  maxTokens,
	}
}

func (p *Parser) Parse(ctx context.Context, data []byte, fileType string) ([]string, error) {
	if fileType == "md" {
		return text.SplitMarkdown(string(data), p.maxTokens), nil
	}
	return p.parseRemote(ctx, data, fileType)
}

type parseResponse struct {
	Chunks []struct {
		Text string `json:"text"`
	} `json:"chunks"`
}

func (p *Parser) parseRemote(ctx context.Context, data []byte, fileType string) ([]string, error) {
	url := fmt.Sprintf("%s/v1/parse?type=%s&max_tokens=%d", p.serviceURL, fileType, p.maxTokens)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("parse service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse service: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
	case resp.StatusCode >= 400 && resp.StatusCode <= 499:
		// The service rejected the document, not the request transport.
		return nil, ingest.NewValidationError(fmt.Sprintf(
			"parser rejected %s document: %s", fileType, strings.TrimSpace(string(body))))
	default:
		return nil, fmt.Errorf("parse service: status %d", resp.StatusCode)
	}

	var parsed parseResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse service: decode response: %w", err)
	}

	texts := make([]string, 0, len(parsed.Chunks))
	for _, c := range parsed.Chunks {
		texts = append(texts, c.Text)
	}
	return texts, nil
}
