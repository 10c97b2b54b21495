package httpdoc

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"docingest/internal/ingest"
)

// contentTypeHints maps response content types to the file-type vocabulary
// the parser understands.
var contentTypeHints = map[string]string{
	"application/pdf": "pdf",
	"text/markdown":   "md",
	"text/html":       "html",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": "docx",
}

// Downloader fetches document bytes over HTTP. Network and server errors
// surface as plain errors so the retry policy classifies them Transient;
// only an oversized body is permanent, since re-fetching cannot shrink it.
type Downloader struct {
	client   *http.Client
	maxBytes int64
}

func NewDownloader(timeout time.Duration, maxMB int64) *Downloader {
	return &Downloader{
		client:   &http.Client{Timeout: timeout},
		maxBytes: maxMB << 20,
	}
}

func (d *Downloader) Fetch(ctx context.Context, fileURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, "", ingest.NewValidationError(fmt.Sprintf("invalid file_url: %v", err))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download %s: %w", fileURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("download %s: status %d", fileURL, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, d.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("download %s: %w", fileURL, err)
	}
	if int64(len(data)) > d.maxBytes {
		return nil, "", ingest.NewValidationError(fmt.Sprintf(
			"document exceeds %d MB limit", d.maxBytes>>20))
	}

	return data, d.typeHint(resp), nil
}

// typeHint prefers the response content type, falling back to the suffix of
// the final URL after redirects. Empty when neither is conclusive.
func (d *Downloader) typeHint(resp *http.Response) string {
	ct := resp.Header.Get("Content-Type")
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	if hint, ok := contentTypeHints[strings.TrimSpace(strings.ToLower(ct))]; ok {
		return hint
	}

	if resp.Request != nil && resp.Request.URL != nil {
		return strings.ToLower(strings.TrimPrefix(path.Ext(resp.Request.URL.Path), "."))
	}
	return ""
}
