package httpdoc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docingest/internal/ingest"
)

func TestDownloader_Fetch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4 body"))
	}))
	defer ts.Close()

	d := NewDownloader(5*time.Second, 1)
	data, hint, err := d.Fetch(context.Background(), ts.URL+"/doc.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4 body"), data)
	assert.Equal(t, "pdf", hint)
}

func TestDownloader_HintFromURLSuffix(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write([]byte("# readme"))
	}))
	defer ts.Close()

	d := NewDownloader(5*time.Second, 1)
	_, hint, err := d.Fetch(context.Background(), ts.URL+"/README.md")
	require.NoError(t, err)
	assert.Equal(t, "md", hint)
}

func TestDownloader_ServerErrorIsTransient(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	d := NewDownloader(5*time.Second, 1)
	_, _, err := d.Fetch(context.Background(), ts.URL+"/doc.pdf")
	require.Error(t, err)
	assert.Equal(t, ingest.ClassTransient, ingest.Classify(err))
	assert.Contains(t, err.Error(), "status 503")
}

func TestDownloader_OversizedBodyIsPermanent(t *testing.T) {
	big := strings.Repeat("x", 2<<20)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(big))
	}))
	defer ts.Close()

	d := NewDownloader(5*time.Second, 1)
	_, _, err := d.Fetch(context.Background(), ts.URL+"/doc.pdf")
	require.Error(t, err)
	assert.Equal(t, ingest.ClassPermanent, ingest.Classify(err))
}

func TestDownloader_ConnectionErrorIsTransient(t *testing.T) {
	d := NewDownloader(200*time.Millisecond, 1)
	_, _, err := d.Fetch(context.Background(), "http://127.0.0.1:1/doc.pdf")
	require.Error(t, err)
	assert.Equal(t, ingest.ClassTransient, ingest.Classify(err))
}
