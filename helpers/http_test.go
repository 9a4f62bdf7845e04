package helpers

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPageRequestHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "TrackerBot/1.0", r.Header.Get("User-Agent"))
		assert.NotEmpty(t, r.Header.Get("Accept"))
		assert.NotEmpty(t, r.Header.Get("Accept-Language"))
		assert.Equal(t, "gzip, br", r.Header.Get("Accept-Encoding"))

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("<html><body>Hello, World!</body></html>"))
	}))
	defer server.Close()

	req, err := NewPageRequest(context.Background(), server.URL, "TrackerBot/1.0")
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := ReadBody(resp)
	assert.NoError(t, err)
	assert.Contains(t, string(body), "Hello, World!")
}

func TestNewPageRequestDefaultUserAgent(t *testing.T) {
	req, err := NewPageRequest(context.Background(), "https://www.amazon.com/dp/B0", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultUserAgent, req.Header.Get("User-Agent"))
}

func TestReadBodyGzip(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	gz.Write([]byte("<html>compressed</html>"))
	gz.Close()

	resp := &http.Response{
		Header: http.Header{"Content-Encoding": {"gzip"}, "Content-Type": {"text/html; charset=utf-8"}},
		Body:   io.NopCloser(&buf),
	}
	body, err := ReadBody(resp)
	assert.NoError(t, err)
	assert.Equal(t, "<html>compressed</html>", string(body))
}

func TestReadBodyBrotli(t *testing.T) {
	var buf bytes.Buffer
	br := brotli.NewWriter(&buf)
	br.Write([]byte("<html>brotli</html>"))
	br.Close()

	resp := &http.Response{
		Header: http.Header{"Content-Encoding": {"br"}, "Content-Type": {"text/html; charset=utf-8"}},
		Body:   io.NopCloser(&buf),
	}
	body, err := ReadBody(resp)
	assert.NoError(t, err)
	assert.Equal(t, "<html>brotli</html>", string(body))
}

func TestToUTF8Latin1(t *testing.T) {
	// "£5" in ISO-8859-1
	body, err := ToUTF8([]byte{0xA3, '5'}, "text/html; charset=iso-8859-1")
	assert.NoError(t, err)
	assert.Equal(t, "£5", string(body))
}
