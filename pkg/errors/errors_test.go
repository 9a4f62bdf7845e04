package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPipelineErrorMessage(t *testing.T) {
	err := NewParsing("amazon.com", "missing title", nil)
	assert.Equal(t, "[parsing] amazon.com: missing title", err.Error())

	cause := stderrors.New("dial tcp: i/o timeout")
	err = NewNetwork("ebay.com", "fetch failed", cause)
	assert.Contains(t, err.Error(), "i/o timeout")
	assert.ErrorIs(t, err, cause)
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("process url: %w", NewHTTPStatus("newegg.com", 404))

	assert.Equal(t, ErrorTypeHTTPStatus, KindOf(err))
	assert.True(t, IsPermanentFetch(err))
	assert.False(t, IsParsing(err))
	assert.Equal(t, ErrorType(""), KindOf(stderrors.New("plain")))
	assert.False(t, Is(nil, ErrorTypeParsing))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  *PipelineError
		want bool
	}{
		{NewNetwork("x", "timeout", nil), true},
		{NewServer("x", 503), true},
		{NewConflict("x", "url taken"), true},
		{NewHTTPStatus("x", 404), false},
		{NewRateLimit("x", 0), false},
		{NewParsing("x", "missing price", nil), false},
		{NewUnknownHost("example.com"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.err.Type), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.IsRetryable())
		})
	}
}
