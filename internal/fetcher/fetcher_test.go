package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
	"sjsage522/pricetracker/pkg/errors"
	"sjsage522/pricetracker/services/cache"
)

func newServer(t *testing.T, robots string, handler http.HandlerFunc) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var pageHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		if robots == "" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, robots)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		pageHits.Add(1)
		handler(w, r)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &pageHits
}

func TestFetchOK(t *testing.T) {
	server, _ := newServer(t, "", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "TestAgent/1.0", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<span id="productTitle">GPU X</span>`)
	})

	f := New(server.Client(), nil, Options{UserAgent: "TestAgent/1.0", RespectRobots: true})
	page, err := f.Fetch(context.Background(), server.URL+"/dp/B0")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Equal(t, server.URL+"/dp/B0", page.URL)
	assert.Equal(t, server.URL+"/dp/B0", page.FinalURL)
	assert.Contains(t, string(page.Body), "GPU X")
}

func TestFetchStatusMapping(t *testing.T) {
	testCases := []struct {
		status int
		kind   errors.ErrorType
	}{
		{http.StatusNotFound, errors.ErrorTypeHTTPStatus},
		{http.StatusGone, errors.ErrorTypeHTTPStatus},
		{http.StatusInternalServerError, errors.ErrorTypeServer},
		{http.StatusBadGateway, errors.ErrorTypeServer},
		{http.StatusTooManyRequests, errors.ErrorTypeRateLimit},
	}

	for _, tc := range testCases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			server, _ := newServer(t, "", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			})

			f := New(server.Client(), nil, Options{})
			_, err := f.Fetch(context.Background(), server.URL+"/item")
			assert.Equal(t, tc.kind, errors.KindOf(err), "got %v", err)
		})
	}
}

func TestFetchPermanentAndRetryable(t *testing.T) {
	server, _ := newServer(t, "", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/gone" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	f := New(server.Client(), nil, Options{})

	_, err := f.Fetch(context.Background(), server.URL+"/gone")
	assert.True(t, errors.IsPermanentFetch(err))

	_, err = f.Fetch(context.Background(), server.URL+"/busy")
	assert.False(t, errors.IsPermanentFetch(err))
	var pe *errors.PipelineError
	require.ErrorAs(t, err, &pe)
	assert.True(t, pe.IsRetryable())
}

func TestFetchBlocksHostAfter429(t *testing.T) {
	server, hits := newServer(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	f := New(server.Client(), cache.NewMemoryService(), Options{BlockDuration: time.Minute})

	_, err := f.Fetch(context.Background(), server.URL+"/a")
	assert.True(t, errors.Is(err, errors.ErrorTypeRateLimit))
	assert.Equal(t, int32(1), hits.Load())

	// blocked: no request goes out
	_, err = f.Fetch(context.Background(), server.URL+"/b")
	assert.True(t, errors.Is(err, errors.ErrorTypeRateLimit))
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetchRespectsRobots(t *testing.T) {
	robots := "User-agent: *\nDisallow: /private/\n"
	server, hits := newServer(t, robots, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	})

	f := New(server.Client(), nil, Options{RespectRobots: true})

	_, err := f.Fetch(context.Background(), server.URL+"/private/item")
	assert.True(t, errors.Is(err, errors.ErrorTypeRobots))
	assert.Equal(t, int32(0), hits.Load())

	_, err = f.Fetch(context.Background(), server.URL+"/public/item")
	assert.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())

	// robots disabled
	f = New(server.Client(), nil, Options{RespectRobots: false})
	_, err = f.Fetch(context.Background(), server.URL+"/private/item")
	assert.NoError(t, err)
}

func TestFetchTimeout(t *testing.T) {
	release := make(chan struct{})
	server, _ := newServer(t, "", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	f := New(server.Client(), nil, Options{Timeout: 50 * time.Millisecond})
	_, err := f.Fetch(context.Background(), server.URL+"/slow")
	assert.True(t, errors.Is(err, errors.ErrorTypeNetwork), "got %v", err)
}

func TestHangingRobotsDoesNotStallOtherHosts(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	hanging := http.NewServeMux()
	hanging.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	hanging.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "slow site")
	})
	slow := httptest.NewServer(hanging)
	defer slow.Close()

	fast, _ := newServer(t, "", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "fast site")
	})

	f := New(&http.Client{}, nil, Options{Timeout: 200 * time.Millisecond, RespectRobots: true})

	slowDone := make(chan error, 1)
	go func() {
		_, err := f.Fetch(context.Background(), slow.URL+"/item")
		slowDone <- err
	}()
	time.Sleep(20 * time.Millisecond)

	start := time.Now()
	page, err := f.Fetch(context.Background(), fast.URL+"/item")
	require.NoError(t, err)
	assert.Contains(t, string(page.Body), "fast site")
	assert.Less(t, time.Since(start), time.Second)

	// an unreachable robots.txt allows the page once the timeout passes
	select {
	case err := <-slowDone:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("fetch behind a hanging robots.txt never finished")
	}
}

func TestFetchInvalidURL(t *testing.T) {
	f := New(http.DefaultClient, nil, Options{})
	_, err := f.Fetch(context.Background(), "/relative")
	assert.True(t, errors.Is(err, errors.ErrorTypeValidation))
}

func TestLimiterPerHost(t *testing.T) {
	f := New(http.DefaultClient, nil, Options{RatePerHost: 2})
	a := f.limiter("amazon.com")
	assert.Same(t, a, f.limiter("amazon.com"))
	assert.NotSame(t, a, f.limiter("ebay.com"))
	assert.InDelta(t, 2.0, float64(a.Limit()), 0.001)

	unlimited := New(http.DefaultClient, nil, Options{})
	assert.Equal(t, rate.Inf, unlimited.limiter("x").Limit())
}
