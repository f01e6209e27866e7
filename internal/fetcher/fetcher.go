package fetcher

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"sync"
	"syscall"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/maxfraid/cs2crap/logger"
	"github.com/maxfraid/cs2crap/pkg/errors"
	"github.com/maxfraid/cs2crap/services/cache"
)

// Range is a timeout range in seconds. Every attempt draws its timeout
// uniformly at random from [Min, Max]; the post-fetch courtesy delay is
// drawn from the same range scaled down by courtesyDivisor.
type Range struct {
	Min float64
	Max float64
}

const courtesyDivisor = 5

// Doer abstracts http.Client so transports can be faked in tests
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RetryPolicy controls retry and pause behavior within a single fetch call
type RetryPolicy struct {
	// StatusRetries is the number of extra attempts on 500/502/504
	StatusRetries int
	// BackoffBase is the first status-retry backoff, doubled per retry
	BackoffBase time.Duration
	// ShortPause is slept after a generic request failure
	ShortPause time.Duration
	// LongPause replaces ShortPause once more than PauseAfter proxies failed
	LongPause time.Duration
	// PauseAfter is the failed-proxy count threshold for LongPause
	PauseAfter int
}

// DefaultPolicy returns the production retry policy
func DefaultPolicy() RetryPolicy {
	return RetryPolicy{
		StatusRetries: 2,
		BackoffBase:   1500 * time.Millisecond,
		ShortPause:    5 * time.Second,
		LongPause:     60 * time.Second,
		PauseAfter:    2,
	}
}

// Fetcher issues GET requests through a rotating proxy pool with randomized
// browser headers. It is stateless across calls; the pool is reloaded and
// reshuffled per call.
type Fetcher struct {
	proxies   ProxySource
	cacheSvc  cache.CacheService
	blockTime time.Duration
	policy    RetryPolicy
	newClient func(proxy *url.URL, timeout time.Duration) Doer
	sleep     func(time.Duration)
	log       *logger.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a Fetcher
type Option func(*Fetcher)

// WithPolicy overrides the retry policy
func WithPolicy(p RetryPolicy) Option {
	return func(f *Fetcher) { f.policy = p }
}

// WithClientFactory overrides HTTP client construction, for tests
func WithClientFactory(fn func(proxy *url.URL, timeout time.Duration) Doer) Option {
	return func(f *Fetcher) { f.newClient = fn }
}

// WithSleep overrides the sleep function, for tests
func WithSleep(fn func(time.Duration)) Option {
	return func(f *Fetcher) { f.sleep = fn }
}

// WithBlockTime overrides how long a 429 blocks the target host
func WithBlockTime(d time.Duration) Option {
	return func(f *Fetcher) { f.blockTime = d }
}

// New creates a fetcher. cacheSvc may be nil; rate-limit blocking is then
// disabled.
func New(src ProxySource, cacheSvc cache.CacheService, opts ...Option) *Fetcher {
	f := &Fetcher{
		proxies:   src,
		cacheSvc:  cacheSvc,
		blockTime: 500 * time.Second,
		policy:    DefaultPolicy(),
		sleep:     time.Sleep,
		log:       logger.ForFetcher(),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	f.newClient = func(proxy *url.URL, timeout time.Duration) Doer {
		return &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyURL(proxy),
			},
		}
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// failure classes drive the proxy-advance policy
type failureClass int

const (
	failTimeout failureClass = iota
	failConnection
	failGeneric
)

func classifyErr(err error) failureClass {
	var ne net.Error
	if stderrors.As(err, &ne) && ne.Timeout() {
		return failTimeout
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return failTimeout
	}
	var oe *net.OpError
	if stderrors.As(err, &oe) {
		return failConnection
	}
	if stderrors.Is(err, syscall.ECONNREFUSED) || stderrors.Is(err, syscall.ECONNRESET) || stderrors.Is(err, io.ErrUnexpectedEOF) {
		return failConnection
	}
	return failGeneric
}

// Fetch retrieves the page body at rawURL, rotating through the proxy pool
// until an attempt succeeds. It fails only after every proxy has been
// exhausted for this call, except for the non-2xx case documented below.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, tr Range, postDelay bool) (string, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return "", errors.NewConfiguration(fmt.Sprintf("invalid url %q", rawURL), err)
	}

	if f.blocked(target.Host) {
		return "", errors.NewRateLimit("fetcher", f.blockTime)
	}

	pool, err := f.proxies.Load()
	if err != nil {
		return "", err
	}
	if len(pool) == 0 {
		return "", errors.NewConfiguration("proxy pool is empty", nil)
	}
	f.shuffle(pool)

	failed := 0
	var lastErr error

	for _, proxy := range pool {
		if err := ctx.Err(); err != nil {
			return "", errors.NewNetwork("fetcher", "fetch cancelled", err)
		}

		timeout := f.randomDelay(tr)
		client := f.newClient(proxy.URL(), timeout)

		body, contentType, status, err := f.attempt(ctx, client, rawURL)
		if err != nil {
			lastErr = err

			switch classifyErr(err) {
			case failTimeout:
				f.log.Warn().Str("proxy", proxy.String()).Err(err).Msg("Attempt timed out")
			case failConnection:
				f.log.Warn().Str("proxy", proxy.String()).Err(err).Msg("Connection failed")
			default:
				f.log.Warn().Str("proxy", proxy.String()).Err(err).Msg("Request failed")
				// the pause class counts only the proxies that failed
				// before this one
				if failed > f.policy.PauseAfter {
					f.sleep(f.policy.LongPause)
				} else {
					f.sleep(f.policy.ShortPause)
				}
			}
			failed++
			continue
		}

		if status == http.StatusTooManyRequests {
			f.block(target.Host)
			return "", errors.NewRateLimit("fetcher", f.blockTime)
		}

		if status >= 200 && status < 300 {
			if postDelay {
				f.sleep(f.randomDelay(tr) / courtesyDivisor)
			}
			return decodeBody(body, contentType)
		}

		// A bad status that is not a transport error marks the proxy failed
		// and stops the rotation entirely. The remaining proxies are not
		// tried for this class of failure.
		failed++
		f.log.Error().Str("proxy", proxy.String()).Int("status", status).Msg("Unexpected status code")
		return "", errors.NewNetwork("fetcher", fmt.Sprintf("unexpected status code %d", status), nil)
	}

	f.log.Error().Int("failed", failed).Msg("All proxies exhausted")
	return "", errors.NewNetwork("fetcher", fmt.Sprintf("all %d proxies failed", len(pool)), lastErr)
}

// attempt performs one proxied request, retrying internally on 500/502/504
func (f *Fetcher) attempt(ctx context.Context, client Doer, rawURL string) ([]byte, string, int, error) {
	backoff := f.policy.BackoffBase

	for try := 0; ; try++ {
		req, err := f.buildRequest(ctx, rawURL)
		if err != nil {
			return nil, "", 0, err
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, "", 0, err
		}

		if isRetryableStatus(resp.StatusCode) && try < f.policy.StatusRetries {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			f.sleep(backoff)
			backoff *= 2
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, "", 0, err
		}
		return body, resp.Header.Get("Content-Type"), resp.StatusCode, nil
	}
}

func (f *Fetcher) buildRequest(ctx context.Context, rawURL string) (*http.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return newRequest(ctx, rawURL, f.rng)
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// randomDelay draws a duration uniformly from the range
func (f *Fetcher) randomDelay(tr Range) time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	seconds := tr.Min + f.rng.Float64()*(tr.Max-tr.Min)
	return time.Duration(seconds * float64(time.Second))
}

func (f *Fetcher) shuffle(pool []Proxy) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})
}

// blocked reports whether the host is currently rate-limited
func (f *Fetcher) blocked(host string) bool {
	if f.cacheSvc == nil {
		return false
	}
	_, err := f.cacheSvc.Get(blockKey(host))
	return err == nil
}

func (f *Fetcher) block(host string) {
	if f.cacheSvc == nil {
		return
	}
	value := []byte(fmt.Sprintf("%d", int(f.blockTime.Seconds())))
	if err := f.cacheSvc.Set(blockKey(host), value, f.blockTime); err != nil {
		f.log.Warn().Err(err).Str("host", host).Msg("Failed to set rate-limit block")
	}
}

func blockKey(host string) string {
	return "fetch_block:" + host
}

// decodeBody converts the body to UTF-8 based on the Content-Type header
// and the body content itself
func decodeBody(body []byte, contentType string) (string, error) {
	encoding, name, _ := charset.DetermineEncoding(body, contentType)
	if name == "utf-8" || name == "UTF-8" {
		return string(body), nil
	}

	reader := encoding.NewDecoder().Reader(bytes.NewReader(body))
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return "", errors.NewParsing("fetcher", "failed to decode response body", err)
	}
	return string(decoded), nil
}
