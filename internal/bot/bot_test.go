package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxfraid/cs2crap/internal/scanner"
)

type fakeRunner struct {
	mu        sync.Mutex
	opts      []scanner.Options
	started   chan struct{}
	refuse    bool
	refreshes int
}

func (r *fakeRunner) Run(ctx context.Context, opts scanner.Options) scanner.Session {
	r.mu.Lock()
	r.opts = append(r.opts, opts)
	started := r.started
	refuse := r.refuse
	r.mu.Unlock()

	if refuse {
		return scanner.Session{Refused: true}
	}
	if started != nil {
		started <- struct{}{}
		<-ctx.Done()
		return scanner.Session{Total: 10, Processed: 5, Cancelled: true}
	}
	return scanner.Session{Total: 10, Processed: 10}
}

func (r *fakeRunner) RefreshCatalog(ctx context.Context, start, count int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshes++
	return 2, nil
}

func (r *fakeRunner) lastOpts() scanner.Options {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opts[len(r.opts)-1]
}

type fakeReplier struct {
	mu    sync.Mutex
	lines []string
}

func (r *fakeReplier) Status(ctx context.Context, format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, fmt.Sprintf(format, args...))
}

func (r *fakeReplier) contains(substr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, line := range r.lines {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

func newTestBot(runner *fakeRunner) (*Bot, *fakeReplier) {
	reply := &fakeReplier{}
	return New("token", "12345", runner, reply), reply
}

func (b *Bot) isBusy() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.busy
}

func TestParseScanArg(t *testing.T) {
	opts, err := parseScanArg("all")
	require.NoError(t, err)
	assert.True(t, opts.All)

	opts, err = parseScanArg("10-100")
	require.NoError(t, err)
	assert.False(t, opts.All)
	assert.Equal(t, 10.0, opts.PriceMin)
	assert.Equal(t, 100.0, opts.PriceMax)

	opts, err = parseScanArg("0.5-2.5")
	require.NoError(t, err)
	assert.Equal(t, 0.5, opts.PriceMin)
	assert.Equal(t, 2.5, opts.PriceMax)

	for _, bad := range []string{"10", "abc-5", "5-xyz", "100-10", "-5-10"} {
		_, err := parseScanArg(bad)
		assert.Error(t, err, "arg %q must be rejected", bad)
	}
}

func TestRouteToggles(t *testing.T) {
	b, reply := newTestBot(&fakeRunner{})
	ctx := context.Background()

	assert.True(t, b.Routes().SteamToSteam)
	b.HandleCommand(ctx, "/stm2stm")
	assert.False(t, b.Routes().SteamToSteam)
	assert.True(t, reply.contains("steam_to_steam is now off"))

	b.HandleCommand(ctx, "/stm2stm")
	assert.True(t, b.Routes().SteamToSteam)

	b.HandleCommand(ctx, "/csm2stm")
	assert.False(t, b.Routes().MarketToSteam)
	b.HandleCommand(ctx, "/stm2csm")
	assert.False(t, b.Routes().SteamToMarket)

	b.HandleCommand(ctx, "/methods")
	assert.True(t, reply.contains("market_to_steam: off"))
}

func TestScanCarriesRoutesAndRange(t *testing.T) {
	runner := &fakeRunner{}
	b, _ := newTestBot(runner)
	ctx := context.Background()

	b.HandleCommand(ctx, "/stm2csm")
	b.HandleCommand(ctx, "/cscrap 10-100")

	require.Eventually(t, func() bool { return !b.isBusy() }, time.Second, 5*time.Millisecond)

	opts := runner.lastOpts()
	assert.Equal(t, 10.0, opts.PriceMin)
	assert.Equal(t, 100.0, opts.PriceMax)
	assert.True(t, opts.Routes.SteamToSteam)
	assert.False(t, opts.Routes.SteamToMarket, "the toggle applies to the next scan")
}

func TestScanGuardAndStop(t *testing.T) {
	runner := &fakeRunner{started: make(chan struct{}, 1)}
	b, reply := newTestBot(runner)
	ctx := context.Background()

	b.HandleCommand(ctx, "/cscrap all")
	<-runner.started

	b.HandleCommand(ctx, "/cscrap all")
	assert.True(t, reply.contains("already running"))

	b.HandleCommand(ctx, "/stop")
	require.Eventually(t, func() bool { return !b.isBusy() }, time.Second, 5*time.Millisecond)
	assert.True(t, reply.contains("Scan stopped after 5/10 items"))

	b.HandleCommand(ctx, "/stop")
	assert.True(t, reply.contains("Nothing is running"))
}

func TestScanRefusedWhenScannerBusy(t *testing.T) {
	runner := &fakeRunner{refuse: true}
	b, reply := newTestBot(runner)

	b.HandleCommand(context.Background(), "/cscrap all")
	require.Eventually(t, func() bool { return !b.isBusy() }, time.Second, 5*time.Millisecond)

	assert.True(t, reply.contains("Another scan pass is already running"))
}

func TestScanRefusedWhenAllRoutesOff(t *testing.T) {
	runner := &fakeRunner{}
	b, reply := newTestBot(runner)
	ctx := context.Background()

	b.HandleCommand(ctx, "/stm2stm")
	b.HandleCommand(ctx, "/csm2stm")
	b.HandleCommand(ctx, "/stm2csm")
	b.HandleCommand(ctx, "/cscrap all")

	assert.True(t, reply.contains("All routes are disabled"))
	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.Empty(t, runner.opts)
}

func TestUpdateCommand(t *testing.T) {
	runner := &fakeRunner{}
	b, reply := newTestBot(runner)

	b.HandleCommand(context.Background(), "/update")
	require.Eventually(t, func() bool { return !b.isBusy() }, time.Second, 5*time.Millisecond)

	assert.True(t, reply.contains("2 new items"))
	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.Equal(t, 1, runner.refreshes)
}

func TestBadRangeReply(t *testing.T) {
	b, reply := newTestBot(&fakeRunner{})
	b.HandleCommand(context.Background(), "/cscrap nonsense")
	assert.True(t, reply.contains("Bad price range"))
}

func TestNonCommandIgnored(t *testing.T) {
	runner := &fakeRunner{}
	b, reply := newTestBot(runner)

	b.HandleCommand(context.Background(), "hello there")
	b.HandleCommand(context.Background(), "")

	reply.mu.Lock()
	defer reply.mu.Unlock()
	assert.Empty(t, reply.lines)
}
