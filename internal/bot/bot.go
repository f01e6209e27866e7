// Package bot implements the Telegram command surface: it long-polls for
// updates in the configured chat and drives the scanner.
package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/maxfraid/cs2crap/internal/scanner"
	"github.com/maxfraid/cs2crap/logger"
)

const (
	telegramAPIBase = "https://api.telegram.org"
	// pollTimeout is the long-poll window requested from getUpdates
	pollTimeout = 30 * time.Second
	// catalogFetchCount covers the full CS2 listing universe
	catalogFetchCount = 20000
)

// Runner is the scanner surface the bot drives
type Runner interface {
	Run(ctx context.Context, opts scanner.Options) scanner.Session
	RefreshCatalog(ctx context.Context, start, count int) (int, error)
}

// Replier delivers bot replies to the chat
type Replier interface {
	Status(ctx context.Context, format string, args ...interface{})
}

// Bot owns the command loop. Route toggles are per-bot state, and only one
// scan or catalogue refresh may run at a time.
type Bot struct {
	token  string
	chatID string
	apiURL string
	client *http.Client
	runner Runner
	reply  Replier
	log    *logger.Logger

	mu      sync.Mutex
	routes  scanner.RouteSet
	busy    bool
	cancel  context.CancelFunc
	wgScans sync.WaitGroup
}

// New creates a bot answering commands from the given chat only
func New(token, chatID string, runner Runner, reply Replier) *Bot {
	return &Bot{
		token:  token,
		chatID: chatID,
		apiURL: telegramAPIBase,
		client: &http.Client{Timeout: pollTimeout + 10*time.Second},
		runner: runner,
		reply:  reply,
		routes: scanner.DefaultRoutes(),
		log:    logger.ForBot(),
	}
}

// Routes returns the current route toggles
func (b *Bot) Routes() scanner.RouteSet {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.routes
}

// telegram getUpdates payload
type updates struct {
	OK     bool `json:"ok"`
	Result []struct {
		UpdateID int64 `json:"update_id"`
		Message  *struct {
			Text string `json:"text"`
			Chat struct {
				ID int64 `json:"id"`
			} `json:"chat"`
		} `json:"message"`
	} `json:"result"`
}

// Run long-polls for commands until ctx is cancelled
func (b *Bot) Run(ctx context.Context) {
	var offset int64
	for {
		if err := ctx.Err(); err != nil {
			b.wgScans.Wait()
			return
		}

		batch, err := b.poll(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			b.log.Warn().Err(err).Msg("Polling failed")
			time.Sleep(3 * time.Second)
			continue
		}

		for _, upd := range batch.Result {
			offset = upd.UpdateID + 1
			if upd.Message == nil {
				continue
			}
			if strconv.FormatInt(upd.Message.Chat.ID, 10) != b.chatID {
				continue
			}
			b.HandleCommand(ctx, upd.Message.Text)
		}
	}
}

func (b *Bot) poll(ctx context.Context, offset int64) (*updates, error) {
	url := fmt.Sprintf("%s/bot%s/getUpdates?timeout=%d&offset=%d",
		b.apiURL, b.token, int(pollTimeout.Seconds()), offset)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("getUpdates returned %d", resp.StatusCode)
	}

	var batch updates
	if err := json.NewDecoder(resp.Body).Decode(&batch); err != nil {
		return nil, err
	}
	return &batch, nil
}

// HandleCommand interprets one chat message
func (b *Bot) HandleCommand(ctx context.Context, text string) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return
	}

	cmd, _, _ := strings.Cut(fields[0], "@")
	switch cmd {
	case "/cscrap":
		if len(fields) < 2 {
			b.reply.Status(ctx, "Usage: /cscrap <min-max|all>")
			return
		}
		b.startScan(ctx, fields[1])

	case "/update":
		b.startCatalogRefresh(ctx)

	case "/stop":
		b.stopScan(ctx)

	case "/methods":
		r := b.Routes()
		b.reply.Status(ctx, "Routes:\nsteam_to_steam: %s\nmarket_to_steam: %s\nsteam_to_market: %s",
			onOff(r.SteamToSteam), onOff(r.MarketToSteam), onOff(r.SteamToMarket))

	case "/stm2stm":
		b.toggle(ctx, "steam_to_steam", func(r *scanner.RouteSet) *bool { return &r.SteamToSteam })

	case "/csm2stm":
		b.toggle(ctx, "market_to_steam", func(r *scanner.RouteSet) *bool { return &r.MarketToSteam })

	case "/stm2csm":
		b.toggle(ctx, "steam_to_market", func(r *scanner.RouteSet) *bool { return &r.SteamToMarket })

	default:
		b.log.Debug().Str("command", cmd).Msg("Unknown command")
	}
}

// startScan launches a scan in the background unless one is already running
func (b *Bot) startScan(ctx context.Context, rangeArg string) {
	opts, err := parseScanArg(rangeArg)
	if err != nil {
		b.reply.Status(ctx, "Bad price range: %v", err)
		return
	}

	b.mu.Lock()
	if b.busy {
		b.mu.Unlock()
		b.reply.Status(ctx, "A scan is already running, /stop it first")
		return
	}
	opts.Routes = b.routes
	if !opts.Routes.Any() {
		b.mu.Unlock()
		b.reply.Status(ctx, "All routes are disabled, enable one first (/methods)")
		return
	}
	scanCtx, cancel := context.WithCancel(ctx)
	b.busy = true
	b.cancel = cancel
	b.mu.Unlock()

	b.reply.Status(ctx, "Scan started")
	b.wgScans.Add(1)
	go func() {
		defer b.wgScans.Done()
		session := b.runner.Run(scanCtx, opts)
		switch {
		case session.Refused:
			b.reply.Status(ctx, "Another scan pass is already running, try again later")
		case session.Cancelled:
			b.reply.Status(ctx, "Scan stopped after %d/%d items", session.Processed, session.Total)
		}
		b.finish()
	}()
}

// startCatalogRefresh rebuilds the item database from the market catalogue
func (b *Bot) startCatalogRefresh(ctx context.Context) {
	b.mu.Lock()
	if b.busy {
		b.mu.Unlock()
		b.reply.Status(ctx, "A scan is already running, /stop it first")
		return
	}
	refreshCtx, cancel := context.WithCancel(ctx)
	b.busy = true
	b.cancel = cancel
	b.mu.Unlock()

	b.reply.Status(ctx, "Catalogue refresh started")
	b.wgScans.Add(1)
	go func() {
		defer b.wgScans.Done()
		added, err := b.runner.RefreshCatalog(refreshCtx, 0, catalogFetchCount)
		if err != nil {
			b.reply.Status(ctx, "Catalogue refresh failed: %v", err)
		} else {
			b.reply.Status(ctx, "Catalogue refresh done, %d new items", added)
		}
		b.finish()
	}()
}

func (b *Bot) stopScan(ctx context.Context) {
	b.mu.Lock()
	cancel := b.cancel
	busy := b.busy
	b.mu.Unlock()

	if !busy {
		b.reply.Status(ctx, "Nothing is running")
		return
	}
	if cancel != nil {
		cancel()
	}
	b.reply.Status(ctx, "Stopping after the current item")
}

func (b *Bot) finish() {
	b.mu.Lock()
	if b.cancel != nil {
		b.cancel()
	}
	b.busy = false
	b.cancel = nil
	b.mu.Unlock()
}

func (b *Bot) toggle(ctx context.Context, name string, field func(*scanner.RouteSet) *bool) {
	b.mu.Lock()
	flag := field(&b.routes)
	*flag = !*flag
	state := *flag
	b.mu.Unlock()
	b.reply.Status(ctx, "%s is now %s", name, onOff(state))
}

// parseScanArg parses "min-max" or "all" into scan options
func parseScanArg(arg string) (scanner.Options, error) {
	if strings.EqualFold(arg, "all") {
		return scanner.Options{All: true}, nil
	}

	parts := strings.SplitN(arg, "-", 2)
	if len(parts) != 2 {
		return scanner.Options{}, fmt.Errorf("expected min-max or all, got %q", arg)
	}

	min, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return scanner.Options{}, fmt.Errorf("bad lower bound %q", parts[0])
	}
	max, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return scanner.Options{}, fmt.Errorf("bad upper bound %q", parts[1])
	}
	if min < 0 || max < min {
		return scanner.Options{}, fmt.Errorf("range %v-%v is not ascending", min, max)
	}

	return scanner.Options{PriceMin: min, PriceMax: max}, nil
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
