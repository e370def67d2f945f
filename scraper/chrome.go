package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"golang.org/x/time/rate"

	"apartment-scraper/config"
	"apartment-scraper/utils"
)

const pollInterval = 250 * time.Millisecond

// ChromeBrowser drives a headless Chrome through chromedp. One instance is one
// browser session and must only be used by a single goroutine.
type ChromeBrowser struct {
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc

	limiter         *rate.Limiter
	pageLoadTimeout time.Duration
	elementTimeout  time.Duration
	logger          *utils.Logger
}

// NewChromeBrowser starts a browser and checks that it responds.
func NewChromeBrowser(ctx context.Context, cfg *config.Config, logger *utils.Logger) (*ChromeBrowser, error) {
	chromeBin := cfg.ChromeBin
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	logger.Debug("[browser] Using browser binary: %s", chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(cfg.UserAgent),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	// The session outlives individual calls, so it hangs off Background
	// and follows ctx only through explicit Close.
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	every := rate.Inf
	if cfg.NavigationInterval > 0 {
		every = rate.Every(cfg.NavigationInterval)
	}

	b := &ChromeBrowser{
		browserCtx:      browserCtx,
		cancelBrowser:   cancelBrowser,
		cancelAlloc:     cancelAlloc,
		limiter:         rate.NewLimiter(every, 1),
		pageLoadTimeout: cfg.PageLoadTimeout,
		elementTimeout:  cfg.ElementTimeout,
		logger:          logger,
	}

	// The first Run allocates the browser and must not carry a timeout,
	// otherwise the browser dies with it.
	if err := chromedp.Run(browserCtx); err != nil {
		b.Close()
		return nil, fmt.Errorf("browser failed to start: %w", err)
	}
	if err := b.run(ctx, 30*time.Second, chromedp.Navigate("about:blank")); err != nil {
		b.Close()
		return nil, fmt.Errorf("browser failed startup check: %w", err)
	}
	return b, nil
}

func (b *ChromeBrowser) Navigate(ctx context.Context, url string) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := b.run(ctx, b.pageLoadTimeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (b *ChromeBrowser) WaitAny(ctx context.Context, timeout time.Duration, selectors ...string) (string, error) {
	list, err := json.Marshal(selectors)
	if err != nil {
		return "", err
	}
	script := fmt.Sprintf(`%s.findIndex(function(s) { return document.querySelector(s) !== null; })`, list)

	deadline := time.Now().Add(timeout)
	for {
		var idx int
		if err := b.run(ctx, b.elementTimeout, chromedp.Evaluate(script, &idx)); err != nil {
			return "", err
		}
		if idx >= 0 && idx < len(selectors) {
			return selectors[idx], nil
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("waiting for %s: %w", strings.Join(selectors, " | "), ErrTimeout)
		}
		if err := utils.Sleep(ctx, pollInterval); err != nil {
			return "", err
		}
	}
}

// nodeResult is what the query scripts below return.
type nodeResult struct {
	Found bool   `json:"found"`
	Value string `json:"value"`
	Has   bool   `json:"has"`
}

func (b *ChromeBrowser) query(ctx context.Context, selector, body string) (nodeResult, error) {
	sel, err := json.Marshal(selector)
	if err != nil {
		return nodeResult{}, err
	}
	script := fmt.Sprintf(`(function() {
		var el = document.querySelector(%s);
		if (!el) { return {found: false, value: '', has: false}; }
		%s
	})()`, sel, body)

	var res nodeResult
	if err := b.run(ctx, b.elementTimeout, chromedp.Evaluate(script, &res)); err != nil {
		return nodeResult{}, err
	}
	if !res.Found {
		return nodeResult{}, fmt.Errorf("%s: %w", selector, ErrNotFound)
	}
	return res, nil
}

func (b *ChromeBrowser) Text(ctx context.Context, selector string) (string, error) {
	res, err := b.query(ctx, selector, `return {found: true, value: el.innerText || '', has: true};`)
	return res.Value, err
}

func (b *ChromeBrowser) Attribute(ctx context.Context, selector, name string) (string, bool, error) {
	attr, err := json.Marshal(name)
	if err != nil {
		return "", false, err
	}
	res, err := b.query(ctx, selector, fmt.Sprintf(
		`var v = el.getAttribute(%s); return {found: true, value: v || '', has: v !== null};`, attr))
	return res.Value, res.Has, err
}

func (b *ChromeBrowser) OuterHTML(ctx context.Context, selector string) (string, error) {
	res, err := b.query(ctx, selector, `return {found: true, value: el.outerHTML, has: true};`)
	return res.Value, err
}

func (b *ChromeBrowser) Click(ctx context.Context, selector string) error {
	_, err := b.query(ctx, selector, `el.click(); return {found: true, value: '', has: true};`)
	return err
}

func (b *ChromeBrowser) Err() error {
	if b.browserCtx.Err() != nil {
		return ErrSessionClosed
	}
	return nil
}

// Close shuts the browser down. It is safe to call more than once.
func (b *ChromeBrowser) Close() error {
	b.cancelBrowser()
	b.cancelAlloc()
	return nil
}

// run executes actions on the session tab, bounded by timeout and by ctx.
func (b *ChromeBrowser) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(b.browserCtx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err == nil {
		return nil
	}
	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case b.browserCtx.Err() != nil:
		return fmt.Errorf("%w: %v", ErrSessionClosed, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	case isStaleNode(err):
		return fmt.Errorf("%w: %v", ErrStaleElement, err)
	}
	return err
}

func isStaleNode(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no node with given id") ||
		strings.Contains(msg, "could not find node") ||
		strings.Contains(msg, "execution context was destroyed")
}

// findChromeBinary locates Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"chromium", "chromium-browser", "google-chrome-stable", "google-chrome"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/chromium",
		"/usr/bin/chromium-browser",
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/snap/bin/chromium",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
