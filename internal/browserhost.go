package internal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"LinkGrab/internal/scanner"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"
	"github.com/sirupsen/logrus"
)

// linksScript reads document.links the way the page sees them: resolved hrefs.
const linksScript = `() => Array.from(document.links, l => l.href)`

// BrowserHost drives headless Chromium through playwright. Every frame of
// the loaded page evaluates linksScript; the FrameScript then runs on the result.
type BrowserHost struct {
	pageURL string
	timeout time.Duration

	pw      *playwright.Playwright
	browser playwright.Browser

	mu    sync.Mutex
	pages map[string]playwright.Page
}

// NewBrowserHost starts playwright and launches the browser. Close releases both.
func NewBrowserHost(pageURL string, timeout time.Duration, install bool) (*BrowserHost, error) {
	if install {
		if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
			return nil, fmt.Errorf("install playwright driver: %w", err)
		}
	}
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	return &BrowserHost{
		pageURL: pageURL,
		timeout: timeout,
		pw:      pw,
		browser: browser,
		pages:   make(map[string]playwright.Page),
	}, nil
}

// ActiveTab opens the page and waits for the network to settle.
func (b *BrowserHost) ActiveTab(ctx context.Context) (scanner.Tab, error) {
	if err := ctx.Err(); err != nil {
		return scanner.Tab{}, err
	}
	page, err := b.browser.NewPage()
	if err != nil {
		return scanner.Tab{}, fmt.Errorf("could not create page: %w", err)
	}
	if _, err := page.Goto(b.pageURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   playwright.Float(float64(b.timeout.Milliseconds())),
	}); err != nil {
		_ = page.Close()
		return scanner.Tab{}, fmt.Errorf("navigation failed: %w", err)
	}
	tab := scanner.Tab{ID: uuid.NewString(), URL: page.URL()}
	b.mu.Lock()
	b.pages[tab.ID] = page
	b.mu.Unlock()
	return tab, nil
}

func (b *BrowserHost) ExecuteInFrames(ctx context.Context, tab scanner.Tab, script scanner.FrameScript) ([]scanner.FrameResult, error) {
	b.mu.Lock()
	page, ok := b.pages[tab.ID]
	b.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown tab %s", tab.ID)
	}

	frames := page.Frames()
	results := make([]scanner.FrameResult, 0, len(frames))
	for _, frame := range frames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := frame.Evaluate(linksScript)
		if err != nil {
			logrus.WithFields(logrus.Fields{"frame": frame.URL(), "err": err}).Debug("frame evaluate failed")
			results = append(results, scanner.FrameResult{FrameURL: frame.URL(), Err: err})
			continue
		}
		results = append(results, scanner.FrameResult{FrameURL: frame.URL(), URLs: script(toStrings(v))})
	}
	return results, nil
}

func toStrings(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Close shuts down pages, the browser and the driver.
func (b *BrowserHost) Close() error {
	b.mu.Lock()
	for id, p := range b.pages {
		_ = p.Close()
		delete(b.pages, id)
	}
	b.mu.Unlock()
	if err := b.browser.Close(); err != nil {
		logrus.WithError(err).Warn("could not close browser")
	}
	return b.pw.Stop()
}
