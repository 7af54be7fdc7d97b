package internal

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"LinkGrab/internal/scanner"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/sirupsen/logrus"
)

// HTTPHost serves a page fetched over HTTP as the active tab. Frames are
// found through iframe/frame src attributes and fetched level by level.
type HTTPHost struct {
	client     *Client
	pageURL    string
	frameDepth int
	threads    int
}

// NewHTTPHost creates a host for pageURL. frameDepth bounds frame nesting.
func NewHTTPHost(client *Client, pageURL string, frameDepth, threads int) *HTTPHost {
	if threads <= 0 {
		threads = 4
	}
	return &HTTPHost{client: client, pageURL: pageURL, frameDepth: frameDepth, threads: threads}
}

func (h *HTTPHost) ActiveTab(ctx context.Context) (scanner.Tab, error) {
	u, err := url.Parse(h.pageURL)
	if err != nil {
		return scanner.Tab{}, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return scanner.Tab{}, fmt.Errorf("cannot open %q: only http and https pages are supported", h.pageURL)
	}
	return scanner.Tab{ID: uuid.NewString(), URL: u.String()}, nil
}

type frameDoc struct {
	url    string
	links  []string
	frames []string
	err    error
}

// ExecuteInFrames runs script over the links of the top document and of every
// reachable frame. Only a failure of the top document fails the call.
func (h *HTTPHost) ExecuteInFrames(ctx context.Context, tab scanner.Tab, script scanner.FrameScript) ([]scanner.FrameResult, error) {
	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		docs []frameDoc
		urls []string
	)
	pool, err := ants.NewPoolWithFunc(h.threads, func(i interface{}) {
		defer wg.Done()
		j := i.(int)
		d := h.loadFrame(ctx, urls[j])
		mu.Lock()
		docs[j] = d
		mu.Unlock()
	})
	if err != nil {
		return nil, fmt.Errorf("pool: %w", err)
	}
	defer pool.Release()

	visited := map[string]struct{}{tab.URL: {}}
	level := []string{tab.URL}
	var results []scanner.FrameResult

	for depth := 0; len(level) > 0; depth++ {
		urls = level
		docs = make([]frameDoc, len(level))
		for j := range level {
			wg.Add(1)
			if err := pool.Invoke(j); err != nil {
				wg.Done()
				docs[j] = frameDoc{url: level[j], err: err}
			}
		}
		wg.Wait()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var next []string
		for _, d := range docs {
			if d.err != nil {
				if depth == 0 {
					return nil, d.err
				}
				results = append(results, scanner.FrameResult{FrameURL: d.url, Err: d.err})
				continue
			}
			results = append(results, scanner.FrameResult{FrameURL: d.url, URLs: script(d.links)})
			if depth >= h.frameDepth {
				continue
			}
			for _, f := range d.frames {
				if _, seen := visited[f]; seen {
					continue
				}
				visited[f] = struct{}{}
				next = append(next, f)
			}
		}
		logrus.WithFields(logrus.Fields{"depth": depth, "frames": len(level), "next": len(next)}).Debug("frame level done")
		level = next
	}
	return results, nil
}

func (h *HTTPHost) loadFrame(ctx context.Context, rawURL string) frameDoc {
	body, finalURL, err := h.client.Fetch(ctx, rawURL)
	if err != nil {
		return frameDoc{url: rawURL, err: err}
	}
	links, frames, err := parseDocument(body, finalURL)
	if err != nil {
		return frameDoc{url: rawURL, err: err}
	}
	return frameDoc{url: finalURL, links: links, frames: frames}
}

// parseDocument returns resolved link hrefs (document.links: a and area) and
// resolved frame sources.
func parseDocument(body []byte, docURL string) (links, frames []string, err error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, nil, err
	}
	base, err := url.Parse(docURL)
	if err != nil {
		return nil, nil, err
	}
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if b, err := base.Parse(strings.TrimSpace(href)); err == nil {
			base = b
		}
	}

	doc.Find("a[href], area[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if u, err := base.Parse(strings.TrimSpace(href)); err == nil {
			links = append(links, u.String())
		}
	})
	doc.Find("iframe[src], frame[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		u, err := base.Parse(strings.TrimSpace(src))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return
		}
		u.Fragment = ""
		frames = append(frames, u.String())
	})
	return links, frames, nil
}
