// Package crawler implements same-site page discovery using Colly. It
// produces the page table an analysis job consumes; the same table
// doubles as the job's target catalog.
package crawler

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/seoforge/inlink-prospector/internal/prospect"
)

// Config controls collector behavior.
type Config struct {
	UserAgent    string
	Timeout      time.Duration
	Delay        time.Duration
	MaxPages     int
	IgnoreRobots bool
}

// Crawler walks a site breadth-first within one host, extracting the
// URL, H1, meta title, and a content excerpt for each HTML page.
type Crawler struct {
	cfg    Config
	logger *zap.Logger
}

// New builds a Crawler.
func New(cfg Config, logger *zap.Logger) *Crawler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crawler{cfg: cfg, logger: logger}
}

const contentExcerptLen = 500

var whitespacePattern = regexp.MustCompile(`\s+`)

// Crawl visits pages reachable from startURL on the same host, up to
// maxPages (or the configured default when maxPages <= 0). Fetch
// failures on individual pages are logged and skipped; the crawl only
// fails if the start URL is unreachable or invalid.
func (c *Crawler) Crawl(ctx context.Context, startURL string, maxPages int) ([]prospect.Page, error) {
	parsed, err := url.Parse(startURL)
	if err != nil || parsed.Host == "" {
		return nil, fmt.Errorf("invalid start url %q", startURL)
	}
	if maxPages <= 0 || maxPages > c.cfg.MaxPages {
		maxPages = c.cfg.MaxPages
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Host),
	)
	collector.IgnoreRobotsTxt = c.cfg.IgnoreRobots
	collector.SetRequestTimeout(c.cfg.Timeout)
	if c.cfg.UserAgent != "" {
		collector.UserAgent = c.cfg.UserAgent
	}
	if c.cfg.Delay > 0 {
		if err := collector.Limit(&colly.LimitRule{
			DomainGlob: "*",
			Delay:      c.cfg.Delay,
		}); err != nil {
			return nil, fmt.Errorf("configure crawl delay: %w", err)
		}
	}

	var (
		mu    sync.Mutex
		pages []prospect.Page
	)

	collector.OnRequest(func(r *colly.Request) {
		mu.Lock()
		full := len(pages) >= maxPages
		mu.Unlock()
		if full || ctx.Err() != nil {
			r.Abort()
		}
	})

	collector.OnHTML("html", func(e *colly.HTMLElement) {
		page := extractPage(e)
		mu.Lock()
		if len(pages) < maxPages {
			pages = append(pages, page)
		}
		mu.Unlock()
	})

	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		mu.Lock()
		full := len(pages) >= maxPages
		mu.Unlock()
		if full {
			return
		}
		link := e.Request.AbsoluteURL(e.Attr("href"))
		if link == "" {
			return
		}
		if err := e.Request.Visit(link); err != nil {
			// Already-visited and off-domain links land here; not an error.
			c.logger.Debug("skip link", zap.String("url", link), zap.Error(err))
		}
	})

	collector.OnError(func(r *colly.Response, err error) {
		c.logger.Warn("page fetch failed", zap.String("url", r.Request.URL.String()), zap.Error(err))
	})

	done := make(chan error, 1)
	go func() {
		visitErr := collector.Visit(startURL)
		collector.Wait()
		done <- visitErr
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("crawl canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("visit start url: %w", err)
		}
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("no pages crawled from %s", startURL)
	}
	c.logger.Info("crawl finished", zap.String("start_url", startURL), zap.Int("pages", len(pages)))
	return pages, nil
}

func extractPage(e *colly.HTMLElement) prospect.Page {
	doc := e.DOM
	return prospect.Page{
		URL:       e.Request.URL.String(),
		H1:        cleanText(doc.Find("h1").First().Text()),
		MetaTitle: cleanText(doc.Find("title").First().Text()),
		Content:   extractContent(e),
	}
}

// extractContent pulls a plain-text excerpt of the main content area,
// preferring semantic containers over the whole body and stripping
// boilerplate elements.
func extractContent(e *colly.HTMLElement) string {
	doc := e.DOM
	selection := doc.Find("article, main, [role=main], .post-content, .entry-content, .content, #content").First()
	if selection.Length() == 0 {
		selection = doc.Find("body").First()
	}
	if selection.Length() == 0 {
		return ""
	}
	cloned := selection.Clone()
	cloned.Find("script, style, nav, footer, header").Remove()
	text := cleanText(cloned.Text())
	if runes := []rune(text); len(runes) > contentExcerptLen {
		return string(runes[:contentExcerptLen])
	}
	return text
}

func cleanText(text string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
}
