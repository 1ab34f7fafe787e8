// Package web reads published documents over HTTP(S) using a Colly collector.
package web

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/mini-league/internal/storage"
)

// Config controls collector behavior.
type Config struct {
	BaseURL       string
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
}

// Reader implements storage.Reader against a static site or CDN.
type Reader struct {
	base          *url.URL
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

type fetchResult struct {
	body   []byte
	status int
	err    error
}

// New builds a Reader rooted at cfg.BaseURL. Clones share the base
// collector's HTTP client, so it is configured here and never per fetch.
func New(cfg Config) (*Reader, error) {
	base, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https, got %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.WithTransport(newHTTPTransport())
	c.SetRequestTimeout(cfg.Timeout)
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	c.IgnoreRobotsTxt = !cfg.RespectRobots
	return &Reader{
		base:          base,
		baseCollector: c,
	}, nil
}

// GetObject fetches base/path. Non-2xx answers become *storage.StatusError.
func (r *Reader) GetObject(ctx context.Context, path string) ([]byte, error) {
	key, err := storage.ObjectKey(strings.TrimPrefix(r.base.Path, "/"), path)
	if err != nil {
		return nil, err
	}
	target := *r.base
	target.Path = "/" + key

	results := make(chan fetchResult, 2)
	collector := r.baseCollector.Clone()
	r.configureCollectorHooks(collector, results)

	visitErr := r.runCollector(ctx, collector, target.String())
	if visitErr != nil && ctx.Err() != nil {
		// The visit may still be running; its result is abandoned.
		return nil, visitErr
	}

	var result fetchResult
	select {
	case result = <-results:
	default:
	}
	if result.status == 0 {
		if visitErr == nil {
			visitErr = result.err
		}
		if visitErr == nil {
			visitErr = fmt.Errorf("fetch %s: no response", path)
		}
		return nil, visitErr
	}
	if result.status < 200 || result.status > 299 {
		return nil, &storage.StatusError{Path: path, StatusCode: result.status}
	}
	if result.err != nil {
		return nil, fmt.Errorf("fetch %s: %w", path, result.err)
	}
	return result.body, nil
}

// configureCollectorHooks reports the outcome over results; the channel is
// buffered so a hook never blocks after the caller gave up.
func (r *Reader) configureCollectorHooks(hooks collectorHooks, results chan<- fetchResult) {
	send := func(res fetchResult) {
		select {
		case results <- res:
		default:
		}
	}
	hooks.OnResponse(func(resp *colly.Response) {
		send(fetchResult{status: resp.StatusCode, body: append([]byte(nil), resp.Body...)})
	})

	hooks.OnError(func(resp *colly.Response, err error) {
		res := fetchResult{err: err}
		if resp != nil {
			res.status = resp.StatusCode
		}
		send(res)
	})
}

func (r *Reader) runCollector(ctx context.Context, collector *colly.Collector, target string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(target)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
