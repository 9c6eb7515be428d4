package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/common"
)

// Service renders JavaScript-driven pages through a small pool of headless
// Chrome contexts. Sources that need a browser route their listing fetches
// here; everything else stays on the plain HTTP fetcher.
type Service struct {
	browsers         []context.Context
	browserCancels   []context.CancelFunc
	allocatorCancels []context.CancelFunc
	mu               sync.Mutex
	currentIndex     int
	config           *common.BrowserConfig
	userAgent        string
	acceptLanguage   string
	logger           arbor.ILogger
	initialized      bool
}

// NewService creates a browser service. Call Start before fetching.
func NewService(config *common.BrowserConfig, httpConfig *common.HTTPConfig, logger arbor.ILogger) *Service {
	return &Service{
		config:         config,
		userAgent:      httpConfig.BrowserUA,
		acceptLanguage: httpConfig.AcceptLanguage,
		logger:         logger,
	}
}

// Start launches the configured number of browser instances and smoke-tests
// each one. With the browser disabled in config this is a no-op and
// Available stays false.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.config.Enabled {
		s.logger.Info().Msg("Browser rendering disabled, JS-rendered sources will be skipped")
		return nil
	}
	if s.initialized {
		return fmt.Errorf("browser pool already initialized")
	}

	poolSize := s.config.PoolSize
	if poolSize <= 0 {
		poolSize = 1
	}

	s.logger.Info().
		Int("pool_size", poolSize).
		Str("user_agent", s.userAgent).
		Msg("Initializing headless browser pool")

	var lastErr error
	for i := 0; i < poolSize; i++ {
		if err := s.createInstance(i); err != nil {
			lastErr = err
			s.logger.Warn().
				Err(err).
				Int("browser_index", i).
				Msg("Failed to create browser instance")
		}
	}
	if len(s.browsers) == 0 {
		s.cleanupLocked()
		return fmt.Errorf("failed to create any browser instance: %w", lastErr)
	}

	s.initialized = true
	s.logger.Info().
		Int("browsers_created", len(s.browsers)).
		Msg("Browser pool initialized")
	return nil
}

func (s *Service) createInstance(index int) error {
	startTime := time.Now()

	allocatorOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(s.userAgent),
	)

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), allocatorOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	// Startup test so a broken Chrome install fails here, not mid-run
	testCtx, testCancel := context.WithTimeout(browserCtx, s.config.Timeout)
	defer testCancel()
	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocatorCancel()
		return fmt.Errorf("browser instance failed startup test: %w", err)
	}

	s.browsers = append(s.browsers, browserCtx)
	s.browserCancels = append(s.browserCancels, browserCancel)
	s.allocatorCancels = append(s.allocatorCancels, allocatorCancel)

	s.logger.Debug().
		Int("browser_index", index).
		Dur("startup_time", time.Since(startTime)).
		Msg("Browser instance created")
	return nil
}

// Available reports whether rendered fetches can be served.
func (s *Service) Available() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// FetchRendered navigates to a URL in a fresh tab, waits for JavaScript to
// settle, and returns the rendered HTML plus the navigation status code.
func (s *Service) FetchRendered(ctx context.Context, url string) (string, int, error) {
	browserCtx, err := s.acquire()
	if err != nil {
		return "", 0, err
	}

	// Fresh tab per fetch so concurrent scrapers don't share page state
	tabCtx, tabCancel := chromedp.NewContext(browserCtx)
	defer tabCancel()

	runCtx, cancel := context.WithTimeout(tabCtx, s.config.Timeout)
	defer cancel()

	// Stop early if the caller's context dies first
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-runCtx.Done():
		}
	}()

	var html string
	statusCode := 200
	err = chromedp.Run(runCtx,
		network.Enable(),
		chromedp.ActionFunc(func(ctx context.Context) error {
			headers := network.Headers{}
			if s.acceptLanguage != "" {
				headers["Accept-Language"] = s.acceptLanguage
			}
			if len(headers) == 0 {
				return nil
			}
			return network.SetExtraHTTPHeaders(headers).Do(ctx)
		}),
		chromedp.Navigate(url),
		chromedp.Sleep(s.config.WaitTime),
		chromedp.OuterHTML("html", &html),
		// Status from the performance API; default 200 when unavailable
		chromedp.Evaluate(`window.performance?.getEntriesByType?.('navigation')?.[0]?.responseStatus || 200`, &statusCode),
	)
	if err != nil {
		return "", 0, fmt.Errorf("rendered fetch of %s failed: %w", url, err)
	}

	s.logger.Debug().
		Str("url", url).
		Int("status", statusCode).
		Int("html_length", len(html)).
		Msg("Rendered page fetched")

	return html, statusCode, nil
}

// acquire hands out browser contexts round-robin.
func (s *Service) acquire() (context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized || len(s.browsers) == 0 {
		return nil, fmt.Errorf("browser pool not available")
	}

	index := s.currentIndex % len(s.browsers)
	s.currentIndex = (s.currentIndex + 1) % len(s.browsers)
	return s.browsers[index], nil
}

// Stop tears down all browser instances.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return
	}

	s.logger.Info().
		Int("browser_count", len(s.browsers)).
		Msg("Shutting down browser pool")

	s.cleanupLocked()
	s.initialized = false
}

func (s *Service) cleanupLocked() {
	for _, cancel := range s.browserCancels {
		cancel()
	}
	for _, cancel := range s.allocatorCancels {
		cancel()
	}
	s.browsers = nil
	s.browserCancels = nil
	s.allocatorCancels = nil
}
