package chrome

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"pdfservice/internal/config"
	"pdfservice/internal/domain"
	"pdfservice/internal/infra/logging"
)

const (
	acquireTimeout = 5 * time.Second
	settleDelay    = 200 * time.Millisecond
)

// Engine renders HTML with Chrome. With a positive pool size it shares one browser through a
// Pool created on first use; otherwise every render launches its own browser.
type Engine struct {
	cfg config.Config

	mu      sync.Mutex
	pool    *Pool
	poolErr error
}

// NewEngine returns an Engine for cfg. No browser is started until the first render.
func NewEngine(cfg config.Config) *Engine {
	return &Engine{cfg: cfg}
}

// Pool returns the shared tab pool, creating it on first call. It returns nil, nil when pooling
// is disabled.
func (e *Engine) Pool() (*Pool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cfg.PDF.ChromePoolSize <= 0 {
		return nil, nil
	}
	if e.pool != nil {
		return e.pool, nil
	}
	pool, err := NewPool(e.cfg)
	if err != nil {
		e.poolErr = err
		return nil, err
	}
	e.pool = pool
	e.poolErr = nil
	return pool, nil
}

// Stats describes the pool. A disabled pool reports Enabled=false with the configured values.
func (e *Engine) Stats() (Stats, error) {
	pool, err := e.Pool()
	if err != nil {
		return Stats{}, err
	}
	if pool == nil {
		return Stats{
			PoolSizeConf: e.cfg.PDF.ChromePoolSize,
			TimeoutSecs:  e.cfg.PDF.TimeoutSecs,
		}, nil
	}
	return pool.Stats(e.cfg.PDF.TimeoutSecs), nil
}

// Close shuts the pool down if one was created.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pool != nil {
		e.pool.Close()
	}
}

// Render implements render.Engine. Errors wrap domain.ErrRender and keep the underlying cause
// for errors.Is, so timeouts and interrupted sessions remain distinguishable.
func (e *Engine) Render(ctx context.Context, html string, opts domain.RenderOptions) ([]byte, error) {
	pdf, err := e.render(ctx, html, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRender, err)
	}
	return pdf, nil
}

func (e *Engine) render(ctx context.Context, html string, opts domain.RenderOptions) ([]byte, error) {
	pool, err := e.Pool()
	if err != nil {
		return nil, err
	}
	if pool == nil {
		return renderWithChrome(ctx, html, opts, e.cfg)
	}

	warmCtx, cancelWarm := context.WithTimeout(ctx, e.cfg.RenderTimeout())
	err = pool.Warm(warmCtx)
	cancelWarm()
	if err != nil {
		return nil, err
	}

	acquireCtx, cancelAcquire := context.WithTimeout(ctx, acquireTimeout)
	tab, err := pool.Acquire(acquireCtx)
	cancelAcquire()
	if err != nil {
		return nil, err
	}

	tabCtx, cancel := context.WithTimeout(tab.Ctx, e.cfg.RenderTimeout())
	stop := context.AfterFunc(ctx, cancel)
	pdf, renderErr := renderInTab(tabCtx, html, opts)
	stop()
	cancel()
	pool.Release(tab, renderErr)

	// A canceled tab whose request and deadline are both still alive means the browser died.
	if renderErr != nil && IsSessionInterrupted(renderErr) &&
		!errors.Is(renderErr, context.DeadlineExceeded) && ctx.Err() == nil {
		logging.Warn("Chrome session interrupted; restarting browser", "error", renderErr)
		if err := pool.Restart(); err != nil {
			logging.Error("Chrome restart failed", "error", err)
		}
	}
	return pdf, renderErr
}

// renderWithChrome starts a throwaway browser with its own profile for a single render.
func renderWithChrome(ctx context.Context, html string, opts domain.RenderOptions, cfg config.Config) ([]byte, error) {
	tmpDir, err := os.MkdirTemp("", "chromedata-*")
	if err != nil {
		return nil, fmt.Errorf("cannot create temp profile dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocatorOptions(cfg, tmpDir)...)
	defer cancelAlloc()
	chromeCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	chromeCtx, cancelTimeout := context.WithTimeout(chromeCtx, cfg.RenderTimeout())
	defer cancelTimeout()

	return renderInTab(chromeCtx, html, opts)
}

// renderInTab loads html into the tab behind ctx and prints it.
func renderInTab(ctx context.Context, html string, opts domain.RenderOptions) ([]byte, error) {
	var pdf []byte
	err := chromedp.Run(ctx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frame, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frame.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return waitForRenderReady(ctx, settleDelay)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = printParams(opts).Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, err
	}
	return pdf, nil
}

// waitForRenderReady waits for web fonts and then lets layout settle for d.
func waitForRenderReady(ctx context.Context, d time.Duration) error {
	var loaded bool
	err := chromedp.Evaluate(`document.fonts ? document.fonts.ready.then(() => true) : true`, &loaded,
		func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}).Do(ctx)
	if err != nil {
		return err
	}
	return settle(ctx, d)
}

func settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// printParams maps render options onto Chrome's print parameters. Sizes are in inches.
func printParams(opts domain.RenderOptions) *page.PrintToPDFParams {
	width, height := opts.PaperSize()
	m := opts.Margins.WithDefaults()
	scale := opts.Scale
	if scale <= 0 {
		scale = domain.DefaultScale
	}

	p := page.PrintToPDF().
		WithPrintBackground(opts.PrintBackground).
		WithLandscape(opts.Landscape).
		WithScale(scale).
		WithPaperWidth(width).
		WithPaperHeight(height).
		WithMarginTop(m.Top.Inches()).
		WithMarginBottom(m.Bottom.Inches()).
		WithMarginLeft(m.Left.Inches()).
		WithMarginRight(m.Right.Inches())
	if opts.DisplayHeaderFooter {
		p = p.WithDisplayHeaderFooter(true).
			WithHeaderTemplate(opts.HeaderTemplate).
			WithFooterTemplate(opts.FooterTemplate)
	}
	return p
}
