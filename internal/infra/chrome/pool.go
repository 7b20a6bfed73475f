// Package chrome drives headless Chrome through chromedp. A Pool shares one browser between
// requests and hands out a bounded number of tabs.
package chrome

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"pdfservice/internal/config"
	"pdfservice/internal/infra/logging"
)

// ErrPoolClosed is returned by pool operations after Close.
var ErrPoolClosed = errors.New("chrome pool is closed")

// Tab is one browser tab checked out of a Pool.
type Tab struct {
	Ctx    context.Context
	cancel context.CancelFunc
}

// Stats is a point-in-time view of a Pool.
type Stats struct {
	Enabled      bool      `json:"enabled"`
	Capacity     int       `json:"capacity"`
	Idle         int       `json:"idle"`
	InUse        int       `json:"in_use"`
	PoolSizeConf int       `json:"pool_size_conf"`
	ProfileDir   string    `json:"profile_dir"`
	TimeoutSecs  int       `json:"timeout_secs"`
	Restarts     int       `json:"restarts"`
	LastRestart  time.Time `json:"last_restart,omitzero"`
}

// Pool owns one Chrome process and a semaphore of tab slots.
// The browser is launched by Warm, not by NewPool.
type Pool struct {
	mu     sync.Mutex
	warmMu sync.Mutex

	cfg config.Config
	sem chan struct{}

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	started       bool

	profileDir  string
	closed      bool
	restarts    int
	lastRestart time.Time
}

// NewPool prepares a pool of cfg.PDF.ChromePoolSize tabs with a fresh profile directory.
func NewPool(cfg config.Config) (*Pool, error) {
	size := cfg.PDF.ChromePoolSize
	if size <= 0 {
		return nil, errors.New("chrome pool disabled: chrome_pool_size must be positive")
	}

	dir, err := createProfileDir(cfg)
	if err != nil {
		return nil, err
	}

	p := &Pool{
		cfg:        cfg,
		sem:        make(chan struct{}, size),
		profileDir: dir,
	}
	for i := 0; i < size; i++ {
		p.sem <- struct{}{}
	}
	p.newBrowser()

	logging.Info("Chrome pool ready", "size", size, "profile_dir", dir)
	return p, nil
}

// newBrowser sets up allocator and browser contexts. Callers hold p.mu.
func (p *Pool) newBrowser() {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(p.cfg, p.profileDir)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	p.allocCancel = allocCancel
	p.browserCtx = browserCtx
	p.browserCancel = browserCancel
	p.started = false
}

// stopBrowser cancels the browser and allocator contexts. Callers hold p.mu.
func (p *Pool) stopBrowser() {
	if p.browserCancel != nil {
		p.browserCancel()
	}
	if p.allocCancel != nil {
		p.allocCancel()
	}
	p.browserCancel, p.allocCancel = nil, nil
	p.started = false
}

// Warm launches the browser if it is not running yet. Tabs created before Warm would each
// start their own browser.
func (p *Pool) Warm(ctx context.Context) error {
	p.warmMu.Lock()
	defer p.warmMu.Unlock()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	if p.started {
		p.mu.Unlock()
		return nil
	}
	browserCtx := p.browserCtx
	p.mu.Unlock()

	errc := make(chan error, 1)
	go func() { errc <- chromedp.Run(browserCtx) }()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("start chrome: %w", err)
		}
	case <-ctx.Done():
		return fmt.Errorf("start chrome: %w", ctx.Err())
	}

	p.mu.Lock()
	if p.browserCtx == browserCtx {
		p.started = true
	}
	p.mu.Unlock()
	return nil
}

// Acquire waits for a free tab slot and opens a tab in the shared browser.
func (p *Pool) Acquire(ctx context.Context) (*Tab, error) {
	if p.isClosed() {
		return nil, ErrPoolClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	select {
	case <-p.sem:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		p.sem <- struct{}{}
		return nil, ErrPoolClosed
	}
	tabCtx, cancel := chromedp.NewContext(p.browserCtx)
	return &Tab{Ctx: tabCtx, cancel: cancel}, nil
}

// Release closes the tab and frees its slot. renderErr is the outcome of the work done in the tab.
func (p *Pool) Release(tab *Tab, renderErr error) {
	if tab == nil {
		return
	}
	if tab.cancel != nil {
		tab.cancel()
	}
	if renderErr != nil {
		logging.Debug("Chrome tab released after error", "error", renderErr)
	}
	p.sem <- struct{}{}
}

// Restart replaces the browser with a fresh process and profile directory. Tabs still checked
// out keep their slots and fail on their next command.
func (p *Pool) Restart() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}

	p.stopBrowser()
	old := p.profileDir
	dir, err := createProfileDir(p.cfg)
	if err != nil {
		return err
	}
	p.profileDir = dir
	if old != "" {
		if err := os.RemoveAll(old); err != nil {
			logging.Warn("Failed to remove old Chrome profile", "dir", old, "error", err)
		}
	}
	p.newBrowser()
	p.restarts++
	p.lastRestart = time.Now()

	logging.Warn("Chrome pool restarted", "restarts", p.restarts, "profile_dir", dir)
	return nil
}

// Close stops the browser and removes the profile directory. It is safe to call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.stopBrowser()
	if p.profileDir != "" {
		if err := os.RemoveAll(p.profileDir); err != nil {
			logging.Warn("Failed to remove Chrome profile", "dir", p.profileDir, "error", err)
		}
	}
}

// Stats reports pool occupancy. timeoutSecs is echoed for the stats endpoint.
func (p *Pool) Stats(timeoutSecs int) Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	capacity := cap(p.sem)
	idle := len(p.sem)
	return Stats{
		Enabled:      !p.closed,
		Capacity:     capacity,
		Idle:         idle,
		InUse:        capacity - idle,
		PoolSizeConf: p.cfg.PDF.ChromePoolSize,
		ProfileDir:   p.profileDir,
		TimeoutSecs:  timeoutSecs,
		Restarts:     p.restarts,
		LastRestart:  p.lastRestart,
	}
}

func (p *Pool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// createProfileDir makes a unique Chrome user data directory below cfg.PDF.UserDataDir, or
// below the system temp directory when that is empty.
func createProfileDir(cfg config.Config) (string, error) {
	base := cfg.PDF.UserDataDir
	if base == "" {
		base = os.TempDir()
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return "", fmt.Errorf("cannot create chrome profile base %s: %w", base, err)
	}
	dir, err := os.MkdirTemp(base, "chrome-profile-*")
	if err != nil {
		return "", fmt.Errorf("cannot create chrome profile dir: %w", err)
	}
	return dir, nil
}

// allocatorOptions returns the exec allocator flags for headless rendering in containers.
func allocatorOptions(cfg config.Config, profileDir string) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(profileDir),
		// Software rendering; minimal containers have no usable GPU stack.
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-gpu-compositing", true),
		chromedp.Flag("disable-features", "Vulkan,UseSkiaRenderer"),
		chromedp.Flag("use-gl", "swiftshader"),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if cfg.PDF.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.PDF.ChromePath))
	}
	if cfg.PDF.ChromeNoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}
	return opts
}

// IsSessionInterrupted reports whether err means the browser or tab went away underneath a
// render, as opposed to a failure of the page itself.
func IsSessionInterrupted(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, chromedp.ErrInvalidContext) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"target closed", "session closed", "websocket", "connection reset", "broken pipe"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
