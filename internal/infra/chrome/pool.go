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

	"nbconvert/internal/config"
	"nbconvert/internal/infra/logging"
)

// ErrPoolClosed is returned by Acquire after Close.
var ErrPoolClosed = errors.New("chrome pool closed")

// Pool shares one browser process between a fixed number of tabs.
type Pool struct {
	cfg config.Config

	mu            sync.Mutex
	sem           chan struct{}
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	profileDir    string
	closed        bool
	restarts      int
	lastRestart   time.Time
}

// Tab is a browser tab checked out of the pool.
type Tab struct {
	Ctx    context.Context
	cancel context.CancelFunc
}

// Stats is a snapshot of the pool state.
type Stats struct {
	Enabled      bool      `json:"enabled"`
	Capacity     int       `json:"capacity"`
	Idle         int       `json:"idle"`
	InUse        int       `json:"in_use"`
	PoolSizeConf int       `json:"pool_size_conf"`
	ProfileDir   string    `json:"profile_dir"`
	TimeoutSecs  int       `json:"timeout_secs"`
	Restarts     int       `json:"restarts"`
	LastRestart  time.Time `json:"last_restart,omitempty"`
}

// NewPool prepares a browser with cfg.PDF.ChromePoolSize tabs. The browser
// process itself starts with the first render.
func NewPool(cfg config.Config) (*Pool, error) {
	if cfg.PDF.ChromePoolSize <= 0 {
		return nil, fmt.Errorf("chrome pool disabled")
	}
	p := &Pool{
		cfg: cfg,
		sem: make(chan struct{}, cfg.PDF.ChromePoolSize),
	}
	for i := 0; i < cfg.PDF.ChromePoolSize; i++ {
		p.sem <- struct{}{}
	}
	if err := p.start(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Pool) start() error {
	dir, err := createProfileDir(p.cfg)
	if err != nil {
		return err
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(p.cfg, dir)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	p.profileDir = dir
	p.allocCancel = allocCancel
	p.browserCtx = browserCtx
	p.browserCancel = browserCancel
	return nil
}

func (p *Pool) stop() {
	if p.browserCancel != nil {
		p.browserCancel()
	}
	if p.allocCancel != nil {
		p.allocCancel()
	}
	if p.profileDir != "" {
		_ = os.RemoveAll(p.profileDir)
	}
	p.browserCtx, p.browserCancel, p.allocCancel = nil, nil, nil
}

// Acquire waits for a free tab.
func (p *Pool) Acquire(ctx context.Context) (*Tab, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed || p.sem == nil {
		return nil, ErrPoolClosed
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

// Release closes the tab and frees its slot.
func (p *Pool) Release(tab *Tab, renderErr error) {
	if tab != nil && tab.cancel != nil {
		tab.cancel()
	}
	if renderErr != nil {
		logging.Debug("Chrome tab released after error", "error", renderErr)
	}
	p.sem <- struct{}{}
}

// Restart replaces the browser process, e.g. after it crashed.
func (p *Pool) Restart() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}
	p.stop()
	if err := p.start(); err != nil {
		return err
	}
	p.restarts++
	p.lastRestart = time.Now()
	return nil
}

// Close shuts the browser down. It is safe to call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.stop()
}

// Stats reports pool capacity and usage.
func (p *Pool) Stats(timeoutSecs int) Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Stats{
		Enabled:      !p.closed && p.sem != nil,
		PoolSizeConf: p.cfg.PDF.ChromePoolSize,
		ProfileDir:   p.profileDir,
		TimeoutSecs:  timeoutSecs,
		Restarts:     p.restarts,
		LastRestart:  p.lastRestart,
	}
	if s.Enabled {
		s.Capacity = cap(p.sem)
		s.Idle = len(p.sem)
		s.InUse = s.Capacity - s.Idle
	}
	return s
}

func createProfileDir(cfg config.Config) (string, error) {
	base := cfg.PDF.UserDataDir
	if base == "" {
		base = os.TempDir()
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return "", fmt.Errorf("cannot create chrome profile base: %w", err)
	}
	dir, err := os.MkdirTemp(base, "chromedata-*")
	if err != nil {
		return "", fmt.Errorf("cannot create chrome profile dir: %w", err)
	}
	return dir, nil
}

func allocatorOptions(cfg config.Config, profileDir string) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(profileDir),
		// Force software rendering and avoid Vulkan/ANGLE issues in minimal container environments.
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

// IsSessionInterrupted reports errors caused by a dead or cancelled browser
// session rather than by the document.
func IsSessionInterrupted(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"target closed", "session closed", "websocket", "browser closed", "connection reset"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
