package chrome

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"nbconvert/internal/config"
	"nbconvert/internal/infra/logging"
)

// Renderer prints HTML documents to PDF with headless Chrome.
type Renderer struct {
	cfg  config.Config
	pool *Pool
}

// NewRenderer returns a renderer backed by a tab pool when
// pdf.chrome_pool_size is positive, or starting one browser per render
// otherwise.
func NewRenderer(cfg config.Config) (*Renderer, error) {
	r := &Renderer{cfg: cfg}
	if cfg.PDF.ChromePoolSize > 0 {
		pool, err := NewPool(cfg)
		if err != nil {
			return nil, err
		}
		r.pool = pool
	}
	return r, nil
}

func (r *Renderer) timeout() time.Duration {
	return time.Duration(r.cfg.PDF.TimeoutSecs) * time.Second
}

// Render prints html to PDF.
func (r *Renderer) Render(ctx context.Context, html string) ([]byte, error) {
	if r.pool == nil {
		return r.renderWithNewBrowser(ctx, html)
	}

	runOnce := func() ([]byte, error) {
		acquireCtx, acquireCancel := context.WithTimeout(ctx, 5*time.Second)
		defer acquireCancel()

		tab, err := r.pool.Acquire(acquireCtx)
		if err != nil {
			return nil, err
		}

		tabCtx, cancel := context.WithTimeout(tab.Ctx, r.timeout())
		stop := context.AfterFunc(ctx, cancel)
		pdf, renderErr := renderInTab(tabCtx, html, r.cfg.PDF.Paper, r.cfg.PDF.Margin)
		stop()
		cancel()

		r.pool.Release(tab, renderErr)
		return pdf, renderErr
	}

	pdf, err := runOnce()
	if err != nil && ctx.Err() == nil && IsSessionInterrupted(err) {
		logging.Warn("Chrome session interrupted; restarting pool and retrying once", "error", err)
		if rerr := r.pool.Restart(); rerr != nil {
			return nil, rerr
		}
		return runOnce()
	}
	return pdf, err
}

func (r *Renderer) renderWithNewBrowser(ctx context.Context, html string) ([]byte, error) {
	dir, err := createProfileDir(r.cfg)
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocatorOptions(r.cfg, dir)...)
	defer allocCancel()
	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, r.timeout())
	defer cancel()

	return renderInTab(browserCtx, html, r.cfg.PDF.Paper, r.cfg.PDF.Margin)
}

// Stats reports the tab pool, or a disabled snapshot without one.
func (r *Renderer) Stats() Stats {
	if r.pool == nil {
		return Stats{PoolSizeConf: r.cfg.PDF.ChromePoolSize, TimeoutSecs: r.cfg.PDF.TimeoutSecs}
	}
	return r.pool.Stats(r.cfg.PDF.TimeoutSecs)
}

// Close releases the browser.
func (r *Renderer) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}

// blockedURLs covers every scheme a rendered notebook could fetch from.
// data: URIs are not matched.
var blockedURLs = []string{"http://*", "https://*", "ws://*", "wss://*", "ftp://*", "file://*"}

// renderInTab loads html into the tab of ctx and prints it.
func renderInTab(ctx context.Context, html string, paper config.PaperSize, margin float64) ([]byte, error) {
	var pdf []byte
	err := chromedp.Run(ctx,
		network.Enable(),
		network.SetBlockedURLS(blockedURLs),
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
			var err error
			pdf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(paper.Width).
				WithPaperHeight(paper.Height).
				WithMarginTop(margin).
				WithMarginBottom(margin).
				WithMarginLeft(margin).
				WithMarginRight(margin).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("print to pdf: %w", err)
	}
	return pdf, nil
}
