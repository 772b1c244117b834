package export

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/certcanvas/certcanvas/backend-go/internal/document"
	"github.com/certcanvas/certcanvas/backend-go/internal/placeholder"
)

const (
	defaultChromeTimeout = 60 * time.Second
	imageWaitMillis      = 10000
	cssPixelsPerInch     = 96.0
)

// waitForImages resolves once every <img> has loaded or failed, giving up
// on stragglers after imageWaitMillis.
const waitForImages = `Promise.race([
	Promise.all(Array.from(document.images).map(img => img.complete ? null :
		new Promise(resolve => { img.onload = resolve; img.onerror = resolve; }))),
	new Promise(resolve => setTimeout(resolve, %d)),
]).then(() => true)`

type ChromeOptions struct {
	// RemoteURL is a DevTools websocket URL of a running browser. Empty
	// launches a local headless Chrome per export.
	RemoteURL  string
	BaseURL    string
	QRFallback string
	Timeout    time.Duration
}

// ChromeRenderer prints certificates through a headless browser at the
// exact canvas size.
type ChromeRenderer struct {
	opts ChromeOptions
}

func NewChromeRenderer(opts ChromeOptions) *ChromeRenderer {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultChromeTimeout
	}
	return &ChromeRenderer{opts: opts}
}

func (c *ChromeRenderer) allocator(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opts.RemoteURL != "" {
		return chromedp.NewRemoteAllocator(ctx, c.opts.RemoteURL)
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
	)
	return chromedp.NewExecAllocator(ctx, opts...)
}

func (c *ChromeRenderer) RenderPDF(ctx context.Context, doc *document.Document, bindings placeholder.Bindings) ([]byte, error) {
	html, err := BuildHTML(doc, bindings, HTMLOptions{BaseURL: c.opts.BaseURL, QRFallback: c.opts.QRFallback})
	if err != nil {
		return nil, err
	}

	allocCtx, allocCancel := c.allocator(ctx)
	defer allocCancel()
	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()
	timeoutCtx, cancel := context.WithTimeout(taskCtx, c.opts.Timeout)
	defer cancel()

	width, height := doc.Canvas.Width, doc.Canvas.Height
	var (
		pdf    []byte
		loaded bool
	)
	err = chromedp.Run(timeoutCtx,
		emulation.SetDeviceMetricsOverride(int64(width), int64(height), 1, false),
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.Evaluate(fmt.Sprintf(waitForImages, imageWaitMillis), &loaded,
			func(p *runtime.EvaluateParams) *runtime.EvaluateParams { return p.WithAwaitPromise(true) }),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPreferCSSPageSize(true).
				WithPaperWidth(float64(width) / cssPixelsPerInch).
				WithPaperHeight(float64(height) / cssPixelsPerInch).
				WithMarginTop(0).
				WithMarginBottom(0).
				WithMarginLeft(0).
				WithMarginRight(0).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("chrome print: %w", err)
	}
	return pdf, nil
}
