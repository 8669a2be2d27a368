// Package cdp drives a web video player inside a mobile-emulated Chrome over
// the DevTools protocol.
package cdp

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/xkilldash9x/vidpilot/api/schemas"
	"github.com/xkilldash9x/vidpilot/internal/config"
)

// moveInterval is the spacing of touchMove events during a drag.
const moveInterval = 50 * time.Millisecond

// Device is one browser tab emulating a touch phone.
type Device struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	viewport    viewport
	logger      *zap.Logger
}

// viewport is the CSS pixel size of the emulated screen.
type viewport struct {
	width, height int64
	scale         float64
}

func newViewport(res schemas.Resolution, scale float64) viewport {
	if scale <= 0 {
		scale = 1
	}
	return viewport{
		width:  int64(math.Round(float64(res.Width) / scale)),
		height: int64(math.Round(float64(res.Height) / scale)),
		scale:  scale,
	}
}

// touchPoint converts a normalized point into CSS pixels.
func (v viewport) touchPoint(p schemas.Point) *input.TouchPoint {
	x, y := p.ToDevice(schemas.Resolution{Width: int(v.width), Height: int(v.height)})
	return &input.TouchPoint{X: float64(x), Y: float64(y)}
}

// New launches Chrome (or attaches to cfg.RemoteURL), emulates a mobile
// viewport with touch and opens the player page.
func New(ctx context.Context, cfg config.CDPConfig, res schemas.Resolution, logger *zap.Logger) (*Device, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("cdp")

	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if cfg.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, cfg.RemoteURL)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, allocatorOptions(cfg)...)
	}

	browserCtx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(logger.Sugar().Debugf))
	d := &Device{
		ctx:         browserCtx,
		cancel:      cancel,
		allocCancel: allocCancel,
		viewport:    newViewport(res, cfg.ScaleFactor),
		logger:      logger,
	}

	err := chromedp.Run(browserCtx,
		chromedp.EmulateViewport(d.viewport.width, d.viewport.height,
			chromedp.EmulateScale(d.viewport.scale),
			chromedp.EmulatePortrait,
			chromedp.EmulateMobile,
			chromedp.EmulateTouch),
		chromedp.Navigate(cfg.URL),
	)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to open player page %s: %w", cfg.URL, err)
	}
	logger.Info("Browser player ready",
		zap.String("url", cfg.URL),
		zap.Int64("width", d.viewport.width),
		zap.Int64("height", d.viewport.height))
	return d, nil
}

func allocatorOptions(cfg config.CDPConfig) []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("autoplay-policy", "no-user-gesture-required"),
	}
	if cfg.Headless {
		opts = append(opts, chromedp.Headless)
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	return opts
}

// run executes actions in the tab, aborting when either the tab or ctx ends.
func (d *Device) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(d.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (d *Device) Tap(ctx context.Context, p schemas.Point) error {
	return d.run(ctx, tapActions(d.viewport, p)...)
}

func (d *Device) Swipe(ctx context.Context, from, to schemas.Point, dur time.Duration) error {
	return d.run(ctx, swipeActions(d.viewport, from, to, dur)...)
}

func tapActions(v viewport, p schemas.Point) []chromedp.Action {
	return []chromedp.Action{
		input.DispatchTouchEvent(input.TouchStart, []*input.TouchPoint{v.touchPoint(p)}),
		input.DispatchTouchEvent(input.TouchEnd, []*input.TouchPoint{}),
	}
}

// swipeActions builds a drag from one point to another. Equal endpoints
// become a press held for dur.
func swipeActions(v viewport, from, to schemas.Point, dur time.Duration) []chromedp.Action {
	actions := []chromedp.Action{
		input.DispatchTouchEvent(input.TouchStart, []*input.TouchPoint{v.touchPoint(from)}),
	}
	if from == to {
		actions = append(actions, chromedp.Sleep(dur))
	} else {
		steps := int(dur / moveInterval)
		if steps < 1 {
			steps = 1
		}
		for i := 1; i <= steps; i++ {
			f := float64(i) / float64(steps)
			p := schemas.Point{X: from.X + f*(to.X-from.X), Y: from.Y + f*(to.Y-from.Y)}
			actions = append(actions,
				chromedp.Sleep(dur/time.Duration(steps)),
				input.DispatchTouchEvent(input.TouchMove, []*input.TouchPoint{v.touchPoint(p)}))
		}
	}
	return append(actions, input.DispatchTouchEvent(input.TouchEnd, []*input.TouchPoint{}))
}

func (d *Device) Key(ctx context.Context, key schemas.KeyEvent) error {
	switch key {
	case schemas.KeyPlayPause:
		return d.run(ctx, chromedp.KeyEvent(kb.MediaPlayPause))
	case schemas.KeySpace:
		return d.run(ctx, chromedp.KeyEvent(" "))
	case schemas.KeyBack:
		return d.run(ctx, chromedp.NavigateBack())
	default:
		return fmt.Errorf("unsupported key %q", key)
	}
}

// Capture screenshots the viewport as PNG.
func (d *Device) Capture(ctx context.Context) (schemas.Screenshot, error) {
	var buf []byte
	if err := d.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return schemas.Screenshot{}, fmt.Errorf("screenshot failed: %w", err)
	}
	return schemas.Screenshot{
		Data:     buf,
		MIMEType: "image/png",
		Resolution: schemas.Resolution{
			Width:  int(math.Round(float64(d.viewport.width) * d.viewport.scale)),
			Height: int(math.Round(float64(d.viewport.height) * d.viewport.scale)),
		},
		CapturedAt: time.Now(),
	}, nil
}

// Close shuts the tab and, for a launched browser, the browser process.
func (d *Device) Close() error {
	err := chromedp.Cancel(d.ctx)
	d.cancel()
	d.allocCancel()
	if err != nil && err != context.Canceled {
		return err
	}
	return nil
}
