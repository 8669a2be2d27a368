// Package adb drives an Android device through the adb command line tool.
package adb

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/vidpilot/api/schemas"
	"github.com/xkilldash9x/vidpilot/internal/config"
)

// Runner executes a command and returns its standard output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

var keyCodes = map[schemas.KeyEvent]string{
	schemas.KeyBack:      "KEYCODE_BACK",
	schemas.KeyHome:      "KEYCODE_HOME",
	schemas.KeyPlayPause: "KEYCODE_MEDIA_PLAY_PAUSE",
	schemas.KeySpace:     "KEYCODE_SPACE",
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n")

// Device is an Android device reachable over adb.
type Device struct {
	path       string
	serial     string
	resolution schemas.Resolution
	runner     Runner
	logger     *zap.Logger
}

// Option configures a Device.
type Option func(*Device)

// WithRunner replaces the command runner.
func WithRunner(r Runner) Option {
	return func(d *Device) { d.runner = r }
}

// New creates a device handle. It does not contact the device.
func New(cfg config.ADBConfig, res schemas.Resolution, logger *zap.Logger, opts ...Option) *Device {
	if logger == nil {
		logger = zap.NewNop()
	}
	path := cfg.Path
	if path == "" {
		path = "adb"
	}
	d := &Device{
		path:       path,
		serial:     cfg.Serial,
		resolution: res,
		runner:     ExecRunner{},
		logger:     logger.Named("adb"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Resolution is the pixel size taps are scaled to.
func (d *Device) Resolution() schemas.Resolution { return d.resolution }

// SetResolution overrides the pixel size, typically with DisplaySize.
func (d *Device) SetResolution(res schemas.Resolution) { d.resolution = res }

func (d *Device) run(ctx context.Context, args ...string) ([]byte, error) {
	if d.serial != "" {
		args = append([]string{"-s", d.serial}, args...)
	}
	return d.runner.Run(ctx, d.path, args...)
}

func (d *Device) shell(ctx context.Context, args ...string) ([]byte, error) {
	return d.run(ctx, append([]string{"shell"}, args...)...)
}

func (d *Device) Tap(ctx context.Context, p schemas.Point) error {
	x, y := p.ToDevice(d.resolution)
	_, err := d.shell(ctx, "input", "tap", strconv.Itoa(x), strconv.Itoa(y))
	return err
}

// Swipe drags between two points over dur. Equal endpoints make a long press,
// which is how the play/pause toggle is pressed.
func (d *Device) Swipe(ctx context.Context, from, to schemas.Point, dur time.Duration) error {
	x1, y1 := from.ToDevice(d.resolution)
	x2, y2 := to.ToDevice(d.resolution)
	_, err := d.shell(ctx, "input", "swipe",
		strconv.Itoa(x1), strconv.Itoa(y1), strconv.Itoa(x2), strconv.Itoa(y2),
		strconv.FormatInt(dur.Milliseconds(), 10))
	return err
}

func (d *Device) Key(ctx context.Context, key schemas.KeyEvent) error {
	code, ok := keyCodes[key]
	if !ok {
		return fmt.Errorf("unsupported key %q", key)
	}
	_, err := d.shell(ctx, "input", "keyevent", code)
	return err
}

// Capture grabs the screen as PNG.
func (d *Device) Capture(ctx context.Context) (schemas.Screenshot, error) {
	data, err := d.run(ctx, "exec-out", "screencap", "-p")
	if err != nil {
		return schemas.Screenshot{}, fmt.Errorf("screencap failed: %w", err)
	}
	if !bytes.HasPrefix(data, pngHeader) {
		return schemas.Screenshot{}, fmt.Errorf("screencap returned %d bytes that are not a PNG", len(data))
	}
	return schemas.Screenshot{
		Data:       data,
		MIMEType:   "image/png",
		Resolution: d.resolution,
		CapturedAt: time.Now(),
	}, nil
}

var sizeRegex = regexp.MustCompile(`(Physical|Override) size:\s*(\d+)x(\d+)`)

// DisplaySize reads the display size from `wm size`. An override size wins
// over the physical one.
func (d *Device) DisplaySize(ctx context.Context) (schemas.Resolution, error) {
	out, err := d.shell(ctx, "wm", "size")
	if err != nil {
		return schemas.Resolution{}, err
	}
	return parseDisplaySize(string(out))
}

func parseDisplaySize(out string) (schemas.Resolution, error) {
	var res schemas.Resolution
	for _, m := range sizeRegex.FindAllStringSubmatch(out, -1) {
		w, _ := strconv.Atoi(m[2])
		h, _ := strconv.Atoi(m[3])
		if m[1] == "Override" || !res.Valid() {
			res = schemas.Resolution{Width: w, Height: h}
		}
	}
	if !res.Valid() {
		return res, fmt.Errorf("could not read display size from %q", strings.TrimSpace(out))
	}
	return res, nil
}

// Close is a no-op; adb holds no session.
func (d *Device) Close() error { return nil }
