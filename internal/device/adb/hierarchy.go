package adb

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/xkilldash9x/vidpilot/api/schemas"
	"github.com/xkilldash9x/vidpilot/internal/config"
)

const dumpPath = "/sdcard/window_dump.xml"

var boundsRegex = regexp.MustCompile(`^\[(\d+),(\d+)\]\[(\d+),(\d+)\]$`)

// Calibrate reads the player's control positions from a UI hierarchy dump.
// Only views whose resource id is configured and present are reported.
func (d *Device) Calibrate(ctx context.Context, ids config.ResourceIDsConfig) (schemas.Extraction, error) {
	if _, err := d.shell(ctx, "uiautomator", "dump", dumpPath); err != nil {
		return schemas.Extraction{}, fmt.Errorf("uiautomator dump failed: %w", err)
	}
	xml, err := d.run(ctx, "exec-out", "cat", dumpPath)
	if err != nil {
		return schemas.Extraction{}, fmt.Errorf("failed to read hierarchy dump: %w", err)
	}
	ext, err := ParseHierarchy(xml, ids, d.resolution)
	if err != nil {
		return schemas.Extraction{}, err
	}
	d.logger.Info("Calibrated from view hierarchy",
		zap.Bool("progress_bar", ext.ProgressBar != nil),
		zap.Bool("play_pause", ext.PlayPause != nil),
		zap.Bool("forward", ext.Forward != nil),
		zap.Bool("backward", ext.Backward != nil))
	return ext, nil
}

// ParseHierarchy maps the bounds of the configured views into normalized
// space. The seek bar becomes a span along its vertical middle; buttons
// become their centers.
func ParseHierarchy(xml []byte, ids config.ResourceIDsConfig, res schemas.Resolution) (schemas.Extraction, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xml); err != nil {
		return schemas.Extraction{}, fmt.Errorf("failed to parse hierarchy dump: %w", err)
	}

	var ext schemas.Extraction
	for _, node := range doc.FindElements("//node") {
		id := node.SelectAttrValue("resource-id", "")
		if id == "" {
			continue
		}
		switch id {
		case ids.SeekBar, ids.PlayPause, ids.Forward, ids.Backward:
		default:
			continue
		}
		x1, y1, x2, y2, err := parseBounds(node.SelectAttrValue("bounds", ""))
		if err != nil {
			return schemas.Extraction{}, fmt.Errorf("view %s: %w", id, err)
		}
		switch id {
		case ids.SeekBar:
			y := (y1 + y2) / 2
			span := schemas.Span{
				Start: schemas.FromDevice(x1, y, res),
				End:   schemas.FromDevice(x2, y, res),
			}
			ext.ProgressBar = &span
		case ids.PlayPause:
			ext.PlayPause = center(x1, y1, x2, y2, res)
		case ids.Forward:
			ext.Forward = center(x1, y1, x2, y2, res)
		case ids.Backward:
			ext.Backward = center(x1, y1, x2, y2, res)
		}
	}
	return ext, nil
}

func parseBounds(s string) (x1, y1, x2, y2 int, err error) {
	m := boundsRegex.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, 0, 0, fmt.Errorf("malformed bounds %q", s)
	}
	v := make([]int, 4)
	for i := range v {
		v[i], _ = strconv.Atoi(m[i+1])
	}
	return v[0], v[1], v[2], v[3], nil
}

func center(x1, y1, x2, y2 int, res schemas.Resolution) *schemas.Point {
	p := schemas.FromDevice((x1+x2)/2, (y1+y2)/2, res)
	return &p
}
