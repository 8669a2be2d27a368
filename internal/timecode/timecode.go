// Package timecode converts between player clock strings and durations.
package timecode

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xkilldash9x/vidpilot/api/schemas"
)

// maxComponent keeps any accepted value well inside time.Duration's range.
const maxComponent = 999_999

// Parse accepts "HH:MM:SS", "MM:SS" or a bare count of seconds. Any other shape
// is a ParseError; nothing is ever coerced to zero.
func Parse(s string) (time.Duration, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return 0, parseErr(s, "empty timestamp")
	}

	parts := strings.Split(raw, ":")
	if len(parts) > 3 {
		return 0, parseErr(s, "too many components")
	}

	values := make([]int, len(parts))
	for i, p := range parts {
		v, err := component(p)
		if err != nil {
			return 0, parseErr(s, err.Error())
		}
		values[i] = v
	}

	var h, m, sec int
	switch len(values) {
	case 1:
		sec = values[0]
	case 2:
		m, sec = values[0], values[1]
		if sec > 59 {
			return 0, parseErr(s, "seconds out of range")
		}
	case 3:
		h, m, sec = values[0], values[1], values[2]
		if m > 59 || sec > 59 {
			return 0, parseErr(s, "minutes or seconds out of range")
		}
	}

	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second, nil
}

// component parses one unsigned decimal field.
func component(p string) (int, error) {
	if p == "" {
		return 0, fmt.Errorf("empty component")
	}
	for _, r := range p {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("non-digit %q", r)
		}
	}
	v, err := strconv.Atoi(p)
	if err != nil {
		return 0, fmt.Errorf("component %q: %w", p, err)
	}
	if v > maxComponent {
		return 0, fmt.Errorf("component %q too large", p)
	}
	return v, nil
}

func parseErr(input, reason string) error {
	return schemas.NewError(schemas.KindParse, "parse_timestamp", "invalid timestamp %q: %s", input, reason)
}

// Format renders d as HH:MM:SS, truncated to whole seconds.
func Format(d time.Duration) string {
	if d < 0 {
		return "-" + Format(-d)
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

// Seconds truncates d to whole seconds.
func Seconds(d time.Duration) time.Duration {
	return d.Truncate(time.Second)
}
