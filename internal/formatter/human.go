package formatter

import (
	"fmt"
	"math"
)

// FormatDuration renders seconds as m:ss or h:mm:ss.
func FormatDuration(seconds float64) string {
	if seconds <= 0 || math.IsNaN(seconds) {
		return "0:00"
	}
	total := int(math.Round(seconds))
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// FormatBytes renders n with a binary unit.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit && exp < 4; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTP"[exp])
}

// FormatSpeed renders a bytes-per-second rate, or "" when unknown.
func FormatSpeed(bps float64) string {
	if bps <= 0 {
		return ""
	}
	return FormatBytes(int64(bps)) + "/s"
}

// FormatPercent renders a 0..1 fraction.
func FormatPercent(f float64) string {
	return fmt.Sprintf("%5.1f%%", math.Max(0, math.Min(1, f))*100)
}
