package videos

import (
	"fmt"
	"strconv"
	"time"
)

// FormatDuration renders seconds as m:ss with zero-padded seconds.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// FormatViews renders a view count as 999, 1.5K or 2.3M.
func FormatViews(views int64) string {
	switch {
	case views < 1000:
		if views < 0 {
			views = 0
		}
		return strconv.FormatInt(views, 10)
	case views < 1_000_000:
		return fmt.Sprintf("%.1fK", float64(views)/1000)
	default:
		return fmt.Sprintf("%.1fM", float64(views)/1_000_000)
	}
}

// FormatDate renders the UTC calendar date of t.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}
