package services

import (
	"fmt"
	"time"
)

const dateLayout = "Jan 2, 2006"

// ActivityStatus is the coarse label shown in the administrator's user list
func ActivityStatus(now time.Time, last *time.Time) string {
	if last == nil {
		return "Never active"
	}
	diff := now.Sub(*last)
	switch {
	case diff < time.Hour:
		return "Active now"
	case diff < 24*time.Hour:
		return "Today"
	case diff < 7*24*time.Hour:
		return plural(int(diff/(24*time.Hour)), "day") + " ago"
	default:
		return last.Format(dateLayout)
	}
}

// LastSeen is the finer label shown to students in the locator
func LastSeen(now time.Time, last *time.Time) string {
	if last == nil {
		return "Never active"
	}
	diff := now.Sub(*last)
	switch {
	case diff < time.Minute:
		return "Just now"
	case diff < time.Hour:
		return plural(int(diff/time.Minute), "minute") + " ago"
	case diff < 24*time.Hour:
		return plural(int(diff/time.Hour), "hour") + " ago"
	case diff < 7*24*time.Hour:
		return plural(int(diff/(24*time.Hour)), "day") + " ago"
	default:
		return last.Format(dateLayout)
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
