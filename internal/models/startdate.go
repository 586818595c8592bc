package models

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

var startDateLayouts = []string{
	"02.01.2006",
	"02.01.06",
	"2006-01-02",
	"06-01-02",
	"2006/01/02",
	"06/01/02",
}

// ParseStartDate resolves the fetch start date. Accepts "now" (or empty),
// "weekend" (the coming Saturday) and the layouts above. The result is
// midnight UTC.
func ParseStartDate(s string, now time.Time) (time.Time, error) {
	today := DateOnly(now.UTC())
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case "", "now":
		return today, nil
	case "weekend":
		days := (int(time.Saturday) - int(today.Weekday()) + 7) % 7
		return today.AddDate(0, 0, days), nil
	default:
		for _, layout := range startDateLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return DateOnly(t), nil
			}
		}
		return time.Time{}, errors.Errorf("unsupported date format: %q (supported: dd.mm.yyyy, dd.mm.yy, yyyy-mm-dd, yy-mm-dd, yyyy/mm/dd, yy/mm/dd, now, weekend)", s)
	}
}
