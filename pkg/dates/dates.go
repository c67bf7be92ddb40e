// Package dates turns user date expressions into the YYYY-MM-DD strings
// Notion date filters expect.
package dates

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// Layout is the date-only form Notion uses for date properties.
const Layout = "2006-01-02"

var parser = newParser()

func newParser() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

// Resolve interprets expr relative to now. An empty expression means today,
// an ISO date is taken as is, anything else goes through the natural
// language parser ("tomorrow", "next friday").
func Resolve(expr string, now time.Time) (string, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" || strings.EqualFold(expr, "today") {
		return now.Format(Layout), nil
	}
	if t, err := time.ParseInLocation(Layout, expr, now.Location()); err == nil {
		return t.Format(Layout), nil
	}

	r, err := parser.Parse(expr, now)
	if err != nil {
		return "", fmt.Errorf("could not parse date %q: %w", expr, err)
	}
	if r == nil {
		return "", fmt.Errorf("could not parse date %q", expr)
	}
	return r.Time.Format(Layout), nil
}

// Before reports whether ISO date a falls strictly before ISO date b.
// Values that do not start with a YYYY-MM-DD date never compare as before.
func Before(a, b string) bool {
	ta, err := Parse(a)
	if err != nil {
		return false
	}
	tb, err := Parse(b)
	if err != nil {
		return false
	}
	return ta.Before(tb)
}

// Parse reads the date part of an ISO date or datetime.
func Parse(s string) (time.Time, error) {
	return time.Parse(Layout, prefix(s))
}

// prefix trims a datetime down to its date part.
func prefix(s string) string {
	if len(s) > len(Layout) {
		return s[:len(Layout)]
	}
	return s
}
