package routekit

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"
)

// DateFormat pairs a display pattern ("YYYYMMDD", "MM_DD_YY", "MM DD YYYY")
// with the strftime pattern that parses it ("%Y%m%d", "%m_%d_%y", "%m %d %Y").
//
// The display pattern decides how a date is located inside a name: YYYY is
// four digits, YY, MM and DD are two digits, anything else must appear
// literally. The parse pattern decides how the located text becomes a date.
// Field widths come from the pattern alone, so a YY pattern never reads
// four digits even when they are there.
type DateFormat struct {
	Display string
	Parse   string

	layout string
	search *regexp.Regexp
}

// referenceDate has two-digit month and day so every field renders at its
// full width.
var referenceDate = time.Date(2031, time.December, 28, 0, 0, 0, 0, time.UTC)

// NewDateFormat compiles a display/parse pair. It fails when either pattern
// is empty, when the parse pattern uses a directive Go cannot express, or
// when a date rendered with the parse pattern would not be found by the
// display pattern.
func NewDateFormat(display, parse string) (*DateFormat, error) {
	if display == "" || parse == "" {
		return nil, fmt.Errorf("date format: display and parse patterns are required")
	}

	expr, err := displayExpr(display)
	if err != nil {
		return nil, err
	}

	layout, err := strftime.Layout(parse)
	if err != nil {
		return nil, fmt.Errorf("date format %q: %w", parse, err)
	}

	f := &DateFormat{
		Display: display,
		Parse:   parse,
		layout:  layout,
		search:  regexp.MustCompile(expr),
	}

	full := regexp.MustCompile("^" + expr + "$")
	if sample := referenceDate.Format(layout); !full.MatchString(sample) {
		return nil, fmt.Errorf("%w: %q renders %q, %q expects %s", ErrDateGrammar, parse, sample, display, expr)
	}

	return f, nil
}

// displayExpr turns a display pattern into a regular expression.
func displayExpr(display string) (string, error) {
	var b strings.Builder
	fields := 0
	for i := 0; i < len(display); {
		rest := display[i:]
		switch {
		case strings.HasPrefix(rest, "YYYY"):
			b.WriteString(`\d{4}`)
			i += 4
			fields++
		case strings.HasPrefix(rest, "YY"), strings.HasPrefix(rest, "MM"), strings.HasPrefix(rest, "DD"):
			b.WriteString(`\d{2}`)
			i += 2
			fields++
		default:
			b.WriteString(regexp.QuoteMeta(display[i : i+1]))
			i++
		}
	}
	if fields == 0 {
		return "", fmt.Errorf("date format %q: no YYYY, YY, MM or DD field", display)
	}
	return b.String(), nil
}

// Locate returns the date embedded in name and the byte offsets of the text
// it was read from. ok is false when the first candidate does not parse or
// there is no candidate at all.
func (f *DateFormat) Locate(name string) (date time.Time, loc []int, ok bool) {
	loc = f.search.FindStringIndex(name)
	if loc == nil {
		return time.Time{}, nil, false
	}
	date, err := time.Parse(f.layout, name[loc[0]:loc[1]])
	if err != nil {
		return time.Time{}, nil, false
	}
	return date, loc, true
}

// Extract returns the date embedded in name.
func (f *DateFormat) Extract(name string) (time.Time, bool) {
	date, _, ok := f.Locate(name)
	return date, ok
}

// Format renders t with the parse pattern, the inverse of Extract.
func (f *DateFormat) Format(t time.Time) string {
	return t.Format(f.layout)
}

func (f *DateFormat) String() string {
	return f.Display + " (" + f.Parse + ")"
}
