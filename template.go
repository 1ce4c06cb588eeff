package routekit

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type placeholder uint8

const (
	literal placeholder = iota
	year4
	year2
	month
	day
)

// placeholders in match order; YYYY must be tried before YY.
var placeholders = []struct {
	token string
	kind  placeholder
}{
	{"YYYY", year4},
	{"YY", year2},
	{"MM", month},
	{"DD", day},
}

type segment struct {
	kind placeholder
	text string
}

// Template is a destination path with date placeholders YYYY, YY, MM and DD.
//
// Any run of two or more Y, M or D letters must split completely into those
// four placeholders; "YYYYMMDD" is three placeholders, "YYY" is an error.
// A lone Y, M or D is literal text, so drive letters and words like "Data"
// pass through untouched. Text between single quotes is always literal, so
// a share such as /mnt/'ADMIN'/YYYY loads even though "DM" is not a
// placeholder. Write '' for a quote character itself.
type Template struct {
	raw      string
	segments []segment
}

// ParseTemplate splits raw into literal text and placeholders.
func ParseTemplate(raw string) (Template, error) {
	t := Template{raw: raw}
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			t.segments = append(t.segments, segment{kind: literal, text: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(raw); {
		if raw[i] == '\'' {
			n, err := quoted(raw[i:], &lit)
			if err != nil {
				return Template{}, fmt.Errorf("%w in %q", err, raw)
			}
			i += n
			continue
		}
		if !isDateLetter(raw[i]) {
			lit.WriteByte(raw[i])
			i++
			continue
		}

		j := i
		for j < len(raw) && isDateLetter(raw[j]) {
			j++
		}
		if j-i == 1 {
			lit.WriteByte(raw[i])
			i++
			continue
		}

		run := raw[i:j]
		flush()
		for k := 0; k < len(run); {
			kind, n := matchPlaceholder(run[k:])
			if n == 0 {
				return Template{}, fmt.Errorf("%w: %q in %q", ErrUnknownPlaceholder, run, raw)
			}
			t.segments = append(t.segments, segment{kind: kind, text: run[k : k+n]})
			k += n
		}
		i = j
	}
	flush()

	return t, nil
}

// MustParseTemplate is like ParseTemplate but panics on error.
func MustParseTemplate(raw string) Template {
	t, err := ParseTemplate(raw)
	if err != nil {
		panic(err)
	}
	return t
}

// quoted copies the quoted section at the start of s into lit and returns
// how many bytes it consumed. A doubled quote stands for one quote, inside
// or outside a quoted section.
func quoted(s string, lit *strings.Builder) (int, error) {
	if strings.HasPrefix(s, "''") {
		lit.WriteByte('\'')
		return 2, nil
	}
	for i := 1; i < len(s); i++ {
		if s[i] != '\'' {
			lit.WriteByte(s[i])
			continue
		}
		if i+1 < len(s) && s[i+1] == '\'' {
			lit.WriteByte('\'')
			i++
			continue
		}
		return i + 1, nil
	}
	return 0, errors.New("unterminated quote")
}

func isDateLetter(c byte) bool {
	return c == 'Y' || c == 'M' || c == 'D'
}

func matchPlaceholder(s string) (placeholder, int) {
	for _, p := range placeholders {
		if strings.HasPrefix(s, p.token) {
			return p.kind, len(p.token)
		}
	}
	return literal, 0
}

// HasPlaceholders reports whether the template depends on a date.
func (t Template) HasPlaceholders() bool {
	for _, s := range t.segments {
		if s.kind != literal {
			return true
		}
	}
	return false
}

// Resolve substitutes d into every placeholder.
func (t Template) Resolve(d time.Time) string {
	var b strings.Builder
	for _, s := range t.segments {
		switch s.kind {
		case year4:
			b.WriteString(fmt.Sprintf("%04d", d.Year()))
		case year2:
			b.WriteString(fmt.Sprintf("%02d", d.Year()%100))
		case month:
			b.WriteString(fmt.Sprintf("%02d", int(d.Month())))
		case day:
			b.WriteString(fmt.Sprintf("%02d", d.Day()))
		default:
			b.WriteString(s.text)
		}
	}
	return b.String()
}

// Text renders the template with placeholders left as written and quoting
// removed. For a template without placeholders it is the path itself.
func (t Template) Text() string {
	var b strings.Builder
	for _, s := range t.segments {
		b.WriteString(s.text)
	}
	return b.String()
}

// String returns the template as written.
func (t Template) String() string {
	return t.raw
}

// GoString makes templates readable in test failures.
func (t Template) GoString() string {
	return "routekit.Template(" + strconv.Quote(t.raw) + ")"
}
