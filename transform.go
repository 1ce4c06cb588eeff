package routekit

// Transform renames a file by shifting its embedded date, typically to give a
// secondary destination "yesterday's" name.
type Transform struct {
	OffsetDays int
	Format     *DateFormat
}

// Apply returns name with its embedded date moved by OffsetDays calendar
// days. Only the date text changes; everything around it is kept verbatim.
// A nil transform or a zero offset returns name unchanged with ok true.
// When no date is found, name is returned unchanged with ok false.
func (t *Transform) Apply(name string) (renamed string, ok bool) {
	if t == nil || t.OffsetDays == 0 || t.Format == nil {
		return name, true
	}

	date, loc, found := t.Format.Locate(name)
	if !found {
		return name, false
	}

	shifted := date.AddDate(0, 0, t.OffsetDays)
	return name[:loc[0]] + t.Format.Format(shifted) + name[loc[1]:], true
}
