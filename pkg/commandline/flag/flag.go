// Package flag provides flag.Value types for md commands.
package flag

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/opst/mdclient/pkg/utils"
)

// Pairs is a repeatable flag of "A:B", collected as [][]string{{A, B}, ...}.
type Pairs [][]string

func (p *Pairs) String() string {
	if p == nil || len(*p) == 0 {
		return ""
	}
	return strings.Join(utils.Map(*p, func(pair []string) string { return strings.Join(pair, ":") }), " ")
}

func (p *Pairs) Set(v string) error {
	a, b, ok := strings.Cut(v, ":")
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if !ok || a == "" || b == "" {
		return fmt.Errorf("should be in the form A:B: %q", v)
	}
	*p = append(*p, []string{a, b})
	return nil
}

// Fraction is an optional number in [0, 1].
type Fraction struct {
	v     float64
	isSet bool
}

func (f *Fraction) String() string {
	if f == nil || !f.isSet {
		return ""
	}
	return strconv.FormatFloat(f.v, 'g', -1, 64)
}

func (f *Fraction) Set(v string) error {
	got, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return err
	}
	if got < 0 || 1 < got {
		return fmt.Errorf("should be in [0, 1]: %s", v)
	}
	f.v = got
	f.isSet = true
	return nil
}

// Value returns the value and whether it is set.
func (f *Fraction) Value() (float64, bool) {
	if f == nil {
		return 0, false
	}
	return f.v, f.isSet
}

// Count is an optional non-negative integer.
type Count struct {
	v     int
	isSet bool
}

func (c *Count) String() string {
	if c == nil || !c.isSet {
		return ""
	}
	return strconv.Itoa(c.v)
}

func (c *Count) Set(v string) error {
	got, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return err
	}
	if got < 0 {
		return fmt.Errorf("should not be negative: %s", v)
	}
	c.v = got
	c.isSet = true
	return nil
}

// Value returns the value and whether it is set.
func (c *Count) Value() (int, bool) {
	if c == nil {
		return 0, false
	}
	return c.v, c.isSet
}

// Delimiter is a field delimiter of CSV. "tab" or `\t` means a tab.
type Delimiter rune

func (d *Delimiter) String() string {
	if d == nil || *d == 0 {
		return ","
	}
	if *d == '\t' {
		return "tab"
	}
	return string(rune(*d))
}

func (d *Delimiter) Set(v string) error {
	switch v {
	case "tab", `\t`:
		*d = '\t'
		return nil
	}
	r, size := utf8.DecodeRuneInString(v)
	if r == utf8.RuneError || size != len(v) {
		return fmt.Errorf("delimiter should be a character: %q", v)
	}
	*d = Delimiter(r)
	return nil
}

// Rune returns the delimiter. Unset means a comma.
func (d *Delimiter) Rune() rune {
	if d == nil || *d == 0 {
		return ','
	}
	return rune(*d)
}
