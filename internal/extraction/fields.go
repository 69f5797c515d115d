package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var null = []byte("null")

// Amount is a numeric field the model may send as a number, a formatted
// string or null. Unparsable strings are treated as absent.
type Amount struct {
	Value float64
	Valid bool
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	*a = Amount{}
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, null) {
		return nil
	}

	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		d, err := ParseAmount(s)
		if err != nil {
			return nil
		}
		a.Value, a.Valid = d.InexactFloat64(), true
		return nil
	case '{', '[', 't', 'f':
		return fmt.Errorf("amount: unexpected JSON value %s", truncateRaw(b))
	default:
		d, err := decimal.NewFromString(string(b))
		if err != nil {
			return fmt.Errorf("amount: %w", err)
		}
		a.Value, a.Valid = d.InexactFloat64(), true
		return nil
	}
}

// Or returns the value, or def when absent.
func (a Amount) Or(def float64) float64 {
	if !a.Valid {
		return def
	}
	return a.Value
}

// Ptr returns nil when absent.
func (a Amount) Ptr() *float64 {
	if !a.Valid {
		return nil
	}
	v := a.Value
	return &v
}

// Text is a free-text field. Blank strings count as absent. Numbers are
// accepted and kept in their literal form (codes, tax ids).
type Text struct {
	Value string
	Valid bool
}

func (t *Text) UnmarshalJSON(b []byte) error {
	*t = Text{}
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, null) {
		return nil
	}

	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		t.Value, t.Valid = s, s != ""
		return nil
	case '{', '[':
		return fmt.Errorf("text: unexpected JSON value %s", truncateRaw(b))
	default:
		t.Value, t.Valid = string(b), true
		return nil
	}
}

// Or returns the value, or def when absent.
func (t Text) Or(def string) string {
	if !t.Valid {
		return def
	}
	return t.Value
}

// Ptr returns nil when absent.
func (t Text) Ptr() *string {
	if !t.Valid {
		return nil
	}
	v := t.Value
	return &v
}

// Flag is a boolean the model may send as true/false, "sim"/"não" or 0/1.
type Flag struct {
	Value bool
	Valid bool
}

func (f *Flag) UnmarshalJSON(b []byte) error {
	*f = Flag{}
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, null) {
		return nil
	}

	raw := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
	}

	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "sim", "s", "yes", "1", "ativo", "ativa":
		f.Value, f.Valid = true, true
	case "false", "não", "nao", "n", "no", "0", "inativo", "inativa":
		f.Value, f.Valid = false, true
	default:
		if b[0] == '{' || b[0] == '[' {
			return fmt.Errorf("flag: unexpected JSON value %s", truncateRaw(b))
		}
	}
	return nil
}

// Or returns the value, or def when absent.
func (f Flag) Or(def bool) bool {
	if !f.Valid {
		return def
	}
	return f.Value
}

// Int is an integer count or age.
type Int struct {
	Value int
	Valid bool
}

func (i *Int) UnmarshalJSON(b []byte) error {
	var a Amount
	if err := a.UnmarshalJSON(b); err != nil {
		return fmt.Errorf("int: %w", err)
	}
	*i = Int{}
	if a.Valid {
		i.Value, i.Valid = int(decimal.NewFromFloat(a.Value).IntPart()), true
	}
	return nil
}

// Or returns the value, or def when absent.
func (i Int) Or(def int) int {
	if !i.Valid {
		return def
	}
	return i.Value
}

// Ptr returns nil when absent.
func (i Int) Ptr() *int {
	if !i.Valid {
		return nil
	}
	v := i.Value
	return &v
}

var dateLayouts = []string{"2006-01-02", "02/01/2006", time.RFC3339, "2006-01-02T15:04:05", "01/2006", "2006"}

// Date is a calendar date. Unrecognized formats are treated as absent.
type Date struct {
	Value time.Time
	Valid bool
}

func (d *Date) UnmarshalJSON(b []byte) error {
	*d = Date{}
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, null) {
		return nil
	}
	if b[0] != '"' {
		if _, err := strconv.ParseFloat(string(b), 64); err == nil {
			return nil
		}
		return fmt.Errorf("date: unexpected JSON value %s", truncateRaw(b))
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d.Value = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			d.Valid = true
			return nil
		}
	}
	return nil
}

// Or returns the value, or def when absent.
func (d Date) Or(def time.Time) time.Time {
	if !d.Valid {
		return def
	}
	return d.Value
}

// Ptr returns nil when absent.
func (d Date) Ptr() *time.Time {
	if !d.Valid {
		return nil
	}
	v := d.Value
	return &v
}

func truncateRaw(b []byte) string {
	const max = 40
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
