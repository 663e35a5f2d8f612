package testutils

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/mcuadros/go-defaults"
)

// TestingT is the subset of testing.T used by the text assertions.
type TestingT interface {
	Helper()
	Errorf(format string, args ...interface{})
}

// TextOptions controls how texts are normalized before comparison.
type TextOptions struct {
	TrimSpace                bool `default:"true"`
	IgnoreTrailingWhitespace bool `default:"true"`
	IgnoreEmptyLines         bool `default:"false"`
	StripANSI                bool `default:"true"`
	Colors                   bool `default:"false"`
}

type TextOption func(*TextOptions)

func WithEmptyLinesIgnored() TextOption {
	return func(o *TextOptions) { o.IgnoreEmptyLines = true }
}

func WithExactWhitespace() TextOption {
	return func(o *TextOptions) {
		o.TrimSpace = false
		o.IgnoreTrailingWhitespace = false
	}
}

func WithANSI() TextOption {
	return func(o *TextOptions) { o.StripANSI = false }
}

func WithColoredDiff() TextOption {
	return func(o *TextOptions) { o.Colors = true }
}

// AssertText fails the test with a unified diff when actual differs from expected.
func AssertText(t TestingT, actual, expected string, opts ...TextOption) bool {
	t.Helper()
	if d := TextDiff(actual, expected, opts...); d != "" {
		t.Errorf("text mismatch:\n%s", d)
		return false
	}
	return true
}

// TextDiff returns the unified diff between the normalized texts, or "" when equal.
func TextDiff(actual, expected string, opts ...TextOption) string {
	o := TextOptions{}
	defaults.SetDefaults(&o)
	for _, opt := range opts {
		opt(&o)
	}

	want := normalizeText(expected, o)
	got := normalizeText(actual, o)
	if want == got {
		return ""
	}

	edits := myers.ComputeEdits("", want, got)
	unified := fmt.Sprint(gotextdiff.ToUnified("expected", "actual", want, edits))
	if !o.Colors {
		return unified
	}
	return colorizeDiff(unified)
}

func normalizeText(text string, o TextOptions) string {
	if o.StripANSI {
		text = StripANSI(text)
	}
	if o.TrimSpace {
		text = strings.TrimSpace(text)
	}

	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, line := range lines {
		if o.IgnoreTrailingWhitespace {
			line = strings.TrimRight(line, " \t\r")
		}
		if o.IgnoreEmptyLines && strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func colorizeDiff(diff string) string {
	paint := func(attr color.Attribute, s string) string {
		c := color.New(attr)
		c.EnableColor()
		return c.Sprint(s)
	}

	lines := strings.Split(diff, "\n")
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "---"), strings.HasPrefix(line, "+++"):
			lines[i] = paint(color.FgYellow, line)
		case strings.HasPrefix(line, "@@"):
			lines[i] = paint(color.FgCyan, line)
		case strings.HasPrefix(line, "-"):
			lines[i] = paint(color.FgRed, strings.ReplaceAll(line, " ", "·"))
		case strings.HasPrefix(line, "+"):
			lines[i] = paint(color.FgGreen, strings.ReplaceAll(line, " ", "·"))
		}
	}
	return strings.Join(lines, "\n")
}

// StripANSI removes SGR escape sequences such as colour codes.
func StripANSI(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == 0x1b && i+1 < len(s) && s[i+1] == '[' {
			j := i + 2
			for j < len(s) && (s[j] < '@' || s[j] > '~') {
				j++
			}
			i = j
			continue
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}
