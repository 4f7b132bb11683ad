// Package pattern compiles command fragments into anchored matchers.
//
// A command is written as an ordered list of fragments, each either a literal
// word ("story") or a parenthesized regular expression ("(\d{1,3})"). The
// compiled matcher requires the bot's trigger name at the start of the
// message, separates fragments by runs of whitespace and must consume the
// whole message.
package pattern

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrEmptyTrigger is returned when a matcher is compiled without a trigger.
var ErrEmptyTrigger = errors.New("pattern: empty trigger")

// Matcher is a compiled command pattern.
type Matcher struct {
	re     *regexp.Regexp
	source string
}

// Compile builds a matcher for trigger followed by fragments. The trigger may
// be followed by ':' or ',' as in "trakbot: find login".
func Compile(trigger string, fragments ...string) (*Matcher, error) {
	if strings.TrimSpace(trigger) == "" {
		return nil, ErrEmptyTrigger
	}
	if len(fragments) == 0 {
		return nil, fmt.Errorf("pattern: no fragments after trigger %q", trigger)
	}

	parts := make([]string, 0, len(fragments)+1)
	parts = append(parts, regexp.QuoteMeta(trigger)+`[:,]?`)
	for i, f := range fragments {
		if strings.TrimSpace(f) == "" {
			return nil, fmt.Errorf("pattern: fragment %d is empty", i)
		}
		// Each fragment must compile on its own so a stray paren cannot
		// swallow its neighbours.
		if _, err := regexp.Compile(f); err != nil {
			return nil, fmt.Errorf("pattern: fragment %d %q: %w", i, f, err)
		}
		parts = append(parts, f)
	}

	return compile(`^` + strings.Join(parts, `\s+`) + `$`)
}

// Alias builds a matcher for a bare shortcut such as ".?" that is recognized
// without the trigger prefix. Surrounding whitespace is tolerated.
func Alias(alias string) (*Matcher, error) {
	if strings.TrimSpace(alias) == "" {
		return nil, errors.New("pattern: empty alias")
	}
	return compile(`^\s*` + regexp.QuoteMeta(strings.TrimSpace(alias)) + `\s*$`)
}

// MustCompile is like Compile but panics on error. It is meant for command
// tables built at startup.
func MustCompile(trigger string, fragments ...string) *Matcher {
	m, err := Compile(trigger, fragments...)
	if err != nil {
		panic(err)
	}
	return m
}

func compile(expr string) (*Matcher, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("pattern: %w", err)
	}
	return &Matcher{re: re, source: expr}, nil
}

// Match reports whether text matches and returns the positional captures.
// Optional groups that did not participate yield empty strings.
func (m *Matcher) Match(text string) ([]string, bool) {
	sub := m.re.FindStringSubmatch(strings.TrimSpace(text))
	if sub == nil {
		return nil, false
	}
	return sub[1:], true
}

// String returns the compiled expression.
func (m *Matcher) String() string {
	return m.source
}
