package pattern

import (
	"errors"
	"reflect"
	"testing"
)

func TestCompileMatch(t *testing.T) {
	tests := []struct {
		name      string
		fragments []string
		text      string
		want      []string
		match     bool
	}{
		{"literal only", []string{"projects"}, "trakbot projects", []string{}, true},
		{"colon addressing", []string{"projects"}, "trakbot: projects", []string{}, true},
		{"comma addressing", []string{"help"}, "trakbot, help", []string{}, true},
		{"many spaces", []string{"token", `(\S+)`}, "trakbot   token    abc123", []string{"abc123"}, true},
		{"two captures", []string{`(?:new|add)`, `(feature|chore|bug|release)`, `(.+)`}, "trakbot add bug Login is broken", []string{"bug", "Login is broken"}, true},
		{"missing trigger", []string{"projects"}, "projects", nil, false},
		{"other nick", []string{"projects"}, "trakbot2 projects", nil, false},
		{"trailing text rejected", []string{"projects"}, "trakbot projects please", nil, false},
		{"leading text rejected", []string{"projects"}, "hey trakbot projects", nil, false},
		{"case respecting", []string{"projects"}, "trakbot PROJECTS", nil, false},
		{"no separator", []string{"projects"}, "trakbotprojects", nil, false},
		{"digits bounded", []string{"story", `(\d{1,3})`}, "trakbot story 1234", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Compile("trakbot", tt.fragments...)
			if err != nil {
				t.Fatalf("Compile: %v", err)
			}
			got, ok := m.Match(tt.text)
			if ok != tt.match {
				t.Fatalf("Match(%q) ok = %v, want %v (expr %s)", tt.text, ok, tt.match, m)
			}
			if ok && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Match(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestCompileErrors(t *testing.T) {
	if _, err := Compile("", "help"); !errors.Is(err, ErrEmptyTrigger) {
		t.Errorf("empty trigger: got %v", err)
	}
	if _, err := Compile("trakbot"); err == nil {
		t.Error("expected error with no fragments")
	}
	if _, err := Compile("trakbot", "story", "  "); err == nil {
		t.Error("expected error for blank fragment")
	}
	if _, err := Compile("trakbot", "story", `(\d+`); err == nil {
		t.Error("expected error for unbalanced fragment")
	}
	if _, err := Compile("trakbot", `(\d+`, `)`); err == nil {
		t.Error("fragments that only compile joined must still be rejected")
	}
}

func TestTriggerIsQuoted(t *testing.T) {
	m := MustCompile("trak.bot", "help")
	if _, ok := m.Match("trakxbot help"); ok {
		t.Error("trigger metacharacters must be literal")
	}
	if _, ok := m.Match("trak.bot help"); !ok {
		t.Error("expected literal trigger to match")
	}
}

func TestAlias(t *testing.T) {
	m, err := Alias(".?")
	if err != nil {
		t.Fatalf("Alias: %v", err)
	}
	for text, want := range map[string]bool{".?": true, "  .?  ": true, "x?": false, ".? now": false} {
		if _, ok := m.Match(text); ok != want {
			t.Errorf("Match(%q) = %v, want %v", text, ok, want)
		}
	}
	if _, err := Alias(" "); err == nil {
		t.Error("expected error for blank alias")
	}
}

func TestMustCompilePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	MustCompile("trakbot", "(")
}
