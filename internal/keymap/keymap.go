package keymap

import (
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/srg/blepilot/internal/control"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

type bindingKind int

const (
	kindAxis bindingKind = iota
	kindTrigger
	kindRepeating
	kindIgnore
)

// Binding is the action attached to a key.
type Binding struct {
	Label string
	kind  bindingKind
	axis  control.Axis
	fire  func()
}

// HelpLine describes one action and the keys bound to it.
type HelpLine struct {
	Keys  string
	Label string
}

// Keymap dispatches key events to control state changes and triggers.
// Bindings keep their insertion order for help output.
type Keymap struct {
	name     string
	state    *control.State
	bindings *orderedmap.OrderedMap[Code, Binding]
	logger   *logrus.Logger
}

// New creates an empty keymap driving state.
func New(name string, state *control.State, logger *logrus.Logger) *Keymap {
	if logger == nil {
		logger = logrus.New()
	}
	return &Keymap{
		name:     name,
		state:    state,
		bindings: orderedmap.New[Code, Binding](),
		logger:   logger,
	}
}

func (k *Keymap) Name() string {
	return k.name
}

// BindAxis makes codes hold axis: press sets it, release clears it.
func (k *Keymap) BindAxis(label string, axis control.Axis, codes ...Code) *Keymap {
	for _, c := range codes {
		k.bindings.Set(c, Binding{Label: label, kind: kindAxis, axis: axis})
	}
	return k
}

// BindTrigger runs fn when any of codes is pressed. Releases are ignored.
func (k *Keymap) BindTrigger(label string, fn func(), codes ...Code) *Keymap {
	for _, c := range codes {
		k.bindings.Set(c, Binding{Label: label, kind: kindTrigger, fire: fn})
	}
	return k
}

// BindRepeating is BindTrigger that also fires on auto-repeat.
func (k *Keymap) BindRepeating(label string, fn func(), codes ...Code) *Keymap {
	for _, c := range codes {
		k.bindings.Set(c, Binding{Label: label, kind: kindRepeating, fire: fn})
	}
	return k
}

// Ignore binds codes to nothing so they are not reported as unknown.
func (k *Keymap) Ignore(codes ...Code) *Keymap {
	for _, c := range codes {
		k.bindings.Set(c, Binding{kind: kindIgnore})
	}
	return k
}

// Handle applies ev and reports whether the key is bound.
// Unknown keys are logged at debug level and ignored.
func (k *Keymap) Handle(ev Event) bool {
	b, ok := k.bindings.Get(ev.Code)
	if !ok {
		k.logger.WithFields(logrus.Fields{
			"keymap": k.name,
			"key":    int(ev.Code),
		}).Debug("Ignoring unbound key")
		return false
	}

	switch b.kind {
	case kindAxis:
		if k.state == nil || ev.Repeat {
			return true
		}
		if changed := k.state.Set(b.axis, ev.Pressed); changed {
			k.logger.WithFields(logrus.Fields{
				"keymap": k.name,
				"axis":   b.axis.String(),
				"active": ev.Pressed,
			}).Debug("Axis changed")
		}
	case kindTrigger:
		if ev.Pressed && !ev.Repeat && b.fire != nil {
			b.fire()
		}
	case kindRepeating:
		if ev.Pressed && b.fire != nil {
			b.fire()
		}
	}
	return true
}

// Help lists the bound actions in binding order, grouping keys that share an action.
func (k *Keymap) Help() []HelpLine {
	var lines []HelpLine
	index := map[string]int{}
	for pair := k.bindings.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value.kind == kindIgnore {
			continue
		}
		label := pair.Value.Label
		if i, ok := index[label]; ok {
			lines[i].Keys += "/" + pair.Key.String()
			continue
		}
		index[label] = len(lines)
		lines = append(lines, HelpLine{Keys: pair.Key.String(), Label: label})
	}
	return lines
}

// HelpText renders Help as one "keys label" pair per segment.
func (k *Keymap) HelpText() string {
	var parts []string
	for _, l := range k.Help() {
		parts = append(parts, l.Keys+" "+l.Label)
	}
	return strings.Join(parts, "  ")
}
