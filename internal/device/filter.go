package device

import (
	"fmt"
	"strings"
)

// MaxNamePrefixLength is the longest name prefix accepted by a Filter (bytes).
const MaxNamePrefixLength = 248

// Filter selects peripherals during discovery. A peripheral matches when its
// local name starts with NamePrefix (if set) and it advertises every UUID in
// Services (if any).
type Filter struct {
	NamePrefix string   `yaml:"name_prefix"`
	Services   []string `yaml:"services"`
}

// Validate checks that the filter selects something and that its UUIDs parse.
func (f Filter) Validate() error {
	if f.NamePrefix == "" && len(f.Services) == 0 {
		return fmt.Errorf("filter needs a name prefix or at least one service")
	}
	if len(f.NamePrefix) > MaxNamePrefixLength {
		return fmt.Errorf("name prefix is longer than %d bytes", MaxNamePrefixLength)
	}
	if len(f.Services) > 0 {
		if _, err := ValidateUUID(f.Services...); err != nil {
			return fmt.Errorf("invalid filter service: %w", err)
		}
	}
	return nil
}

// Matches reports whether an advertisement satisfies the filter.
func (f Filter) Matches(adv Advertisement) bool {
	if f.NamePrefix != "" && !strings.HasPrefix(adv.LocalName(), f.NamePrefix) {
		return false
	}
	if len(f.Services) == 0 {
		return true
	}

	advertised := make(map[string]struct{}, len(adv.Services()))
	for _, s := range adv.Services() {
		advertised[NormalizeUUID(s)] = struct{}{}
	}
	for _, want := range f.Services {
		if _, ok := advertised[NormalizeUUID(want)]; !ok {
			return false
		}
	}
	return true
}

func (f Filter) String() string {
	var parts []string
	if f.NamePrefix != "" {
		parts = append(parts, fmt.Sprintf("name prefix %q", f.NamePrefix))
	}
	if len(f.Services) > 0 {
		parts = append(parts, fmt.Sprintf("services [%s]", strings.Join(NormalizeUUIDs(f.Services), ", ")))
	}
	if len(parts) == 0 {
		return "empty filter"
	}
	return strings.Join(parts, " and ")
}
