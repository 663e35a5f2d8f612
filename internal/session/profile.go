package session

import (
	"fmt"
	"sort"
	"strings"

	"github.com/srg/blepilot/internal/device"
)

// Profile describes how to find a peripheral and which characteristic carries its commands.
type Profile struct {
	Name           string
	Filter         device.Filter
	Service        string
	Characteristic string
	WithResponse   bool

	// Notify lists characteristics in NotifyService subscribed after connect.
	NotifyService string
	Notify        []string

	// ReadOnConnect asks the caller to read the characteristic once connected.
	ReadOnConnect bool

	// Address skips discovery and dials the peripheral directly.
	Address string
}

// Validate checks the profile can be used to open a session.
func (p Profile) Validate() error {
	if p.Address == "" {
		if err := p.Filter.Validate(); err != nil {
			return fmt.Errorf("profile %q: %w", p.Name, err)
		}
	}
	if _, err := device.ValidateUUID(p.Service, p.Characteristic); err != nil {
		return fmt.Errorf("profile %q: %w", p.Name, err)
	}
	if len(p.Notify) > 0 {
		if _, err := device.ValidateUUID(append([]string{p.NotifyService}, p.Notify...)...); err != nil {
			return fmt.Errorf("profile %q notifications: %w", p.Name, err)
		}
	}
	return nil
}

func (p Profile) String() string {
	target := p.Filter.String()
	if p.Address != "" {
		target = "address " + p.Address
	}
	return fmt.Sprintf("%s (%s, characteristic %s)", p.Name, target, device.NormalizeUUID(p.Characteristic))
}

const (
	droneService = "9a66fa00-0800-9191-11e4-012d1540cb8e"
	droneNotify  = "9a66fb00-0800-9191-11e4-012d1540cb8e"
	lampService  = "f815e810-456c-6761-746f-4d756e696368"
)

// Built-in profile names.
const (
	Car   = "car"
	Drone = "drone"
	LED   = "led"
	Lamp  = "lamp"
)

var builtins = map[string]Profile{
	Car: {
		Name:           Car,
		Filter:         device.Filter{NamePrefix: "SED"},
		Service:        "181a",
		Characteristic: "2a23",
		WithResponse:   true,
	},
	Drone: {
		Name:           Drone,
		Filter:         device.Filter{NamePrefix: "Travis"},
		Service:        droneService,
		Characteristic: "9a66fa0b-0800-9191-11e4-012d1540cb8e",
		WithResponse:   true,
		NotifyService:  droneNotify,
		Notify: []string{
			"9a66fb0f-0800-9191-11e4-012d1540cb8e",
			"9a66fb0e-0800-9191-11e4-012d1540cb8e",
			"9a66fb1b-0800-9191-11e4-012d1540cb8e",
			"9a66fb1c-0800-9191-11e4-012d1540cb8e",
		},
	},
	LED: {
		Name:           LED,
		Filter:         device.Filter{Services: []string{"ffe0"}},
		Service:        "ffe0",
		Characteristic: "ffe1",
		WithResponse:   true,
		ReadOnConnect:  true,
	},
	Lamp: {
		Name:           Lamp,
		Filter:         device.Filter{NamePrefix: "Avea", Services: []string{lampService}},
		Service:        lampService,
		Characteristic: "f815e811-456c-6761-746f-4d756e696368",
		WithResponse:   true,
	},
}

// Lookup returns a copy of the built-in profile with the given name.
func Lookup(name string) (Profile, error) {
	p, ok := builtins[strings.ToLower(name)]
	if !ok {
		return Profile{}, fmt.Errorf("unknown profile %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	p.Filter.Services = append([]string(nil), p.Filter.Services...)
	p.Notify = append([]string(nil), p.Notify...)
	return p, nil
}

// Names lists the built-in profiles in alphabetical order.
func Names() []string {
	names := make([]string, 0, len(builtins))
	for n := range builtins {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
