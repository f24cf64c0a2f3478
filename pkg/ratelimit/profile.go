package ratelimit

import (
	"fmt"
	"sort"
	"time"
)

// Built-in profile names.
const (
	ProfileGeneral  = "general"
	ProfileStrict   = "strict"
	ProfileCheckout = "checkout"
)

// Profile is a named limit: at most MaxRequests per key in any trailing Window.
type Profile struct {
	Name        string
	Window      time.Duration
	MaxRequests int
}

func (p Profile) validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidProfile)
	}
	if p.MaxRequests <= 0 {
		return fmt.Errorf("%w: profile %q has %d", ErrInvalidLimit, p.Name, p.MaxRequests)
	}
	if p.Window <= 0 {
		return fmt.Errorf("%w: profile %q has %v", ErrInvalidWindow, p.Name, p.Window)
	}
	return nil
}

// Profiles is an immutable registry of named profiles.
type Profiles struct {
	byName map[string]Profile
}

// NewProfiles validates and registers the given profiles.
func NewProfiles(profiles ...Profile) (*Profiles, error) {
	byName := make(map[string]Profile, len(profiles))
	for _, p := range profiles {
		if err := p.validate(); err != nil {
			return nil, err
		}
		if _, dup := byName[p.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateProfile, p.Name)
		}
		byName[p.Name] = p
	}
	return &Profiles{byName: byName}, nil
}

// MustProfiles is NewProfiles that panics on invalid input.
func MustProfiles(profiles ...Profile) *Profiles {
	ps, err := NewProfiles(profiles...)
	if err != nil {
		panic(err)
	}
	return ps
}

// DefaultProfiles returns a lenient general profile, a strict profile for
// write-heavy endpoints and a separate checkout profile so billing has its
// own budget.
func DefaultProfiles() *Profiles {
	return MustProfiles(
		Profile{Name: ProfileGeneral, Window: time.Minute, MaxRequests: 120},
		Profile{Name: ProfileStrict, Window: time.Minute, MaxRequests: 10},
		Profile{Name: ProfileCheckout, Window: time.Minute, MaxRequests: 5},
	)
}

// Get returns the profile registered under name.
func (ps *Profiles) Get(name string) (Profile, error) {
	p, ok := ps.byName[name]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}
	return p, nil
}

// Names returns the registered profile names, sorted.
func (ps *Profiles) Names() []string {
	names := make([]string, 0, len(ps.byName))
	for name := range ps.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MaxWindow returns the longest window across profiles.
func (ps *Profiles) MaxWindow() time.Duration {
	var longest time.Duration
	for _, p := range ps.byName {
		longest = max(longest, p.Window)
	}
	return longest
}
