// Package orgs holds the per-sanctioning-organization vocabularies that
// used to be copy-pasted into per-org sync procedures. One engine reads
// these instead.
package orgs

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

type Profile struct {
	Name     string   `toml:"name" validate:"required"`
	Elements []string `toml:"elements" validate:"required,min=1"`
	Levels   []string `toml:"levels" validate:"required,min=1"`
	Sections []string `toml:"sections"`

	// AreaCounts maps an element to its number of separately timed search
	// areas. Elements not listed are single-area.
	AreaCounts map[string]int `toml:"area_counts" validate:"dive,min=1,max=3"`
}

func (p *Profile) Validate() error {
	validate := validator.New()
	return validate.Struct(p)
}

// Areas returns how many timed areas the element runs.
func (p *Profile) Areas(element string) int {
	if n, ok := p.AreaCounts[element]; ok {
		return n
	}
	return 1
}

func (p *Profile) HasElement(element string) bool {
	for _, e := range p.Elements {
		if e == element {
			return true
		}
	}
	return false
}

func (p *Profile) HasLevel(level string) bool {
	for _, l := range p.Levels {
		if l == level {
			return true
		}
	}
	return false
}

func (p *Profile) HasSection(section string) bool {
	for _, s := range p.Sections {
		if s == section {
			return true
		}
	}
	return false
}

// CheckClass verifies a class row uses this organization's vocabulary.
// An empty section always passes; so does any section when the profile
// declares none.
func (p *Profile) CheckClass(element, level, section string) error {
	if !p.HasElement(element) {
		return fmt.Errorf("%s has no element %q", p.Name, element)
	}
	if !p.HasLevel(level) {
		return fmt.Errorf("%s has no level %q", p.Name, level)
	}
	if section != "" && len(p.Sections) > 0 && !p.HasSection(section) {
		return fmt.Errorf("%s has no section %q", p.Name, section)
	}
	return nil
}

var builtins = map[string]Profile{
	"ukc-nosework": {
		Name:     "UKC Nosework",
		Elements: []string{"Container", "Interior", "Exterior", "Vehicle", "Handler Discrimination"},
		Levels:   []string{"Novice", "Advanced", "Superior", "Master", "Elite"},
		Sections: []string{"A", "B"},
		AreaCounts: map[string]int{
			"Interior": 3,
		},
	},
	"akc-scentwork": {
		Name:     "AKC Scent Work",
		Elements: []string{"Container", "Interior", "Exterior", "Buried", "Handler Discrimination"},
		Levels:   []string{"Novice", "Advanced", "Excellent", "Master", "Detective"},
		Sections: []string{"A", "B"},
		AreaCounts: map[string]int{
			"Interior": 2,
		},
	},
}

// Builtin returns a copy of a shipped profile by its config key.
func Builtin(key string) (Profile, bool) {
	p, ok := builtins[key]
	return p, ok
}
