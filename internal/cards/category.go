package cards

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind is the top-level card category.
type Kind string

const (
	KindUnknown Kind = ""
	KindPokemon Kind = "pokemon"
	KindTrainer Kind = "trainer"
	KindEnergy  Kind = "energy"
)

// Trainer and energy subtypes.
const (
	TrainerItem      = "item"
	TrainerSupporter = "supporter"
	TrainerTool      = "tool"
	TrainerStadium   = "stadium"

	EnergyBasic   = "basic"
	EnergySpecial = "special"
)

// Category is a tagged variant: Pokémon carry no subtype, trainers and
// energies may carry one of the subtypes above.
type Category struct {
	Kind    Kind
	Subtype string
}

// Pokemon returns the Pokémon category.
func Pokemon() Category { return Category{Kind: KindPokemon} }

// Trainer returns a trainer category with an optional subtype.
func Trainer(subtype string) Category {
	return Category{Kind: KindTrainer, Subtype: strings.ToLower(subtype)}
}

// Energy returns an energy category with an optional subtype.
func Energy(subtype string) Category {
	return Category{Kind: KindEnergy, Subtype: strings.ToLower(subtype)}
}

// IsZero reports whether the category is unknown.
func (c Category) IsZero() bool {
	return c.Kind == KindUnknown
}

func (c Category) String() string {
	if c.Subtype == "" {
		return string(c.Kind)
	}
	return string(c.Kind) + "/" + c.Subtype
}

// ParseCategory maps a decklist column heading such as "Pokémon (14)" or
// "Trainer (34)" to a category. Anything else is treated as energy, which
// matches how Limitless orders its three columns.
func ParseCategory(heading string) Category {
	h := strings.ToLower(strings.TrimSpace(heading))
	switch {
	case h == "":
		return Category{}
	case strings.Contains(h, "pokémon"), strings.Contains(h, "pokemon"):
		return Pokemon()
	case strings.Contains(h, "trainer"):
		return Trainer("")
	default:
		return Energy("")
	}
}

type categoryJSON struct {
	Kind        Kind   `json:"kind,omitempty"`
	TrainerType string `json:"trainerType,omitempty"`
	EnergyType  string `json:"energyType,omitempty"`
}

// MarshalJSON writes the category as {"kind":..., "trainerType"|"energyType":...}.
func (c Category) MarshalJSON() ([]byte, error) {
	out := categoryJSON{Kind: c.Kind}
	switch c.Kind {
	case KindTrainer:
		out.TrainerType = c.Subtype
	case KindEnergy:
		out.EnergyType = c.Subtype
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts both the object form and a bare kind string.
func (c *Category) UnmarshalJSON(data []byte) error {
	var kind string
	if err := json.Unmarshal(data, &kind); err == nil {
		*c = Category{Kind: Kind(strings.ToLower(kind))}
		return nil
	}

	var in categoryJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("decode category: %w", err)
	}
	*c = Category{Kind: in.Kind}
	switch in.Kind {
	case KindTrainer:
		c.Subtype = in.TrainerType
	case KindEnergy:
		c.Subtype = in.EnergyType
	}
	return nil
}
