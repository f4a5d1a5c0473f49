package botservice

import (
	"fmt"

	"github.com/brianvoe/gofakeit/v7"
)

// Callsigns are the name stems of generated bots.
var Callsigns = []string{
	"Alpha", "Beta", "Delta", "Echo", "Foxtrot", "Ghost",
	"Hunter", "Iron", "Juliet", "Kilo", "Lima", "Mike",
}

// NameGenerator produces bot display names of the form Bot-<Callsign><NN>.
type NameGenerator struct {
	faker *gofakeit.Faker
}

// NewNameGenerator creates a generator over faker.
func NewNameGenerator(faker *gofakeit.Faker) *NameGenerator {
	return &NameGenerator{faker: faker}
}

// Next returns a fresh name.
func (g *NameGenerator) Next() string {
	callsign := Callsigns[g.faker.IntN(len(Callsigns))]
	return fmt.Sprintf("Bot-%s%02d", callsign, g.faker.Number(1, 99))
}
