// internal/models/card.go
package models

// Color is a card face color. Black marks the special cards whose effective
// color is chosen at play time.
type Color string

const (
	ColorRed    Color = "red"
	ColorYellow Color = "yellow"
	ColorGreen  Color = "green"
	ColorBlue   Color = "blue"
	ColorPurple Color = "purple"
	ColorBlack  Color = "black"
)

// PlayableColors lists the five non-black colors in fixed deck order.
var PlayableColors = []Color{ColorRed, ColorYellow, ColorGreen, ColorBlue, ColorPurple}

// Rank is a card face value: "1".."9" plus the named specials.
type Rank string

const (
	RankSkip      Rank = "skip"
	RankReverse   Rank = "reverse"
	RankPlusThree Rank = "+3"
	RankPlusFive  Rank = "+5"
	RankWild      Rank = "wild"
)

// NumberRanks lists the numeric ranks in fixed deck order.
var NumberRanks = []Rank{"1", "2", "3", "4", "5", "6", "7", "8", "9"}

// Card is a single FortUno card. ChosenColor is stamped only when a black
// card is played; it carries the effective color for legality checks until
// the card leaves the discard pile.
type Card struct {
	Rank        Rank  `json:"rank"`
	Color       Color `json:"color"`
	ChosenColor Color `json:"chosenColor,omitempty"`
}

// IsNumber reports whether the card is a plain numbered card.
func (c Card) IsNumber() bool {
	switch c.Rank {
	case RankSkip, RankReverse, RankPlusThree, RankPlusFive, RankWild:
		return false
	}
	return true
}

// IsBlack reports whether the card's printed color is black.
func (c Card) IsBlack() bool { return c.Color == ColorBlack }

// Same compares two cards by printed face (rank, color), ignoring any
// stamped ChosenColor. Hands are matched with Same, never by pointer.
func (c Card) Same(o Card) bool { return c.Rank == o.Rank && c.Color == o.Color }

// EffectiveColor is the color legality checks run against: the stamped
// chosen color for a played black card, otherwise the printed color.
func (c Card) EffectiveColor() Color {
	if c.Color == ColorBlack && c.ChosenColor != "" {
		return c.ChosenColor
	}
	return c.Color
}
