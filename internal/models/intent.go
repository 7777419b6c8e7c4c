// internal/models/intent.go
package models

// GameIntent is one identity-attributed inbound message for a room's engine.
// The transport layer resolves the sender to a stable user ID before the
// intent reaches the engine; the intent itself never carries identity.
type GameIntent struct {
	Type string `json:"type"`

	// Card identifies the hand card for playCard, matched by (rank, color).
	Card *Card `json:"card,omitempty"`

	// ChosenColor accompanies a black card play and stamps its effective
	// color.
	ChosenColor Color `json:"chosenColor,omitempty"`

	// Index selects a hand card for discardCard.
	Index *int `json:"index,omitempty"`

	// Explicit distinguishes a deliberate leave from a transport drop.
	Explicit bool `json:"explicit,omitempty"`
}

// Inbound intent types.
const (
	IntentPlayCard              = "playCard"
	IntentDrawCard              = "drawCard"
	IntentDiscardCard           = "discardCard"
	IntentDiceAnimationFinished = "diceAnimationFinished"
	IntentCalloutClicked        = "calloutClicked"
	IntentLeave                 = "leave"
)
