package negotiation

import (
	"errors"
	"fmt"
)

// State is the negotiation state of one peer session.
type State int

const (
	Idle State = iota
	OfferCreated
	OfferReceived
	AnswerExchanged
	ChannelOpen
	Declined
	Failed
	Closed
)

var stateNames = [...]string{
	Idle:            "idle",
	OfferCreated:    "offer-created",
	OfferReceived:   "offer-received",
	AnswerExchanged: "answer-exchanged",
	ChannelOpen:     "channel-open",
	Declined:        "declined",
	Failed:          "failed",
	Closed:          "closed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == Declined || s == Failed || s == Closed
}

var transitions = map[State][]State{
	Idle:            {OfferCreated, OfferReceived, Failed},
	OfferCreated:    {AnswerExchanged, Failed},
	OfferReceived:   {AnswerExchanged, Declined, Failed},
	AnswerExchanged: {ChannelOpen, Failed},
	ChannelOpen:     {Closed, Failed},
}

// CanTransition reports whether s -> to is legal.
func (s State) CanTransition(to State) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// ErrIllegalTransition is returned for a transition missing from the table.
var ErrIllegalTransition = errors.New("illegal state transition")

// Role is the side a session plays.
type Role int

const (
	Initiator Role = iota
	Responder
)

func (r Role) String() string {
	if r == Initiator {
		return "initiator"
	}
	return "responder"
}
