package pipeline

import (
	"fmt"
)

// State is the resolution state of one data category.
type State int

const (
	Pending State = iota
	Trying
	Resolved
	Exhausted
)

var stateNames = [...]string{"pending", "trying", "resolved", "exhausted"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	for i, n := range stateNames {
		if n == string(b) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", b)
}

// Outcome records where a category stands. Attempt is the 1-based index of
// the adapter being tried, or that resolved it; on Exhausted it is the
// number of adapters tried.
type Outcome struct {
	State   State  `json:"state"`
	Attempt int    `json:"attempt,omitempty"`
	Source  string `json:"source,omitempty"`
}

func (o Outcome) String() string {
	switch o.State {
	case Trying:
		return fmt.Sprintf("trying(%d)", o.Attempt)
	case Resolved:
		return fmt.Sprintf("resolved by %s", o.Source)
	}
	return o.State.String()
}

// Category names one independently resolved slice of an analysis.
type Category string

const (
	CategoryTransactions Category = "transactions"
	CategoryPrices       Category = "prices"
	CategoryDemographics Category = "demographics"
)
