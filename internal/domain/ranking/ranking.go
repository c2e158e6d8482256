// Package ranking selects the most advanced split from provider ranking
// payloads and normalizes position fields across inconsistent schemas.
//
// Provider payloads come in two shapes that are never mixed: rankings at
// the top level, or nested under the first entry of an "events" list.
// Whichever level carries a non-empty rankings map wins.
package ranking

import (
	"encoding/json"
	"math"
)

// PositionType names which position field to normalize.
type PositionType string

// Position kinds exposed by the provider.
const (
	Overall  PositionType = "overall"
	Gender   PositionType = "gender"
	Category PositionType = "category"
)

// Positions is the modern nested position object.
type Positions struct {
	Overall  *int `json:"overall,omitempty"`
	Gender   *int `json:"gender,omitempty"`
	Category *int `json:"category,omitempty"`
}

// Split is the per-split ranking/timing record. Legacy flat position
// fields coexist with the nested Positions object; normalization decides
// precedence.
type Split struct {
	Order     int     `json:"order"`
	Distance  float64 `json:"distance"`
	TimeNet   int64   `json:"timeNet,omitempty"`   // ms; 0 = absent
	TimeGross int64   `json:"timeGross,omitempty"` // ms; 0 = absent
	RawTimeMS int64   `json:"rawTime,omitempty"`   // unix ms split timestamp
	Time      string  `json:"time,omitempty"`      // formatted, display only

	Pos       *int       `json:"pos,omitempty"`
	PosGen    *int       `json:"posGen,omitempty"`
	PosCat    *int       `json:"posCat,omitempty"`
	PosNet    *int       `json:"posNet,omitempty"`
	Positions *Positions `json:"positions,omitempty"`
}

// EventData is one nested event entry in the legacy payload shape.
type EventData struct {
	Rankings map[string]Split  `json:"rankings,omitempty"`
	Times    map[string]string `json:"times,omitempty"`
}

// Payload is the raw participant document returned by the timing provider.
type Payload struct {
	ID       string            `json:"id,omitempty"`
	Name     string            `json:"name,omitempty"`
	Surname  string            `json:"surname,omitempty"`
	Dorsal   string            `json:"dorsal,omitempty"`
	Rankings map[string]Split  `json:"rankings,omitempty"`
	Times    map[string]string `json:"times,omitempty"`
	Events   []EventData       `json:"events,omitempty"`

	// Raw keeps the undecoded document for the enrichment snapshot.
	Raw json.RawMessage `json:"-"`
}

// Rankings returns the effective rankings map per the two-shape rule.
func (p *Payload) EffectiveRankings() map[string]Split {
	if p == nil {
		return nil
	}
	if len(p.Rankings) > 0 {
		return p.Rankings
	}
	if len(p.Events) > 0 && len(p.Events[0].Rankings) > 0 {
		return p.Events[0].Rankings
	}
	return nil
}

// EffectiveTimes mirrors EffectiveRankings for the times map.
func (p *Payload) EffectiveTimes() map[string]string {
	if p == nil {
		return nil
	}
	if len(p.Times) > 0 {
		return p.Times
	}
	if len(p.Events) > 0 && len(p.Events[0].Times) > 0 {
		return p.Events[0].Times
	}
	return nil
}

// Selection is the chosen split with its ordering fields surfaced.
type Selection struct {
	SplitKey string  `json:"splitKey"`
	Data     Split   `json:"data"`
	Order    int     `json:"order"`
	Distance float64 `json:"distance"`
}

// Pick selects a split from the payload. A requestedKey present in the
// effective rankings map is returned directly. Otherwise the most advanced
// split wins: highest order, then highest distance, then lowest finishing
// time (net preferred over gross). A nil return is a valid outcome, not an
// error; callers degrade gracefully.
func Pick(p *Payload, requestedKey string) *Selection {
	rankings := p.EffectiveRankings()
	if len(rankings) == 0 {
		return nil
	}

	if requestedKey != "" {
		if s, ok := rankings[requestedKey]; ok {
			return &Selection{SplitKey: requestedKey, Data: s, Order: s.Order, Distance: s.Distance}
		}
	}

	var best *Selection
	for key, s := range rankings {
		if best == nil || moreAdvanced(s, best.Data) {
			best = &Selection{SplitKey: key, Data: s, Order: s.Order, Distance: s.Distance}
		}
	}
	return best
}

// moreAdvanced reports whether a should be preferred over b.
func moreAdvanced(a, b Split) bool {
	if a.Order != b.Order {
		return a.Order > b.Order
	}
	if a.Distance != b.Distance {
		return a.Distance > b.Distance
	}
	return finishingTime(a) < finishingTime(b)
}

// finishingTime returns the comparable time for tie-breaking, net over
// gross, absent last.
func finishingTime(s Split) int64 {
	if s.TimeNet > 0 {
		return s.TimeNet
	}
	if s.TimeGross > 0 {
		return s.TimeGross
	}
	return math.MaxInt64
}

// NormalizePosition resolves a position value across provider schemas.
// The nested positions object wins; legacy flat fields follow in a fixed
// precedence order. Returns nil when no field is populated.
func NormalizePosition(s Split, t PositionType) *int {
	if s.Positions != nil {
		switch t {
		case Overall:
			if s.Positions.Overall != nil {
				return s.Positions.Overall
			}
		case Gender:
			if s.Positions.Gender != nil {
				return s.Positions.Gender
			}
		case Category:
			if s.Positions.Category != nil {
				return s.Positions.Category
			}
		}
	}

	switch t {
	case Overall:
		// pos before posNet: net position is a refinement some tenants
		// populate without the plain field, so it comes second.
		if s.Pos != nil {
			return s.Pos
		}
		return s.PosNet
	case Gender:
		return s.PosGen
	case Category:
		return s.PosCat
	}
	return nil
}
