// Package story classifies checkpoint crossings into story types.
//
// Classification is an explicit rule table over free-text point/location
// labels. It is best-effort by design: an explicit type from the webhook
// always wins, and anything the table cannot place is an intermediate split.
package story

import (
	"fmt"
	"strings"

	"github.com/velatorre/crossline/internal/domain/model"
)

// rule maps a label substring to a story type. Spanish labels come from
// the dominant timing provider; English ones from newer tenants.
type rule struct {
	substr string
	typ    model.StoryType
}

// Ordered: finish markers are checked before start markers because some
// providers label the finish as "meta salida norte" style composites.
var rules = []rule{
	{"meta", model.StoryFinished},
	{"finish", model.StoryFinished},
	{"llegada", model.StoryFinished},
	{"goal", model.StoryFinished},
	{"salida", model.StoryStarted},
	{"start", model.StoryStarted},
}

// explicitTypes maps webhook-supplied checkpointType values to story types.
var explicitTypes = map[string]model.StoryType{
	"start":  model.StoryStarted,
	"finish": model.StoryFinished,
	"split":  model.StorySplit,
}

// Classify picks a story type for a crossing. explicitType, when it names a
// known type, wins over the substring heuristics on point and location.
func Classify(explicitType, point, location string) model.StoryType {
	if t, ok := explicitTypes[strings.ToLower(strings.TrimSpace(explicitType))]; ok {
		return t
	}
	text := strings.ToLower(point + " " + location)
	for _, r := range rules {
		if strings.Contains(text, r.substr) {
			return r.typ
		}
	}
	return model.StorySplit
}

// Describe builds the human description shown with a story.
func Describe(typ model.StoryType, name, point string) string {
	if name == "" {
		name = "Participant"
	}
	switch typ {
	case model.StoryStarted:
		return fmt.Sprintf("%s is off! The race has started.", name)
	case model.StoryFinished:
		return fmt.Sprintf("%s crossed the finish line!", name)
	default:
		if point != "" {
			return fmt.Sprintf("%s just passed %s.", name, point)
		}
		return fmt.Sprintf("%s crossed a timing point.", name)
	}
}
