package dictionary

import "strings"

// PartOfSpeech is one of the grammatical categories the word-graph dictionary reports.
type PartOfSpeech string

const (
	Noun      PartOfSpeech = "noun"
	Verb      PartOfSpeech = "verb"
	Adjective PartOfSpeech = "adjective"
	Adverb    PartOfSpeech = "adverb"
)

// Categories lists the recognized parts of speech in the order they are reported.
var Categories = []PartOfSpeech{Noun, Verb, Adjective, Adverb}

// Entry is the normalized definition data for one stem. PartsOfSpeech and
// Definitions are parallel: Definitions[i] belongs to PartsOfSpeech[i].
type Entry struct {
	PartsOfSpeech []PartOfSpeech
	Definitions   []string
}

// Empty reports whether no category produced a definition.
func (e Entry) Empty() bool { return len(e.Definitions) == 0 }

// Meaning matches the "meaning" object of a definition response.
type Meaning struct {
	Noun      string `json:"noun"`
	Verb      string `json:"verb"`
	Adjective string `json:"adjective"`
	Adverb    string `json:"adverb"`
}

func (m Meaning) get(pos PartOfSpeech) string {
	switch pos {
	case Noun:
		return m.Noun
	case Verb:
		return m.Verb
	case Adjective:
		return m.Adjective
	case Adverb:
		return m.Adverb
	}
	return ""
}

// The service prefixes every sense with one of these tags.
var tagStripper = strings.NewReplacer("(nou)", "", "(vrb)", "", "(adj)", "", "(adv)", "")

// ParseMeaning converts a meaning object into an Entry, skipping empty categories.
func ParseMeaning(m Meaning) Entry {
	var e Entry
	for _, pos := range Categories {
		def := m.get(pos)
		if def == "" {
			continue
		}
		e.PartsOfSpeech = append(e.PartsOfSpeech, pos)
		e.Definitions = append(e.Definitions, strings.TrimSpace(tagStripper.Replace(def)))
	}
	return e
}
