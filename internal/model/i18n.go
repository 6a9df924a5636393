package model

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// typeMessages are the display strings of the known type tags.
var typeMessages = map[language.Tag]map[string]string{
	language.English: {
		TypeEvent:   "Event",
		TypeNode:    "Node",
		TypeClick:   "Click",
		TypeSubmit:  "Submit",
		TypeStorage: "Storage",
	},
	language.Japanese: {
		TypeEvent:   "イベント",
		TypeNode:    "ノード",
		TypeClick:   "クリック",
		TypeSubmit:  "送信",
		TypeStorage: "ストレージ",
	},
}

func init() {
	for tag, msgs := range typeMessages {
		for key, msg := range msgs {
			// SetString only fails on an invalid tag; the tags above are constants.
			_ = message.SetString(tag, key, msg) //nolint:errcheck
		}
	}
}

// LocalizedType renders a type tag for display in the given language.
// Unknown tags are returned unchanged.
func LocalizedType(typeTag string, lang language.Tag) string {
	p := message.NewPrinter(lang)
	return p.Sprintf(message.Key(typeTag, typeTag))
}
