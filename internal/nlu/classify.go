package nlu

import (
	"regexp"
	"strings"
)

// Keyword-list helpers. These are deliberately shallow; the model does the
// real understanding, these only feed telemetry and cheap routing.

var (
	deviceKeywords   = []string{"light", "lights", "thermostat", "temperature", "door", "lock", "camera"}
	locationKeywords = []string{"living room", "bedroom", "kitchen", "bathroom", "garage"}
	timeKeywords     = []string{"morning", "afternoon", "evening", "tonight", "today", "tomorrow"}

	numberRe = regexp.MustCompile(`\b\d+\b`)
)

type Entities struct {
	Devices   []string `json:"devices"`
	Locations []string `json:"locations"`
	Times     []string `json:"times"`
	Numbers   []string `json:"numbers"`
}

func ExtractEntities(text string) Entities {
	lower := strings.ToLower(text)

	var e Entities
	for _, kw := range deviceKeywords {
		if strings.Contains(lower, kw) {
			e.Devices = append(e.Devices, kw)
		}
	}
	for _, kw := range locationKeywords {
		if strings.Contains(lower, kw) {
			e.Locations = append(e.Locations, kw)
		}
	}
	for _, kw := range timeKeywords {
		if strings.Contains(lower, kw) {
			e.Times = append(e.Times, kw)
		}
	}
	e.Numbers = numberRe.FindAllString(text, -1)

	return e
}

// ClassifyIntent is first-match-wins in a fixed priority order:
// control, query, reminder, media, communication, then general.
func ClassifyIntent(text string) string {
	lower := strings.ToLower(text)

	switch {
	case containsAny(lower, "turn on", "turn off", "set", "adjust"):
		return "control"
	case containsAny(lower, "what", "when", "where", "how", "who"):
		return "query"
	case containsAny(lower, "remind me", "set alarm", "schedule"):
		return "reminder"
	case containsAny(lower, "play", "stop", "pause", "next", "previous"):
		return "media"
	case containsAny(lower, "send", "message", "call", "text"):
		return "communication"
	default:
		return "general"
	}
}

var uncertainPhrases = []string{
	"i'm not sure",
	"i don't know",
	"maybe",
	"perhaps",
	"i think",
}

// ConfidenceScore is a crude reply-quality heuristic: hedging language
// halves the default confidence.
func ConfidenceScore(reply string) float64 {
	lower := strings.ToLower(reply)
	for _, phrase := range uncertainPhrases {
		if strings.Contains(lower, phrase) {
			return 0.5
		}
	}
	return 0.8
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
