package dialog

import "strings"

// fillerWords are utterances that carry no answer on their own.
var fillerWords = map[string]bool{
	"um":   true,
	"umm":  true,
	"uh":   true,
	"uhh":  true,
	"er":   true,
	"ah":   true,
	"hmm":  true,
	"hm":   true,
	"huh":  true,
	"what": true,
	"oh":   true,
	"so":   true,
	"well": true,
}

// validTranscript decides whether an utterance is worth interpreting at the
// current step, or should be re-prompted.
func validTranscript(step Step, text string, confidence float64) bool {
	t := strings.TrimSpace(text)
	if len([]rune(t)) < 2 {
		return false
	}

	// A short transcript the recognizer was unsure about is more likely
	// noise than an answer. The opening job description is exempt since
	// it is the one answer we can't afford to throw away.
	if step != StepJob && step != StepIntent {
		if confidence > 0 && confidence < confidenceFloor && len(t) < 12 {
			return false
		}
	}

	// Confirmation and slot-choice answers are legitimately one word.
	if step == StepConfirm || step == StepPickSlot {
		return true
	}

	words := strings.Fields(strings.ToLower(t))
	if len(words) == 1 && fillerWords[strings.Trim(words[0], ".,!?")] {
		return false
	}

	// An address is never a single word.
	if step == StepAddress && len(words) < 2 {
		return false
	}

	return true
}

// counterField maps a step to its bounded-retry counter, or "" when the step
// re-prompts without a limit.
func counterField(step Step) string {
	switch step {
	case StepAddress:
		return "address"
	case StepTime, StepPickSlot:
		return "time"
	default:
		return ""
	}
}

var ordinalWords = map[string]int{
	"first":  0,
	"1":      0,
	"one":    0,
	"second": 1,
	"2":      1,
	"two":    1,
	"third":  2,
	"3":      2,
	"three":  2,
}

// parseOrdinal picks a proposed slot by position. "last" means the final
// offered slot however many there were.
func parseOrdinal(text string, count int) (int, bool) {
	if count == 0 {
		return 0, false
	}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,!?")
		if w == "last" {
			return count - 1, true
		}
		if idx, ok := ordinalWords[w]; ok && idx < count {
			return idx, true
		}
	}
	return 0, false
}

type confirmAnswer int

const (
	confirmOther confirmAnswer = iota
	confirmYes
	confirmNo
	confirmUpdate
)

var confirmYesWords = map[string]bool{
	"yes": true, "yeah": true, "yep": true, "yup": true,
	"sure": true, "ok": true, "okay": true, "righto": true,
	"correct": true, "confirm": true, "sweet": true, "beauty": true,
}

var confirmNoWords = map[string]bool{
	"no": true, "nah": true, "nope": true, "cancel": true,
}

// classifyConfirm reads the caller's answer to the final confirmation.
// "update" is only meaningful when an existing booking was found.
func classifyConfirm(text string, hasDuplicate bool) confirmAnswer {
	lower := strings.ToLower(strings.TrimSpace(text))

	if hasDuplicate {
		if strings.Contains(lower, "update") || strings.Contains(lower, "replace") {
			return confirmUpdate
		}
	}

	for _, w := range strings.Fields(lower) {
		w = strings.Trim(w, ".,!?")
		if confirmYesWords[w] {
			return confirmYes
		}
		if confirmNoWords[w] {
			return confirmNo
		}
	}
	if strings.Contains(lower, "different time") || strings.Contains(lower, "another time") {
		return confirmNo
	}
	return confirmOther
}
