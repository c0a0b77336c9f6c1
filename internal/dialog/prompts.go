package dialog

import (
	"fmt"
	"strings"

	"github.com/wrenchline/wrenchline/internal/scheduling"
	"github.com/wrenchline/wrenchline/internal/tenant"
)

func promptGreeting(cfg *tenant.Config) string {
	return fmt.Sprintf("Thanks for calling %s. What can we help you with today?", cfg.Name)
}

func promptJob() string {
	return "Righto. What's the job? A quick description is fine."
}

func promptEmergencyAddress() string {
	return "Sorry to hear that, let's get someone out quick. What's the address?"
}

func promptAddress() string {
	return "What's the address for the job?"
}

func promptName() string {
	return "And what's your name?"
}

func promptCancelName() string {
	return "No worries, I can sort that out. What's the name the booking is under?"
}

func promptAccess() string {
	return "Anything we should know about getting in? Gate codes, dogs, parking, that sort of thing."
}

func promptTime() string {
	return "When would suit you? You can say something like tomorrow morning or Friday at 2."
}

func promptSlots(slots []scheduling.Slot, cfg *tenant.Config) string {
	ordinals := []string{"first", "second", "third"}
	loc := cfg.Location()
	parts := make([]string, 0, len(slots))
	for i, s := range slots {
		if i >= len(ordinals) {
			break
		}
		parts = append(parts, fmt.Sprintf("the %s is %s", ordinals[i], s.Start.In(loc).Format("Monday at 3:04pm")))
	}
	return fmt.Sprintf("That exact time's taken, but I've got a few options: %s. Which one works?", strings.Join(parts, ", "))
}

func promptConfirm(s *CallSession, whenText string) string {
	return fmt.Sprintf("Just to confirm: %s at %s, %s. Shall I lock that in?", s.Job, s.Address, whenText)
}

func promptConfirmWithDuplicate(s *CallSession, whenText string) string {
	return fmt.Sprintf(
		"I can see we've already got a booking for you: %s. Say update to replace it with %s, yes to keep both, or no to pick another time.",
		s.Duplicate.When, whenText)
}

func promptSilence() string {
	return "Sorry, I didn't hear anything there. Are you still with me?"
}

const (
	messageEscalation = "Sorry, I'm having trouble getting that down. I'll have someone call you right back to sort it out."

	messageSilenceHangup = "Sounds like a bad line. We've got your number and someone will call you back shortly."

	messageApology = "Sorry, something's gone wrong on our end. Someone will call you right back."

	messageManualFollowUp = "I couldn't lock that time in just now, but we've got your details and we'll text you shortly to confirm."

	messageQuoteDone = "Beauty, I've got everything I need. We'll get back to you with a quote shortly."

	messageCancelDone = "No worries, I've passed that on. Someone will call you back shortly to sort out the new time."
)

func messageBooked(whenText string) string {
	return fmt.Sprintf("You're all booked for %s. We've sent you a text, just reply Y to confirm. See you then!", whenText)
}
