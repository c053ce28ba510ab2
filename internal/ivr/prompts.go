package ivr

import "strings"

// Spoken prompts. Gateways speak these verbatim.
const (
	PromptGreeting         = "Welcome to the Kisan advisory helpline. Please say your username."
	PromptAskUsername      = "Please say your username."
	PromptUsernameAccepted = "Username received. Please say your PIN."
	PromptUsernameRetry    = "Username not recognized. Please try again."
	PromptAskPIN           = "Please say your PIN."
	PromptVerified         = "Verification successful. How can I help you today?"
	PromptPINRetry         = "Incorrect PIN. Please try again."
	PromptVerifyFailed     = "Verification failed. Goodbye."
	PromptListening        = "I'm listening. How can I help?"
	PromptFarewell         = "Thank you for calling. Have a good day."
	PromptSystemError      = "Sorry, we are facing a system error. Please call again later."

	answerTrailer = "Do you have any other question?"
)

// endPhrases end the call when any of them appears anywhere in the caller's answer.
var endPhrases = []string{"no", "nothing", "bye", "goodbye", "finish", "done", "stop"}

// IsEndOfCall reports whether input contains an end-of-call phrase,
// ignoring case. Substrings count, so "nope" and "finished" end the call.
func IsEndOfCall(input string) bool {
	lower := strings.ToLower(input)
	for _, p := range endPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// composeAnswer appends the follow-up question to an advisory reply.
func composeAnswer(reply string) string {
	reply = strings.TrimRight(strings.TrimSpace(reply), ". ")
	if reply == "" {
		return answerTrailer
	}
	return reply + ". " + answerTrailer
}
