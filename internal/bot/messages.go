package bot

import (
	"fmt"
	"strings"
	"time"
)

const (
	msgLocked         = "While you are solving the olympiad only /help is available."
	msgAlreadyReg     = "You are already registered for the olympiad."
	msgNeedHandle     = "To register you need a public @username in Telegram.\nHow to set it:\n1. Open Telegram.\n2. Go to Settings.\n3. Fill in the Username field.\nThen send /register again."
	msgAskPassword    = "Enter the password given by the organizer:"
	msgWrongPassword  = "The password is wrong. Check it and try again."
	msgNotRegistered  = "You are not registered for the olympiad. Please register with /register."
	msgAskCode        = "Enter your personal code:"
	msgWrongCode      = "The code is wrong. Try again or ask for support with /help."
	msgWindowOpen     = "Your tasks are already issued and the timer is running."
	msgDeliveryFailed = "Could not send the task file. Please try again."
	msgOutsidePeriod  = "Now is not the time for this. Please wait for the olympiad period. See /stat."
	msgNotPDF         = "Please send your solution as a PDF file."
	msgAlreadySent    = "You have already sent your solution."
	msgNoWindow       = "Get the tasks first with /get_tasks to start the timer, then send your solution."
	msgTimeout        = "Unfortunately you did not send your solution before the timer ran out. Contact support for details."
	msgSubmitFailed   = "Something went wrong while saving your file. Please send it again."
	msgStorageFailed  = "Something went wrong on our side. Please try again."
	msgNoRights       = "You do not have permission to run this command."
	msgStarted        = "The olympiad has started!"
	msgUnknown        = "Unknown command. Use /help to see what you can do."
	msgNoSubmissions  = "Nobody has sent a solution yet."
	msgNoScores       = "No participants have points yet."
	msgAskHandles     = "Send the @usernames of the participants to remove, one per line:"
	msgAskSolution    = "Send a participant's personal code to get their solution:"
	msgSolutionAbsent = "Wrong code or the participant has not sent a solution."
	msgScoreFormat    = "Wrong format. Example: @username - [20] points"
	msgUserNotFound   = "No participant with this username."
	msgAskOrganizerID = "Enter the ID of the user to make an organizer:"
	msgBadOrganizerID = "Invalid user ID. Enter a number."
)

func helpText(window time.Duration) string {
	return fmt.Sprintf(`Olympiad bot commands:
/start - greeting
/register - register with the organizer's password
/stat - olympiad period status
/get_tasks - receive the tasks (the %s timer starts immediately)
/help - this message

Send your solution as a PDF document before the timer runs out.
While the timer runs only /help is available.`, formatClock(window))
}

const organizerHelp = `
Organizer commands:
/registered_users - list registered participants
/delete_users - remove participants by @username
/results - list submissions and fetch a solution by code
/result_olymp - set a participant's points
/list_balls - list participants with points
/add_admin - add an organizer`

func startText(name string) string {
	if name == "" {
		name = "participant"
	}
	return fmt.Sprintf("Hi, %s. Glad to see you at this olympiad. To take part, press /register.", name)
}

func registeredText(code string) string {
	return fmt.Sprintf("You are registered for the olympiad. Your personal code: %s. Use /stat to check the olympiad period and /help for support.", code)
}

func tasksSentText(window time.Duration) string {
	return fmt.Sprintf("The tasks are sent. You have %s to solve them.", formatClock(window))
}

func receiptText(elapsed time.Duration) string {
	return fmt.Sprintf("We received your work and will let you know the result. You solved the tasks in %s.", formatClock(elapsed))
}

func progressText(remaining time.Duration) string {
	return "Timer (running): " + formatClock(remaining)
}

// formatClock renders d as HH:MM:SS, truncating to whole seconds.
func formatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	s := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s%3600)/60, s%60)
}

// formatSpan renders d as days, hours, minutes and seconds for /stat.
func formatSpan(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	s := int64(d / time.Second)
	days := s / 86400
	s %= 86400
	return fmt.Sprintf("%d days, %d hours, %d minutes, %d seconds", days, s/3600, (s%3600)/60, s%60)
}

func handleOrPlaceholder(h string) string {
	if h == "" {
		return "(no username)"
	}
	return "@" + strings.TrimPrefix(h, "@")
}
