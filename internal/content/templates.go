package content

import (
	"fmt"
	"html"
)

const (
	WelcomeSubject      = "Welcome!"
	MotivationalSubject = "Your weekly motivational email is here!"

	signature = "<p>Bestie - an automated email sender.</p>"
)

// Welcome is sent once when a recipient joins.
func Welcome() (subject, body string) {
	body = "<p>We will send you weekly emails to let you know that you're doing great.</p>" +
		"<p>Our motivational messages are delivered every <strong>Sunday, 12:00 PM Local Cairo Time</strong>.</p>" +
		"<p>Stay tuned!</p>" +
		"<p>Warmly, Your motivational best friend.</p>"
	return WelcomeSubject, body
}

// Motivational wraps the generated message for the weekly cadence.
func Motivational(message string) (subject, body string) {
	body = fmt.Sprintf("<p>%s</p><p>Wishing you a wonderful week,</p>%s", message, signature)
	return MotivationalSubject, body
}

// Anniversary wraps the generated message for one recipient's anniversary.
func Anniversary(name string, years int, message string) (subject, body string) {
	subject = fmt.Sprintf("Happy anniversary, %s! %d years today 🎉", name, years)
	body = fmt.Sprintf("<p>%s, today is a very special day 🎂.</p><p>%s</p><p>All the best,</p>%s",
		html.EscapeString(name), message, signature)
	return subject, body
}

// UnsubscribeFooter is appended to every cadence message.
func UnsubscribeFooter(link string) string {
	return fmt.Sprintf(`<p>To unsubscribe, <a href="%s" target="_blank">click here</a>.</p>`, html.EscapeString(link))
}
