package discord

import "fmt"

// WaitlistJoinedMessage announces a new waitlist signup.
func WaitlistJoinedMessage(email, instructorName, typeLabel string) string {
    return fmt.Sprintf("📝 **%s** joined the %s waitlist for **%s**", email, typeLabel, instructorName)
}

// InventoryExhaustedMessage tells admins an offer just sold out and how
// many people are waiting for it.
func InventoryExhaustedMessage(instructorName, typeLabel string, waiting int) string {
    people := "people are"
    if waiting == 1 {
        people = "person is"
    }
    return fmt.Sprintf("🔴 %s spots for **%s** are sold out. %d %s on the waitlist.", typeLabel, instructorName, waiting, people)
}

// WaitlistNotifiedMessage summarizes one notification fan-out.
func WaitlistNotifiedMessage(instructorName, typeLabel string, sent, failed int) string {
    msg := fmt.Sprintf("🟢 %s spots for **%s** reopened. Notified %d waitlisted %s.", typeLabel, instructorName, sent, plural(sent, "person", "people"))
    if failed > 0 {
        msg += fmt.Sprintf(" %d %s failed.", failed, plural(failed, "email", "emails"))
    }
    return msg
}

// SessionBookedMessage is posted to the admin channel on a new booking.
func SessionBookedMessage(sessionID, when string, remaining int) string {
    return fmt.Sprintf("📅 New session `%s` booked for %s (%d left in pack)", sessionID, when, remaining)
}

func plural(n int, one, many string) string {
    if n == 1 {
        return one
    }
    return many
}
