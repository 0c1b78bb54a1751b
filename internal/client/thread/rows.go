package thread

import (
	"time"

	"github.com/dmitrijs2005/quickchat/internal/client/models"
)

// Row is either a day header or a message.
type Row struct {
	Header  bool
	Day     time.Time
	Message *models.Message
}

// Rows interleaves day headers with messages: one before the first message
// and one whenever the calendar day in loc changes.
func Rows(messages []models.Message, loc *time.Location) []Row {
	rows := make([]Row, 0, len(messages)+1)

	var prev time.Time
	for i := range messages {
		day := startOfDay(messages[i].CreatedAt.In(loc))
		if i == 0 || !day.Equal(prev) {
			rows = append(rows, Row{Header: true, Day: day})
			prev = day
		}
		rows = append(rows, Row{Day: day, Message: &messages[i]})
	}
	return rows
}

// DayLabel names day relative to now: "Today", "Yesterday", or a long date.
func DayLabel(day, now time.Time) string {
	d := startOfDay(day)
	today := startOfDay(now.In(day.Location()))

	switch {
	case d.Equal(today):
		return "Today"
	case d.Equal(today.AddDate(0, 0, -1)):
		return "Yesterday"
	default:
		return d.Format("Monday, January 2, 2006")
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
