package thread

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/quickchat/internal/client/models"
	"github.com/stretchr/testify/assert"
)

func at(s string) models.Message {
	t, err := time.Parse("2006-01-02T15:04", s)
	if err != nil {
		panic(err)
	}
	return models.Message{ID: s, CreatedAt: t}
}

func headers(rows []Row) int {
	n := 0
	for _, r := range rows {
		if r.Header {
			n++
		}
	}
	return n
}

func TestRows_HeaderPerDay(t *testing.T) {
	rows := Rows([]models.Message{at("2024-01-01T10:00"), at("2024-01-02T09:00")}, time.UTC)
	assert.Len(t, rows, 4)
	assert.Equal(t, 2, headers(rows))
	assert.True(t, rows[0].Header)
	assert.True(t, rows[2].Header)
	assert.Equal(t, 2, rows[2].Day.Day())
}

func TestRows_SharedHeaderSameDay(t *testing.T) {
	rows := Rows([]models.Message{at("2024-01-01T10:00"), at("2024-01-01T11:00")}, time.UTC)
	assert.Len(t, rows, 3)
	assert.Equal(t, 1, headers(rows))
	assert.Equal(t, "2024-01-01T11:00", rows[2].Message.ID)
}

func TestRows_UsesLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	// 14:00 and 16:00 UTC fall on different days in JST.
	rows := Rows([]models.Message{at("2024-01-01T14:00"), at("2024-01-01T16:00")}, tokyo)
	assert.Equal(t, 2, headers(rows))
}

func TestRows_Empty(t *testing.T) {
	assert.Empty(t, Rows(nil, time.UTC))
}

func TestDayLabel(t *testing.T) {
	now := time.Date(2024, 3, 10, 8, 30, 0, 0, time.UTC)

	assert.Equal(t, "Today", DayLabel(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), now))
	assert.Equal(t, "Today", DayLabel(time.Date(2024, 3, 10, 23, 59, 0, 0, time.UTC), now))
	assert.Equal(t, "Yesterday", DayLabel(time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC), now))
	assert.Equal(t, "Friday, March 8, 2024", DayLabel(time.Date(2024, 3, 8, 12, 0, 0, 0, time.UTC), now))
	assert.Equal(t, "Monday, January 1, 2024", DayLabel(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), now))
}
