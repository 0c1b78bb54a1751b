package thread

import (
	"slices"

	"github.com/dmitrijs2005/quickchat/internal/client/models"
)

// Merge folds incoming messages into list by ID and returns a new list
// sorted ascending by CreatedAt. Messages already present are replaced,
// nothing is ever dropped, and ties keep arrival order. Messages without an
// ID are ignored.
func Merge(list []models.Message, incoming ...models.Message) []models.Message {
	out := slices.Clone(list)

	for _, m := range incoming {
		if m.ID == "" {
			continue
		}
		if i := slices.IndexFunc(out, func(x models.Message) bool { return x.ID == m.ID }); i >= 0 {
			out[i] = m
			continue
		}
		out = append(out, m)
	}

	return sortByTime(out)
}

func sortByTime(list []models.Message) []models.Message {
	slices.SortStableFunc(list, func(a, b models.Message) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return list
}

// SnapshotDiffers reports whether fetched differs from the confirmed
// messages of local by length or by the ID at any position.
func SnapshotDiffers(local, fetched []models.Message) bool {
	confirmed := confirmedOnly(local)
	if len(confirmed) != len(fetched) {
		return true
	}
	for i := range confirmed {
		if confirmed[i].ID != fetched[i].ID {
			return true
		}
	}
	return false
}

func confirmedOnly(list []models.Message) []models.Message {
	out := make([]models.Message, 0, len(list))
	for _, m := range list {
		if m.Confirmed() {
			out = append(out, m)
		}
	}
	return out
}
