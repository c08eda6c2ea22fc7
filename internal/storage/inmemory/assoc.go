package inmemory

import (
	"time"

	"github.com/UkralStul/echonymous/internal/domain"
)

// assocSet holds (target, user) associations with their creation time.
// The nested map makes a second record for the same pair unrepresentable.
type assocSet map[string]map[string]time.Time

func (a assocSet) toggle(targetID, userID string, now time.Time) domain.ToggleResult {
	users := a[targetID]
	if _, ok := users[userID]; ok {
		delete(users, userID)
		if len(users) == 0 {
			delete(a, targetID)
		}
		return domain.ToggleResult{Active: false, Count: len(users)}
	}

	if users == nil {
		users = make(map[string]time.Time)
		a[targetID] = users
	}
	users[userID] = now
	return domain.ToggleResult{Active: true, Count: len(users)}
}

func (a assocSet) count(targetID string) int { return len(a[targetID]) }

func (a assocSet) has(targetID, userID string) bool {
	_, ok := a[targetID][userID]
	return ok
}

func (a assocSet) drop(targetID string) { delete(a, targetID) }
