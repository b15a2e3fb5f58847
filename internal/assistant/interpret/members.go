package interpret

import (
	"strings"

	"hearth/internal/entity"
)

// selfPronouns mark a message as being about the sender's own things
// ("show my wishlist").
var selfPronouns = []string{"my", "me", "mine", "i"}

// ResolveTarget decides which family member a message is about.
// Self-referential pronouns win outright. Otherwise every member whose
// name appears (case-insensitively) as a substring of the message is a
// candidate and the longest name wins ties, so "Maxine" is never
// shadowed by "Max". With no match the sender's own member is used,
// then the first roster entry.
func ResolveTarget(message string, roster []entity.FamilyMember, self *entity.FamilyMember) *entity.FamilyMember {
	lower := strings.ToLower(message)

	if self != nil && containsSelfPronoun(lower) {
		return self
	}

	var best *entity.FamilyMember
	for i := range roster {
		m := &roster[i]
		if m.Name == "" {
			continue
		}
		if !strings.Contains(lower, strings.ToLower(m.Name)) {
			continue
		}
		if best == nil || len(m.Name) > len(best.Name) {
			best = m
		}
	}
	if best != nil {
		return best
	}

	if self != nil {
		return self
	}
	if len(roster) > 0 {
		return &roster[0]
	}
	return nil
}

func containsSelfPronoun(lowerMessage string) bool {
	words := strings.FieldsFunc(lowerMessage, func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9') && r != '\''
	})
	for _, w := range words {
		for _, p := range selfPronouns {
			if w == p {
				return true
			}
		}
	}
	return false
}
