package db

import "slices"

// PreferenceEveryone is the only catch-all preference. "Other" is an ordinary value.
const PreferenceEveryone = "Everyone"

var (
	Colleges    = []string{"CEA", "CAS", "CBA", "CCS", "CED", "CON"}
	Genders     = []string{"Male", "Female", "Other"}
	Preferences = []string{"Male", "Female", "Other", PreferenceEveryone}
	LookingFor  = []string{"Friends", "Dating", "Serious", "Not sure"}
)

const (
	MinYearLevel = 1
	MaxYearLevel = 6 // 6 means sixth year or later
)

func ValidCollege(v string) bool    { return slices.Contains(Colleges, v) }
func ValidGender(v string) bool     { return slices.Contains(Genders, v) }
func ValidPreference(v string) bool { return slices.Contains(Preferences, v) }
func ValidLookingFor(v string) bool { return slices.Contains(LookingFor, v) }

// Compatible reports whether candidate c may be shown to requester r.
// Both directions must hold. A requester without gender or preference skips the check.
func Compatible(r, c *PublicFields) bool {
	if r.Gender == "" || r.PreferredGender == "" {
		return true
	}
	wantsC := r.PreferredGender == PreferenceEveryone || c.Gender == r.PreferredGender
	wantsR := c.PreferredGender == PreferenceEveryone || c.PreferredGender == r.Gender
	return wantsC && wantsR
}
