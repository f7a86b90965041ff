// Package models defines the core data types for the intake system.
package models

// YesNo is a three-valued answer; the empty string means "not answered yet".
type YesNo = string

// Answers to yes/no questions.
const (
	Yes        YesNo = "Yes"
	No         YesNo = "No"
	Unanswered YesNo = ""
)

// Marital status values.
const (
	Single    = "Single"
	Married   = "Married"
	Divorced  = "Divorced"
	Widowed   = "Widowed"
	Separated = "Separated"
	Other     = "Other"
)

// ValidMaritalStatuses lists the accepted maritalStatus values.
var ValidMaritalStatuses = []string{Single, Married, Divorced, Widowed, Separated, Other}

// Housing status values.
const (
	Housed       = "Housed"
	Unhoused     = "Unhoused"
	Shelter      = "Shelter"
	Transitional = "Transitional"
	AtRisk       = "At Risk"
)

// ValidHousingStatuses lists the accepted housingStatus values in display order.
var ValidHousingStatuses = []string{Housed, Unhoused, Shelter, Transitional, AtRisk}

// Pet sizes and purposes.
const (
	PetSmall  = "Small"
	PetMedium = "Medium"
	PetLarge  = "Large"

	PurposeCompanion        = "Companion"
	PurposeEmotionalSupport = "Emotional Support"
	PurposeService          = "Service"
)

// Check-in statuses.
const (
	CheckInScheduled = "scheduled"
	CheckInCompleted = "completed"
	CheckInMissed    = "missed"
)

// IsValidHousingStatus reports whether s is one of ValidHousingStatuses.
func IsValidHousingStatus(s string) bool {
	for _, v := range ValidHousingStatuses {
		if v == s {
			return true
		}
	}
	return false
}
