package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Client is a durable client record created when an intake is submitted.
type Client struct {
	ID                    string      `json:"id"`
	Code                  string      `json:"clientCode"`
	FirstName             string      `json:"firstName"`
	LastName              string      `json:"lastName"`
	DateOfBirth           string      `json:"dateOfBirth,omitempty"`
	Gender                string      `json:"gender,omitempty"`
	MaritalStatus         string      `json:"maritalStatus,omitempty"`
	AssociatedSpouseID    string      `json:"associatedSpouseID,omitempty"`
	HousingStatus         string      `json:"housingStatus,omitempty"`
	HeadOfHousehold       string      `json:"headOfHousehold,omitempty"`
	FamilyMembersServiced string      `json:"familyMembersServiced,omitempty"`
	Intake                *IntakeForm `json:"intake,omitempty"`
	CreatedAt             time.Time   `json:"createdAt"`
	UpdatedAt             time.Time   `json:"updatedAt"`
}

// FromIntake builds a new Client from a submitted form, assigning a fresh ID
// and stamping creation/update times. The form is copied, not shared.
func FromIntake(form *IntakeForm, code string) *Client {
	now := time.Now().UTC()
	snap := form.Clone()
	return &Client{
		ID:                    uuid.NewString(),
		Code:                  code,
		FirstName:             strings.TrimSpace(snap.FirstName),
		LastName:              strings.TrimSpace(snap.LastName),
		DateOfBirth:           snap.DateOfBirth,
		Gender:                snap.Gender,
		MaritalStatus:         snap.MaritalStatus,
		AssociatedSpouseID:    snap.AssociatedSpouseID,
		HousingStatus:         snap.HousingStatus,
		HeadOfHousehold:       snap.HeadOfHousehold,
		FamilyMembersServiced: snap.FamilyMembersServiced,
		Intake:                snap,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
}

// FullName joins the first and last name.
func (c *Client) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Income returns the client's own income as entered on the intake, if any.
func (c *Client) Income() string {
	if c.Intake == nil {
		return ""
	}
	return c.Intake.Income
}

// SpouseSummary is the read-only view of a linked spouse's client record.
type SpouseSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Code        string `json:"clientCode"`
	DateOfBirth string `json:"dateOfBirth,omitempty"`
	Gender      string `json:"gender,omitempty"`
	Income      string `json:"income,omitempty"`
}

// Summary returns the spouse-facing summary of c.
func (c *Client) Summary() *SpouseSummary {
	return &SpouseSummary{
		ID:          c.ID,
		Name:        c.FullName(),
		Code:        c.Code,
		DateOfBirth: c.DateOfBirth,
		Gender:      c.Gender,
		Income:      c.Income(),
	}
}

// CheckIn is a scheduled follow-up with a client.
type CheckIn struct {
	ID          string    `json:"id"`
	ClientID    string    `json:"clientId"`
	ScheduledAt time.Time `json:"scheduledAt"`
	Note        string    `json:"note,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NewCheckIn returns a scheduled CheckIn with a fresh ID.
func NewCheckIn(clientID string, at time.Time, note string) *CheckIn {
	return &CheckIn{
		ID:          uuid.NewString(),
		ClientID:    clientID,
		ScheduledAt: at.UTC(),
		Note:        note,
		Status:      CheckInScheduled,
		CreatedAt:   time.Now().UTC(),
	}
}

// HousingChange records one housing-status transition for a client.
type HousingChange struct {
	ClientID   string    `json:"clientId"`
	Status     string    `json:"status"`
	RecordedAt time.Time `json:"recordedAt"`
}

// SubmitResult is returned from Service.SubmitIntake.
type SubmitResult struct {
	ID       string    `json:"id"`
	Code     string    `json:"clientCode"`
	FilePath string    `json:"filePath,omitempty"`
	Warnings []Warning `json:"warnings,omitempty"`
}

// Dashboard summarises the caseload.
type Dashboard struct {
	TotalClients     int            `json:"totalClients"`
	ByHousingStatus  map[string]int `json:"byHousingStatus"`
	UpcomingCheckIns []CheckIn      `json:"upcomingCheckIns"`
}
