package models

import (
	json "github.com/goccy/go-json"
)

// IntakeForm is the in-progress state of one client intake session.
//
// Numbers are kept as free text so partially typed input survives a round trip.
// Fields tagged `validate` are checked at every step; `submit` adds the fields
// required before a client record can be created.
type IntakeForm struct {
	FirstName     string `json:"firstName,omitempty" validate:"omitempty,max=100" submit:"required"`
	LastName      string `json:"lastName,omitempty" validate:"omitempty,max=100" submit:"required"`
	DateOfBirth   string `json:"dateOfBirth,omitempty" validate:"omitempty,isodate" submit:"required"`
	Age           *int   `json:"age,omitempty"`
	Gender        string `json:"gender,omitempty" validate:"omitempty,oneof=Male Female Non-binary Other 'Prefer not to say'" submit:"required"`
	PhoneNumber   string `json:"phoneNumber,omitempty" validate:"omitempty,max=32"`
	Email         string `json:"email,omitempty" validate:"omitempty,email"`
	Income        string `json:"income,omitempty"`
	HousingStatus string `json:"housingStatus,omitempty" validate:"omitempty,oneof=Housed Unhoused Shelter Transitional 'At Risk'" submit:"required"`
	Notes         string `json:"notes,omitempty"`

	MaritalStatus      string  `json:"maritalStatus,omitempty" validate:"omitempty,oneof=Single Married Divorced Widowed Separated Other" submit:"required"`
	SpouseClientStatus YesNo   `json:"spouseClientStatus,omitempty" validate:"omitempty,oneof=Yes No"`
	AssociatedSpouseID string  `json:"associatedSpouseID,omitempty"`
	Spouse             *Spouse `json:"spouse,omitempty"`

	HeadOfHousehold       YesNo       `json:"headOfHousehold,omitempty" validate:"omitempty,oneof=Yes No" submit:"required"`
	FamilySize            string      `json:"familySize,omitempty" validate:"omitempty,count"`
	Dependent             []Dependent `json:"dependent,omitempty" validate:"dive" submit:"dive"`
	Pets                  []Pet       `json:"pets,omitempty" validate:"dive"`
	FamilyMembersServiced string      `json:"familyMembersServiced,omitempty"`

	// Extra holds keys this version does not know about; they are written
	// back unchanged.
	Extra map[string]json.RawMessage `json:"-"`
}

// Spouse is the free-text spouse record used when the spouse is not a client.
type Spouse struct {
	FirstName string `json:"spouseFirstName,omitempty" validate:"omitempty,max=100"`
	LastName  string `json:"spouseLastName,omitempty" validate:"omitempty,max=100"`
	DOB       string `json:"spouseDOB,omitempty" validate:"omitempty,isodate"`
	Income    string `json:"spouseIncome,omitempty"`
	Gender    string `json:"spouseGender,omitempty" validate:"omitempty,oneof=Male Female Non-binary Other 'Prefer not to say'"`
	Age       *int   `json:"spouseAge,omitempty"`
}

// IsZero reports whether no spouse data has been entered.
func (s *Spouse) IsZero() bool {
	return s == nil || *s == Spouse{}
}

// Dependent is one member of a head-of-household client's family.
type Dependent struct {
	FirstName string `json:"firstName,omitempty" validate:"omitempty,max=100" submit:"required"`
	LastName  string `json:"lastName,omitempty" validate:"omitempty,max=100"`
	DOB       string `json:"dob,omitempty" validate:"omitempty,isodate" submit:"required"`
	Gender    string `json:"gender,omitempty" validate:"omitempty,oneof=Male Female Non-binary Other 'Prefer not to say'"`
	Income    string `json:"income,omitempty"`

	GeneralRelief    YesNo  `json:"generalRelief,omitempty" validate:"omitempty,oneof=Yes No"`
	GeneralReliefAid string `json:"generalReliefAid,omitempty"`
	CalFresh         YesNo  `json:"calFresh,omitempty" validate:"omitempty,oneof=Yes No"`
	CalFreshAid      string `json:"calFreshAid,omitempty"`
	CalWorks         YesNo  `json:"calWorks,omitempty" validate:"omitempty,oneof=Yes No"`
	CalWorksAid      string `json:"calWorksAid,omitempty"`
	SSI              YesNo  `json:"ssi,omitempty" validate:"omitempty,oneof=Yes No"`
	SSIAid           string `json:"ssiAid,omitempty"`
	SSA              YesNo  `json:"ssa,omitempty" validate:"omitempty,oneof=Yes No"`
	SSAAid           string `json:"ssaAid,omitempty"`
	Unemployment     YesNo  `json:"unemployment,omitempty" validate:"omitempty,oneof=Yes No"`
	UnemploymentAid  string `json:"unemploymentAid,omitempty"`
	OtherService     YesNo  `json:"otherService,omitempty" validate:"omitempty,oneof=Yes No"`
	OtherServiceAid  string `json:"otherServiceAid,omitempty"`

	Age         *int   `json:"age,omitempty"`
	TotalIncome string `json:"totalIncome,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// IncomeField names one income-bearing free-text field of a Dependent.
type IncomeField struct {
	Key   string // JSON name
	Label string // human label used in warnings
}

// DependentIncomeFields lists the eight fields summed into TotalIncome, in
// display order.
var DependentIncomeFields = []IncomeField{
	{"income", "Income"},
	{"generalReliefAid", "General Relief"},
	{"calFreshAid", "CalFresh"},
	{"calWorksAid", "CalWorks"},
	{"ssiAid", "SSI"},
	{"ssaAid", "SSA"},
	{"unemploymentAid", "Unemployment"},
	{"otherServiceAid", "Other Service"},
}

// IncomeValues returns the raw text of the income-bearing fields in
// DependentIncomeFields order.
func (d *Dependent) IncomeValues() []string {
	return []string{
		d.Income,
		d.GeneralReliefAid,
		d.CalFreshAid,
		d.CalWorksAid,
		d.SSIAid,
		d.SSAAid,
		d.UnemploymentAid,
		d.OtherServiceAid,
	}
}

// Pet is an animal living with the client.
type Pet struct {
	Species string   `json:"species,omitempty" validate:"omitempty,max=100"`
	Size    string   `json:"size,omitempty" validate:"omitempty,oneof=Small Medium Large"`
	Purpose []string `json:"purpose,omitempty" validate:"dive,oneof=Companion 'Emotional Support' Service"`
}

// Warning is an advisory message produced while deriving fields. It never
// blocks submission.
type Warning struct {
	Field     string `json:"field"`
	Dependent *int   `json:"dependent,omitempty"` // index into IntakeForm.Dependent
	Message   string `json:"message"`
}

// ---------------------------------------------------------------------------
// Copying
// ---------------------------------------------------------------------------

// Clone returns a deep copy of f. A nil form clones to an empty one.
func (f *IntakeForm) Clone() *IntakeForm {
	if f == nil {
		return &IntakeForm{}
	}
	out := *f
	out.Age = cloneInt(f.Age)
	if f.Spouse != nil {
		sp := *f.Spouse
		sp.Age = cloneInt(f.Spouse.Age)
		out.Spouse = &sp
	}
	if f.Dependent != nil {
		out.Dependent = make([]Dependent, len(f.Dependent))
		for i := range f.Dependent {
			out.Dependent[i] = f.Dependent[i].Clone()
		}
	}
	if f.Pets != nil {
		out.Pets = make([]Pet, len(f.Pets))
		for i, p := range f.Pets {
			p.Purpose = append([]string(nil), p.Purpose...)
			out.Pets[i] = p
		}
	}
	out.Extra = cloneExtra(f.Extra)
	return &out
}

// Clone returns a deep copy of d.
func (d Dependent) Clone() Dependent {
	d.Age = cloneInt(d.Age)
	d.Extra = cloneExtra(d.Extra)
	return d
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneExtra(m map[string]json.RawMessage) map[string]json.RawMessage {
	if m == nil {
		return nil
	}
	out := make(map[string]json.RawMessage, len(m))
	for k, v := range m {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

// ---------------------------------------------------------------------------
// JSON with passthrough of unknown keys
// ---------------------------------------------------------------------------

var (
	intakeKeys    = jsonKeys(IntakeForm{})
	dependentKeys = jsonKeys(Dependent{})
)

// MarshalJSON encodes the known fields and merges Extra back in.
func (f IntakeForm) MarshalJSON() ([]byte, error) {
	type plain IntakeForm
	b, err := json.Marshal(plain(f))
	if err != nil {
		return nil, err
	}
	return joinExtra(b, f.Extra, intakeKeys)
}

// UnmarshalJSON decodes the known fields and keeps every other key in Extra.
func (f *IntakeForm) UnmarshalJSON(data []byte) error {
	type plain IntakeForm
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := splitExtra(data, intakeKeys)
	if err != nil {
		return err
	}
	p.Extra = extra
	*f = IntakeForm(p)
	return nil
}

// MarshalJSON encodes the known fields and merges Extra back in.
func (d Dependent) MarshalJSON() ([]byte, error) {
	type plain Dependent
	b, err := json.Marshal(plain(d))
	if err != nil {
		return nil, err
	}
	return joinExtra(b, d.Extra, dependentKeys)
}

// UnmarshalJSON decodes the known fields and keeps every other key in Extra.
func (d *Dependent) UnmarshalJSON(data []byte) error {
	type plain Dependent
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := splitExtra(data, dependentKeys)
	if err != nil {
		return err
	}
	p.Extra = extra
	*d = Dependent(p)
	return nil
}
