// Package spouse keeps a client's spouse either as free-text data or as a link
// to another client record, never both.
package spouse

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-ports/casefile/internal/models"
)

// State is the linkage state derived from (maritalStatus, spouseClientStatus,
// associatedSpouseID).
type State int

const (
	// Unmarried: no spouse data and no link.
	Unmarried State = iota
	// MarriedUndecided: married, but whether the spouse is a client is not
	// answered yet. Free-text data is kept; a link is not allowed.
	MarriedUndecided
	// MarriedNonClientSpouse: free-text spouse record is editable.
	MarriedNonClientSpouse
	// MarriedClientSpouseUnlinked: the UI offers search-and-link.
	MarriedClientSpouseUnlinked
	// MarriedClientSpouseLinked: the linked client's summary is shown read-only.
	MarriedClientSpouseLinked
)

var stateNames = [...]string{
	Unmarried:                   "unmarried",
	MarriedUndecided:            "married-undecided",
	MarriedNonClientSpouse:      "married-non-client-spouse",
	MarriedClientSpouseUnlinked: "married-client-spouse-unlinked",
	MarriedClientSpouseLinked:   "married-client-spouse-linked",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var (
	// ErrNotLinked is returned when a summary is requested but no spouse is linked.
	ErrNotLinked = errors.New("no spouse client linked")
	// ErrNotLinkable is returned when Link is called outside the
	// married-client-spouse state.
	ErrNotLinkable = errors.New("spouse can only be linked when married and the spouse is a client")
	// ErrSelfLink is returned when a client is linked to itself.
	ErrSelfLink = errors.New("a client cannot be linked as their own spouse")
)

// Classify returns the linkage state of form.
func Classify(form *models.IntakeForm) State {
	if form.MaritalStatus != models.Married {
		return Unmarried
	}
	switch form.SpouseClientStatus {
	case models.Yes:
		if form.AssociatedSpouseID != "" {
			return MarriedClientSpouseLinked
		}
		return MarriedClientSpouseUnlinked
	case models.No:
		return MarriedNonClientSpouse
	default:
		return MarriedUndecided
	}
}

// Resolve applies the cascading resets for the current state and reports
// whether form changed. The resets are immediate and not reversible:
//
//   - not married: link and free-text spouse are cleared
//   - spouse not (yet) a client: link is cleared
//   - spouse is a client: free-text spouse is cleared
func Resolve(form *models.IntakeForm) bool {
	changed := false
	clearLink := func() {
		if form.AssociatedSpouseID != "" {
			form.AssociatedSpouseID = ""
			changed = true
		}
	}
	clearSpouse := func() {
		if form.Spouse != nil {
			form.Spouse = nil
			changed = true
		}
	}

	switch Classify(form) {
	case Unmarried:
		clearLink()
		clearSpouse()
	case MarriedUndecided, MarriedNonClientSpouse:
		clearLink()
	case MarriedClientSpouseUnlinked, MarriedClientSpouseLinked:
		clearSpouse()
	}
	return changed
}

// Link points form at the spouse client spouseID. selfID is the form's own
// client ID when editing an existing client, or "".
func Link(form *models.IntakeForm, spouseID, selfID string) error {
	spouseID = strings.TrimSpace(spouseID)
	if spouseID == "" {
		return fmt.Errorf("spouse.Link: empty client id")
	}
	if selfID != "" && spouseID == selfID {
		return ErrSelfLink
	}
	switch Classify(form) {
	case MarriedClientSpouseUnlinked, MarriedClientSpouseLinked:
	default:
		return ErrNotLinkable
	}
	form.AssociatedSpouseID = spouseID
	form.Spouse = nil
	return nil
}

// Unlink is the "remove spouse" action: a linked form goes back to unlinked.
// It reports whether a link was removed.
func Unlink(form *models.IntakeForm) bool {
	if form.AssociatedSpouseID == "" {
		return false
	}
	form.AssociatedSpouseID = ""
	return true
}

// ---------------------------------------------------------------------------
// Linked summary
// ---------------------------------------------------------------------------

// ClientLookup fetches a client record by its opaque ID.
type ClientLookup interface {
	GetClient(ctx context.Context, id string) (*models.Client, error)
}

// Resolver fetches the linked spouse through an external lookup.
type Resolver struct {
	Lookup ClientLookup
}

// Summary returns the read-only summary of the spouse linked on form.
//
// A failed lookup is returned as is (wrapped): the link is not cleared and
// the call is not retried, since an unreachable link is not the same thing
// as an absent one.
func (r *Resolver) Summary(ctx context.Context, form *models.IntakeForm) (*models.SpouseSummary, error) {
	if Classify(form) != MarriedClientSpouseLinked {
		return nil, ErrNotLinked
	}
	c, err := r.Lookup.GetClient(ctx, form.AssociatedSpouseID)
	if err != nil {
		return nil, fmt.Errorf("spouse.Summary %s: %w", form.AssociatedSpouseID, err)
	}
	return c.Summary(), nil
}
