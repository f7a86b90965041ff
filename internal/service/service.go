// Package service implements the casefile orchestrator that wires together
// configuration, the database, the derivation engine, redaction and markdown
// case files.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-ports/casefile/internal/config"
	"github.com/go-ports/casefile/internal/db"
	"github.com/go-ports/casefile/internal/derive"
	"github.com/go-ports/casefile/internal/formstore"
	"github.com/go-ports/casefile/internal/markdown"
	"github.com/go-ports/casefile/internal/metrics"
	"github.com/go-ports/casefile/internal/models"
	"github.com/go-ports/casefile/internal/redaction"
	"github.com/go-ports/casefile/internal/schema"
	"github.com/go-ports/casefile/internal/spouse"
)

// DefaultSession is used when a caller does not name an intake session.
const DefaultSession = "default"

// ErrInvalidForm is returned by SubmitIntake when the form fails full
// validation. The concrete error is a *ValidationError.
var ErrInvalidForm = errors.New("intake form is not valid")

// ErrInvalidHousingStatus is returned for a housing status outside
// models.ValidHousingStatuses.
var ErrInvalidHousingStatus = errors.New("invalid housing status")

// ValidationError carries the field errors that blocked a submission.
type ValidationError struct {
	Result schema.Result
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Result.Errors))
	for f := range e.Result.Errors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fmt.Sprintf("%s: %s", ErrInvalidForm, strings.Join(fields, ", "))
}

func (e *ValidationError) Unwrap() error { return ErrInvalidForm }

// Service orchestrates all intake and client operations.
type Service struct {
	Home    string
	CaseDir string
	Config  *config.Config

	database *db.DB
	engine   *derive.Engine
	spouses  *spouse.Resolver

	mu             sync.Mutex
	sessions       map[string]*formstore.Store
	ignorePatterns []*regexp.Regexp
}

// New initialises a Service rooted at home.
// If home is empty it is resolved via config.GetHome. opts are passed to the
// derivation engine after the configured pass bound.
func New(home string, opts ...derive.Option) (*Service, error) {
	if home == "" {
		home = config.GetHome()
	}

	caseDir := filepath.Join(home, "casefiles")
	if err := os.MkdirAll(caseDir, 0o755); err != nil {
		return nil, fmt.Errorf("service.New: create casefile dir: %w", err)
	}

	cfg, err := config.Load(filepath.Join(home, "config.yaml"))
	if err != nil {
		return nil, fmt.Errorf("service.New: load config: %w", err)
	}

	database, err := db.Open(filepath.Join(home, "casefile.db"))
	if err != nil {
		return nil, fmt.Errorf("service.New: open db: %w", err)
	}

	engineOpts := append([]derive.Option{derive.WithMaxPasses(cfg.Intake.MaxDerivePasses)}, opts...)
	return &Service{
		Home:     home,
		CaseDir:  caseDir,
		Config:   cfg,
		database: database,
		engine:   derive.New(engineOpts...),
		spouses:  &spouse.Resolver{Lookup: database},
		sessions: make(map[string]*formstore.Store),
	}, nil
}

// Close releases all resources held by the service.
func (s *Service) Close() error {
	return s.database.Close()
}

// ---------------------------------------------------------------------------
// Lazy helpers
// ---------------------------------------------------------------------------

// getIgnorePatterns returns redaction patterns, lazily loaded from .casefileignore.
func (s *Service) getIgnorePatterns() []*regexp.Regexp {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ignorePatterns != nil {
		return s.ignorePatterns
	}
	patterns, err := redaction.LoadIgnore(filepath.Join(s.Home, redaction.IgnoreFile))
	if err != nil {
		slog.Warn("failed to load "+redaction.IgnoreFile, "err", err)
	}
	if patterns == nil {
		patterns = make([]*regexp.Regexp, 0)
	}
	s.ignorePatterns = patterns
	return patterns
}

// ---------------------------------------------------------------------------
// Intake sessions
// ---------------------------------------------------------------------------

// Session returns the form store for session id, restoring its draft on
// first use. An empty id means DefaultSession.
func (s *Service) Session(ctx context.Context, id string) (*formstore.Store, error) {
	if id = strings.TrimSpace(id); id == "" {
		id = DefaultSession
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.sessions[id]; ok {
		return st, nil
	}
	st, err := formstore.Open(ctx, id, s.engine, s.database)
	if err != nil {
		return nil, fmt.Errorf("service.Session: %w", err)
	}
	s.sessions[id] = st
	return st, nil
}

// ListSessions returns the ids of sessions with a saved draft, most recently
// updated first.
func (s *Service) ListSessions(ctx context.Context) ([]string, error) {
	ids, err := s.database.ListDrafts(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListSessions: %w", err)
	}
	return ids, nil
}

// UpdateIntake merges patch into the session's form and returns the
// re-derived result.
func (s *Service) UpdateIntake(ctx context.Context, session string, patch []byte) (derive.Result, error) {
	st, err := s.Session(ctx, session)
	if err != nil {
		return derive.Result{}, err
	}
	res, err := st.Update(ctx, patch)
	if err != nil {
		return derive.Result{}, fmt.Errorf("UpdateIntake: %w", err)
	}
	metrics.RecordDerive(res.Passes)
	return res, nil
}

// ShowIntake returns the session's current form with its warnings.
func (s *Service) ShowIntake(ctx context.Context, session string) (derive.Result, error) {
	st, err := s.Session(ctx, session)
	if err != nil {
		return derive.Result{}, err
	}
	return st.Last(), nil
}

// ValidateIntake checks the session's current form.
func (s *Service) ValidateIntake(ctx context.Context, session string, mode schema.Mode) (schema.Result, error) {
	st, err := s.Session(ctx, session)
	if err != nil {
		return schema.Result{}, err
	}
	return schema.Validate(st.Snapshot(), mode), nil
}

// ClearIntake discards the session's form and its saved draft.
func (s *Service) ClearIntake(ctx context.Context, session string) error {
	st, err := s.Session(ctx, session)
	if err != nil {
		return err
	}
	if err := st.Clear(ctx); err != nil {
		return fmt.Errorf("ClearIntake: %w", err)
	}
	return nil
}

// DeriveFields derives a form snapshot without touching any session.
func (s *Service) DeriveFields(form *models.IntakeForm) derive.Result {
	res := s.engine.Derive(form)
	metrics.RecordDerive(res.Passes)
	return res
}

// ValidateForm checks a form snapshot without touching any session.
func (s *Service) ValidateForm(form *models.IntakeForm, mode schema.Mode) schema.Result {
	return schema.Validate(form, mode)
}

// ---------------------------------------------------------------------------
// Spouse linkage
// ---------------------------------------------------------------------------

// LinkSpouse links the session's form to an existing client. clientRef is a
// client ID or client code.
func (s *Service) LinkSpouse(ctx context.Context, session, clientRef string) (derive.Result, error) {
	target, err := s.GetClient(ctx, clientRef)
	if err != nil {
		return derive.Result{}, fmt.Errorf("LinkSpouse: %w", err)
	}
	st, err := s.Session(ctx, session)
	if err != nil {
		return derive.Result{}, err
	}
	res, err := st.Apply(ctx, func(form *models.IntakeForm) error {
		return spouse.Link(form, target.ID, "")
	})
	if err != nil {
		return derive.Result{}, fmt.Errorf("LinkSpouse: %w", err)
	}
	return res, nil
}

// UnlinkSpouse removes the session's spouse link, if any.
func (s *Service) UnlinkSpouse(ctx context.Context, session string) (derive.Result, error) {
	st, err := s.Session(ctx, session)
	if err != nil {
		return derive.Result{}, err
	}
	res, err := st.Apply(ctx, func(form *models.IntakeForm) error {
		spouse.Unlink(form)
		return nil
	})
	if err != nil {
		return derive.Result{}, fmt.Errorf("UnlinkSpouse: %w", err)
	}
	return res, nil
}

// SpouseSummary returns the read-only record of the spouse linked on the
// session's form. It returns spouse.ErrNotLinked when there is none.
func (s *Service) SpouseSummary(ctx context.Context, session string) (*models.SpouseSummary, error) {
	st, err := s.Session(ctx, session)
	if err != nil {
		return nil, err
	}
	return s.spouses.Summary(ctx, st.Snapshot())
}

// ---------------------------------------------------------------------------
// Submit
// ---------------------------------------------------------------------------

// SubmitIntake turns the session's form into a client record:
// derive → validate → redact → insert → housing history → spouse back-link →
// markdown → clear draft. Steps after the insert are best-effort and only
// logged or reported as warnings.
func (s *Service) SubmitIntake(ctx context.Context, session string) (*models.SubmitResult, error) {
	st, err := s.Session(ctx, session)
	if err != nil {
		return nil, err
	}

	res := s.engine.Derive(st.Snapshot())
	if v := schema.Validate(res.Form, schema.Full); !v.OK {
		metrics.RecordSubmission(metrics.SubmitInvalid)
		return nil, &ValidationError{Result: v}
	}

	form := res.Form
	if form.Notes != "" {
		form.Notes = redaction.Redact(form.Notes, s.getIgnorePatterns())
	}

	client := models.FromIntake(form, "")
	if err := s.database.CreateClient(ctx, client, s.Config.Intake.ClientCodePrefix); err != nil {
		metrics.RecordSubmission(metrics.SubmitFailed)
		return nil, fmt.Errorf("SubmitIntake: insert client: %w", err)
	}

	warnings := res.Warnings
	if client.HousingStatus != "" {
		h := &models.HousingChange{ClientID: client.ID, Status: client.HousingStatus, RecordedAt: client.CreatedAt}
		if err := s.database.InsertHousingChange(ctx, h); err != nil {
			slog.Warn("SubmitIntake: housing history", "client", client.ID, "err", err)
		}
	}

	if client.AssociatedSpouseID != "" {
		if err := s.database.SetAssociatedSpouse(ctx, client.AssociatedSpouseID, client.ID); err != nil {
			slog.Warn("SubmitIntake: spouse back-link", "spouse", client.AssociatedSpouseID, "err", err)
			warnings = append(warnings, models.Warning{
				Field:   "associatedSpouseID",
				Message: "The spouse's record could not be linked back to this client",
			})
		}
	}

	filePath, err := markdown.WriteCaseFile(s.CaseDir, client)
	if err != nil {
		slog.Warn("SubmitIntake: write case file", "err", err)
		filePath = ""
	}

	if err := st.Clear(ctx); err != nil {
		slog.Warn("SubmitIntake: clear draft", "session", st.ID(), "err", err)
	}

	metrics.RecordSubmission(metrics.SubmitCreated)
	return &models.SubmitResult{
		ID:       client.ID,
		Code:     client.Code,
		FilePath: filePath,
		Warnings: warnings,
	}, nil
}

// ---------------------------------------------------------------------------
// Clients
// ---------------------------------------------------------------------------

// GetClient returns a client by ID, falling back to a client code lookup.
func (s *Service) GetClient(ctx context.Context, ref string) (*models.Client, error) {
	ref = strings.TrimSpace(ref)
	c, err := s.database.GetClient(ctx, ref)
	if errors.Is(err, db.ErrNotFound) {
		c, err = s.database.GetClientByCode(ctx, ref)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// SearchClients finds clients by name or client code prefix.
func (s *Service) SearchClients(ctx context.Context, query string, limit int) ([]models.Client, error) {
	return s.database.SearchClients(ctx, query, limit)
}

// UpdateHousingStatus records a new housing status for a client and appends
// it to the client's case file.
func (s *Service) UpdateHousingStatus(ctx context.Context, ref, status string) (*models.Client, error) {
	status = strings.TrimSpace(status)
	if !models.IsValidHousingStatus(status) {
		return nil, fmt.Errorf("%w %q (valid: %s)", ErrInvalidHousingStatus, status,
			strings.Join(models.ValidHousingStatuses, ", "))
	}

	c, err := s.GetClient(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("UpdateHousingStatus: %w", err)
	}
	if c.HousingStatus == status {
		return c, nil
	}

	now := time.Now().UTC()
	c.HousingStatus = status
	if c.Intake != nil {
		c.Intake.HousingStatus = status
	}
	c.UpdatedAt = now
	if err := s.database.UpdateClient(ctx, c); err != nil {
		return nil, fmt.Errorf("UpdateHousingStatus: %w", err)
	}

	h := &models.HousingChange{ClientID: c.ID, Status: status, RecordedAt: now}
	if err := s.database.InsertHousingChange(ctx, h); err != nil {
		return nil, fmt.Errorf("UpdateHousingStatus: %w", err)
	}
	if err := markdown.AppendHousingChange(markdown.Path(s.CaseDir, c.Code), h); err != nil {
		slog.Warn("UpdateHousingStatus: case file", "client", c.Code, "err", err)
	}
	return c, nil
}

// HousingHistory returns a client's housing status changes, oldest first.
func (s *Service) HousingHistory(ctx context.Context, ref string) ([]models.HousingChange, error) {
	c, err := s.GetClient(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("HousingHistory: %w", err)
	}
	return s.database.ListHousingHistory(ctx, c.ID)
}

// ---------------------------------------------------------------------------
// Check-ins
// ---------------------------------------------------------------------------

// ScheduleCheckIn books a follow-up with a client. The whole operation is
// bounded by intake.checkin_timeout and is not retried.
func (s *Service) ScheduleCheckIn(ctx context.Context, ref string, at time.Time, note string) (*models.CheckIn, error) {
	if at.IsZero() {
		return nil, fmt.Errorf("ScheduleCheckIn: time is required")
	}
	if s.Config.Intake.CheckInTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Config.Intake.CheckInTimeout)
		defer cancel()
	}

	c, err := s.GetClient(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("ScheduleCheckIn: %w", err)
	}
	if note != "" {
		note = redaction.Redact(note, s.getIgnorePatterns())
	}
	ci := models.NewCheckIn(c.ID, at, note)
	if err := s.database.InsertCheckIn(ctx, ci); err != nil {
		return nil, fmt.Errorf("ScheduleCheckIn: %w", err)
	}
	return ci, nil
}

// ListCheckIns returns check-ins scheduled from now on. An empty ref lists
// every client's check-ins.
func (s *Service) ListCheckIns(ctx context.Context, ref string, limit int) ([]models.CheckIn, error) {
	var clientID string
	if ref != "" {
		c, err := s.GetClient(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("ListCheckIns: %w", err)
		}
		clientID = c.ID
	}
	return s.database.ListCheckIns(ctx, clientID, time.Now().UTC(), limit)
}

// ---------------------------------------------------------------------------
// Dashboard
// ---------------------------------------------------------------------------

// dashboardCheckIns bounds the upcoming check-ins shown on the dashboard.
const dashboardCheckIns = 10

// Dashboard summarises the caseload.
func (s *Service) Dashboard(ctx context.Context) (*models.Dashboard, error) {
	total, err := s.database.CountClients(ctx)
	if err != nil {
		return nil, fmt.Errorf("Dashboard: %w", err)
	}
	counts, err := s.database.DashboardCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("Dashboard: %w", err)
	}
	upcoming, err := s.database.ListCheckIns(ctx, "", time.Now().UTC(), dashboardCheckIns)
	if err != nil {
		return nil, fmt.Errorf("Dashboard: %w", err)
	}
	return &models.Dashboard{
		TotalClients:     total,
		ByHousingStatus:  counts,
		UpcomingCheckIns: upcoming,
	}, nil
}
