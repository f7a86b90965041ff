package db_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/go-ports/casefile/internal/db"
	"github.com/go-ports/casefile/internal/models"
)

// openTestDB opens a fresh SQLite database in a temp directory and registers
// t.Cleanup to close it.
func openTestDB(t *testing.T) *db.DB {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("openTestDB: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

// newClient returns a client with a fixed id and code.
func newClient(id, code, first, last string) *models.Client {
	form := &models.IntakeForm{
		FirstName:     first,
		LastName:      last,
		DateOfBirth:   "1980-01-02",
		Income:        "1,500",
		HousingStatus: models.Shelter,
	}
	c := models.FromIntake(form, code)
	c.ID = id
	return c
}

// ---------------------------------------------------------------------------
// Open
// ---------------------------------------------------------------------------

func TestOpen_HappyPath(t *testing.T) {
	c := qt.New(t)
	d := openTestDB(t)
	c.Assert(d, qt.IsNotNil)
}

func TestOpen_Reopen(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")

	d, err := db.Open(path)
	c.Assert(err, qt.IsNil)
	c.Assert(d.InsertClient(ctx, newClient("id-1", "CF-00001", "Rosa", "Diaz")), qt.IsNil)
	c.Assert(d.Close(), qt.IsNil)

	d, err = db.Open(path)
	c.Assert(err, qt.IsNil)
	defer d.Close()
	n, err := d.CountClients(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, 1)
}

// ---------------------------------------------------------------------------
// Clients
// ---------------------------------------------------------------------------

func TestInsertAndGetClient_HappyPath(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	c.Run("inserted client is retrievable by id", func(c *qt.C) {
		d := openTestDB(t)
		in := newClient("id-1", "CF-00001", "Rosa", "Diaz")
		c.Assert(d.InsertClient(ctx, in), qt.IsNil)

		got, err := d.GetClient(ctx, "id-1")
		c.Assert(err, qt.IsNil)
		c.Assert(got.Code, qt.Equals, "CF-00001")
		c.Assert(got.FullName(), qt.Equals, "Rosa Diaz")
		c.Assert(got.HousingStatus, qt.Equals, models.Shelter)
		c.Assert(got.Income(), qt.Equals, "1,500")
		c.Assert(got.CreatedAt.IsZero(), qt.IsFalse)
	})

	c.Run("lookup by code ignores case", func(c *qt.C) {
		d := openTestDB(t)
		c.Assert(d.InsertClient(ctx, newClient("id-1", "CF-00001", "Rosa", "Diaz")), qt.IsNil)
		got, err := d.GetClientByCode(ctx, "cf-00001")
		c.Assert(err, qt.IsNil)
		c.Assert(got.ID, qt.Equals, "id-1")
	})

	c.Run("duplicate code is rejected", func(c *qt.C) {
		d := openTestDB(t)
		c.Assert(d.InsertClient(ctx, newClient("id-1", "CF-00001", "Rosa", "Diaz")), qt.IsNil)
		err := d.InsertClient(ctx, newClient("id-2", "CF-00001", "Tom", "Diaz"))
		c.Assert(err, qt.IsNotNil)
	})
}

func TestGetClient_FailurePath(t *testing.T) {
	c := qt.New(t)
	d := openTestDB(t)
	_, err := d.GetClient(context.Background(), "nope")
	c.Assert(errors.Is(err, db.ErrNotFound), qt.IsTrue)
}

func TestUpdateClient(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	d := openTestDB(t)

	in := newClient("id-1", "CF-00001", "Rosa", "Diaz")
	c.Assert(d.InsertClient(ctx, in), qt.IsNil)

	in.HousingStatus = models.Housed
	in.Intake.HousingStatus = models.Housed
	c.Assert(d.UpdateClient(ctx, in), qt.IsNil)

	got, err := d.GetClient(ctx, "id-1")
	c.Assert(err, qt.IsNil)
	c.Assert(got.HousingStatus, qt.Equals, models.Housed)
	c.Assert(got.Intake.HousingStatus, qt.Equals, models.Housed)

	missing := newClient("id-9", "CF-00009", "X", "Y")
	c.Assert(errors.Is(d.UpdateClient(ctx, missing), db.ErrNotFound), qt.IsTrue)
}

func TestSetAssociatedSpouse(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	d := openTestDB(t)

	c.Assert(d.InsertClient(ctx, newClient("id-1", "CF-00001", "Rosa", "Diaz")), qt.IsNil)
	c.Assert(d.SetAssociatedSpouse(ctx, "id-1", "id-2"), qt.IsNil)

	got, err := d.GetClient(ctx, "id-1")
	c.Assert(err, qt.IsNil)
	c.Assert(got.AssociatedSpouseID, qt.Equals, "id-2")
	c.Assert(got.Intake.AssociatedSpouseID, qt.Equals, "id-2")
	c.Assert(got.Intake.FirstName, qt.Equals, "Rosa")

	err = d.SetAssociatedSpouse(ctx, "missing", "id-2")
	c.Assert(errors.Is(err, db.ErrNotFound), qt.IsTrue)
}

func TestSearchClients(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	d := openTestDB(t)

	for _, cl := range []*models.Client{
		newClient("id-1", "CF-00001", "Rosa", "Diaz"),
		newClient("id-2", "CF-00002", "Tom", "Diaz"),
		newClient("id-3", "CF-00003", "Rosalind", "Park"),
		newClient("id-4", "XY_00004", "Ann", "Lee"),
	} {
		c.Assert(d.InsertClient(ctx, cl), qt.IsNil)
	}

	ids := func(cs []models.Client) []string {
		out := make([]string, 0, len(cs))
		for _, cl := range cs {
			out = append(out, cl.ID)
		}
		return out
	}

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{name: "last name prefix", query: "diaz", want: []string{"id-1", "id-2"}},
		{name: "first name prefix", query: "Ros", want: []string{"id-1", "id-3"}},
		{name: "all terms must match", query: "ros diaz", want: []string{"id-1"}},
		{name: "client code", query: "CF-00003", want: []string{"id-3"}},
		{name: "no match", query: "zzz", want: []string{}},
		{name: "underscore is literal", query: "XY_", want: []string{"id-4"}},
		{name: "percent is literal", query: "%", want: []string{}},
	}
	for _, tt := range tests {
		c.Run(tt.name, func(c *qt.C) {
			got, err := d.SearchClients(ctx, tt.query, 10)
			c.Assert(err, qt.IsNil)
			c.Assert(ids(got), qt.DeepEquals, tt.want)
		})
	}

	c.Run("empty query lists clients up to limit", func(c *qt.C) {
		got, err := d.SearchClients(ctx, "", 2)
		c.Assert(err, qt.IsNil)
		c.Assert(got, qt.HasLen, 2)
	})
}

func TestCreateClient(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	d := openTestDB(t)

	first := newClient("id-1", "", "Rosa", "Diaz")
	c.Assert(d.CreateClient(ctx, first, "CF-"), qt.IsNil)
	c.Assert(first.Code, qt.Equals, "CF-00001")

	c.Run("failed insert does not use up a code", func(c *qt.C) {
		dup := newClient("id-1", "", "Tom", "Diaz")
		err := d.CreateClient(ctx, dup, "CF-")
		c.Assert(err, qt.ErrorMatches, "CreateClient: .*")
		c.Assert(dup.Code, qt.Equals, "")

		val, ok, err := d.GetMeta("client_seq")
		c.Assert(err, qt.IsNil)
		c.Assert(ok, qt.IsTrue)
		c.Assert(val, qt.Equals, "1")
	})

	second := newClient("id-2", "", "Tom", "Diaz")
	c.Assert(d.CreateClient(ctx, second, "CF-"), qt.IsNil)
	c.Assert(second.Code, qt.Equals, "CF-00002")

	got, err := d.GetClient(ctx, "id-2")
	c.Assert(err, qt.IsNil)
	c.Assert(got.Code, qt.Equals, "CF-00002")
}

// ---------------------------------------------------------------------------
// Drafts
// ---------------------------------------------------------------------------

func TestDrafts(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	d := openTestDB(t)

	got, err := d.LoadDraft(ctx, "s1")
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.IsNil)

	form := &models.IntakeForm{
		FirstName:  "Rosa",
		FamilySize: "3",
		Dependent:  []models.Dependent{{FirstName: "Ana", TotalIncome: "120"}},
	}
	c.Assert(d.SaveDraft(ctx, "s1", form), qt.IsNil)
	form.FirstName = "Maria"
	c.Assert(d.SaveDraft(ctx, "s1", form), qt.IsNil)

	got, err = d.LoadDraft(ctx, "s1")
	c.Assert(err, qt.IsNil)
	c.Assert(got.FirstName, qt.Equals, "Maria")
	c.Assert(got.Dependent[0].TotalIncome, qt.Equals, "120")

	ids, err := d.ListDrafts(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(ids, qt.DeepEquals, []string{"s1"})

	c.Assert(d.DeleteDraft(ctx, "s1"), qt.IsNil)
	c.Assert(d.DeleteDraft(ctx, "s1"), qt.IsNil)
	got, err = d.LoadDraft(ctx, "s1")
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.IsNil)
}

// ---------------------------------------------------------------------------
// Check-ins and housing history
// ---------------------------------------------------------------------------

func TestCheckIns(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	d := openTestDB(t)

	c.Assert(d.InsertClient(ctx, newClient("id-1", "CF-00001", "Rosa", "Diaz")), qt.IsNil)
	c.Assert(d.InsertClient(ctx, newClient("id-2", "CF-00002", "Tom", "Diaz")), qt.IsNil)

	base := time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)
	c.Assert(d.InsertCheckIn(ctx, models.NewCheckIn("id-1", base.Add(48*time.Hour), "second")), qt.IsNil)
	c.Assert(d.InsertCheckIn(ctx, models.NewCheckIn("id-1", base.Add(24*time.Hour), "first")), qt.IsNil)
	c.Assert(d.InsertCheckIn(ctx, models.NewCheckIn("id-2", base.Add(-24*time.Hour), "past")), qt.IsNil)

	c.Run("all clients from a time", func(c *qt.C) {
		got, err := d.ListCheckIns(ctx, "", base, 10)
		c.Assert(err, qt.IsNil)
		c.Assert(got, qt.HasLen, 2)
		c.Assert(got[0].Note, qt.Equals, "first")
		c.Assert(got[0].ScheduledAt.Equal(base.Add(24*time.Hour)), qt.IsTrue)
		c.Assert(got[0].Status, qt.Equals, models.CheckInScheduled)
	})

	c.Run("single client", func(c *qt.C) {
		got, err := d.ListCheckIns(ctx, "id-2", time.Time{}, 10)
		c.Assert(err, qt.IsNil)
		c.Assert(got, qt.HasLen, 1)
		c.Assert(got[0].Note, qt.Equals, "past")
	})
}

func TestHousingHistoryAndCounts(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	d := openTestDB(t)

	c.Assert(d.InsertClient(ctx, newClient("id-1", "CF-00001", "Rosa", "Diaz")), qt.IsNil)
	c.Assert(d.InsertClient(ctx, newClient("id-2", "CF-00002", "Tom", "Diaz")), qt.IsNil)

	now := time.Now().UTC().Truncate(time.Second)
	c.Assert(d.InsertHousingChange(ctx, &models.HousingChange{ClientID: "id-1", Status: models.Shelter, RecordedAt: now}), qt.IsNil)
	c.Assert(d.InsertHousingChange(ctx, &models.HousingChange{ClientID: "id-1", Status: models.Housed, RecordedAt: now}), qt.IsNil)

	hist, err := d.ListHousingHistory(ctx, "id-1")
	c.Assert(err, qt.IsNil)
	c.Assert(hist, qt.HasLen, 2)
	c.Assert(hist[1].Status, qt.Equals, models.Housed)
	c.Assert(hist[1].RecordedAt.Equal(now), qt.IsTrue)

	counts, err := d.DashboardCounts(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(counts, qt.DeepEquals, map[string]int{models.Shelter: 2})
}

// ---------------------------------------------------------------------------
// Meta
// ---------------------------------------------------------------------------

func TestGetMeta_SetMeta_HappyPath(t *testing.T) {
	c := qt.New(t)
	d := openTestDB(t)

	_, ok, err := d.GetMeta("missing")
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsFalse)

	c.Assert(d.SetMeta("k", "v1"), qt.IsNil)
	c.Assert(d.SetMeta("k", "v2"), qt.IsNil)
	val, ok, err := d.GetMeta("k")
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)
	c.Assert(val, qt.Equals, "v2")
}
