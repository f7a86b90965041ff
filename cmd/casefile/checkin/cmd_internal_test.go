package checkincmd

import (
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func TestParseWhen(t *testing.T) {
	c := qt.New(t)
	now := time.Date(2024, 6, 15, 9, 0, 0, 0, time.Local)

	got, err := parseWhen("", 48*time.Hour, now)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.Equals, now.Add(48*time.Hour))

	got, err = parseWhen("2024-07-01 10:30", 0, now)
	c.Assert(err, qt.IsNil)
	c.Assert(got.Equal(time.Date(2024, 7, 1, 10, 30, 0, 0, time.Local)), qt.IsTrue)

	got, err = parseWhen("2024-07-01", 0, now)
	c.Assert(err, qt.IsNil)
	c.Assert(got.Equal(time.Date(2024, 7, 1, 0, 0, 0, 0, time.Local)), qt.IsTrue)

	got, err = parseWhen("2024-07-01T10:30:00Z", 0, now)
	c.Assert(err, qt.IsNil)
	c.Assert(got.Equal(time.Date(2024, 7, 1, 10, 30, 0, 0, time.UTC)), qt.IsTrue)

	for _, tc := range []struct {
		at string
		in time.Duration
	}{
		{"", 0},
		{"2024-07-01", time.Hour},
		{"", -time.Hour},
		{"next tuesday", 0},
	} {
		_, err := parseWhen(tc.at, tc.in, now)
		c.Assert(err, qt.IsNotNil, qt.Commentf("at=%q in=%s", tc.at, tc.in))
	}
}
