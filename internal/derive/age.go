package derive

import "time"

// ParseDate parses a "YYYY-MM-DD" date. A longer RFC 3339 timestamp is
// accepted and its date part used. It returns false on malformed input.
func ParseDate(s string) (time.Time, bool) {
	if len(s) > 10 && s[10] == 'T' {
		s = s[:10]
	}
	if len(s) != 10 || s[4] != '-' || s[7] != '-' {
		return time.Time{}, false
	}
	for i, c := range []byte(s) {
		if i == 4 || i == 7 {
			continue
		}
		if c < '0' || c > '9' {
			return time.Time{}, false
		}
	}
	y := int(s[0]-'0')*1000 + int(s[1]-'0')*100 + int(s[2]-'0')*10 + int(s[3]-'0')
	m := time.Month(int(s[5]-'0')*10 + int(s[6]-'0'))
	d := int(s[8]-'0')*10 + int(s[9]-'0')
	if m < 1 || m > 12 || d < 1 {
		return time.Time{}, false
	}
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	// time.Date normalises Feb 30 into March; reject it instead.
	if t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}

// Age returns the completed years between dob and now. An empty dob yields
// (nil, true); a malformed or future dob yields (nil, false).
func Age(dob string, now time.Time) (*int, bool) {
	if dob == "" {
		return nil, true
	}
	b, ok := ParseDate(dob)
	if !ok {
		return nil, false
	}
	age := now.Year() - b.Year()
	if now.Month() < b.Month() || (now.Month() == b.Month() && now.Day() < b.Day()) {
		age--
	}
	if age < 0 {
		return nil, false
	}
	return &age, true
}

// setAge stores age into *dst only when it differs from the stored value.
func setAge(dst **int, age *int) bool {
	switch {
	case *dst == nil && age == nil:
		return false
	case *dst != nil && age != nil && **dst == *age:
		return false
	}
	*dst = age
	return true
}
