package domain

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// DateLayout is the wire and storage layout of a date of birth.
const DateLayout = "2006-01-02"

// User is the single per-account record: credentials, the current session's refresh token
// digest and the public profile.
type User struct {
	Email            string // account key, lower-cased
	PasswordHash     string
	RefreshTokenHash string // empty when logged out
	FirstName        string
	LastName         string
	DOB              string // YYYY-MM-DD or empty
	Address          string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// LoggedIn reports whether the account currently holds a refresh token.
func (u *User) LoggedIn() bool {
	return u.RefreshTokenHash != ""
}

// Profile returns the profile fields of u.
func (u *User) Profile() Profile {
	return Profile{
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		DOB:       u.DOB,
		Address:   u.Address,
	}
}

// Profile is the public view of an account. DOB and Address are private fields.
type Profile struct {
	Email     string
	FirstName string
	LastName  string
	DOB       string
	Address   string
}

// Reduced returns p without its private fields.
func (p Profile) Reduced() Profile {
	return Profile{Email: p.Email, FirstName: p.FirstName, LastName: p.LastName}
}

// ProfileUpdate is a validated replacement of every profile field.
type ProfileUpdate struct {
	FirstName string
	LastName  string
	DOB       string
	Address   string
}

// Profile update validation errors. Their text is returned to clients verbatim.
var (
	ErrProfileIncomplete = errors.New("Request body incomplete: firstName, lastName, dob and address are required.")
	ErrProfileNotStrings = errors.New("Request body invalid: firstName, lastName and address must be strings only.")
	ErrDOBFormat         = errors.New("Invalid input: dob must be a real date in format YYYY-MM-DD.")
	ErrDOBInFuture       = errors.New("Invalid input: dob must be a date in the past.")
	ErrDOBTooOld         = errors.New("Invalid input: dob must be a real past date in format YYYY-MM-DD.")
)

var (
	dobPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	minDOB     = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
)

var profileFields = []string{"firstName", "lastName", "dob", "address"}

// ParseProfileUpdate validates a decoded JSON body. Every field must be present, non-empty and a
// string; dob must be a real calendar date between 1900-01-01 and today (UTC).
func ParseProfileUpdate(body map[string]any, now time.Time) (ProfileUpdate, error) {
	for _, f := range profileFields {
		if isBlank(body[f]) {
			return ProfileUpdate{}, ErrProfileIncomplete
		}
	}
	values := make(map[string]string, len(profileFields))
	for _, f := range profileFields {
		s, ok := body[f].(string)
		if !ok {
			return ProfileUpdate{}, ErrProfileNotStrings
		}
		values[f] = s
	}
	if err := ValidateDOB(values["dob"], now); err != nil {
		return ProfileUpdate{}, err
	}
	return ProfileUpdate{
		FirstName: values["firstName"],
		LastName:  values["lastName"],
		DOB:       values["dob"],
		Address:   values["address"],
	}, nil
}

// ValidateDOB checks a YYYY-MM-DD date of birth against now.
func ValidateDOB(dob string, now time.Time) error {
	if !dobPattern.MatchString(dob) {
		return ErrDOBFormat
	}
	d, err := time.Parse(DateLayout, dob)
	if err != nil {
		return ErrDOBFormat
	}
	y, m, day := now.UTC().Date()
	today := time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
	if d.After(today) {
		return ErrDOBInFuture
	}
	if d.Before(minDOB) {
		return ErrDOBTooOld
	}
	return nil
}

// isBlank mirrors a falsy JSON value: absent, null, false, 0 or an empty string.
func isBlank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case bool:
		return !x
	case float64:
		return x == 0
	}
	return false
}

// NormalizeEmail trims and lower-cases an email so it can be used as the account key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
