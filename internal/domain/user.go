package domain

import "time"

// UserType classifies a subscriber for duration sampling.
type UserType string

const (
	UserTypeIndividual UserType = "individual"
	UserTypeBusiness   UserType = "business"
	UserTypeStudent    UserType = "student"
)

// CallPattern selects the hourly call distribution used for a subscriber.
type CallPattern string

const (
	CallPatternBusiness CallPattern = "business"
	CallPatternSocial   CallPattern = "social"
)

// User is a subscriber profile. Profiles are created once and never mutated.
type User struct {
	ID           string
	PhoneNumber  string
	IMEI         string
	IMSI         string
	HomeCellID   string
	UserType     UserType
	CallPattern  CallPattern
	CreationDate time.Time
}

// UserIndex maps user ids to profiles.
type UserIndex map[string]User

// IndexUsers builds a lookup table over the provided profiles.
func IndexUsers(users []User) UserIndex {
	idx := make(UserIndex, len(users))
	for _, u := range users {
		idx[u.ID] = u
	}
	return idx
}
