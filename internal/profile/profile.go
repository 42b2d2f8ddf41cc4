// Package profile builds subscriber profiles: identifiers, device identity and usage class.
package profile

import (
	"strconv"
	"strings"
	"time"

	"github.com/lhgiang040504/telecom-anomaly-detection/internal/domain"
	"github.com/lhgiang040504/telecom-anomaly-detection/internal/sampling"
)

var (
	userTypes      = []domain.UserType{domain.UserTypeIndividual, domain.UserTypeBusiness, domain.UserTypeStudent}
	userTypeWeight = []float64{0.7, 0.2, 0.1}
	patterns       = []domain.CallPattern{domain.CallPatternBusiness, domain.CallPatternSocial}
	patternWeight  = []float64{0.4, 0.6}
)

// Generate creates one profile per user. now anchors the account creation window, which
// spans from two years to one month before it.
func Generate(users []string, homeCells map[string]string, now time.Time, s *sampling.Sampler) []domain.User {
	windowStart := truncateDay(now.AddDate(-2, 0, 0))
	windowEnd := truncateDay(now.AddDate(0, -1, 0))
	windowDays := int(windowEnd.Sub(windowStart).Hours() / 24)

	profiles := make([]domain.User, len(users))
	for i, id := range users {
		profiles[i] = domain.User{
			ID:           id,
			PhoneNumber:  PhoneNumber(s),
			IMEI:         IMEI(s),
			IMSI:         IMSI(s),
			HomeCellID:   homeCells[id],
			UserType:     userTypes[s.Categorical(userTypeWeight)],
			CreationDate: windowStart.AddDate(0, 0, s.IntRange(0, windowDays)),
			CallPattern:  patterns[s.Categorical(patternWeight)],
		}
	}
	return profiles
}

// PhoneNumber returns an Indian mobile number in E.164 form.
func PhoneNumber(s *sampling.Sampler) string {
	var b strings.Builder
	b.WriteString("+91")
	b.WriteString(strconv.Itoa(s.IntRange(6, 9)))
	writeDigits(&b, s.Digits(9))
	return b.String()
}

// IMSI returns a subscriber identity on MCC 405.
func IMSI(s *sampling.Sampler) string {
	var b strings.Builder
	b.WriteString("405")
	b.WriteString(strconv.Itoa(s.IntRange(10, 99)))
	writeDigits(&b, s.Digits(10))
	return b.String()
}

// IMEI returns 14 random digits followed by their Luhn check digit.
func IMEI(s *sampling.Sampler) string {
	digits := s.Digits(14)
	var b strings.Builder
	writeDigits(&b, digits)
	b.WriteString(strconv.Itoa(LuhnCheckDigit(digits)))
	return b.String()
}

// LuhnCheckDigit computes the digit that makes payload+digit pass the Luhn checksum.
func LuhnCheckDigit(payload []int) int {
	sum := 0
	for i := len(payload) - 1; i >= 0; i-- {
		d := payload[i]
		// the payload's rightmost digit sits in a doubled position once the check digit is appended
		if (len(payload)-1-i)%2 == 0 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}
	return (10 - sum%10) % 10
}

// ValidLuhn reports whether number consists of digits and passes the Luhn checksum.
func ValidLuhn(number string) bool {
	if number == "" {
		return false
	}
	sum := 0
	for i := len(number) - 1; i >= 0; i-- {
		c := number[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if (len(number)-1-i)%2 == 1 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}
	return sum%10 == 0
}

func writeDigits(b *strings.Builder, digits []int) {
	for _, d := range digits {
		b.WriteByte(byte('0' + d))
	}
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
