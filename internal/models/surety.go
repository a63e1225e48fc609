package models

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"surety-registry-api/pkg/datenorm"
)

// Surety is a bail surety filed against a criminal case.
type Surety struct {
	ID             int64           `json:"_id"`
	SuretyName     string          `json:"shurityName"`
	Address        string          `json:"address"`
	AadharNo       string          `json:"aadharNo"`
	PoliceStation  string          `json:"policeStation"`
	CaseFirNo      string          `json:"caseFirNo"`
	ActName        string          `json:"actName"`
	Section        string          `json:"section"`
	AccusedName    string          `json:"accusedName"`
	AccusedAddress string          `json:"accusedAddress"`
	Amount         decimal.Decimal `json:"shurityAmount"`
	DateOfSurety   *time.Time      `json:"dateOfSurety"`
	CourtCity      string          `json:"courtCity"`
	AssignedToUser *int64          `json:"assignedToUser"`
	UserID         int64           `json:"user"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// SuretyRequest is the body accepted when creating or replacing a surety.
type SuretyRequest struct {
	SuretyName     string              `json:"shurityName" validate:"required,max=200"`
	Address        string              `json:"address" validate:"max=500"`
	AadharNo       string              `json:"aadharNo" validate:"aadhar"`
	PoliceStation  string              `json:"policeStation" validate:"max=200"`
	CaseFirNo      string              `json:"caseFirNo" validate:"max=100"`
	ActName        string              `json:"actName" validate:"max=200"`
	Section        string              `json:"section" validate:"max=100"`
	AccusedName    string              `json:"accusedName" validate:"max=200"`
	AccusedAddress string              `json:"accusedAddress" validate:"max=500"`
	Amount         decimal.NullDecimal `json:"shurityAmount"`
	DateOfSurety   string              `json:"dateOfSurety"`
	CourtCity      string              `json:"courtCity" validate:"max=200"`
	AssignedToUser *int64              `json:"assignedToUser"`
}

// ToSurety trims the request into a storable surety owned by userID.
func (r SuretyRequest) ToSurety(userID int64) Surety {
	s := Surety{
		SuretyName:     strings.TrimSpace(r.SuretyName),
		Address:        strings.TrimSpace(r.Address),
		AadharNo:       strings.TrimSpace(r.AadharNo),
		PoliceStation:  strings.TrimSpace(r.PoliceStation),
		CaseFirNo:      strings.TrimSpace(r.CaseFirNo),
		ActName:        strings.TrimSpace(r.ActName),
		Section:        strings.TrimSpace(r.Section),
		AccusedName:    strings.TrimSpace(r.AccusedName),
		AccusedAddress: strings.TrimSpace(r.AccusedAddress),
		DateOfSurety:   datenorm.Parse(r.DateOfSurety),
		CourtCity:      strings.TrimSpace(r.CourtCity),
		AssignedToUser: r.AssignedToUser,
		UserID:         userID,
	}
	if r.Amount.Valid {
		s.Amount = r.Amount.Decimal
	}
	return s
}

// SuretyFilter narrows a surety list. Zero values match everything.
type SuretyFilter struct {
	Search        string
	PoliceStation string
	Year          int
	Month         int
}

// ParseSuretyFilter reads the filter from query values q, policeStation,
// year and month. Unparseable year or month values are ignored.
func ParseSuretyFilter(get func(string) string) SuretyFilter {
	f := SuretyFilter{
		Search:        strings.TrimSpace(get("q")),
		PoliceStation: strings.TrimSpace(get("policeStation")),
	}
	if y, err := strconv.Atoi(strings.TrimSpace(get("year"))); err == nil && y > 0 {
		f.Year = y
	}
	if m, err := strconv.Atoi(strings.TrimSpace(get("month"))); err == nil && m >= 1 && m <= 12 {
		f.Month = m
	}
	return f
}

// Match reports whether s satisfies every populated criterion. Year and month
// come from the surety date; undated sureties never match a date criterion.
func (f SuretyFilter) Match(s Surety) bool {
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(s.SuretyName), q) &&
			!strings.Contains(strings.ToLower(s.AadharNo), q) &&
			!strings.Contains(strings.ToLower(s.CaseFirNo), q) {
			return false
		}
	}
	if f.PoliceStation != "" && !strings.EqualFold(s.PoliceStation, f.PoliceStation) {
		return false
	}
	if f.Year != 0 || f.Month != 0 {
		if s.DateOfSurety == nil {
			return false
		}
		if f.Year != 0 && s.DateOfSurety.Year() != f.Year {
			return false
		}
		if f.Month != 0 && int(s.DateOfSurety.Month()) != f.Month {
			return false
		}
	}
	return true
}

// FilterSureties returns the sureties matching f, in their original order.
func FilterSureties(records []Surety, f SuretyFilter) []Surety {
	out := make([]Surety, 0, len(records))
	for _, s := range records {
		if f.Match(s) {
			out = append(out, s)
		}
	}
	return out
}
