package models

import (
	"encoding/json"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestValidateNationalID(t *testing.T) {
	tests := []struct {
		in   string
		want error
	}{
		{"", nil},
		{"123456789012", nil},
		{"12345678901a", ErrNationalIDNotNumeric},
		{"1234 5678 9012", ErrNationalIDNotNumeric},
		{"1234567890123", ErrNationalIDTooLong},
		{"12345", ErrNationalIDLength},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateNationalID(tt.in))
		})
	}
}

func TestValidateSuretyRequest(t *testing.T) {
	req := SuretyRequest{SuretyName: "Ramesh Patil", AadharNo: "123456789012"}
	assert.NoError(t, Validate(req))

	req.AadharNo = "12345"
	err := Validate(req)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Aadhar number must be 12 digits", verr.Fields["aadharNo"])

	req = SuretyRequest{AadharNo: "12ab"}
	require.ErrorAs(t, Validate(req), &verr)
	assert.Equal(t, "is required", verr.Fields["shurityName"])
	assert.Equal(t, "Aadhar number must be numbers only", verr.Fields["aadharNo"])
	assert.Contains(t, verr.Error(), "shurityName: is required")
}

func TestValidateCreateUserRequest(t *testing.T) {
	ok := CreateUserRequest{FullName: "Asha", MobileNo: "9876543210", Password: "secret1"}
	assert.NoError(t, Validate(ok))

	bad := ok
	bad.MobileNo = "98765"
	bad.Role = "root"
	bad.EmailID = "nope"
	var verr *ValidationError
	require.ErrorAs(t, Validate(bad), &verr)
	assert.Contains(t, verr.Fields, "mobileNo")
	assert.Contains(t, verr.Fields, "role")
	assert.Contains(t, verr.Fields, "emailId")
}

func TestSuretyRequestJSON(t *testing.T) {
	var req SuretyRequest
	body := `{"shurityName":" Ramesh ","shurityAmount":"25000.50","dateOfSurety":"05/03/2024","assignedToUser":4}`
	require.NoError(t, json.Unmarshal([]byte(body), &req))

	s := req.ToSurety(9)
	assert.Equal(t, "Ramesh", s.SuretyName)
	assert.True(t, decimal.RequireFromString("25000.50").Equal(s.Amount))
	assert.Equal(t, date(2024, time.March, 5), s.DateOfSurety)
	assert.Equal(t, int64(9), s.UserID)
	require.NotNil(t, s.AssignedToUser)
	assert.Equal(t, int64(4), *s.AssignedToUser)

	require.NoError(t, json.Unmarshal([]byte(`{"shurityName":"x","shurityAmount":1200}`), &req))
	assert.True(t, decimal.NewFromInt(1200).Equal(req.ToSurety(1).Amount))
}

func TestFilterSureties(t *testing.T) {
	records := []Surety{
		{ID: 1, SuretyName: "Ramesh Patil", AadharNo: "111122223333", CaseFirNo: "FIR-10/2024", PoliceStation: "Haveli", DateOfSurety: date(2024, time.March, 5)},
		{ID: 2, SuretyName: "Sunita Jadhav", AadharNo: "444455556666", CaseFirNo: "FIR-22/2023", PoliceStation: "Pune City", DateOfSurety: date(2023, time.March, 9)},
		{ID: 3, SuretyName: "Anil More", CaseFirNo: "FIR-7/2024", PoliceStation: "Haveli"},
	}

	ids := func(in []Surety) []int64 {
		out := []int64{}
		for _, s := range in {
			out = append(out, s.ID)
		}
		return out
	}

	tests := []struct {
		name   string
		filter SuretyFilter
		want   []int64
	}{
		{"no criteria", SuretyFilter{}, []int64{1, 2, 3}},
		{"name search ignores case", SuretyFilter{Search: "SUNITA"}, []int64{2}},
		{"aadhar search", SuretyFilter{Search: "2222"}, []int64{1}},
		{"fir search", SuretyFilter{Search: "/2024"}, []int64{1, 3}},
		{"station", SuretyFilter{PoliceStation: "haveli"}, []int64{1, 3}},
		{"year", SuretyFilter{Year: 2024}, []int64{1}},
		{"month across years", SuretyFilter{Month: 3}, []int64{1, 2}},
		{"combined", SuretyFilter{PoliceStation: "Haveli", Year: 2024, Month: 3}, []int64{1}},
		{"nothing", SuretyFilter{Year: 1999}, []int64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(FilterSureties(records, tt.filter)))
		})
	}
}

func TestParseSuretyFilter(t *testing.T) {
	v := url.Values{"q": {" ram "}, "policeStation": {"Haveli"}, "year": {"2024"}, "month": {"03"}}
	assert.Equal(t, SuretyFilter{Search: "ram", PoliceStation: "Haveli", Year: 2024, Month: 3}, ParseSuretyFilter(v.Get))

	v = url.Values{"year": {"twenty"}, "month": {"13"}}
	assert.Equal(t, SuretyFilter{}, ParseSuretyFilter(v.Get))
}

func TestFilterUsers(t *testing.T) {
	users := []User{
		{ID: 1, FullName: "Asha Kale", MobileNo: "9876543210", EmailID: "asha@example.org", DOB: date(1990, time.January, 2)},
		{ID: 2, FullName: "Vijay Shinde", MobileNo: "9123456780"},
	}
	assert.Len(t, FilterUsers(users, ""), 2)
	assert.Equal(t, int64(1), FilterUsers(users, "ASHA")[0].ID)
	assert.Equal(t, int64(2), FilterUsers(users, "91234")[0].ID)
	assert.Equal(t, int64(1), FilterUsers(users, "1990-01")[0].ID)
	assert.Empty(t, FilterUsers(users, "nobody"))
}

func TestUserRoles(t *testing.T) {
	assert.Equal(t, []string{RoleUser}, User{Role: RoleUser}.Roles())
	assert.Equal(t, []string{RoleAdmin, RoleUser}, User{Role: RoleAdmin}.Roles())

	raw, err := json.Marshal(User{ID: 1, PasswordHash: "hash"})
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "hash")
}

func TestFlatten(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	records := []HardwareRecord{
		{ID: 10, CourtName: "District Court", EmployeeAllocated: "Clerk 3", UserID: 2, Items: []LineItem{
			{ID: a, ItemName: "Printer", SerialNo: "P-1", Company: "HP"},
			{ID: b, ItemName: "Monitor", SerialNo: "M-1", Company: "Dell"},
		}},
		{ID: 11},
	}

	rows := Flatten(records)
	require.Len(t, rows, 2)
	assert.Equal(t, a, rows[0].ID)
	assert.Equal(t, int64(10), rows[0].ParentID)
	assert.Equal(t, "Printer", rows[0].HardwareName)
	assert.Equal(t, "Dell", rows[1].Company)
	assert.Equal(t, "Clerk 3", rows[1].EmployeeAllocated)
	assert.Equal(t, int64(2), rows[1].User)
}

func TestJSONB(t *testing.T) {
	var j JSONB
	v, err := j.Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("{}"), v)

	require.NoError(t, j.Scan([]byte(`{"warranty":"3y"}`)))
	assert.Equal(t, "3y", j["warranty"])

	require.NoError(t, j.Scan(nil))
	assert.Empty(t, j)

	assert.Error(t, j.Scan(42))
}

func TestCreateUserRequestToUser(t *testing.T) {
	req := CreateUserRequest{
		FullName: " Asha Patil ",
		MobileNo: "9876543210",
		DOB:      "05/11/1990",
		EmailID:  "Asha@Example.com",
		Password: "secret1",
	}

	u, err := req.ToUser()
	require.NoError(t, err)
	assert.Equal(t, "Asha Patil", u.FullName)
	assert.Equal(t, "asha@example.com", u.EmailID)
	assert.Equal(t, RoleUser, u.Role)
	assert.Equal(t, date(1990, time.November, 5), u.DOB)
	assert.NotEqual(t, "secret1", u.PasswordHash)
	assert.True(t, u.CheckPassword("secret1"))
	assert.False(t, u.CheckPassword("secret2"))
}
