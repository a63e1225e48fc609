package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surety-registry-api/internal/models"
)

var hardwareCols = []string{
	"id", "court_name", "company_name", "delivery_date", "installation_date",
	"employee_allocated", "dead_stock_reg_sr_no", "dead_stock_book_page_no", "source",
	"extras", "user_id", "created_at", "updated_at",
	"item_id", "item_name", "serial_no", "company",
}

func newMock(t *testing.T) (sqlmock.Sqlmock, func() Querier) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return mock, func() Querier { return db }
}

func TestInsertHardware(t *testing.T) {
	mock, q := newMock(t)
	now := time.Now()
	delivered := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	item := models.LineItem{ID: uuid.New(), ItemName: "Printer", SerialNo: "P-1", Company: "HP"}

	mock.ExpectQuery("INSERT INTO hardware_records").
		WithArgs("District Court", "", delivered, nil, "Clerk 3", "", "", "", []byte("{}"), int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(11, now, now))
	mock.ExpectExec("INSERT INTO hardware_items").
		WithArgs(int64(11), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := &models.HardwareRecord{
		CourtName:         "District Court",
		DeliveryDate:      &delivered,
		EmployeeAllocated: "Clerk 3",
		UserID:            4,
		Items:             []models.LineItem{item},
	}
	require.NoError(t, InsertHardware(context.Background(), q(), rec))
	assert.Equal(t, int64(11), rec.ID)
	assert.Equal(t, now, rec.CreatedAt)
}

func TestInsertHardwareItemFailure(t *testing.T) {
	mock, q := newMock(t)
	now := time.Now()

	mock.ExpectQuery("INSERT INTO hardware_records").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(1, now, now))
	mock.ExpectExec("INSERT INTO hardware_items").WillReturnError(errors.New("duplicate key"))

	rec := &models.HardwareRecord{Items: []models.LineItem{{ID: uuid.New()}}}
	err := InsertHardware(context.Background(), q(), rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert hardware items: duplicate key")
}

func TestListHardwareGroupsItems(t *testing.T) {
	mock, q := newMock(t)
	now := time.Now()
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	rows := sqlmock.NewRows(hardwareCols).
		AddRow(1, "District Court", "Acme", now, nil, "Clerk", "12", "4", "GeM", []byte(`{"warranty":"3y"}`), 2, now, now, a.String(), "Printer", "P-1", "HP").
		AddRow(1, "District Court", "Acme", now, nil, "Clerk", "12", "4", "GeM", []byte(`{"warranty":"3y"}`), 2, now, now, b.String(), "Monitor", "M-1", "Dell").
		AddRow(2, "Taluka Court", "", nil, nil, "", "", "", "", []byte(`{}`), 3, now, now, c.String(), "UPS", "U-1", "APC").
		AddRow(3, "Empty", "", nil, nil, "", "", "", "", []byte(`{}`), 3, now, now, nil, nil, nil, nil)
	mock.ExpectQuery("FROM hardware_records r").WillReturnRows(rows)

	records, err := ListHardware(context.Background(), q(), 0)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Len(t, records[0].Items, 2)
	assert.Equal(t, b, records[0].Items[1].ID)
	assert.Equal(t, "3y", records[0].Extras["warranty"])
	require.NotNil(t, records[0].DeliveryDate)
	assert.Nil(t, records[0].InstallationDate)
	assert.Len(t, records[1].Items, 1)
	assert.Empty(t, records[2].Items)

	flat := models.Flatten(records)
	assert.Len(t, flat, 3)
}

func TestListHardwareByOwner(t *testing.T) {
	mock, q := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE r.user_id = $1")).WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows(hardwareCols))

	records, err := ListHardware(context.Background(), q(), 5)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestGetHardwareNotFound(t *testing.T) {
	mock, q := newMock(t)
	mock.ExpectQuery("FROM hardware_records r").WithArgs(int64(9)).WillReturnRows(sqlmock.NewRows(hardwareCols))

	_, err := GetHardware(context.Background(), q(), 9)
	assert.True(t, IsNotFound(err))
}

func TestUpdateHardware(t *testing.T) {
	mock, q := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta(
		"UPDATE hardware_records SET court_name = $1, employee_allocated = $2, extras = extras || $3::jsonb, updated_at = now() WHERE id = $4")).
		WithArgs("High Court", "Clerk 9", sqlmock.AnyArg(), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := UpdateHardware(context.Background(), q(), 7,
		map[string]any{"employeeAllocated": "Clerk 9", "courtName": "High Court"},
		models.JSONB{"note": "moved"})
	require.NoError(t, err)
}

func TestUpdateHardwareRejectsUnknownField(t *testing.T) {
	_, q := newMock(t)
	err := UpdateHardware(context.Background(), q(), 7, map[string]any{"id; DROP TABLE": 1}, nil)
	assert.Error(t, err)
}

func TestUpdateHardwareNotFound(t *testing.T) {
	mock, q := newMock(t)
	mock.ExpectExec("UPDATE hardware_records").WillReturnResult(sqlmock.NewResult(0, 0))

	err := UpdateHardware(context.Background(), q(), 7, map[string]any{"source": "GeM"}, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateLineItem(t *testing.T) {
	mock, q := newMock(t)
	itemID := uuid.New()
	name := "Laser Printer"

	mock.ExpectExec(regexp.QuoteMeta("UPDATE hardware_items SET item_name = $1 WHERE id = $2 AND record_id = $3")).
		WithArgs(name, itemID, int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := UpdateLineItem(context.Background(), q(), 3, itemID, LineItemPatch{ItemName: &name})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteLineItem(t *testing.T) {
	t.Run("missing parent", func(t *testing.T) {
		mock, q := newMock(t)
		mock.ExpectExec("UPDATE hardware_records SET updated_at").WillReturnResult(sqlmock.NewResult(0, 0))

		err := DeleteLineItem(context.Background(), q(), 3, uuid.New())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("item already gone", func(t *testing.T) {
		mock, q := newMock(t)
		mock.ExpectExec("UPDATE hardware_records SET updated_at").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("DELETE FROM hardware_items").WillReturnResult(sqlmock.NewResult(0, 0))

		assert.NoError(t, DeleteLineItem(context.Background(), q(), 3, uuid.New()))
	})
}

func TestInsertSurety(t *testing.T) {
	mock, q := newMock(t)
	now := time.Now()
	assigned := int64(8)

	mock.ExpectQuery("INSERT INTO sureties").
		WithArgs("Ramesh", "", "123456789012", "Haveli", "FIR-1", "", "", "", "",
			sqlmock.AnyArg(), nil, "", assigned, int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(5, now, now))

	s := &models.Surety{SuretyName: "Ramesh", AadharNo: "123456789012", PoliceStation: "Haveli",
		CaseFirNo: "FIR-1", Amount: decimal.NewFromInt(5000), AssignedToUser: &assigned, UserID: 2}
	require.NoError(t, InsertSurety(context.Background(), q(), s))
	assert.Equal(t, int64(5), s.ID)
}

func TestListSureties(t *testing.T) {
	mock, q := newMock(t)
	now := time.Now()
	cols := []string{"id", "surety_name", "address", "aadhar_no", "police_station", "case_fir_no", "act_name",
		"section", "accused_name", "accused_address", "amount", "date_of_surety", "court_city",
		"assigned_to_user", "user_id", "created_at", "updated_at"}

	mock.ExpectQuery(regexp.QuoteMeta("FROM sureties WHERE user_id = $1")).WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(1, "Ramesh", "Pune", "123456789012", "Haveli", "FIR-1", "IPC", "420", "Suresh", "Pune",
				"25000.50", now, "Pune", nil, 2, now, now))

	list, err := ListSureties(context.Background(), q(), 2)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "25000.5", list[0].Amount.String())
	assert.Nil(t, list[0].AssignedToUser)
	require.NotNil(t, list[0].DateOfSurety)
}

func TestUpdateSuretyNotFound(t *testing.T) {
	mock, q := newMock(t)
	mock.ExpectQuery("UPDATE sureties").WillReturnRows(sqlmock.NewRows([]string{"user_id", "created_at", "updated_at"}))

	err := UpdateSurety(context.Background(), q(), &models.Surety{ID: 99})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserExists(t *testing.T) {
	mock, q := newMock(t)
	mock.ExpectQuery("SELECT id FROM users").WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery("SELECT id FROM users").WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	ok, err := UserExists(context.Background(), q(), 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = UserExists(context.Background(), q(), 2)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetUserByLogin(t *testing.T) {
	mock, q := newMock(t)
	now := time.Now()
	cols := []string{"id", "full_name", "mobile_no", "dob", "village", "email_id", "role", "password_hash", "created_at", "updated_at"}

	mock.ExpectQuery("FROM users WHERE mobile_no = \\$1").WithArgs("9876543210").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(3, "Asha", "9876543210", nil, "Haveli", "", "user", "hash", now, now))
	mock.ExpectQuery("FROM users WHERE mobile_no = \\$1").WithArgs("ghost@example.org").
		WillReturnRows(sqlmock.NewRows(cols))

	u, err := GetUserByLogin(context.Background(), q(), " 9876543210 ")
	require.NoError(t, err)
	assert.Equal(t, "Haveli", u.Village)
	assert.Nil(t, u.DOB)

	_, err = GetUserByLogin(context.Background(), q(), "ghost@example.org")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateUser(t *testing.T) {
	mock, q := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET full_name = $1, village = $2, updated_at = now() WHERE id = $3")).
		WithArgs("Asha K", "Haveli", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, UpdateUser(context.Background(), q(), 3, map[string]any{"village": "Haveli", "fullName": "Asha K"}))
	assert.Error(t, UpdateUser(context.Background(), q(), 3, map[string]any{"is_admin": true}))
}

func TestWithTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM sureties").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	require.NoError(t, WithTx(context.Background(), db, func(tx *sql.Tx) error {
		return DeleteSurety(context.Background(), tx, 1)
	}))

	mock.ExpectBegin()
	mock.ExpectRollback()
	err = WithTx(context.Background(), db, func(tx *sql.Tx) error { return fmt.Errorf("boom") })
	assert.EqualError(t, err, "boom")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestErrorClassification(t *testing.T) {
	unique := fmt.Errorf("insert user: %w", &pgconn.PgError{Code: "23505"})
	fk := &pgconn.PgError{Code: "23503"}

	assert.True(t, IsUniqueViolation(unique))
	assert.False(t, IsUniqueViolation(fk))
	assert.True(t, IsForeignKeyViolation(fk))
	assert.False(t, IsForeignKeyViolation(errors.New("plain")))
}
