package store

import (
	"context"
	"database/sql"
	"fmt"

	"surety-registry-api/internal/models"
)

const suretyColumns = `id, surety_name, address, aadhar_no, police_station, case_fir_no, act_name,
	section, accused_name, accused_address, amount, date_of_surety, court_city,
	assigned_to_user, user_id, created_at, updated_at`

// InsertSurety stores s and fills in its id and timestamps.
func InsertSurety(ctx context.Context, q Querier, s *models.Surety) error {
	err := q.QueryRowContext(ctx, `
		INSERT INTO sureties (surety_name, address, aadhar_no, police_station, case_fir_no, act_name,
			section, accused_name, accused_address, amount, date_of_surety, court_city,
			assigned_to_user, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at, updated_at`,
		s.SuretyName, s.Address, s.AadharNo, s.PoliceStation, s.CaseFirNo, s.ActName,
		s.Section, s.AccusedName, s.AccusedAddress, s.Amount, nullTime(s.DateOfSurety), s.CourtCity,
		nullInt(s.AssignedToUser), s.UserID,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert surety: %w", err)
	}
	return nil
}

// UpdateSurety replaces every editable field of the surety with id s.ID.
func UpdateSurety(ctx context.Context, q Querier, s *models.Surety) error {
	err := q.QueryRowContext(ctx, `
		UPDATE sureties SET surety_name = $1, address = $2, aadhar_no = $3, police_station = $4,
			case_fir_no = $5, act_name = $6, section = $7, accused_name = $8, accused_address = $9,
			amount = $10, date_of_surety = $11, court_city = $12, assigned_to_user = $13,
			updated_at = now()
		WHERE id = $14
		RETURNING user_id, created_at, updated_at`,
		s.SuretyName, s.Address, s.AadharNo, s.PoliceStation, s.CaseFirNo, s.ActName,
		s.Section, s.AccusedName, s.AccusedAddress, s.Amount, nullTime(s.DateOfSurety), s.CourtCity,
		nullInt(s.AssignedToUser), s.ID,
	).Scan(&s.UserID, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update surety: %w", err)
	}
	return nil
}

// GetSurety loads one surety.
func GetSurety(ctx context.Context, q Querier, id int64) (*models.Surety, error) {
	rows, err := q.QueryContext(ctx, "SELECT "+suretyColumns+" FROM sureties WHERE id = $1", id)
	if err != nil {
		return nil, fmt.Errorf("query surety: %w", err)
	}
	list, err := scanSureties(rows)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	return &list[0], nil
}

// ListSureties returns every surety, or only those created by ownerID when it
// is positive, newest first.
func ListSureties(ctx context.Context, q Querier, ownerID int64) ([]models.Surety, error) {
	query := "SELECT " + suretyColumns + " FROM sureties"
	args := []any{}
	if ownerID > 0 {
		query += " WHERE user_id = $1"
		args = append(args, ownerID)
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sureties: %w", err)
	}
	return scanSureties(rows)
}

// DeleteSurety removes one surety.
func DeleteSurety(ctx context.Context, q Querier, id int64) error {
	res, err := q.ExecContext(ctx, "DELETE FROM sureties WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete surety: %w", err)
	}
	return expectOne(res)
}

func scanSureties(rows *sql.Rows) ([]models.Surety, error) {
	defer rows.Close()

	out := []models.Surety{}
	for rows.Next() {
		var (
			s        models.Surety
			dated    sql.NullTime
			assigned sql.NullInt64
		)
		if err := rows.Scan(
			&s.ID, &s.SuretyName, &s.Address, &s.AadharNo, &s.PoliceStation, &s.CaseFirNo, &s.ActName,
			&s.Section, &s.AccusedName, &s.AccusedAddress, &s.Amount, &dated, &s.CourtCity,
			&assigned, &s.UserID, &s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan surety: %w", err)
		}
		s.DateOfSurety = timePtr(dated)
		if assigned.Valid {
			v := assigned.Int64
			s.AssignedToUser = &v
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sureties: %w", err)
	}
	return out, nil
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

// ListStations returns the distinct police stations named by sureties and
// user villages, sorted by name.
func ListStations(ctx context.Context, q Querier) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT name FROM (
			SELECT police_station AS name FROM sureties
			UNION
			SELECT village FROM users
		) s
		WHERE name <> ''
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query stations: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan station: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}
