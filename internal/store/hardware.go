package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"surety-registry-api/internal/models"
)

const insertHardwareSQL = `
	INSERT INTO hardware_records (court_name, company_name, delivery_date, installation_date,
		employee_allocated, dead_stock_reg_sr_no, dead_stock_book_page_no, source, extras, user_id)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	RETURNING id, created_at, updated_at`

// Items go in with a single statement per record; position keeps their order.
const insertLineItemsSQL = `
	INSERT INTO hardware_items (id, record_id, position, item_name, serial_no, company)
	SELECT u.id, $1, u.ord - 1, u.item_name, u.serial_no, u.company
	FROM unnest($2::uuid[], $3::text[], $4::text[], $5::text[]) WITH ORDINALITY
		AS u(id, item_name, serial_no, company, ord)`

const selectHardwareSQL = `
	SELECT r.id, r.court_name, r.company_name, r.delivery_date, r.installation_date,
		r.employee_allocated, r.dead_stock_reg_sr_no, r.dead_stock_book_page_no, r.source,
		r.extras, r.user_id, r.created_at, r.updated_at,
		i.id, i.item_name, i.serial_no, i.company
	FROM hardware_records r
	LEFT JOIN hardware_items i ON i.record_id = r.id`

// HardwareColumns maps the JSON names of editable header fields to columns.
var HardwareColumns = map[string]string{
	"courtName":           "court_name",
	"companyName":         "company_name",
	"deliveryDate":        "delivery_date",
	"installationDate":    "installation_date",
	"employeeAllocated":   "employee_allocated",
	"deadStockRegSrNo":    "dead_stock_reg_sr_no",
	"deadStockBookPageNo": "dead_stock_book_page_no",
	"source":              "source",
}

// InsertHardware stores rec and its line items, filling in the generated id
// and timestamps.
func InsertHardware(ctx context.Context, q Querier, rec *models.HardwareRecord) error {
	extras := rec.Extras
	if extras == nil {
		extras = models.JSONB{}
	}
	err := q.QueryRowContext(ctx, insertHardwareSQL,
		rec.CourtName, rec.CompanyName, nullTime(rec.DeliveryDate), nullTime(rec.InstallationDate),
		rec.EmployeeAllocated, rec.DeadStockRegSrNo, rec.DeadStockBookPageNo, rec.Source,
		extras, rec.UserID,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert hardware record: %w", err)
	}
	return InsertLineItems(ctx, q, rec.ID, rec.Items)
}

// InsertLineItems appends items to the record identified by recordID.
func InsertLineItems(ctx context.Context, q Querier, recordID int64, items []models.LineItem) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]string, len(items))
	names := make([]string, len(items))
	serials := make([]string, len(items))
	companies := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID.String()
		names[i] = item.ItemName
		serials[i] = item.SerialNo
		companies[i] = item.Company
	}
	if _, err := q.ExecContext(ctx, insertLineItemsSQL,
		recordID, pq.Array(ids), pq.Array(names), pq.Array(serials), pq.Array(companies)); err != nil {
		return fmt.Errorf("insert hardware items: %w", err)
	}
	return nil
}

// GetHardware loads one record with its items.
func GetHardware(ctx context.Context, q Querier, id int64) (*models.HardwareRecord, error) {
	records, err := queryHardware(ctx, q, selectHardwareSQL+" WHERE r.id = $1 ORDER BY i.position", id)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return &records[0], nil
}

// ListHardware loads every record, or only those owned by ownerID when it is
// positive, oldest first.
func ListHardware(ctx context.Context, q Querier, ownerID int64) ([]models.HardwareRecord, error) {
	if ownerID > 0 {
		return queryHardware(ctx, q, selectHardwareSQL+" WHERE r.user_id = $1 ORDER BY r.id, i.position", ownerID)
	}
	return queryHardware(ctx, q, selectHardwareSQL+" ORDER BY r.id, i.position")
}

func queryHardware(ctx context.Context, q Querier, query string, args ...any) ([]models.HardwareRecord, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query hardware: %w", err)
	}
	defer rows.Close()

	records := []models.HardwareRecord{}
	for rows.Next() {
		var (
			rec                       models.HardwareRecord
			delivery, installation    sql.NullTime
			itemID                    uuid.NullUUID
			itemName, serial, company sql.NullString
		)
		if err := rows.Scan(
			&rec.ID, &rec.CourtName, &rec.CompanyName, &delivery, &installation,
			&rec.EmployeeAllocated, &rec.DeadStockRegSrNo, &rec.DeadStockBookPageNo, &rec.Source,
			&rec.Extras, &rec.UserID, &rec.CreatedAt, &rec.UpdatedAt,
			&itemID, &itemName, &serial, &company,
		); err != nil {
			return nil, fmt.Errorf("scan hardware: %w", err)
		}

		if n := len(records); n == 0 || records[n-1].ID != rec.ID {
			rec.DeliveryDate = timePtr(delivery)
			rec.InstallationDate = timePtr(installation)
			rec.Items = []models.LineItem{}
			records = append(records, rec)
		}
		if itemID.Valid {
			last := &records[len(records)-1]
			last.Items = append(last.Items, models.LineItem{
				ID:       itemID.UUID,
				ItemName: itemName.String,
				SerialNo: serial.String,
				Company:  company.String,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hardware: %w", err)
	}
	return records, nil
}

// UpdateHardware applies set (JSON field name to value) to the header and
// merges extras into the pass-through fields. It returns ErrNotFound when no
// record has the id.
func UpdateHardware(ctx context.Context, q Querier, id int64, set map[string]any, extras models.JSONB) error {
	keys := make([]string, 0, len(set))
	for k := range set {
		if _, ok := HardwareColumns[k]; !ok {
			return fmt.Errorf("unknown hardware field %q", k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	clauses := make([]string, 0, len(keys)+2)
	args := make([]any, 0, len(keys)+2)
	for _, k := range keys {
		args = append(args, set[k])
		clauses = append(clauses, fmt.Sprintf("%s = $%d", HardwareColumns[k], len(args)))
	}
	if len(extras) > 0 {
		args = append(args, extras)
		clauses = append(clauses, fmt.Sprintf("extras = extras || $%d::jsonb", len(args)))
	}
	clauses = append(clauses, "updated_at = now()")
	args = append(args, id)

	query := fmt.Sprintf("UPDATE hardware_records SET %s WHERE id = $%d", strings.Join(clauses, ", "), len(args))
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update hardware record: %w", err)
	}
	return expectOne(res)
}

// LineItemPatch holds the item fields present in an update; nil means keep.
type LineItemPatch struct {
	ItemName *string
	SerialNo *string
	Company  *string
}

// UpdateLineItem patches one item addressed through its parent record.
// ErrNotFound means the record has no item with that id.
func UpdateLineItem(ctx context.Context, q Querier, recordID int64, itemID uuid.UUID, p LineItemPatch) error {
	clauses := []string{}
	args := []any{}
	for _, f := range []struct {
		col string
		val *string
	}{{"item_name", p.ItemName}, {"serial_no", p.SerialNo}, {"company", p.Company}} {
		if f.val == nil {
			continue
		}
		args = append(args, *f.val)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", f.col, len(args)))
	}
	if len(clauses) == 0 {
		clauses = append(clauses, "item_name = item_name")
	}
	args = append(args, itemID, recordID)

	query := fmt.Sprintf("UPDATE hardware_items SET %s WHERE id = $%d AND record_id = $%d",
		strings.Join(clauses, ", "), len(args)-1, len(args))
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update hardware item: %w", err)
	}
	return expectOne(res)
}

// DeleteLineItem removes one item from a record. Removing an item that is
// already gone is not an error; a missing record is.
func DeleteLineItem(ctx context.Context, q Querier, recordID int64, itemID uuid.UUID) error {
	res, err := q.ExecContext(ctx, "UPDATE hardware_records SET updated_at = now() WHERE id = $1", recordID)
	if err != nil {
		return fmt.Errorf("touch hardware record: %w", err)
	}
	if err := expectOne(res); err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx, "DELETE FROM hardware_items WHERE record_id = $1 AND id = $2", recordID, itemID); err != nil {
		return fmt.Errorf("delete hardware item: %w", err)
	}
	return nil
}

// DeleteHardware removes a record; its items go with it.
func DeleteHardware(ctx context.Context, q Querier, id int64) error {
	res, err := q.ExecContext(ctx, "DELETE FROM hardware_records WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete hardware record: %w", err)
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// IsNotFound reports whether err is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
