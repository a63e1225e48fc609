package models

import (
	"time"

	"github.com/google/uuid"
)

// HardwareRecord is one delivery of office hardware and the items it contains.
type HardwareRecord struct {
	ID                  int64      `json:"_id"`
	CourtName           string     `json:"courtName"`
	CompanyName         string     `json:"companyName"`
	DeliveryDate        *time.Time `json:"deliveryDate"`
	InstallationDate    *time.Time `json:"installationDate"`
	EmployeeAllocated   string     `json:"employeeAllocated"`
	DeadStockRegSrNo    string     `json:"deadStockRegSrNo"`
	DeadStockBookPageNo string     `json:"deadStockBookPageNo"`
	Source              string     `json:"source"`
	Extras              JSONB      `json:"extras,omitempty"`
	UserID              int64      `json:"user"`
	Items               []LineItem `json:"items"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// LineItem is a single piece of hardware inside a record. It has no life of
// its own outside its parent record.
type LineItem struct {
	ID       uuid.UUID `json:"_id"`
	ItemName string    `json:"itemName"`
	SerialNo string    `json:"serialNo"`
	Company  string    `json:"company"`
}

// HardwareRow is the flattened, one-row-per-item view used by list and export
// endpoints.
type HardwareRow struct {
	ID                  uuid.UUID  `json:"_id"`
	ParentID            int64      `json:"parentId"`
	HardwareName        string     `json:"hardwareName"`
	SerialNumber        string     `json:"serialNumber"`
	CourtName           string     `json:"courtName"`
	CompanyName         string     `json:"companyName"`
	DeliveryDate        *time.Time `json:"deliveryDate"`
	InstallationDate    *time.Time `json:"installationDate"`
	DeadStockRegSrNo    string     `json:"deadStockRegSrNo"`
	DeadStockBookPageNo string     `json:"deadStockBookPageNo"`
	Source              string     `json:"source"`
	Company             string     `json:"company"`
	EmployeeAllocated   string     `json:"employeeAllocated"`
	User                int64      `json:"user"`
}

// Flatten expands every record into one row per line item, preserving order.
// Records without items contribute nothing.
func Flatten(records []HardwareRecord) []HardwareRow {
	rows := make([]HardwareRow, 0, len(records))
	for _, rec := range records {
		for _, item := range rec.Items {
			rows = append(rows, HardwareRow{
				ID:                  item.ID,
				ParentID:            rec.ID,
				HardwareName:        item.ItemName,
				SerialNumber:        item.SerialNo,
				CourtName:           rec.CourtName,
				CompanyName:         rec.CompanyName,
				DeliveryDate:        rec.DeliveryDate,
				InstallationDate:    rec.InstallationDate,
				DeadStockRegSrNo:    rec.DeadStockRegSrNo,
				DeadStockBookPageNo: rec.DeadStockBookPageNo,
				Source:              rec.Source,
				Company:             item.Company,
				EmployeeAllocated:   rec.EmployeeAllocated,
				User:                rec.UserID,
			})
		}
	}
	return rows
}
