// Package export renders registry lists as .xlsx workbooks.
package export

import (
	"fmt"
	"io"

	"github.com/tealeg/xlsx/v3"

	"surety-registry-api/internal/models"
	"surety-registry-api/pkg/datenorm"
)

var (
	SuretyHeaders = []string{
		"Surety Name", "Address", "Aadhar No.", "Police Station", "Case/FIR No.", "Act Name",
		"Section", "Accused Name", "Accused Address", "Surety Amount", "Surety Date",
	}
	UserHeaders     = []string{"Full Name", "Mobile No.", "DOB", "Village", "Email ID"}
	HardwareHeaders = []string{
		"Court Name", "Company Name", "Delivery Date", "Installation Date", "Employee Allocated",
		"Dead Stock Reg Sr No", "Dead Stock Book Page No", "Source", "Hardware Name", "Serial Number", "Company",
	}
)

// Write renders one sheet with a header row followed by rows.
func Write(w io.Writer, sheetName string, headers []string, rows [][]string) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet(sheetName)
	if err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}

	header := sheet.AddRow()
	for _, h := range headers {
		header.AddCell().SetString(h)
	}
	for _, values := range rows {
		row := sheet.AddRow()
		for _, v := range values {
			row.AddCell().SetString(v)
		}
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Sureties writes the surety list sheet. Dates are DD/MM/YYYY.
func Sureties(w io.Writer, list []models.Surety) error {
	rows := make([][]string, 0, len(list))
	for _, s := range list {
		rows = append(rows, []string{
			s.SuretyName, s.Address, s.AadharNo, s.PoliceStation, s.CaseFirNo, s.ActName,
			s.Section, s.AccusedName, s.AccusedAddress, s.Amount.String(), datenorm.Format(s.DateOfSurety),
		})
	}
	return Write(w, "Surety List", SuretyHeaders, rows)
}

func Users(w io.Writer, list []models.User) error {
	rows := make([][]string, 0, len(list))
	for _, u := range list {
		rows = append(rows, []string{u.FullName, u.MobileNo, datenorm.Format(u.DOB), u.Village, u.EmailID})
	}
	return Write(w, "Users", UserHeaders, rows)
}

// Hardware writes one row per line item.
func Hardware(w io.Writer, list []models.HardwareRow) error {
	rows := make([][]string, 0, len(list))
	for _, h := range list {
		rows = append(rows, []string{
			h.CourtName, h.CompanyName, datenorm.Format(h.DeliveryDate), datenorm.Format(h.InstallationDate),
			h.EmployeeAllocated, h.DeadStockRegSrNo, h.DeadStockBookPageNo, h.Source,
			h.HardwareName, h.SerialNumber, h.Company,
		})
	}
	return Write(w, "Hardware", HardwareHeaders, rows)
}
