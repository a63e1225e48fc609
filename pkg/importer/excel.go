package importer

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/tealeg/xlsx/v3"
	"gopkg.in/yaml.v3"
)

// Sheet kinds understood by the spreadsheet reader.
const (
	KindHardware = "hardware"
	KindSureties = "sureties"
	KindUsers    = "users"
)

//go:embed mapping.yaml
var defaultMapping []byte

// MappingConfig maps spreadsheet headers onto record fields, per sheet kind.
type MappingConfig struct {
	Version int                    `yaml:"version"`
	Sheets  map[string]SheetConfig `yaml:"sheets"`
}

type SheetConfig struct {
	// Aliases lists the accepted header spellings for each field. A header
	// equal to the field name always matches.
	Aliases map[string][]string `yaml:"aliases"`
	// ItemFields are per-row line item columns. When set, consecutive rows
	// sharing every other value are folded into one record.
	ItemFields []string `yaml:"item_fields"`
}

// LoadMapping reads a mapping file, or the built-in mapping when path is empty.
func LoadMapping(path string) (*MappingConfig, error) {
	data := defaultMapping
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read mapping: %w", err)
		}
		data = b
	}
	var cfg MappingConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse mapping: %w", err)
	}
	return &cfg, nil
}

// Table is the field-keyed content of one worksheet. Rows[i] is the 1-based
// spreadsheet row that Records[i] starts on.
type Table struct {
	Records []map[string]any
	Rows    []int
}

// ReadWorkbook reads the first worksheet of an .xlsx file as records of kind.
// Headers without a mapping keep their trimmed text as the field name.
func ReadWorkbook(data []byte, kind string, mapping *MappingConfig) (*Table, error) {
	cfg, ok := mapping.Sheets[kind]
	if !ok {
		return nil, fmt.Errorf("no mapping for sheet kind %q", kind)
	}

	wb, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	if len(wb.Sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	sheet := wb.Sheets[0]

	lookup := aliasLookup(cfg)
	headers := make([]string, sheet.MaxCol)
	for c := 0; c < sheet.MaxCol; c++ {
		cell, err := sheet.Cell(0, c)
		if err != nil {
			return nil, fmt.Errorf("failed to read header row: %w", err)
		}
		name := strings.TrimSpace(cell.String())
		if name == "" {
			continue
		}
		if field, ok := lookup[normalizeHeader(name)]; ok {
			name = field
		}
		headers[c] = name
	}

	table := &Table{}
	for r := 1; r < sheet.MaxRow; r++ {
		rec := make(map[string]any)
		for c, field := range headers {
			if field == "" {
				continue
			}
			cell, err := sheet.Cell(r, c)
			if err != nil {
				return nil, fmt.Errorf("read row %d: %w", r+1, err)
			}
			if v := cellValue(cell); v != "" {
				rec[field] = v
			}
		}
		if len(rec) == 0 {
			continue
		}
		table.Records = append(table.Records, rec)
		table.Rows = append(table.Rows, r+1)
	}

	if len(cfg.ItemFields) > 0 {
		table.Records, table.Rows = groupItems(table.Records, table.Rows, cfg.ItemFields)
	}
	return table, nil
}

func aliasLookup(cfg SheetConfig) map[string]string {
	lookup := make(map[string]string)
	for field, aliases := range cfg.Aliases {
		lookup[normalizeHeader(field)] = field
		for _, a := range aliases {
			lookup[normalizeHeader(a)] = field
		}
	}
	for _, field := range cfg.ItemFields {
		lookup[normalizeHeader(field)] = field
	}
	return lookup
}

// normalizeHeader folds case and drops everything but letters and digits.
func normalizeHeader(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// cellValue renders a cell as text. Date cells become YYYY-MM-DD and plain
// numbers lose any exponent formatting so long mobile and Aadhar numbers
// survive.
func cellValue(cell *xlsx.Cell) string {
	if cell.IsTime() {
		if t, err := cell.GetTime(false); err == nil {
			return t.Format("2006-01-02")
		}
	}
	if cell.Type() == xlsx.CellTypeNumeric {
		if f, err := strconv.ParseFloat(strings.TrimSpace(cell.Value), 64); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
	}
	return strings.TrimSpace(cell.String())
}

// groupItems folds consecutive rows that share their record-level values into
// one record with a hardwareItems list. Item columns never take part in the
// comparison.
func groupItems(records []map[string]any, rows []int, itemFields []string) ([]map[string]any, []int) {
	isItem := make(map[string]bool, len(itemFields))
	for _, f := range itemFields {
		isItem[f] = true
	}

	var (
		out     []map[string]any
		outRows []int
		lastKey string
	)
	for i, rec := range records {
		header := make(map[string]any)
		item := make(map[string]any)
		for k, v := range rec {
			if isItem[k] {
				item[k] = v
			} else {
				header[k] = v
			}
		}

		key := recordKey(header)
		if len(out) == 0 || key != lastKey {
			header["hardwareItems"] = []any{}
			out = append(out, header)
			outRows = append(outRows, rows[i])
			lastKey = key
		}
		if len(item) > 0 {
			cur := out[len(out)-1]
			cur["hardwareItems"] = append(cur["hardwareItems"].([]any), item)
		}
	}
	return out, outRows
}

func recordKey(header map[string]any) string {
	keys := make([]string, 0, len(header))
	for k := range header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%v\x00", k, header[k])
	}
	return b.String()
}

