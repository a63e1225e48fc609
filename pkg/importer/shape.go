package importer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"surety-registry-api/internal/models"
	"surety-registry-api/internal/store"
	"surety-registry-api/pkg/datenorm"
)

// ErrNoLineItems marks a hardware record that is skipped because it carries
// no hardware items.
var ErrNoLineItems = errors.New("record has no hardware items")

// FieldTypeError reports a value that cannot be stored in a text field.
type FieldTypeError struct {
	Field string
	Value any
}

func (e *FieldTypeError) Error() string {
	return fmt.Sprintf("cast to string failed for value %v (type %T) at path %q", e.Value, e.Value, e.Field)
}

var hardwareTextFields = []string{
	"courtName",
	"companyName",
	"employeeAllocated",
	"deadStockRegSrNo",
	"deadStockBookPageNo",
	"source",
}

var hardwareDateFields = []string{"deliveryDate", "installationDate"}

// Keys that never reach the pass-through bag.
var reservedHardwareFields = map[string]bool{
	"_id":           true,
	"id":            true,
	"user":          true,
	"items":         true,
	"hardwareItems": true,
	"createdAt":     true,
	"updatedAt":     true,
}

func isHardwareField(k string) bool {
	for _, f := range hardwareTextFields {
		if f == k {
			return true
		}
	}
	for _, f := range hardwareDateFields {
		if f == k {
			return true
		}
	}
	return false
}

// ShapeHardware turns one inbound record into a storable document owned by
// userID. Records without items return ErrNoLineItems; values that cannot be
// stored return a *FieldTypeError. Unknown fields are kept in Extras as-is.
func ShapeHardware(raw map[string]any, userID int64) (models.HardwareRecord, error) {
	items, err := shapeLineItems(raw["hardwareItems"])
	if err != nil {
		return models.HardwareRecord{}, err
	}

	rec := models.HardwareRecord{
		UserID:           userID,
		Items:            items,
		Extras:           models.JSONB{},
		DeliveryDate:     datenorm.Parse(raw["deliveryDate"]),
		InstallationDate: datenorm.Parse(raw["installationDate"]),
	}

	dst := map[string]*string{
		"courtName":           &rec.CourtName,
		"companyName":         &rec.CompanyName,
		"employeeAllocated":   &rec.EmployeeAllocated,
		"deadStockRegSrNo":    &rec.DeadStockRegSrNo,
		"deadStockBookPageNo": &rec.DeadStockBookPageNo,
		"source":              &rec.Source,
	}
	for _, field := range hardwareTextFields {
		v, err := asText(field, raw[field])
		if err != nil {
			return models.HardwareRecord{}, err
		}
		*dst[field] = v
	}

	for k, v := range raw {
		if reservedHardwareFields[k] || isHardwareField(k) {
			continue
		}
		rec.Extras[k] = v
	}
	return rec, nil
}

// ShapeHardwarePatch converts the header fields present in an update body
// into column assignments plus pass-through fields. Absent fields are left
// alone; a present but unparseable date clears the stored date.
func ShapeHardwarePatch(raw map[string]any) (map[string]any, models.JSONB, error) {
	set := map[string]any{}
	extras := models.JSONB{}

	for _, field := range hardwareTextFields {
		v, ok := raw[field]
		if !ok {
			continue
		}
		s, err := asText(field, v)
		if err != nil {
			return nil, nil, err
		}
		set[field] = s
	}
	for _, field := range hardwareDateFields {
		if v, ok := raw[field]; ok {
			set[field] = datenorm.Parse(v)
		}
	}
	for k, v := range raw {
		if reservedHardwareFields[k] || isHardwareField(k) {
			continue
		}
		extras[k] = v
	}
	return set, extras, nil
}

// ShapeLineItemPatch reads the item fields present in an update body. The
// returned id is "" when the body does not address an item.
func ShapeLineItemPatch(raw map[string]any) (string, store.LineItemPatch, error) {
	var patch store.LineItemPatch
	id, _ := raw["_id"].(string)
	for _, f := range []struct {
		key string
		dst **string
	}{
		{"hardwareName", &patch.ItemName},
		{"serialNumber", &patch.SerialNo},
		{"company", &patch.Company},
	} {
		v, ok := raw[f.key]
		if !ok {
			continue
		}
		s, err := asText("hardwareItems.0."+f.key, v)
		if err != nil {
			return "", store.LineItemPatch{}, err
		}
		*f.dst = &s
	}
	return strings.TrimSpace(id), patch, nil
}

func shapeLineItems(v any) ([]models.LineItem, error) {
	var list []any
	switch items := v.(type) {
	case []any:
		list = items
	case []map[string]any:
		for _, m := range items {
			list = append(list, m)
		}
	}
	if len(list) == 0 {
		return nil, ErrNoLineItems
	}

	out := make([]models.LineItem, 0, len(list))
	for i, el := range list {
		m, ok := el.(map[string]any)
		if !ok {
			return nil, &FieldTypeError{Field: fmt.Sprintf("hardwareItems.%d", i), Value: el}
		}
		item := models.LineItem{ID: uuid.New()}
		for _, f := range []struct {
			key string
			dst *string
		}{
			{"hardwareName", &item.ItemName},
			{"serialNumber", &item.SerialNo},
			{"company", &item.Company},
		} {
			s, err := asText(fmt.Sprintf("hardwareItems.%d.%s", i, f.key), m[f.key])
			if err != nil {
				return nil, err
			}
			*f.dst = s
		}
		out = append(out, item)
	}
	return out, nil
}

// asText applies the string cast used for every text column: scalars are
// stringified, structured values are rejected.
func asText(field string, v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(t), nil
	case json.Number:
		return t.String(), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case bool:
		return strconv.FormatBool(t), nil
	default:
		return "", &FieldTypeError{Field: field, Value: v}
	}
}
