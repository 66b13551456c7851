package table

import (
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	dataSheet   = "data"
	schemaSheet = "schema"
)

// Column type tags stored in the schema sheet.
const (
	TypeString = "string"
	TypeInt    = "int"
	TypeFloat  = "float"
	TypeBool   = "bool"
	TypeTime   = "time"
)

// WriteXLSX writes t as a workbook with a "data" sheet (header + rows, all
// cells as text) and a "schema" sheet recording each column's type.
func WriteXLSX(w io.Writer, t *Table) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", dataSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(schemaSheet); err != nil {
		return err
	}

	header := make([]any, len(t.columns))
	for j, c := range t.columns {
		header[j] = c
	}
	if err := f.SetSheetRow(dataSheet, "A1", &header); err != nil {
		return err
	}

	for i := range t.rows {
		cells := make([]any, len(t.columns))
		for j, v := range t.rows[i] {
			if s, ok := AsString(v); ok {
				cells[j] = s
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(dataSheet, cell, &cells); err != nil {
			return err
		}
	}

	for j, c := range t.columns {
		row := []any{c, columnType(t, j)}
		cell, err := excelize.CoordinatesToCellName(1, j+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(schemaSheet, cell, &row); err != nil {
			return err
		}
	}

	_, err := f.WriteTo(w)
	return err
}

// ReadXLSX reads a workbook written by WriteXLSX.
func ReadXLSX(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	types := map[string]string{}
	schema, err := f.GetRows(schemaSheet, excelize.Options{RawCellValue: true})
	if err == nil {
		for _, row := range schema {
			if len(row) >= 2 {
				types[row[0]] = row[1]
			}
		}
	}

	rows, err := f.GetRows(dataSheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return New(), nil
	}

	t := New(rows[0]...)
	for _, raw := range rows[1:] {
		values := make([]any, len(t.columns))
		for j := range t.columns {
			if j >= len(raw) || raw[j] == "" {
				continue
			}
			values[j] = parseCell(raw[j], types[t.columns[j]])
		}
		t.AppendValues(values...)
	}
	return t, nil
}

func columnType(t *Table, j int) string {
	for i := range t.rows {
		switch t.rows[i][j].(type) {
		case nil:
			continue
		case int, int32, int64:
			return TypeInt
		case float32, float64:
			return TypeFloat
		case bool:
			return TypeBool
		case time.Time:
			return TypeTime
		default:
			return TypeString
		}
	}
	return TypeString
}

// parseCell restores the typed value; cells that do not parse stay text.
func parseCell(s, typ string) any {
	var (
		v   any
		err error
	)
	switch typ {
	case TypeInt:
		v, err = strconv.ParseInt(s, 10, 64)
	case TypeFloat:
		v, err = strconv.ParseFloat(s, 64)
	case TypeBool:
		v, err = strconv.ParseBool(s)
	case TypeTime:
		v, err = time.Parse(time.RFC3339Nano, s)
	default:
		return s
	}
	if err != nil {
		return s
	}
	return v
}
