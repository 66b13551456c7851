package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/apdn7/AnalysisPlatformCloud-sub001/modules/masterdata/domain"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/table"
)

func machineFrame(line, equip string) *table.Table {
	tb := table.New("t_line_name", "t_line_no", "t_equip_name", "t_equip_no", "t_station_no", "t_outsource", "t_process_name")
	tb.AppendValues(line, nil, equip, nil, nil, nil, nil)
	return tb
}

func TestTransformGeneral(t *testing.T) {
	cases := []struct {
		name                   string
		line, equip            string
		wantLine, wantLineNo   any
		wantEquip, wantEquipNo any
		wantOutsource          any
	}{
		{"spaced number", "Line 3", "Press#12", "Line", "3", "Press", "12", false},
		{"no number", "Assembly", "Robot", "Assembly", nil, "Robot", nil, false},
		{"outsourced jp", "外注ライン2", "X", "外注ライン", "2", "X", nil, true},
		{"outsourced en", "Outsourced-7", "X", "Outsourced", "7", "X", nil, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tb := machineFrame(tc.line, tc.equip)
			TransformGeneral(domain.TargetFactoryMachine, tb)
			assert.Equal(t, tc.wantLine, tb.Get(0, "t_line_name"))
			assert.Equal(t, tc.wantLineNo, tb.Get(0, "t_line_no"))
			assert.Equal(t, tc.wantEquip, tb.Get(0, "t_equip_name"))
			assert.Equal(t, tc.wantEquipNo, tb.Get(0, "t_equip_no"))
			assert.Equal(t, tc.wantOutsource, tb.Get(0, "t_outsource"))
		})
	}
}

func TestTransformGeneral_KeepsGivenNumbersAndOtherTargets(t *testing.T) {
	tb := machineFrame("Line 3", "Press 4")
	tb.Set(0, "t_line_no", "99")
	TransformGeneral(domain.TargetFactoryMachine, tb)
	assert.Equal(t, "Line 3", tb.Get(0, "t_line_name"))
	assert.Equal(t, "99", tb.Get(0, "t_line_no"))
	assert.Equal(t, "Press", tb.Get(0, "t_equip_name"))

	pd := machineFrame("Line 3", "Press 4")
	TransformGeneral(domain.TargetProcessData, pd)
	assert.Equal(t, "Line 3", pd.Get(0, "t_line_name"))
	assert.Nil(t, pd.Get(0, "t_line_no"))
}

func TestTransformEFA(t *testing.T) {
	tb := machineFrame("LINE_01", "PRESS-02#3")
	TransformEFA(domain.TargetFactoryMachine, tb)
	assert.Equal(t, "LINE", tb.Get(0, "t_line_name"))
	assert.Equal(t, "01", tb.Get(0, "t_line_no"))
	assert.Equal(t, "PRESS", tb.Get(0, "t_equip_name"))
	assert.Equal(t, "02", tb.Get(0, "t_equip_no"))
	assert.Equal(t, "3", tb.Get(0, "t_station_no"))
	assert.Equal(t, false, tb.Get(0, "t_outsource"))

	multi := machineFrame("A_B_C", "_X")
	TransformEFA(domain.TargetFactoryMachine, multi)
	assert.Equal(t, "A_B", multi.Get(0, "t_line_name"))
	assert.Equal(t, "C", multi.Get(0, "t_line_no"))
	assert.Equal(t, "_X", multi.Get(0, "t_equip_name"))
	assert.Nil(t, multi.Get(0, "t_equip_no"))
}

func TestTransformV2(t *testing.T) {
	tb := table.New("t_process_id", "t_process_name")
	tb.AppendValues(nil, "P01:Welding")
	tb.AppendValues("KEEP", "P02: Paint")
	tb.AppendValues(nil, "NoColon")
	tb.AppendValues(nil, ":empty")

	TransformV2(domain.TargetProcessData, tb)
	assert.Equal(t, []any{"P01", "KEEP", nil, nil}, tb.Column("t_process_id"))
	assert.Equal(t, []any{"Welding", "Paint", "NoColon", ":empty"}, tb.Column("t_process_name"))
}

func TestTransformSoftwareWorkshop(t *testing.T) {
	tb := machineFrame("/plant/line/L1", "root/Press 5")
	tb.Set(0, "t_process_name", "a/b/Weld")
	TransformSoftwareWorkshop(domain.TargetFactoryMachine, tb)
	assert.Equal(t, "L", tb.Get(0, "t_line_name"))
	assert.Equal(t, "1", tb.Get(0, "t_line_no"))
	assert.Equal(t, "Press", tb.Get(0, "t_equip_name"))
	assert.Equal(t, "5", tb.Get(0, "t_equip_no"))
	assert.Equal(t, "Weld", tb.Get(0, "t_process_name"))
}

func TestTransformFor(t *testing.T) {
	v2 := table.New("t_process_id", "t_process_name")
	v2.AppendValues(nil, "P9:Cut")
	TransformFor(domain.DataSourceV2History)(domain.TargetProcessData, v2)
	assert.Equal(t, "P9", v2.Get(0, "t_process_id"))

	csv := table.New("t_process_id", "t_process_name")
	csv.AppendValues(nil, "P9:Cut")
	TransformFor(domain.DataSourceCSV)(domain.TargetProcessData, csv)
	assert.Nil(t, csv.Get(0, "t_process_id"))
	assert.Equal(t, "P9:Cut", csv.Get(0, "t_process_name"))

	efa := machineFrame("LINE_01", "EQ")
	TransformFor(domain.DataSourceEFA)(domain.TargetFactoryMachine, efa)
	assert.Equal(t, "01", efa.Get(0, "t_line_no"))
}
