package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// DataGroupType classifies a data column. Values below MaxReservedNameID are
// also the ids of the pre-seeded m_data_group rows.
type DataGroupType int

const (
	LocationName     DataGroupType = 1
	LocationAbbr     DataGroupType = 2
	FactoryID        DataGroupType = 3
	FactoryName      DataGroupType = 4
	FactoryAbbr      DataGroupType = 5
	PlantID          DataGroupType = 6
	PlantName        DataGroupType = 7
	PlantAbbr        DataGroupType = 8
	DeptID           DataGroupType = 9
	DeptName         DataGroupType = 10
	DeptAbbr         DataGroupType = 11
	SectID           DataGroupType = 12
	SectName         DataGroupType = 13
	SectAbbr         DataGroupType = 14
	ProdFamilyID     DataGroupType = 15
	ProdFamilyName   DataGroupType = 16
	ProdFamilyAbbr   DataGroupType = 17
	OutsourceFlag    DataGroupType = 18
	LineID           DataGroupType = 19
	LineName         DataGroupType = 20
	LineNo           DataGroupType = 21
	EquipID          DataGroupType = 22
	EquipName        DataGroupType = 23
	EquipProductNo   DataGroupType = 24
	EquipProductDate DataGroupType = 25
	EquipNo          DataGroupType = 26
	StationNo        DataGroupType = 27
	ProcessID        DataGroupType = 28
	ProcessName      DataGroupType = 29
	ProcessAbbr      DataGroupType = 30
	ProdID           DataGroupType = 31
	ProdName         DataGroupType = 32
	ProdAbbr         DataGroupType = 33
	PartType         DataGroupType = 34
	PartName         DataGroupType = 35
	PartAbbr         DataGroupType = 36
	PartNoFull       DataGroupType = 37
	PartNo           DataGroupType = 38
	DataID           DataGroupType = 39
	DataName         DataGroupType = 40
	DataAbbr         DataGroupType = 41
	DataValue        DataGroupType = 42
	Unit             DataGroupType = 43
	DataSerial       DataGroupType = 44
	DataTime         DataGroupType = 45
	AutoIncrement    DataGroupType = 46

	Generated         DataGroupType = 99
	GeneratedEquation DataGroupType = 100
)

// MaxReservedNameID is the highest id kept for well-known data groups.
const MaxReservedNameID int64 = 100

type reservedName struct {
	name string
	en   string
	jp   string
}

var dataGroupNames = map[DataGroupType]reservedName{
	LocationName:      {"LocationName", "Location Name", "拠点名"},
	LocationAbbr:      {"LocationAbbr", "Location Abbr", "拠点略称"},
	FactoryID:         {"FactoryID", "Factory ID", "工場ID"},
	FactoryName:       {"FactoryName", "Factory Name", "工場名"},
	FactoryAbbr:       {"FactoryAbbr", "Factory Abbr", "工場略称"},
	PlantID:           {"PlantID", "Plant ID", "プラントID"},
	PlantName:         {"PlantName", "Plant Name", "プラント名"},
	PlantAbbr:         {"PlantAbbr", "Plant Abbr", "プラント略称"},
	DeptID:            {"DeptID", "Dept ID", "部門ID"},
	DeptName:          {"DeptName", "Dept Name", "部門名"},
	DeptAbbr:          {"DeptAbbr", "Dept Abbr", "部門略称"},
	SectID:            {"SectID", "Sect ID", "課ID"},
	SectName:          {"SectName", "Sect Name", "課名"},
	SectAbbr:          {"SectAbbr", "Sect Abbr", "課略称"},
	ProdFamilyID:      {"ProdFamilyID", "Product Family ID", "製品系列ID"},
	ProdFamilyName:    {"ProdFamilyName", "Product Family Name", "製品系列名"},
	ProdFamilyAbbr:    {"ProdFamilyAbbr", "Product Family Abbr", "製品系列略称"},
	OutsourceFlag:     {"OutsourceFlag", "Outsource", "外注"},
	LineID:            {"LineID", "Line ID", "ラインID"},
	LineName:          {"LineName", "Line Name", "ライン名"},
	LineNo:            {"LineNo", "Line No", "ラインNo"},
	EquipID:           {"EquipID", "Equipment ID", "設備ID"},
	EquipName:         {"EquipName", "Equipment Name", "設備名"},
	EquipProductNo:    {"EquipProductNo", "Equipment Product No", "設備製造番号"},
	EquipProductDate:  {"EquipProductDate", "Equipment Product Date", "設備製造日"},
	EquipNo:           {"EquipNo", "Equipment No", "設備No"},
	StationNo:         {"StationNo", "Station No", "ステーションNo"},
	ProcessID:         {"ProcessID", "Process ID", "工程ID"},
	ProcessName:       {"ProcessName", "Process Name", "工程名"},
	ProcessAbbr:       {"ProcessAbbr", "Process Abbr", "工程略称"},
	ProdID:            {"ProdID", "Product ID", "品番ID"},
	ProdName:          {"ProdName", "Product Name", "品名"},
	ProdAbbr:          {"ProdAbbr", "Product Abbr", "品名略称"},
	PartType:          {"PartType", "Part Type", "部品種別"},
	PartName:          {"PartName", "Part Name", "部品名"},
	PartAbbr:          {"PartAbbr", "Part Abbr", "部品略称"},
	PartNoFull:        {"PartNoFull", "Part No Full", "部品番号(フル)"},
	PartNo:            {"PartNo", "Part No", "部品番号"},
	DataID:            {"DataID", "Data ID", "データID"},
	DataName:          {"DataName", "Data Name", "データ名"},
	DataAbbr:          {"DataAbbr", "Data Abbr", "データ略称"},
	DataValue:         {"DataValue", "Data Value", "データ値"},
	Unit:              {"Unit", "Unit", "単位"},
	DataSerial:        {"DataSerial", "Serial", "シリアル"},
	DataTime:          {"DataTime", "Datetime", "日時"},
	AutoIncrement:     {"AutoIncrement", "Auto Increment", "自動採番"},
	Generated:         {"Generated", "Generated", "生成"},
	GeneratedEquation: {"GeneratedEquation", "Generated Equation", "生成式"},
}

func (t DataGroupType) String() string {
	if n, ok := dataGroupNames[t]; ok {
		return n.name
	}
	return "DataGroupType(" + strconv.Itoa(int(t)) + ")"
}

// Known reports whether t is a declared enumerant.
func (t DataGroupType) Known() bool {
	_, ok := dataGroupNames[t]
	return ok
}

// Reserved reports whether t has a pre-seeded m_data_group row.
func (t DataGroupType) Reserved() bool {
	return t.Known() && int64(t) < MaxReservedNameID && t != Generated
}

func (t DataGroupType) NameEN() string { return dataGroupNames[t].en }
func (t DataGroupType) NameJP() string { return dataGroupNames[t].jp }

// ParseDataGroupType accepts an enumerant name (case-insensitive) or its number.
func ParseDataGroupType(s string) (DataGroupType, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		t := DataGroupType(n)
		if !t.Known() {
			return 0, fmt.Errorf("unknown data group type %d", n)
		}
		return t, nil
	}
	for t, n := range dataGroupNames {
		if strings.EqualFold(n.name, s) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown data group type %q", s)
}

// ReservedDataGroupTypes lists the pre-seeded groups in id order.
func ReservedDataGroupTypes() []DataGroupType {
	out := make([]DataGroupType, 0, len(dataGroupNames))
	for t := range dataGroupNames {
		if t.Reserved() {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ProcessReservedDataGroups get one placeholder m_data row per process.
var ProcessReservedDataGroups = []DataGroupType{DataTime, AutoIncrement}
