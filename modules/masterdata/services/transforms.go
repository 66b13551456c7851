package services

import (
	"regexp"
	"strings"

	"github.com/apdn7/AnalysisPlatformCloud-sub001/modules/masterdata/domain"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/table"
)

// Transform rewrites a mapping batch in place before masters are built.
type Transform func(target domain.MappingTarget, frame *table.Table)

// TransformFor picks the cleanup matching how a source type encodes
// factory layout in its names.
func TransformFor(t domain.DataSourceType) Transform {
	switch {
	case t == domain.DataSourceEFA:
		return TransformEFA
	case t.IsV2():
		return TransformV2
	case t == domain.DataSourceSoftwareWorkshop:
		return TransformSoftwareWorkshop
	default:
		return TransformGeneral
	}
}

var (
	trailingNumber = regexp.MustCompile(`^(.*?\D)[\s_\-#]*(\d+)$`)
	stationSuffix  = regexp.MustCompile(`^(.*?)\s*#\s*(\d+)$`)
	efaSeparator   = regexp.MustCompile(`[_\-]`)
)

// TransformGeneral splits a trailing number off line and equipment names
// into their number columns and derives the outsourcing flag.
func TransformGeneral(target domain.MappingTarget, frame *table.Table) {
	if target != domain.TargetFactoryMachine {
		return
	}
	splitTrailingNumber(frame, "t_line_name", "t_line_no")
	splitTrailingNumber(frame, "t_equip_name", "t_equip_no")
	if !frame.Has("t_line_name") {
		return
	}
	for i := 0; i < frame.Len(); i++ {
		if frame.Get(i, "t_outsource") != nil {
			continue
		}
		name := asText(frame.Get(i, "t_line_name"))
		if name == "" {
			continue
		}
		frame.Set(i, "t_outsource", strings.Contains(name, "外注") || strings.Contains(strings.ToLower(name), "outsourc"))
	}
}

func splitTrailingNumber(frame *table.Table, nameCol, noCol string) {
	if !frame.Has(nameCol) {
		return
	}
	for i := 0; i < frame.Len(); i++ {
		if frame.Get(i, noCol) != nil {
			continue
		}
		name := strings.TrimSpace(asText(frame.Get(i, nameCol)))
		m := trailingNumber.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		frame.Set(i, nameCol, strings.TrimRight(m[1], " \t_-#"))
		frame.Set(i, noCol, m[2])
	}
}

// TransformEFA handles "LINE_01" and "PRESS-02#3" style names: the station
// comes from the "#n" suffix and the last separated segment is the number.
func TransformEFA(target domain.MappingTarget, frame *table.Table) {
	if target == domain.TargetFactoryMachine {
		if frame.Has("t_equip_name") {
			for i := 0; i < frame.Len(); i++ {
				name := strings.TrimSpace(asText(frame.Get(i, "t_equip_name")))
				m := stationSuffix.FindStringSubmatch(name)
				if m == nil {
					continue
				}
				frame.Set(i, "t_equip_name", m[1])
				if frame.Get(i, "t_station_no") == nil {
					frame.Set(i, "t_station_no", m[2])
				}
			}
		}
		splitLastSegment(frame, "t_line_name", "t_line_no")
		splitLastSegment(frame, "t_equip_name", "t_equip_no")
	}
	TransformGeneral(target, frame)
}

func splitLastSegment(frame *table.Table, nameCol, noCol string) {
	if !frame.Has(nameCol) {
		return
	}
	for i := 0; i < frame.Len(); i++ {
		if frame.Get(i, noCol) != nil {
			continue
		}
		name := strings.TrimSpace(asText(frame.Get(i, nameCol)))
		loc := efaSeparator.FindAllStringIndex(name, -1)
		if len(loc) == 0 {
			continue
		}
		last := loc[len(loc)-1]
		head, tail := name[:last[0]], name[last[1]:]
		if head == "" || tail == "" {
			continue
		}
		frame.Set(i, nameCol, head)
		frame.Set(i, noCol, tail)
	}
}

// TransformV2 splits "factid:name" process names.
func TransformV2(target domain.MappingTarget, frame *table.Table) {
	if frame.Has("t_process_name") {
		for i := 0; i < frame.Len(); i++ {
			name := asText(frame.Get(i, "t_process_name"))
			factid, rest, ok := strings.Cut(name, ":")
			if !ok || strings.TrimSpace(factid) == "" || strings.TrimSpace(rest) == "" {
				continue
			}
			frame.Set(i, "t_process_name", strings.TrimSpace(rest))
			if frame.Get(i, "t_process_id") == nil {
				frame.Set(i, "t_process_id", strings.TrimSpace(factid))
			}
		}
	}
	TransformGeneral(target, frame)
}

// TransformSoftwareWorkshop keeps the last segment of path-like names.
func TransformSoftwareWorkshop(target domain.MappingTarget, frame *table.Table) {
	for _, col := range []string{"t_line_name", "t_equip_name", "t_process_name"} {
		if !frame.Has(col) {
			continue
		}
		for i := 0; i < frame.Len(); i++ {
			name := asText(frame.Get(i, col))
			if j := strings.LastIndex(name, "/"); j >= 0 && j < len(name)-1 {
				frame.Set(i, col, strings.TrimSpace(name[j+1:]))
			}
		}
	}
	TransformGeneral(target, frame)
}
