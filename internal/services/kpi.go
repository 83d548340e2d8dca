package services

import (
	"encoding/json"
	"sort"

	"gorm.io/datatypes"

	"github.com/citysafe/planning-backend/internal/types"
)

// KPI series are stored per period with an opaque demographic blob of shape
// {group: {characteristic: value}}. The API exposes them regrouped into a
// three-level tree: group -> characteristic -> ordered period series.

type PeriodValue struct {
	Period int      `json:"period"`
	Value  *float64 `json:"value"`
}

type DataCharacteristic struct {
	Name   string        `json:"name"`
	Series []PeriodValue `json:"series"`
}

type DataGroup struct {
	Name            string               `json:"name"`
	Characteristics []DataCharacteristic `json:"characteristics"`
}

type demographicRow struct {
	period int
	blob   datatypes.JSON
}

func ProblemDataCharacteristics(rows []types.ProblemIndicatorData) []DataGroup {
	in := make([]demographicRow, 0, len(rows))
	for _, r := range rows {
		in = append(in, demographicRow{period: r.Period, blob: r.Demographics})
	}
	return buildDataCharacteristics(in)
}

func CauseDataCharacteristics(rows []types.CauseIndicatorData) []DataGroup {
	in := make([]demographicRow, 0, len(rows))
	for _, r := range rows {
		in = append(in, demographicRow{period: r.Period, blob: r.Demographics})
	}
	return buildDataCharacteristics(in)
}

func buildDataCharacteristics(rows []demographicRow) []DataGroup {
	sort.Slice(rows, func(i, j int) bool { return rows[i].period < rows[j].period })

	// group -> characteristic -> series
	grouped := map[string]map[string][]PeriodValue{}
	for _, row := range rows {
		if len(row.blob) == 0 {
			continue
		}
		var blob map[string]map[string]*float64
		if err := json.Unmarshal(row.blob, &blob); err != nil {
			// malformed blobs are skipped, not fatal
			continue
		}
		for group, characteristics := range blob {
			if grouped[group] == nil {
				grouped[group] = map[string][]PeriodValue{}
			}
			for name, value := range characteristics {
				grouped[group][name] = append(grouped[group][name], PeriodValue{Period: row.period, Value: value})
			}
		}
	}

	groups := make([]DataGroup, 0, len(grouped))
	for groupName, characteristics := range grouped {
		g := DataGroup{Name: groupName}
		for name, series := range characteristics {
			g.Characteristics = append(g.Characteristics, DataCharacteristic{Name: name, Series: series})
		}
		sort.Slice(g.Characteristics, func(i, j int) bool { return g.Characteristics[i].Name < g.Characteristics[j].Name })
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	return groups
}
