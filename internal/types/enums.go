package types

// Cause discriminant. Default causes come from the reference seed and are
// immutable through the API; custom causes are user-authored.
const (
	CauseKindDefault = "default"
	CauseKindCustom  = "custom"
)

const (
	PolarityPositive = "positive"
	PolarityNegative = "negative"
)

// Cost and efficiency levels are stored as small ints and exchanged as
// labels. The seed files carry the labels.
var (
	CostLevels = map[string]int{
		"low":       1,
		"medium":    2,
		"high":      3,
		"very_high": 4,
	}
	EfficiencyLevels = map[string]int{
		"low":    1,
		"medium": 2,
		"high":   3,
	}
)

func LevelLabel(levels map[string]int, value int) string {
	for label, v := range levels {
		if v == value {
			return label
		}
	}
	return ""
}
