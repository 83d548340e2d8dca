package types

import "time"

// Listing rows and summary payloads exchanged by the API. Field names follow
// the front office's camelCase convention.

type ProblemListItem struct {
	ID                    uint     `json:"id"`
	Code                  *string  `json:"code"`
	Name                  string   `json:"name"`
	IsDefault             bool     `json:"isDefault"`
	Prioritized           bool     `json:"prioritized"`
	Polarity              string   `json:"polarity"`
	Trend                 *float64 `json:"trend"`
	Performance           *float64 `json:"performance"`
	RelativeFrequency     *float64 `json:"relativeFrequency"`
	HarmPotential         *float64 `json:"harmPotential"`
	CriticalityLevel      *float64 `json:"criticalityLevel"`
	HasData               bool     `json:"hasData"`
	TotalCauseCount       int64    `json:"totalCauseCount"`
	PrioritizedCauseCount int64    `json:"prioritizedCauseCount"`
}

type CauseListItem struct {
	ID                      uint   `json:"id"`
	Name                    string `json:"name"`
	Kind                    string `json:"kind"`
	TotalProblemCount       int64  `json:"totalProblemCount"`
	PrioritizedProblemCount int64  `json:"prioritizedProblemCount"`
}

type InitiativeListItem struct {
	ID                     uint   `json:"id"`
	Name                   string `json:"name"`
	IsDefault              bool   `json:"isDefault"`
	CostLevel              *int   `json:"costLevel"`
	EfficiencyLevel        *int   `json:"efficiencyLevel"`
	TotalCauseCount        int64  `json:"totalCauseCount"`
	TotalProblemCount      int64  `json:"totalProblemCount"`
	PrioritizedTripleCount int64  `json:"prioritizedTripleCount"`
	Prioritized            bool   `json:"prioritized"`
}

type Summary struct {
	Total            int64 `json:"total"`
	TotalPrioritized int64 `json:"totalPrioritized"`
	TotalRelevant    int64 `json:"totalRelevant"`
}

type CausePrioritizationRow struct {
	CauseID     uint   `json:"causeId"`
	CauseName   string `json:"causeName"`
	ProblemID   uint   `json:"problemId"`
	ProblemName string `json:"problemName"`
	Prioritized bool   `json:"prioritized"`
}

type CausePrioritizationItem struct {
	CauseID                  uint   `json:"causeId"`
	ProblemIDsToPrioritize   []uint `json:"problemIdsToPrioritize"`
	ProblemIDsToDeprioritize []uint `json:"problemIdsToDeprioritize"`
}

// Flat association row scanned from the consolidated relation; the service
// groups rows into the nested initiative/cause/problem tree.

type InitiativeAssociationRow struct {
	InitiativeID   uint   `json:"initiativeId"`
	InitiativeName string `json:"initiativeName"`
	CauseID        uint   `json:"causeId"`
	CauseName      string `json:"causeName"`
	ProblemID      uint   `json:"problemId"`
	ProblemName    string `json:"problemName"`
	Prioritized    bool   `json:"prioritized"`
}

type InitiativeAssociationNode struct {
	InitiativeID   uint                             `json:"initiativeId"`
	InitiativeName string                           `json:"initiativeName"`
	Causes         []InitiativeAssociationCauseNode `json:"causes"`
}

type InitiativeAssociationCauseNode struct {
	CauseID   uint                               `json:"causeId"`
	CauseName string                             `json:"causeName"`
	Problems  []InitiativeAssociationProblemNode `json:"problems"`
}

type InitiativeAssociationProblemNode struct {
	ProblemID   uint   `json:"problemId"`
	ProblemName string `json:"problemName"`
	Prioritized bool   `json:"prioritized"`
}

type InitiativeTriple struct {
	InitiativeID uint `json:"initiativeId"`
	CauseID      uint `json:"causeId"`
	ProblemID    uint `json:"problemId"`
}

// Plan status payload: one block per plan section, each with a completion
// percentage in [0,100].

type SectionProgress struct {
	Progress  int        `json:"progress"`
	UpdatedAt *time.Time `json:"updatedAt"`
}

type PlanStatus struct {
	PlanID    uint            `json:"planId"`
	Title     string          `json:"title"`
	BasicInfo SectionProgress `json:"basicInfo"`
	Diagnosis SectionProgress `json:"diagnosis"`
	Tactical  SectionProgress `json:"tactical"`
	Strategic SectionProgress `json:"strategic"`
}

// Macro-objective tree payloads (strategic dimension).

type MacroObjectiveNode struct {
	ID               uint                            `json:"id"`
	Name             string                          `json:"name"`
	Enabled          bool                            `json:"enabled"`
	Problems         []MacroObjectiveGoalNode        `json:"problems"`
	Focuses          []FocusNode                     `json:"focuses"`
	CustomIndicators []MacroObjectiveCustomIndicator `json:"customIndicators"`
}

type MacroObjectiveGoalNode struct {
	ProblemID     uint       `json:"problemId"`
	ProblemName   string     `json:"problemName"`
	TargetValue   *float64   `json:"targetValue"`
	Justification string     `json:"justification"`
	DueDate       *time.Time `json:"dueDate"`
	HasGoal       bool       `json:"hasGoal"`
}

type FocusNode struct {
	ID               uint                   `json:"id"`
	Name             string                 `json:"name"`
	Enabled          bool                   `json:"enabled"`
	Indicators       []FocusGoalNode        `json:"indicators"`
	CustomIndicators []FocusCustomIndicator `json:"customIndicators"`
}

type FocusGoalNode struct {
	CauseIndicatorID uint       `json:"causeIndicatorId"`
	IndicatorName    string     `json:"indicatorName"`
	TargetValue      *float64   `json:"targetValue"`
	Justification    string     `json:"justification"`
	DueDate          *time.Time `json:"dueDate"`
	HasGoal          bool       `json:"hasGoal"`
}

// Diagnosis tree payloads.

type DiagnosisProblemNode struct {
	ProblemID   uint                 `json:"problemId"`
	ProblemName string               `json:"problemName"`
	Content     string               `json:"content"`
	Causes      []DiagnosisCauseNode `json:"causes"`
}

type DiagnosisCauseNode struct {
	CauseID    uint                     `json:"causeId"`
	CauseName  string                   `json:"causeName"`
	Indicators []DiagnosisIndicatorNode `json:"indicators"`
}

type DiagnosisIndicatorNode struct {
	CauseIndicatorID uint   `json:"causeIndicatorId"`
	IndicatorName    string `json:"indicatorName"`
	Content          string `json:"content"`
}
