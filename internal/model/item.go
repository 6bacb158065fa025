package model

// ItemType tags the 14 case-study item variants.
type ItemType string

const (
	ItemTypeMultipleChoice  ItemType = "multipleChoice"
	ItemTypeSelectAll       ItemType = "selectAll"
	ItemTypeSelectN         ItemType = "selectN"
	ItemTypeOrderedResponse ItemType = "orderedResponse"
	ItemTypeMatrixMatch     ItemType = "matrixMatch"
	ItemTypeClozeDropdown   ItemType = "clozeDropdown"
	ItemTypeDragDropCloze   ItemType = "dragAndDropCloze"
	ItemTypeBowtie          ItemType = "bowtie"
	ItemTypeHotspot         ItemType = "hotspot"
	ItemTypePriorityAction  ItemType = "priorityAction"
	ItemTypeTrend           ItemType = "trend"
	ItemTypeGraphic         ItemType = "graphic"
	ItemTypeAudioVideo      ItemType = "audioVideo"
	ItemTypeChartExhibit    ItemType = "chartExhibit"
)

// ScoringMethod selects the partial-credit regime of an item.
type ScoringMethod string

const (
	ScoringDichotomous ScoringMethod = "dichotomous"
	ScoringPolytomous  ScoringMethod = "polytomous"
	ScoringLinkage     ScoringMethod = "linkage"
)

// ScoringRule is the authored scoring declaration of an item.
type ScoringRule struct {
	Method    ScoringMethod `json:"method"`
	MaxPoints float64       `json:"maxPoints"`
	// LinkageMap carries authored per-link weights for linkage items.
	// The engine evaluates linkage all-or-nothing; the map is content metadata.
	LinkageMap map[string]float64 `json:"linkageMap,omitempty"`
}

// CJMMStep is one of the six clinical-judgment-model stages.
type CJMMStep string

const (
	StepRecognizeCues        CJMMStep = "recognizeCues"
	StepAnalyzeCues          CJMMStep = "analyzeCues"
	StepPrioritizeHypotheses CJMMStep = "prioritizeHypotheses"
	StepGenerateSolutions    CJMMStep = "generateSolutions"
	StepTakeActions          CJMMStep = "takeActions"
	StepEvaluateOutcomes     CJMMStep = "evaluateOutcomes"
)

// CJMMSteps lists all six steps in model order.
var CJMMSteps = []CJMMStep{
	StepRecognizeCues,
	StepAnalyzeCues,
	StepPrioritizeHypotheses,
	StepGenerateSolutions,
	StepTakeActions,
	StepEvaluateOutcomes,
}

// Pedagogy describes the cognitive classification of an item.
type Pedagogy struct {
	CognitiveLevel string   `json:"cognitiveLevel"`
	CJMMStep       CJMMStep `json:"cjmmStep"`
	Category       string   `json:"category"`
	Difficulty     int      `json:"difficulty"` // 1-5
	Topics         []string `json:"topics,omitempty"`
}

// Rationale is the post-answer explanation attached to an item.
type Rationale struct {
	Text      string   `json:"text"`
	Pearls    []string `json:"pearls,omitempty"`
	Traps     []string `json:"traps,omitempty"`
	Mnemonics []string `json:"mnemonics,omitempty"`
}

// ItemOption is a selectable choice presented to the learner.
type ItemOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Blank is a single gap of a cloze item together with its key.
type Blank struct {
	ID            string       `json:"id"`
	Options       []ItemOption `json:"options,omitempty"`
	CorrectOption string       `json:"correctOption"`
}

// MatrixRow is one row of a matrixMatch item.
type MatrixRow struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Item is a single case-study question. The Type field discriminates which
// answer-key fields are meaningful; authoring-side schema validation is
// responsible for keeping the pairing consistent.
type Item struct {
	ID        string       `json:"id"`
	Type      ItemType     `json:"type"`
	Stem      string       `json:"stem"`
	MediaURL  string       `json:"mediaUrl,omitempty"` // graphic / audioVideo exhibits
	Options   []ItemOption `json:"options,omitempty"`
	Pedagogy  Pedagogy     `json:"pedagogy"`
	Rationale Rationale    `json:"rationale"`
	Scoring   ScoringRule  `json:"scoring"`

	// Answer-key fields, populated per Type.
	CorrectOptionID  string            `json:"correctOptionId,omitempty"`
	CorrectOptionIDs []string          `json:"correctOptionIds,omitempty"`
	MaxSelections    int               `json:"maxSelections,omitempty"` // selectN; defaults to maxPoints
	CorrectOrder     []string          `json:"correctOrder,omitempty"`
	MatrixRows       []MatrixRow       `json:"matrixRows,omitempty"`
	CorrectMatches   map[string]string `json:"correctMatches,omitempty"` // row id -> column id
	Blanks           []Blank           `json:"blanks,omitempty"`

	// Bowtie (3-column) keys: two actions, one condition, two parameters.
	CorrectActionIDs    []string `json:"correctActionIds,omitempty"`
	Condition           string   `json:"condition,omitempty"`
	CorrectParameterIDs []string `json:"correctParameterIds,omitempty"`

	CorrectHotspotIDs  []string `json:"correctHotspotIds,omitempty"`
	CorrectSpanIndices []int    `json:"correctSpanIndices,omitempty"` // text-passage hotspots
}

// BowtieAnswer is the composite submission shape for bowtie items.
type BowtieAnswer struct {
	Actions    []string `json:"actions"`
	Condition  string   `json:"condition"`
	Parameters []string `json:"parameters"`
}
