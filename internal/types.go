package internal

type LineSource string

const (
	SourceEmailText      LineSource = "email_text"
	SourceEmailHTMLTable LineSource = "email_html_table"
	SourceXLSX           LineSource = "xlsx"
	SourcePDF            LineSource = "pdf"
)

type RequestLine struct {
	LineNo      int
	Source      LineSource
	RawLine     string
	PartNumber  *string
	Description *string
	Qty         *float64
	Unit        *string
	Equipment   string
	Meta        map[string]any
}

type ItemRecord struct {
	ID               int
	PartNumber       string
	Description      string
	Unit             *string
	Location         *string
	OnHand           *float64
	EquipmentNumbers string
	UpdatedAt        *string
	RawJSON          string
}

type ReceiptRecord struct {
	ID               int
	RRPNumber        string
	Supplier         *string
	ReceivedAt       *string
	PartNumber       string
	Qty              *float64
	EquipmentNumbers string
}

type MatchStatus string

type MatchReason string

const (
	MatchOK       MatchStatus = "OK"
	MatchReview   MatchStatus = "REVIEW"
	MatchNotFound MatchStatus = "NOT_FOUND"

	ReasonPart        MatchReason = "PART"
	ReasonDescription MatchReason = "DESCRIPTION"
	ReasonFuzzy       MatchReason = "FUZZY"
	ReasonNone        MatchReason = "NONE"
)

type MatchCandidate struct {
	ID          int     `json:"id"`
	PartNumber  string  `json:"partNumber"`
	Description string  `json:"description"`
	Score       float64 `json:"score"`
}

type MatchItem struct {
	ID               *int     `json:"id"`
	PartNumber       *string  `json:"partNumber"`
	Description      *string  `json:"description"`
	Unit             *string  `json:"unit"`
	Location         *string  `json:"location"`
	OnHand           *float64 `json:"onHand"`
	EquipmentNumbers string   `json:"equipmentNumbers"`
}

type MatchResult struct {
	Status            MatchStatus      `json:"status"`
	Confidence        float64          `json:"confidence"`
	Reason            MatchReason      `json:"reason"`
	EquipmentMismatch bool             `json:"equipmentMismatch"`
	Item              *MatchItem       `json:"item"`
	Candidates        []MatchCandidate `json:"candidates"`
}

type RequestRow struct {
	ID         int
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     string
	RawRef     string
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}

type ExportRow struct {
	LineNo             int
	Source             string
	RawLine            string
	ParsedPartNumber   *string
	ParsedDescription  *string
	ParsedQty          *float64
	ParsedUnit         *string
	RequestedEquipment string
	MatchStatus        string
	Confidence         float64
	MatchReason        string
	EquipmentMismatch  bool
	ItemID             *int
	ItemPartNumber     *string
	ItemDescription    *string
	ItemUnit           *string
	ItemLocation       *string
	ItemOnHand         *float64
	ItemEquipment      *string
	Candidate2Desc     *string
	Candidate2Score    *float64
}
