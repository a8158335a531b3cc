package domain

import "time"

// Status is the terminal state of a processed row
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// CSVData keeps the values of a row exactly as they were read from the file
type CSVData struct {
	Name            string `json:"name"`
	SetName         string `json:"set_name"`
	Set             string `json:"set"`
	CollectorNumber string `json:"collector_number"`
	Price           string `json:"price"`
}

// ImportedCard is a matched CardResult with the user's CSV overrides applied
type ImportedCard struct {
	CardResult
	Quantity  int     `json:"quantity"`
	Condition string  `json:"condition"`
	Language  string  `json:"language"`
	IsFoil    bool    `json:"is_foil"`
	CSVData   CSVData `json:"csv_data"`
}

// ProcessResult is the outcome for one input row.
// Card is set iff Status is success; Error and OriginalData iff Status is error.
type ProcessResult struct {
	Index        int           `json:"index"`
	Status       Status        `json:"status"`
	Card         *ImportedCard `json:"card,omitempty"`
	OriginalName string        `json:"originalName"`
	Error        string        `json:"error,omitempty"`
	OriginalData *ParsedCard   `json:"originalData,omitempty"`
}

// ImportSummary counts the outcomes of one run
type ImportSummary struct {
	Total       int  `json:"total"`
	Successful  int  `json:"successful"`
	Failed      int  `json:"failed"`
	WithPricing int  `json:"with_pricing"`
	Cancelled   bool `json:"cancelled,omitempty"`
}

// ImportReport holds one result per input row in input order
type ImportReport struct {
	Game       Game            `json:"game"`
	Results    []ProcessResult `json:"results"`
	Summary    ImportSummary   `json:"summary"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
}

// Successes returns the imported cards of every successful row
func (r *ImportReport) Successes() []ImportedCard {
	cards := make([]ImportedCard, 0, r.Summary.Successful)
	for _, res := range r.Results {
		if res.Status == StatusSuccess && res.Card != nil {
			cards = append(cards, *res.Card)
		}
	}
	return cards
}

// Failures returns every error result
func (r *ImportReport) Failures() []ProcessResult {
	var failed []ProcessResult
	for _, res := range r.Results {
		if res.Status == StatusError {
			failed = append(failed, res)
		}
	}
	return failed
}

// Phase is the progress phase of a row
type Phase string

const (
	PhaseProcessing Phase = "processing"
	PhaseSuccess    Phase = "success"
	PhaseError      Phase = "error"
)

// ProgressEvent describes a row changing phase during an import
type ProgressEvent struct {
	Index   int    `json:"index"`
	Phase   Phase  `json:"phase"`
	Message string `json:"message"`
}
