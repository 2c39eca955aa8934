package domain

// Mode selects the retrieval source for a research question.
type Mode string

const (
	// ModeGeneral answers directly without retrieval.
	ModeGeneral Mode = "general"
	// ModeFile retrieves from an uploaded document.
	ModeFile Mode = "file"
	// ModeWeb retrieves from scraped court-decision pages.
	ModeWeb Mode = "web"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeGeneral, ModeFile, ModeWeb:
		return true
	}
	return false
}

// Question is a user research question with its selected mode.
type Question struct {
	Text     string `json:"text"`
	Mode     Mode   `json:"mode"`
	FilePath string `json:"file_path,omitempty"` // only for ModeFile
}
