package research

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/LexaTechAI/lexa-mvp/engine/domain"
)

// Petition carries the information collected for petition preparation.
// Address is optional; every other field is required.
type Petition struct {
	FullName     string `json:"full_name"`
	Address      string `json:"address,omitempty"`
	CourtName    string `json:"court_name"`
	CaseType     string `json:"case_type"`
	OpponentName string `json:"opponent_name"`
	Details      string `json:"details"`
}

// missingFields returns the names of required fields left blank.
func (p Petition) missingFields() []string {
	required := []struct {
		name  string
		value string
	}{
		{"full_name", p.FullName},
		{"court_name", p.CourtName},
		{"case_type", p.CaseType},
		{"opponent_name", p.OpponentName},
		{"details", p.Details},
	}
	var missing []string
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

const petitionPromptFmt = `You are a legal assistant. Using the information below, prepare an official and proper petition. The text should be written in clear and understandable Turkish. Include introduction, case explanation and conclusion (request) sections.

Information:
- Full Name: %s
- Address: %s
- Court: %s
- Case Type: %s
- Opposing Party: %s
- Case Summary / Justification: %s

Use an official and valid petition structure. End with "I respectfully submit this petition."`

// PreparePetition validates the collected information and asks the
// generation service for a formal petition text. Blank required fields
// fail with a ValidationError naming every missing field at once.
func (s *Service) PreparePetition(ctx context.Context, p Petition) (string, error) {
	if missing := p.missingFields(); len(missing) > 0 {
		return "", domain.NewValidationError("petition", strings.Join(missing, ", "),
			errors.New("required fields are missing"))
	}

	prompt := fmt.Sprintf(petitionPromptFmt,
		p.FullName, p.Address, p.CourtName, p.CaseType, p.OpponentName, p.Details)

	text, err := s.generate.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("research: petition generate: %w", err)
	}

	s.logger.Info("research: petition prepared",
		"case_type", p.CaseType,
		"court", p.CourtName,
	)
	return text, nil
}
