package domain

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// SQL/NoSQL/template fragments that should never appear in a user
// question.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(DROP|DELETE|INSERT|UPDATE|ALTER|EXEC|UNION)\b.*\b(TABLE|FROM|INTO|SELECT|SET)\b`),
	regexp.MustCompile(`(?i)(--|;)\s*(DROP|DELETE|SELECT)`),
	regexp.MustCompile(`(?i)\$\{.*\}`),
	regexp.MustCompile(`(?i)\{\s*"\$[a-z]+"\s*:`),
}

const minQuestionLength = 5

// ValidateQuestion validates a research question before the pipeline runs.
func ValidateQuestion(q Question) error {
	text := strings.TrimSpace(q.Text)

	if utf8.RuneCountInString(text) < minQuestionLength {
		return NewValidationError("text", text, ErrQueryTooShort)
	}

	for _, pat := range injectionPatterns {
		if pat.MatchString(text) {
			return NewValidationError("text", text, ErrQueryInjection)
		}
	}

	if !q.Mode.Valid() {
		return NewValidationError("mode", string(q.Mode), ErrInvalidMode)
	}

	return nil
}
