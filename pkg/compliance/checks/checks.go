// Package checks evaluates compliance check definitions against policy text.
//
// A CheckDefinition is parsed into one of four check kinds: Manual,
// RequiredSections, Keywords or AISemantic. Each kind carries its decoded
// criteria. Evaluation returns a Result that holds either an Outcome (the
// check ran: pass, fail or pending) or an EvaluationError (it could not run).
package checks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"mercator-hq/warden/pkg/compliance"
)

// Check names understood by Parse.
const (
	NameRequiredSections = "required_sections_check"
	NameKeywords         = "keyword_check"
	NameAICompliance     = "ai_compliance_check"
)

// Check is one of Manual, RequiredSections, Keywords or AISemantic.
type Check interface {
	isCheck()
}

// Manual is performed by a person; the engine records it as pending.
type Manual struct{}

// RequiredSections fails when any section heading is absent from the text.
type RequiredSections struct {
	Sections []string
}

// Keywords fails when any keyword is absent from the text.
type Keywords struct {
	Keywords []string
}

// AISemantic asks the compliance classifier to judge the text against
// free-form criteria.
type AISemantic struct {
	Criteria json.RawMessage
}

func (Manual) isCheck()           {}
func (RequiredSections) isCheck() {}
func (Keywords) isCheck()         {}
func (AISemantic) isCheck()       {}

// Parse builds the check kind for def. Manual definitions are recognized by
// their check type regardless of name. An unknown name returns
// *UnknownCheckError and undecodable criteria return *CriteriaError.
func Parse(def *compliance.CheckDefinition) (Check, error) {
	if def.CheckType == compliance.CheckManual {
		return Manual{}, nil
	}

	switch def.CheckName {
	case NameRequiredSections:
		var criteria struct {
			RequiredSections []string `json:"requiredSections"`
		}
		if err := decodeCriteria(def.CheckCriteria, &criteria); err != nil {
			return nil, &CriteriaError{CheckName: def.CheckName, Cause: err}
		}
		return RequiredSections{Sections: clean(criteria.RequiredSections)}, nil

	case NameKeywords:
		var criteria struct {
			RequiredKeywords []string `json:"requiredKeywords"`
		}
		if err := decodeCriteria(def.CheckCriteria, &criteria); err != nil {
			return nil, &CriteriaError{CheckName: def.CheckName, Cause: err}
		}
		return Keywords{Keywords: clean(criteria.RequiredKeywords)}, nil

	case NameAICompliance:
		criteria := bytes.TrimSpace(def.CheckCriteria)
		if len(criteria) > 0 && !json.Valid(criteria) {
			return nil, &CriteriaError{CheckName: def.CheckName, Cause: fmt.Errorf("criteria is not valid JSON")}
		}
		return AISemantic{Criteria: json.RawMessage(criteria)}, nil

	default:
		return nil, &UnknownCheckError{CheckName: def.CheckName}
	}
}

// decodeCriteria decodes raw into dst. Absent or null criteria leave dst
// zero-valued.
func decodeCriteria(raw json.RawMessage, dst any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

// clean drops blank entries.
func clean(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item) != "" {
			out = append(out, item)
		}
	}
	return out
}

// missing returns the entries of required that do not occur in text,
// compared case-insensitively, in their original order and spelling.
func missing(text string, required []string) []string {
	lower := strings.ToLower(text)

	var absent []string
	for _, item := range required {
		if !strings.Contains(lower, strings.ToLower(strings.TrimSpace(item))) {
			absent = append(absent, item)
		}
	}
	return absent
}
