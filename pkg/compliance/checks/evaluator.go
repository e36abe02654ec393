package checks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mercator-hq/warden/pkg/classifier"
	"mercator-hq/warden/pkg/compliance"
)

// Instruction is the fixed system prompt sent with every AI compliance check.
const Instruction = `You audit a compliance policy document against the given criteria.
Reply with a JSON object and nothing else:
{"complianceStatus": "pass" | "fail", "issues": ["<one entry per problem found>"]}`

// ManualMessage is recorded for manual checks.
const ManualMessage = "Manual check required"

// Outcome is the verdict of a check that ran.
type Outcome struct {
	Status  compliance.CheckStatus
	Details compliance.Details
}

// Result holds either an Outcome or an EvaluationError.
type Result struct {
	Outcome Outcome
	Err     *EvaluationError
}

// Failed reports whether the check ran and failed.
func (r Result) Failed() bool {
	return r.Err == nil && r.Outcome.Status == compliance.StatusFail
}

// Record collapses the result into the status and details to persist. An
// evaluation error becomes status=error with {error: message}.
func (r Result) Record() (compliance.CheckStatus, compliance.Details) {
	if r.Err != nil {
		return compliance.StatusError, ErrorDetails(r.Err)
	}
	return r.Outcome.Status, r.Outcome.Details
}

// ErrorDetails is the details payload recorded for a check that errored.
func ErrorDetails(err error) compliance.Details {
	return compliance.Details{"error": err.Error()}
}

// Config configures an Evaluator.
type Config struct {
	// Timeout bounds each AI compliance call. Zero leaves the bound to the
	// classifier's own HTTP timeout.
	Timeout time.Duration
}

// Evaluator runs checks against policy text.
type Evaluator struct {
	classifier classifier.Classifier
	timeout    time.Duration
	logger     *slog.Logger
}

// NewEvaluator creates an evaluator. With a nil classifier, AI compliance
// checks evaluate to an EvaluationError.
func NewEvaluator(c classifier.Classifier, cfg Config, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		classifier: c,
		timeout:    cfg.Timeout,
		logger:     logger.With("component", "evaluator"),
	}
}

// Evaluate runs def against policyText. It never panics: a panic inside an
// evaluator is recovered into an EvaluationError of kind KindPanic.
func (e *Evaluator) Evaluate(ctx context.Context, policyText string, def *compliance.CheckDefinition) (res Result) {
	if def == nil {
		return Result{Err: &EvaluationError{Kind: KindCriteria, Cause: errors.New("nil check definition")}}
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.ErrorContext(ctx, "check evaluator panicked",
				"check_id", def.ID,
				"check_name", def.CheckName,
				"panic", r,
			)
			res = Result{Err: &EvaluationError{
				CheckID:   def.ID,
				CheckName: def.CheckName,
				Kind:      KindPanic,
				Cause:     fmt.Errorf("panic: %v", r),
			}}
		}
	}()

	check, err := Parse(def)
	if err != nil {
		kind := KindCriteria
		var unknown *UnknownCheckError
		if errors.As(err, &unknown) {
			kind = KindUnknownCheck
		}
		return e.errorResult(def, kind, err)
	}

	switch c := check.(type) {
	case Manual:
		return Result{Outcome: Outcome{
			Status:  compliance.StatusPending,
			Details: compliance.Details{"message": ManualMessage},
		}}
	case RequiredSections:
		return Result{Outcome: presence(policyText, c.Sections, "missingSections", "sections")}
	case Keywords:
		return Result{Outcome: presence(policyText, c.Keywords, "missingKeywords", "keywords")}
	case AISemantic:
		return e.evaluateAI(ctx, policyText, def, c)
	default:
		return e.errorResult(def, KindUnknownCheck, &UnknownCheckError{CheckName: def.CheckName})
	}
}

func (e *Evaluator) errorResult(def *compliance.CheckDefinition, kind string, cause error) Result {
	return Result{Err: &EvaluationError{
		CheckID:   def.ID,
		CheckName: def.CheckName,
		Kind:      kind,
		Cause:     cause,
	}}
}

// presence fails when any of required is absent from text.
func presence(text string, required []string, detailKey, noun string) Outcome {
	absent := missing(text, required)
	if len(absent) > 0 {
		return Outcome{
			Status: compliance.StatusFail,
			Details: compliance.Details{
				detailKey: absent,
				"message":  fmt.Sprintf("Missing required %s: %s", noun, strings.Join(absent, ", ")),
			},
		}
	}
	return Outcome{
		Status:  compliance.StatusPass,
		Details: compliance.Details{"message": fmt.Sprintf("All required %s present", noun)},
	}
}

// aiReply is the reply expected from the compliance classifier.
type aiReply struct {
	ComplianceStatus string   `json:"complianceStatus"`
	Issues           []string `json:"issues"`
}

func (e *Evaluator) evaluateAI(ctx context.Context, policyText string, def *compliance.CheckDefinition, check AISemantic) Result {
	if e.classifier == nil {
		return e.errorResult(def, KindUnavailable, errors.New("no compliance classifier configured"))
	}

	callCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	reply, err := e.classifier.Complete(callCtx, Instruction, formatAIInput(policyText, check.Criteria))
	if err != nil {
		e.logger.WarnContext(ctx, "compliance classifier failed",
			"check_id", def.ID,
			"reason", classifier.Reason(err),
			"error", err,
		)
		return e.errorResult(def, KindClassifier, err)
	}

	var parsed aiReply
	if err := json.Unmarshal([]byte(classifier.ExtractJSON(reply)), &parsed); err != nil {
		return e.errorResult(def, KindReply, fmt.Errorf("unparseable compliance reply: %w", err))
	}

	issues := parsed.Issues
	if issues == nil {
		issues = []string{}
	}

	switch strings.ToLower(strings.TrimSpace(parsed.ComplianceStatus)) {
	case "pass":
		return Result{Outcome: Outcome{
			Status:  compliance.StatusPass,
			Details: compliance.Details{"issues": issues, "message": "AI compliance check passed"},
		}}
	case "fail":
		return Result{Outcome: Outcome{
			Status: compliance.StatusFail,
			Details: compliance.Details{
				"issues":  issues,
				"message": fmt.Sprintf("AI compliance check failed with %d issue(s)", len(issues)),
			},
		}}
	default:
		return e.errorResult(def, KindReply, fmt.Errorf("unknown complianceStatus %q", parsed.ComplianceStatus))
	}
}

func formatAIInput(policyText string, criteria json.RawMessage) string {
	var sb strings.Builder
	sb.WriteString("POLICY:\n")
	sb.WriteString(policyText)
	sb.WriteString("\n\nCRITERIA:\n")
	if len(criteria) == 0 {
		sb.WriteString("{}")
	} else {
		sb.Write(criteria)
	}
	return sb.String()
}
