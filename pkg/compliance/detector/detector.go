// Package detector finds the meaningful differences between two versions of
// a policy document.
//
// The detector first asks the semantic classifier. Any failure of that call
// (transport, timeout, non-2xx status, unparseable reply or an invalid
// record) falls back to the deterministic line differ, so DetectChanges
// always returns a usable change set.
package detector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mercator-hq/warden/pkg/classifier"
	"mercator-hq/warden/pkg/compliance"
	"mercator-hq/warden/pkg/compliance/diff"
	"mercator-hq/warden/pkg/telemetry/metrics"
)

// Instruction is the fixed system prompt sent with every change request.
const Instruction = `You compare two versions of a compliance policy document.
Reply with a JSON array and nothing else. Each element describes one meaningful change:
{"type": "addition" | "deletion" | "modification", "description": "<what changed>", "impact": "low" | "medium" | "high" | "critical"}
Reply with [] when the versions are equivalent.`

// Fallback reasons reported in Detection.FallbackReason, in addition to the
// transport reasons from classifier.Reason.
const (
	ReasonNoClassifier  = "no_classifier"
	ReasonParse         = "parse"
	ReasonInvalidRecord = "invalid_record"
)

// Detection reports how a change set was produced.
type Detection struct {
	// Source is the path that produced the changes.
	Source compliance.ChangeSource

	// FallbackReason is empty when the classifier answered, and names the
	// failure otherwise.
	FallbackReason string
}

// Fallback reports whether the line differ produced the changes.
func (d Detection) Fallback() bool {
	return d.Source == compliance.SourceTextDiff
}

// Config configures a Detector.
type Config struct {
	// Timeout bounds the classifier call. Zero leaves the bound to the
	// classifier's own HTTP timeout.
	Timeout time.Duration
}

// Detector detects changes between policy versions.
type Detector struct {
	classifier classifier.Classifier
	timeout    time.Duration
	metrics    *metrics.Collector
	logger     *slog.Logger
}

// New creates a detector. A nil classifier makes every detection use the
// line differ.
func New(c classifier.Classifier, cfg Config, collector *metrics.Collector, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		classifier: c,
		timeout:    cfg.Timeout,
		metrics:    collector,
		logger:     logger.With("component", "detector"),
	}
}

// changeRecord is one element of the classifier's reply.
type changeRecord struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Impact      string `json:"impact"`
}

// DetectChanges returns the changes from oldText to newText. It never fails:
// when the classifier cannot be used the line differ's result is returned and
// Detection names the reason. The returned changes carry Type, Description,
// ImpactLevel and Source; the caller assigns identity and timestamps.
func (d *Detector) DetectChanges(ctx context.Context, oldText, newText string) ([]compliance.Change, Detection) {
	if d.classifier == nil {
		return d.fallback(ctx, oldText, newText, ReasonNoClassifier, nil)
	}

	callCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	reply, err := d.classifier.Complete(callCtx, Instruction, formatInput(oldText, newText))
	if err != nil {
		return d.fallback(ctx, oldText, newText, classifier.Reason(err), err)
	}

	changes, reason, err := parseReply(reply)
	if err != nil {
		return d.fallback(ctx, oldText, newText, reason, err)
	}

	d.metrics.RecordChangeDetection(string(compliance.SourceClassifier))
	d.logger.DebugContext(ctx, "classifier detected changes", "changes", len(changes))

	return changes, Detection{Source: compliance.SourceClassifier}
}

func (d *Detector) fallback(ctx context.Context, oldText, newText, reason string, err error) ([]compliance.Change, Detection) {
	if err != nil {
		d.logger.WarnContext(ctx, "change classifier failed, using line diff",
			"reason", reason,
			"error", err,
		)
	} else {
		d.logger.DebugContext(ctx, "no change classifier configured, using line diff")
	}

	d.metrics.RecordClassifierFallback(reason)
	d.metrics.RecordChangeDetection(string(compliance.SourceTextDiff))

	return diff.Lines(oldText, newText), Detection{
		Source:         compliance.SourceTextDiff,
		FallbackReason: reason,
	}
}

func formatInput(oldText, newText string) string {
	var sb strings.Builder
	sb.WriteString("PREVIOUS VERSION:\n")
	sb.WriteString(oldText)
	sb.WriteString("\n\nCURRENT VERSION:\n")
	sb.WriteString(newText)
	return sb.String()
}

// parseReply decodes the classifier reply. A reply that is not a JSON array
// fails with ReasonParse; an element with an unknown type or impact fails the
// whole reply with ReasonInvalidRecord.
func parseReply(reply string) ([]compliance.Change, string, error) {
	body := strings.TrimSpace(classifier.ExtractJSON(reply))
	if !strings.HasPrefix(body, "[") {
		return nil, ReasonParse, fmt.Errorf("change reply is not a JSON array")
	}
	var records []changeRecord
	if err := json.Unmarshal([]byte(body), &records); err != nil {
		return nil, ReasonParse, fmt.Errorf("unparseable change reply: %w", err)
	}

	changes := make([]compliance.Change, 0, len(records))
	for i, rec := range records {
		changeType := compliance.ChangeType(strings.ToLower(strings.TrimSpace(rec.Type)))
		if !changeType.Valid() {
			return nil, ReasonInvalidRecord, fmt.Errorf("change %d: unknown type %q", i, rec.Type)
		}

		impact, err := compliance.ParseImpactLevel(rec.Impact)
		if err != nil {
			return nil, ReasonInvalidRecord, fmt.Errorf("change %d: %w", i, err)
		}

		changes = append(changes, compliance.Change{
			Type:        changeType,
			Description: rec.Description,
			ImpactLevel: impact,
			Source:      compliance.SourceClassifier,
		})
	}

	return changes, "", nil
}
