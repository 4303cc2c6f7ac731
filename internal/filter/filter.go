package filter

import (
	"context"
	"log/slog"
	"strings"

	"github.com/mofyally02/atozbot/internal/model"
)

// Rule decides which matched jobs are accepted and which are rejected.
// Matching is case-insensitive substring matching against the
// interpreter-details text of a job's detail page.
type Rule struct {
	RequiredFields    []string
	AcceptJobType     string
	ExcludeJobTypes   []string
	MaxAcceptPerCycle int
}

// Prescreen returns true when the job may be classified at all: its status
// contains "matched", every required field is present and non-blank, and it
// links to a detail page. It never touches the network.
func (r Rule) Prescreen(job model.JobRecord) bool {
	if !containsFold(job.Status, "matched") {
		return false
	}
	for _, name := range r.RequiredFields {
		v, ok := job.Field(name)
		if !ok || strings.TrimSpace(v) == "" {
			return false
		}
	}
	return strings.TrimSpace(job.DetailURL) != ""
}

// Decide classifies interpreter-details text. Excluded types are checked
// before the accepted type, so text mentioning both is rejected. Text that
// matches neither, or is blank, is skipped.
func (r Rule) Decide(detailText string) model.Verdict {
	if strings.TrimSpace(detailText) == "" {
		return model.Verdict{Decision: model.Skip}
	}
	for _, ex := range r.ExcludeJobTypes {
		if ex != "" && containsFold(detailText, ex) {
			return model.Verdict{Decision: model.Reject, Reason: ex}
		}
	}
	if r.AcceptJobType != "" && containsFold(detailText, r.AcceptJobType) {
		return model.Verdict{Decision: model.Accept}
	}
	return model.Verdict{Decision: model.Skip}
}

// Evaluate is the full classification as a pure function of its inputs.
func Evaluate(job model.JobRecord, rule Rule, detailText string) model.Verdict {
	if !rule.Prescreen(job) {
		return model.Verdict{Decision: model.Skip}
	}
	v := rule.Decide(detailText)
	v.Inspected = true
	return v
}

// Classifier applies a Rule, reading the detail page only for jobs that pass
// the prescreen.
type Classifier struct {
	rule    Rule
	details model.DetailFetcher
	logger  *slog.Logger
}

// NewClassifier returns a Classifier that reads detail text through details.
func NewClassifier(rule Rule, details model.DetailFetcher, logger *slog.Logger) *Classifier {
	return &Classifier{rule: rule, details: details, logger: logger}
}

// Rule returns the rule the classifier applies.
func (c *Classifier) Rule() Rule { return c.rule }

// Classify returns the verdict for a job. A failed detail read is a Skip.
func (c *Classifier) Classify(ctx context.Context, job model.JobRecord) model.Verdict {
	if !c.rule.Prescreen(job) {
		return model.Verdict{Decision: model.Skip}
	}
	text, err := c.details.InterpreterDetails(ctx, job.DetailURL)
	if err != nil {
		c.logger.Warn("reading interpreter details failed", "ref", job.Ref, "error", err)
		return model.Verdict{Decision: model.Skip, Inspected: true}
	}
	if strings.TrimSpace(text) == "" {
		c.logger.Debug("interpreter details not found", "ref", job.Ref)
	}
	return Evaluate(job, c.rule, text)
}

// MatchesCategory reports whether text mentions category. Used by the quick
// check, which only looks and never acts.
func MatchesCategory(text, category string) bool {
	return category != "" && containsFold(text, category)
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
