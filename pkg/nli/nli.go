// Package nli implements the NLIClassifier collaborator:
// classifying a (premise, hypothesis) pair into entailment/neutral/
// contradiction with a softmax distribution, via either a remote HTTP
// endpoint or an in-process quantised model.
package nli

import "context"

// Label is one of the three NLI classes.
type Label string

const (
	LabelEntailment    Label = "entailment"
	LabelNeutral       Label = "neutral"
	LabelContradiction Label = "contradiction"
)

// Result is a classification outcome: the argmax label plus the full
// softmax distribution over the three classes.
type Result struct {
	Label  Label
	Scores map[Label]float64
}

// Classifier classifies a (premise, hypothesis) pair. Implementations
// return (nil, nil) on any failure — network error, breaker-open, or a
// permanently failed model load — so callers treat a nil Result as no
// signal, never an error to branch on.
type Classifier interface {
	Classify(ctx context.Context, premise, hypothesis string) (*Result, error)
}
