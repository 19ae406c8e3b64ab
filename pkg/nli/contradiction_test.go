package nli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeClassifier struct {
	result *Result
	err    error
}

func (f *fakeClassifier) Classify(context.Context, string, string) (*Result, error) {
	return f.result, f.err
}

func TestDetectContradictionHighConfidenceNoEscalation(t *testing.T) {
	c := &fakeClassifier{result: &Result{
		Label:  LabelContradiction,
		Scores: map[Label]float64{LabelContradiction: 0.85, LabelEntailment: 0.05, LabelNeutral: 0.1},
	}}
	got := DetectContradiction(context.Background(), c, "a", "b")
	assert.True(t, got.Contradicts)
	assert.False(t, got.NeedsEscalation)
}

func TestDetectContradictionHighEntailmentNoEscalation(t *testing.T) {
	c := &fakeClassifier{result: &Result{
		Scores: map[Label]float64{LabelEntailment: 0.7, LabelContradiction: 0.1, LabelNeutral: 0.2},
	}}
	got := DetectContradiction(context.Background(), c, "a", "b")
	assert.False(t, got.Contradicts)
	assert.False(t, got.NeedsEscalation)
}

func TestDetectContradictionMidConfidenceEscalates(t *testing.T) {
	c := &fakeClassifier{result: &Result{
		Scores: map[Label]float64{LabelContradiction: 0.55, LabelEntailment: 0.1, LabelNeutral: 0.35},
	}}
	got := DetectContradiction(context.Background(), c, "a", "b")
	assert.True(t, got.Contradicts)
	assert.True(t, got.NeedsEscalation)
}

func TestDetectContradictionLowConfidenceEscalates(t *testing.T) {
	c := &fakeClassifier{result: &Result{
		Scores: map[Label]float64{LabelContradiction: 0.25, LabelEntailment: 0.3, LabelNeutral: 0.45},
	}}
	got := DetectContradiction(context.Background(), c, "a", "b")
	assert.False(t, got.Contradicts)
	assert.True(t, got.NeedsEscalation)
}

func TestDetectContradictionVeryLowConfidenceNoEscalation(t *testing.T) {
	c := &fakeClassifier{result: &Result{
		Scores: map[Label]float64{LabelContradiction: 0.05, LabelEntailment: 0.1, LabelNeutral: 0.85},
	}}
	got := DetectContradiction(context.Background(), c, "a", "b")
	assert.False(t, got.Contradicts)
	assert.False(t, got.NeedsEscalation)
}

func TestDetectContradictionNilClassifierEscalates(t *testing.T) {
	got := DetectContradiction(context.Background(), nil, "a", "b")
	assert.True(t, got.NeedsEscalation)
	assert.False(t, got.Contradicts)
}

func TestDetectContradictionClassifierFailureEscalates(t *testing.T) {
	c := &fakeClassifier{result: nil}
	got := DetectContradiction(context.Background(), c, "a", "b")
	assert.True(t, got.NeedsEscalation)
}
