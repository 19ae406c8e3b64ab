package nli

import "context"

// Contradiction is the higher-level verdict detectContradiction returns:
// whether the pair contradicts, the confidence driving that
// call, whether the Consolidator should escalate to the LLM/pending queue,
// and the raw score distribution for audit logging.
type Contradiction struct {
	Contradicts     bool
	Confidence      float64
	NeedsEscalation bool
	Scores          map[Label]float64
}

// DetectContradiction classifies (a, b) and applies the verdict
// thresholds. A nil Classifier or a classification failure (nil Result)
// always needs escalation, since no signal was obtained.
func DetectContradiction(ctx context.Context, classifier Classifier, a, b string) *Contradiction {
	if classifier == nil {
		return &Contradiction{NeedsEscalation: true}
	}
	result, err := classifier.Classify(ctx, a, b)
	if err != nil || result == nil {
		return &Contradiction{NeedsEscalation: true}
	}

	contradiction := result.Scores[LabelContradiction]
	entailment := result.Scores[LabelEntailment]

	switch {
	case contradiction >= 0.8:
		return &Contradiction{Contradicts: true, Confidence: contradiction, Scores: result.Scores}
	case entailment >= 0.6:
		return &Contradiction{Contradicts: false, Confidence: entailment, Scores: result.Scores}
	case contradiction >= 0.5:
		return &Contradiction{Contradicts: true, Confidence: contradiction, NeedsEscalation: true, Scores: result.Scores}
	case contradiction >= 0.2:
		return &Contradiction{Contradicts: false, Confidence: contradiction, NeedsEscalation: true, Scores: result.Scores}
	default:
		return &Contradiction{Contradicts: false, Confidence: contradiction, Scores: result.Scores}
	}
}
