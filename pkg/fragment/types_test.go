package fragment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInferTierFirstMatchWins(t *testing.T) {
	assert.Equal(t, TierPermanent, InferTier(TypePreference, 0.1))
	assert.Equal(t, TierPermanent, InferTier(TypeFact, 0.8))
	assert.Equal(t, TierHot, InferTier(TypeError, 0.2))
	assert.Equal(t, TierHot, InferTier(TypeProcedure, 0.1))
	assert.Equal(t, TierWarm, InferTier(TypeFact, 0.5))
	assert.Equal(t, TierCold, InferTier(TypeFact, 0.1))
}

func TestTypeDefaultImportance(t *testing.T) {
	assert.Equal(t, 0.95, TypePreference.DefaultImportance())
	assert.Equal(t, 0.9, TypeError.DefaultImportance())
	assert.Equal(t, 0.8, TypeDecision.DefaultImportance())
	assert.Equal(t, 0.7, TypeProcedure.DefaultImportance())
	assert.Equal(t, 0.6, TypeRelation.DefaultImportance())
	assert.Equal(t, 0.5, TypeFact.DefaultImportance())
}

func TestEvaluationExcluded(t *testing.T) {
	assert.True(t, TypeFact.EvaluationExcluded())
	assert.True(t, TypeProcedure.EvaluationExcluded())
	assert.True(t, TypeError.EvaluationExcluded())
	assert.False(t, TypeDecision.EvaluationExcluded())
	assert.False(t, TypePreference.EvaluationExcluded())
	assert.False(t, TypeRelation.EvaluationExcluded())
}

func TestValidType(t *testing.T) {
	assert.True(t, TypeFact.Valid())
	assert.False(t, Type("bogus").Valid())
}

func TestValidRelationType(t *testing.T) {
	assert.True(t, RelationContradicts.Valid())
	assert.False(t, RelationType("bogus").Valid())
}
