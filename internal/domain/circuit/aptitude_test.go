package circuit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/occhealth/occhealth/internal/platform/apperr"
)

func TestClassifyConclusion(t *testing.T) {
	tests := []struct {
		conclusion string
		want       Tier
	}{
		{"", TierNormal},
		{"Evaluado. IMC: 24.22 (Normal)", TierNormal},
		{"Observado", TierObserved},
		{"OBSERVADA por hipertension", TierObserved},
		{"Hallazgo patológico en rodilla", TierObserved},
		{"Sin hallazgos anormales", TierNormal},
		{"sin alteraciones, no alterado", TierNormal},
		{"ECG anormal", TierObserved},
		{"No apto para altura", TierUnfit},
		{"NO  APTO", TierUnfit},
		{"Apto", TierNormal},
		{"observado; luego no apto", TierUnfit},
		{"No es apto", TierUnfit},
		{"no resulta apto para espacios confinados", TierUnfit},
		{"No se considera apto", TierUnfit},
		{"no observado, apto", TierNormal},
		{"no se considera del todo apto", TierNormal},
	}
	for _, tt := range tests {
		t.Run(tt.conclusion, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyConclusion(tt.conclusion))
		})
	}
}

func TestDeriveVerdict(t *testing.T) {
	assert.Equal(t, VerdictFit, DeriveVerdict(nil))
	assert.Equal(t, VerdictFit, DeriveVerdict([]string{"normal", "sin patologia"}))
	assert.Equal(t, VerdictObserved, DeriveVerdict([]string{"normal", "Patológico"}))
	assert.Equal(t, VerdictUnfit, DeriveVerdict([]string{"observado", "no apto"}))
}

func TestParseVerdict(t *testing.T) {
	v, ok := ParseVerdict("apto con restricciones")
	require.True(t, ok)
	assert.Equal(t, VerdictFitRestrictions, v)

	v, ok = ParseVerdict(" No Apto ")
	require.True(t, ok)
	assert.Equal(t, VerdictUnfit, v)

	_, ok = ParseVerdict("aprobado")
	assert.False(t, ok)
}

func TestResolveVerdict(t *testing.T) {
	fit, restricted, observed, unfit := VerdictFit, VerdictFitRestrictions, VerdictObserved, VerdictUnfit
	bogus := Verdict("MAYBE")

	tests := []struct {
		name         string
		derived      Verdict
		override     *Verdict
		restrictions string
		want         Verdict
		wantErr      bool
	}{
		{"no override", VerdictObserved, nil, "", VerdictObserved, false},
		{"stricter", VerdictFit, &observed, "", VerdictObserved, false},
		{"same", VerdictUnfit, &unfit, "", VerdictUnfit, false},
		{"milder", VerdictUnfit, &fit, "", "", true},
		{"observed to restricted", VerdictObserved, &restricted, "Sin exposicion a ruido", VerdictFitRestrictions, false},
		{"restricted without text", VerdictFit, &restricted, " ", "", true},
		{"unfit to restricted", VerdictUnfit, &restricted, "x", "", true},
		{"unknown", VerdictFit, &bogus, "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveVerdict(tt.derived, tt.override, tt.restrictions)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperr.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
