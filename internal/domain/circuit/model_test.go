package circuit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdmissionState_Transitions(t *testing.T) {
	all := []AdmissionState{StateInCircuit, StateAudit, StateClosed, StateVoided}
	allowed := map[AdmissionState][]AdmissionState{
		StateInCircuit: {StateAudit, StateVoided, StateClosed},
		StateAudit:     {StateVoided, StateClosed},
	}
	for _, from := range all {
		for _, to := range all {
			want := false
			for _, ok := range allowed[from] {
				if ok == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
	assert.False(t, AdmissionState("open").CanTransitionTo(StateClosed))
}

func TestAdmissionState_Labels(t *testing.T) {
	assert.Equal(t, "En Circuito", StateInCircuit.Label())
	assert.Equal(t, "Auditoria", StateAudit.Label())
	assert.Equal(t, "Cerrado", StateClosed.Label())
	assert.Equal(t, "Anulado", StateVoided.Label())
	assert.True(t, StateAudit.AcceptsClinicalWrites())
	assert.False(t, StateClosed.AcceptsClinicalWrites())
	assert.False(t, AdmissionState("x").Valid())
}

func TestEntryState_OnlyMovesForward(t *testing.T) {
	assert.True(t, EntryPending.CanTransitionTo(EntryDone))
	assert.False(t, EntryPending.CanTransitionTo(EntryValidated))
	assert.True(t, EntryDone.CanTransitionTo(EntryDone))
	assert.True(t, EntryDone.CanTransitionTo(EntryValidated))
	assert.False(t, EntryDone.CanTransitionTo(EntryPending))
	assert.False(t, EntryValidated.CanTransitionTo(EntryDone))
	assert.Equal(t, "Pendiente", EntryPending.Label())
}
