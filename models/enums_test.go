package models

import "testing"

func TestNextPhase_WalksFullOrder(t *testing.T) {
	phase := PhaseInit
	steps := 0
	for phase != PhaseCompleted {
		next := NextPhase(phase)
		if next == phase {
			t.Fatalf("phase %s does not advance", phase)
		}
		phase = next
		steps++
		if steps > len(GenerationPhaseOrder) {
			t.Fatal("phase order does not terminate")
		}
	}
	if steps != len(GenerationPhaseOrder)-1 {
		t.Errorf("took %d steps to reach completed, want %d", steps, len(GenerationPhaseOrder)-1)
	}
}

func TestNextPhase_UnknownPhaseCompletes(t *testing.T) {
	if got := NextPhase(GenerationPhase("bogus")); got != PhaseCompleted {
		t.Errorf("NextPhase(bogus) = %s", got)
	}
}

func TestPhaseProgress_MonotonicallyIncreases(t *testing.T) {
	prev := -1
	for _, p := range GenerationPhaseOrder {
		cur := PhaseProgress(p)
		if cur <= prev {
			t.Errorf("progress for %s (%d) not above previous (%d)", p, cur, prev)
		}
		prev = cur
	}
	if PhaseProgress(PhaseCompleted) != 100 {
		t.Errorf("completed progress = %d", PhaseProgress(PhaseCompleted))
	}
}

func TestJobStatus_Terminality(t *testing.T) {
	if JobStatusPending.IsTerminal() || JobStatusRunning.IsTerminal() {
		t.Error("pending/running reported terminal")
	}
	if !JobStatusCompleted.IsTerminal() || !JobStatusFailed.IsTerminal() {
		t.Error("completed/failed not reported terminal")
	}
}

func TestPatchModeAndPlanType_Validity(t *testing.T) {
	for _, m := range []PatchMode{PatchModeAdditive, PatchModeReconcile, PatchModeMetricsOnly} {
		if !m.IsValid() {
			t.Errorf("%s not valid", m)
		}
	}
	if PatchMode("destructive").IsValid() {
		t.Error("unknown mode reported valid")
	}
	if !PatchPlanTargets.IsValid() || !PatchPlanDeltas.IsValid() || PatchPlanType("absolute").IsValid() {
		t.Error("plan type validity wrong")
	}
}
