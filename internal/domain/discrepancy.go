package domain

// AnalyzeDiscrepancy es el motor de reglas local.
//
// Un desfase es accionable cuando un lado va 2 o 3 puntos por delante en la
// transmisión y el otro lado coincide exactamente con la casa:
//
//	diffA = trans.A - bet.A
//	diffB = trans.B - bet.B
//	diffA ∈ {2,3} ∧ diffB == 0  →  ExecuteBet(A, diffA)
//
// Cualquier otro desfase asimétrico se registra sin actuar.
func AnalyzeDiscrepancy(trans, bet ScoreSnapshot, stake float64) CandidateAction {
	diffA := trans.TeamA - bet.TeamA
	diffB := trans.TeamB - bet.TeamB

	if isActionableGap(diffA) && diffB == 0 {
		return ExecuteBet(TeamA, diffA, stake)
	}
	if isActionableGap(diffB) && diffA == 0 {
		return ExecuteBet(TeamB, diffB, stake)
	}

	if diffA != diffB {
		if abs(diffA) >= abs(diffB) {
			return RegisterDiscrepancy(TeamA, diffA)
		}
		return RegisterDiscrepancy(TeamB, diffB)
	}
	return NoAction()
}

func isActionableGap(d int) bool {
	return d == 2 || d == 3
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
