package domain

// ActionKind es la etiqueta de la variante de CandidateAction.
type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionRegisterDiscrepancy
	ActionExecuteBet
	ActionProviderError
)

// String devuelve el nombre de la variante.
func (k ActionKind) String() string {
	switch k {
	case ActionRegisterDiscrepancy:
		return "register_discrepancy"
	case ActionExecuteBet:
		return "execute_bet"
	case ActionProviderError:
		return "provider_error"
	default:
		return "none"
	}
}

// CandidateAction es la salida de un Decision Provider.
// Solo los campos válidos para Kind están rellenos; usar los constructores.
type CandidateAction struct {
	Kind     ActionKind
	Team     Team    // RegisterDiscrepancy, ExecuteBet
	PointGap int     // RegisterDiscrepancy, ExecuteBet
	Stake    float64 // ExecuteBet
	Message  string  // ProviderError
}

// NoAction devuelve la acción vacía.
func NoAction() CandidateAction {
	return CandidateAction{Kind: ActionNone}
}

// RegisterDiscrepancy registra un desfase no accionable.
func RegisterDiscrepancy(team Team, gap int) CandidateAction {
	return CandidateAction{Kind: ActionRegisterDiscrepancy, Team: team, PointGap: gap}
}

// ExecuteBet pide apostar stake al equipo team por un gap de 2 o 3 puntos.
func ExecuteBet(team Team, gap int, stake float64) CandidateAction {
	return CandidateAction{Kind: ActionExecuteBet, Team: team, PointGap: gap, Stake: stake}
}

// ProviderFailure representa un fallo del provider como resultado explícito.
func ProviderFailure(msg string) CandidateAction {
	return CandidateAction{Kind: ActionProviderError, Message: msg}
}

// BetOrder es lo que se envía al executor downstream.
type BetOrder struct {
	SignalID string
	Team     Team
	PointGap int
	Stake    float64
}

// BetResult es la respuesta del executor.
type BetResult struct {
	Accepted  bool
	Reference string
	Message   string
}
