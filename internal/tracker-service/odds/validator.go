package odds

import (
	"errors"
	"fmt"
	"math"
)

// Faixas fixas da estratégia: cada cote individual fica dentro de
// [1.25, 1.82] e a cote combinada do pari dentro de [1.58, 1.87].
const (
	MinLegOdd = 1.25
	MaxLegOdd = 1.82

	MinCombinedOdd = 1.58
	MaxCombinedOdd = 1.87
)

// ValidationError indica uma aposta rejeitada antes de qualquer mutação.
// O motivo reportado é o da primeira verificação que falhou.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

var ErrValidation = errors.New("validation failed")

// Is permite errors.Is(err, ErrValidation) sobre qualquer ValidationError.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Leg é uma seleção (descrição + cote) dentro de uma aposta.
// Um pari tem uma ou duas legs.
type Leg struct {
	Description string  `json:"description"`
	Odd         float64 `json:"odd"`
}

// ValidLegOdd verifica se uma cote individual está dentro da faixa permitida.
// Limites inclusivos.
func ValidLegOdd(odd float64) bool {
	return odd >= MinLegOdd && odd <= MaxLegOdd
}

// ValidCombinedOdd verifica a cote combinada (produto bruto, sem
// arredondar) contra a faixa permitida. odd2 nil = aposta simples.
func ValidCombinedOdd(odd1 float64, odd2 *float64) bool {
	combined := odd1
	if odd2 != nil {
		combined = odd1 * *odd2
	}
	return combined >= MinCombinedOdd && combined <= MaxCombinedOdd
}

// CombineOdds retorna o produto das cotes (ou odd1 sozinha), arredondado
// a 2 casas decimais.
func CombineOdds(odd1 float64, odd2 *float64) float64 {
	combined := odd1
	if odd2 != nil {
		combined = odd1 * *odd2
	}
	return Round2(combined)
}

// Round2 arredonda half-up na segunda casa decimal.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ValidateLegs aplica as verificações de criação de aposta, nesta ordem:
// campos da leg 1 presentes, cada cote individual na faixa, cote combinada
// na faixa. A primeira falha determina o motivo; as demais não são avaliadas.
func ValidateLegs(legs []Leg) error {
	if len(legs) == 0 || legs[0].Description == "" || legs[0].Odd == 0 {
		return &ValidationError{Reason: "match 1 description and odd are required"}
	}
	if len(legs) > 2 {
		return &ValidationError{Reason: "a bet has at most two legs"}
	}

	for _, l := range legs {
		if !ValidLegOdd(l.Odd) {
			return &ValidationError{Reason: fmt.Sprintf("individual odds must be between %.2f and %.2f", MinLegOdd, MaxLegOdd)}
		}
	}

	var odd2 *float64
	if len(legs) == 2 {
		odd2 = &legs[1].Odd
	}
	if !ValidCombinedOdd(legs[0].Odd, odd2) {
		return &ValidationError{Reason: fmt.Sprintf("combined odd must be between %.2f and %.2f", MinCombinedOdd, MaxCombinedOdd)}
	}

	return nil
}
