package markov

import (
	"errors"
	"fmt"
)

var ErrPolicyMissingState = errors.New("policy does not cover the state")

// Policy maps every state of a model to the index of the action to take
// there. It is owned by the caller; the model and the algorithms never
// mutate it.
type Policy map[StateID]int

// Validate は、policyがモデルの全ての生存状態に有効な行動番号を割り当てている事を確認する。
// 行動を一つも持たない状態があると、どの行動番号も有効にならない為、必ず失敗する。
func (p Policy) Validate(m *MDP) error {
	for _, id := range m.StateIDs() {
		action, ok := p[id]
		if !ok {
			return fmt.Errorf("%w: index=%d", ErrPolicyMissingState, id.index)
		}

		n, err := m.ActionCount(id)
		if err != nil {
			return err
		}

		if action < 0 || action >= n {
			return fmt.Errorf("%w: index=%d action=%d actionCount=%d", ErrActionDoesNotExist, id.index, action, n)
		}
	}
	return nil
}
