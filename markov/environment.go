package markov

import (
	"fmt"
	"math/rand/v2"

	"github.com/sw965/omw/parallel"
)

// Environment is a cursor over one model: the current state plus the
// sampling step that moves it. It never mutates the model, so any number
// of environments may share one MDP.
type Environment struct {
	model   *MDP
	current StateID
}

// NewEnvironment roots a cursor at start. A stale or unknown start is
// rejected with ErrStateNotFound.
func NewEnvironment(m *MDP, start StateID) (*Environment, error) {
	if _, err := m.lookup(start); err != nil {
		return nil, err
	}
	return &Environment{model: m, current: start}, nil
}

func (e *Environment) Current() StateID {
	return e.current
}

// Reset moves the cursor to the given state without touching the model.
func (e *Environment) Reset(id StateID) error {
	if _, err := e.model.lookup(id); err != nil {
		return err
	}
	e.current = id
	return nil
}

// Advance samples the outcome of taking the action at the current state,
// moves the cursor to the successor and returns the immediate reward.
// 失敗した場合、カーソルは動かない。
func (e *Environment) Advance(action int, rng *rand.Rand) (Reward, error) {
	next, reward, err := e.model.SampleTransition(e.current, action, rng)
	if err != nil {
		return 0, err
	}
	e.current = next
	return reward, nil
}

// Experience is one recorded step of a playout.
type Experience struct {
	State       StateID
	ActionIndex int
	Reward      Reward
	Next        StateID
}

type Experiences []Experience

// DiscountedReturn は割引率gammaでの累積報酬を計算する。
func (es Experiences) DiscountedReturn(gamma float32) float32 {
	var ret float32
	for i := len(es) - 1; i >= 0; i-- {
		ret = float32(es[i].Reward) + gamma*ret
	}
	return ret
}

// Playout advances the cursor steps times under the policy, recording
// every transition in order. The cursor is left at the final state.
func (e *Environment) Playout(policy Policy, steps int, rng *rand.Rand) (Experiences, error) {
	experiences := make(Experiences, 0, steps)
	for i := 0; i < steps; i++ {
		current := e.current
		action, ok := policy[current]
		if !ok {
			return nil, fmt.Errorf("%w: index=%d", ErrPolicyMissingState, current.index)
		}

		reward, err := e.Advance(action, rng)
		if err != nil {
			return nil, err
		}

		experiences = append(experiences, Experience{
			State:       current,
			ActionIndex: action,
			Reward:      reward,
			Next:        e.current,
		})
	}
	return experiences, nil
}

// Playouts runs one playout per start state, distributing them over
// len(rngs) workers. Trajectory i begins at starts[i] and is written only
// to slot i of the result, so workers never share mutable state; the model
// is read-only throughout.
func Playouts(m *MDP, starts []StateID, policy Policy, steps int, rngs []*rand.Rand) ([]Experiences, error) {
	if err := policy.Validate(m); err != nil {
		return nil, err
	}

	if len(rngs) == 0 {
		return nil, fmt.Errorf("rngs must not be empty")
	}

	n := len(starts)
	p := len(rngs)
	results := make([]Experiences, n)

	err := parallel.For(n, p, func(workerId, idx int) error {
		rng := rngs[workerId]
		env, err := NewEnvironment(m, starts[idx])
		if err != nil {
			return err
		}

		experiences, err := env.Playout(policy, steps, rng)
		if err != nil {
			return err
		}
		results[idx] = experiences
		return nil
	})
	return results, err
}
