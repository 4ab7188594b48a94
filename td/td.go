// Package td implements TD(0) policy evaluation over a markov.MDP.
//
// Package td は、markov.MDP上でのTD(0)方策評価を実装します。
package td

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/chewxy/math32"
	"github.com/nirshahar/rl/markov"
)

var (
	ErrNilPolicy           = errors.New("policy must not be nil")
	ErrInvalidEpochSize    = errors.New("epoch size must not be negative")
	ErrInvalidLearningRate = errors.New("learning rate must be a finite value in (0, 1]")
)

// Schedule adjusts a state's learning rate after each update of that state.
type Schedule func(lr float32) float32

// Harmonic は更新の度に学習率を調和数列的に減衰させる。
// 初期値1.0なら、学習率は 1, 1/2, 1/3, ... と推移し、状態価値は観測の平均になる。
func Harmonic(lr float32) float32 {
	return 1.0 / (1.0/lr + 1.0)
}

// Fixed keeps the learning rate constant.
func Fixed(lr float32) float32 {
	return lr
}

// ValueByState は方策評価の結果として得られる、状態価値のテーブル。
type ValueByState map[markov.StateID]float32

// Engine evaluates a fixed policy by temporal-difference learning.
type Engine struct {
	Policy       markov.Policy
	EpochSize    int
	LearningRate float32
	// nil は Harmonic を選択する。
	Schedule Schedule
}

func (e Engine) Validate() error {
	if e.Policy == nil {
		return ErrNilPolicy
	}

	if e.EpochSize < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidEpochSize, e.EpochSize)
	}

	lr := e.LearningRate
	if math32.IsNaN(lr) || math32.IsInf(lr, 0) || lr <= 0.0 || lr > 1.0 {
		return fmt.Errorf("%w: %f", ErrInvalidLearningRate, lr)
	}
	return nil
}

// Run estimates the value of every state of m under e.Policy.
//
// Each state, in StateIDs order, becomes the root of one epoch: a cursor
// starts there and advances EpochSize times, updating the value of the
// state it left by
//
//	v = (1-lr)*v + lr*(reward + gamma*v(next))
//
// and decaying that state's learning rate with the schedule. The value and
// learning-rate tables are shared across epochs, so later start states
// refine the same estimates.
func (e Engine) Run(m *markov.MDP, rng *rand.Rand) (ValueByState, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}

	if err := e.Policy.Validate(m); err != nil {
		return nil, err
	}

	schedule := e.Schedule
	if schedule == nil {
		schedule = Harmonic
	}

	ids := m.StateIDs()
	values := make(ValueByState, len(ids))
	lrs := make(map[markov.StateID]float32, len(ids))
	for _, id := range ids {
		values[id] = 0.0
		lrs[id] = e.LearningRate
	}

	gamma := m.Gamma()
	for _, start := range ids {
		env, err := markov.NewEnvironment(m, start)
		if err != nil {
			return nil, err
		}

		for i := 0; i < e.EpochSize; i++ {
			current := env.Current()
			reward, err := env.Advance(e.Policy[current], rng)
			if err != nil {
				return nil, fmt.Errorf("evaluation aborted at step %d: %w", i, err)
			}
			next := env.Current()

			nextValue, ok := values[next]
			if !ok {
				return nil, fmt.Errorf("evaluation aborted at step %d: next state: %w", i, markov.ErrStateNotFound)
			}

			lr := lrs[current]
			target := float32(reward) + gamma*nextValue
			values[current] = (1.0-lr)*values[current] + lr*target
			lrs[current] = schedule(lr)
		}
	}
	return values, nil
}
