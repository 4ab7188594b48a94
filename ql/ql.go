// Package ql implements tabular Q-learning over a markov.MDP.
//
// 探索には「訪問回数が最も少ない行動を選ぶ」決定的な規則を使う。
// epsilonは行動選択ではなく、更新に使う次状態のQ値エントリの選び方だけを
// ランダム化する。
package ql

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/chewxy/math32"
	"github.com/nirshahar/rl/markov"
	"github.com/nirshahar/rl/mathx"
	"github.com/nirshahar/rl/probability"
)

var (
	ErrInvalidEpochSize    = errors.New("epoch size must not be negative")
	ErrInvalidLearningRate = errors.New("learning rate must be a finite value in (0, 1]")
	ErrInvalidEpsilon      = errors.New("epsilon must be a finite value in [0, 1]")
	ErrNoActions           = errors.New("state has no actions")
)

// UpdateQ returns the Q value after observing one transition: q moves
// toward reward + gamma*future at rate lr.
func UpdateQ(q, future, reward, lr, gamma float32) float32 {
	qRatio := 1.0 - lr
	newQ := reward + gamma*future
	return (qRatio * q) + (lr * newQ)
}

// QValuesByState maps each state to its per-action Q values, in action
// registration order.
type QValuesByState map[markov.StateID][]float32

// GreedyPolicy extracts the policy that takes the highest-valued action of
// every state. Ties resolve to the lowest action index.
func (qs QValuesByState) GreedyPolicy() (markov.Policy, error) {
	policy := markov.Policy{}
	for id, q := range qs {
		action, err := mathx.ArgMax(q)
		if err != nil {
			return nil, fmt.Errorf("state=%v: %w", id, err)
		}
		policy[id] = action
	}
	return policy, nil
}

// Engine learns Q values for every state-action pair of a model.
type Engine struct {
	EpochSize    int
	LearningRate float32
	Epsilon      float32
}

func (e Engine) Validate() error {
	if e.EpochSize < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidEpochSize, e.EpochSize)
	}

	lr := e.LearningRate
	if math32.IsNaN(lr) || math32.IsInf(lr, 0) || lr <= 0.0 || lr > 1.0 {
		return fmt.Errorf("%w: %f", ErrInvalidLearningRate, lr)
	}

	eps := e.Epsilon
	if math32.IsNaN(eps) || math32.IsInf(eps, 0) || eps < 0.0 || eps > 1.0 {
		return fmt.Errorf("%w: %f", ErrInvalidEpsilon, eps)
	}
	return nil
}

// 次状態のQ値エントリを一様ランダムに1つ選ぶ。
func uniformQEntry(q []float32, rng *rand.Rand) float32 {
	indices := make([]int, len(q))
	ws := make([]float32, len(q))
	for i := range q {
		indices[i] = i
		ws[i] = 1.0
	}

	dist, err := probability.New(indices, ws)
	if err != nil {
		panic(fmt.Sprintf("BUG: %v", err))
	}
	return q[dist.Sample(rng)]
}

// Run learns the Q table of m.
//
// Each state, in StateIDs order, becomes the root of one epoch of EpochSize
// steps. At every step the cursor takes the least-visited action of its
// current state (ties resolve to the lowest index, so every action of a
// state is tried once before any is repeated). The observed transition
// updates the Q entry it left from: the bootstrap value is the maximum Q
// of the successor, or with probability Epsilon a uniformly random Q entry
// of the successor.
//
// 行動を一つも持たない状態があると、学習を始める前にErrNoActionsで失敗する。
func (e Engine) Run(m *markov.MDP, rng *rand.Rand) (QValuesByState, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}

	ids := m.StateIDs()
	qs := make(QValuesByState, len(ids))
	visits := make(map[markov.StateID][]int, len(ids))
	for _, id := range ids {
		n, err := m.ActionCount(id)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, fmt.Errorf("%w: state=%v", ErrNoActions, id)
		}
		qs[id] = make([]float32, n)
		visits[id] = make([]int, n)
	}

	gamma := m.Gamma()
	lr := e.LearningRate
	for _, start := range ids {
		env, err := markov.NewEnvironment(m, start)
		if err != nil {
			return nil, err
		}

		for i := 0; i < e.EpochSize; i++ {
			current := env.Current()
			action, err := mathx.ArgMin(visits[current])
			if err != nil {
				panic(fmt.Sprintf("BUG: %v", err))
			}

			reward, err := env.Advance(action, rng)
			if err != nil {
				return nil, fmt.Errorf("learning aborted at step %d: %w", i, err)
			}
			next := env.Current()

			nextQ, ok := qs[next]
			if !ok {
				return nil, fmt.Errorf("learning aborted at step %d: next state: %w", i, markov.ErrStateNotFound)
			}

			var future float32
			if rng.Float64() < float64(e.Epsilon) {
				future = uniformQEntry(nextQ, rng)
			} else {
				future, err = mathx.MaxVal(nextQ)
				if err != nil {
					panic(fmt.Sprintf("BUG: %v", err))
				}
			}

			qs[current][action] = UpdateQ(qs[current][action], future, float32(reward), lr, gamma)
			visits[current][action]++
		}
	}
	return qs, nil
}
