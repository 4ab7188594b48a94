// Package markov provides a finite Markov decision process backed by a
// generational arena, together with the simulation cursor the learning
// algorithms drive.
//
// Package markov は、世代管理されたアリーナ上に構築される有限マルコフ決定過程と、
// 学習アルゴリズムが動かすシミュレーション用カーソルを提供します。
package markov

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/chewxy/math32"
	"github.com/nirshahar/rl/probability"
)

var (
	ErrStateNotFound      = errors.New("state does not exist in the model")
	ErrActionDoesNotExist = errors.New("action does not exist for the state")
)

// Reward は1回の遷移で得られる即時報酬。
type Reward float32

// Outcome is one possible result of taking an action: the successor state
// and the immediate reward.
type Outcome struct {
	Next   StateID
	Reward Reward
}

// Transition is the weighted distribution over the outcomes of one action.
type Transition = probability.Distribution[Outcome]

// NewTransition builds the outcome distribution for a single action.
// 重みが不正な場合は probability パッケージのエラーをそのまま返す。
func NewTransition(outcomes []Outcome, weights []float32) (*Transition, error) {
	return probability.New(outcomes, weights)
}

// StateID is an opaque handle to a state of an MDP. Handles stay valid
// across later insertions and become stale when their state is removed;
// the zero value never names a live state.
type StateID struct {
	index      uint32
	generation uint32
}

type slot struct {
	generation uint32
	live       bool
	actions    []*Transition
}

// MDP is a finite Markov decision process. States live in an arena indexed
// by StateID; each state owns its actions in registration order. The model
// is safe for concurrent read-only use once built.
type MDP struct {
	gamma float32
	slots []slot
	free  []uint32
}

// New は割引率gammaのMDPを生成する。
// gammaは開区間(0,1)の有限値でなければならない。範囲外はプログラミングエラー。
func New(gamma float32) *MDP {
	if math32.IsNaN(gamma) || math32.IsInf(gamma, 0) || gamma <= 0.0 || gamma >= 1.0 {
		panic(fmt.Sprintf("BUG: discount rate must be in (0, 1), got %f", gamma))
	}
	return &MDP{gamma: gamma}
}

func (m *MDP) Gamma() float32 {
	return m.gamma
}

// AddState registers a new state with no actions and returns its handle.
func (m *MDP) AddState() StateID {
	if n := len(m.free); n > 0 {
		idx := m.free[n-1]
		m.free = m.free[:n-1]
		s := &m.slots[idx]
		s.live = true
		s.actions = nil
		return StateID{index: idx, generation: s.generation}
	}
	m.slots = append(m.slots, slot{generation: 1, live: true})
	return StateID{index: uint32(len(m.slots) - 1), generation: 1}
}

func (m *MDP) lookup(id StateID) (*slot, error) {
	if int(id.index) >= len(m.slots) {
		return nil, fmt.Errorf("%w: index=%d", ErrStateNotFound, id.index)
	}
	s := &m.slots[id.index]
	if !s.live || s.generation != id.generation {
		return nil, fmt.Errorf("%w: index=%d generation=%d", ErrStateNotFound, id.index, id.generation)
	}
	return s, nil
}

// RemoveState deletes the state. The handle and all copies of it become
// stale; later lookups through them fail with ErrStateNotFound. The slot
// is recycled by a future AddState under a new generation.
func (m *MDP) RemoveState(id StateID) error {
	s, err := m.lookup(id)
	if err != nil {
		return err
	}
	s.live = false
	s.generation++
	s.actions = nil
	m.free = append(m.free, id.index)
	return nil
}

// Contains reports whether id names a live state.
func (m *MDP) Contains(id StateID) bool {
	_, err := m.lookup(id)
	return err == nil
}

// StateIDs returns handles for all live states in slot order. Slot order
// matches insertion order until a slot is recycled: a state added into a
// slot freed by RemoveState enumerates at that slot's old position, not
// at the end.
func (m *MDP) StateIDs() []StateID {
	ids := make([]StateID, 0, m.NumStates())
	for i, s := range m.slots {
		if s.live {
			ids = append(ids, StateID{index: uint32(i), generation: s.generation})
		}
	}
	return ids
}

func (m *MDP) NumStates() int {
	return len(m.slots) - len(m.free)
}

// AddTransition appends an action to the state. Actions are identified by
// the order in which they were added: the first action of a state is
// action 0, the next is 1, and so on.
func (m *MDP) AddTransition(id StateID, t *Transition) error {
	s, err := m.lookup(id)
	if err != nil {
		return err
	}
	s.actions = append(s.actions, t)
	return nil
}

// ActionCount は、その状態に登録されている行動の数を返す。
func (m *MDP) ActionCount(id StateID) (int, error) {
	s, err := m.lookup(id)
	if err != nil {
		return 0, err
	}
	return len(s.actions), nil
}

// SampleTransition draws one outcome of taking the given action at the
// given state. The model itself is never modified, so concurrent sampling
// with per-goroutine rngs is safe.
func (m *MDP) SampleTransition(id StateID, action int, rng *rand.Rand) (StateID, Reward, error) {
	s, err := m.lookup(id)
	if err != nil {
		return StateID{}, 0, err
	}
	if action < 0 || action >= len(s.actions) {
		return StateID{}, 0, fmt.Errorf("%w: action=%d actionCount=%d", ErrActionDoesNotExist, action, len(s.actions))
	}
	outcome := s.actions[action].Sample(rng)
	return outcome.Next, outcome.Reward, nil
}
