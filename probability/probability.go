// Package probability provides the weighted sampling primitive used for
// every stochastic transition of an MDP.
//
// Package probability は、MDPの全ての確率的遷移に使われる重み付きサンプリングを提供します。
package probability

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"sort"

	"github.com/chewxy/math32"
)

var (
	ErrEmpty        = errors.New("distribution must not be empty")
	ErrSizeMismatch = errors.New("items and weights must have the same length")
	ErrNotFinite    = errors.New("weight must be finite")
	ErrNonPositive  = errors.New("weight must be positive")
)

// Distribution は正規化済みの累積重みテーブルを持つ、生成後不変な離散分布。
// 累積重みは狭義単調増加で、最終要素は必ず1.0になる。
type Distribution[V any] struct {
	cumulatives []float32
	values      []V
}

func New[V any](items []V, weights []float32) (*Distribution[V], error) {
	if len(items) != len(weights) {
		return nil, fmt.Errorf("%w: items=%d, weights=%d", ErrSizeMismatch, len(items), len(weights))
	}

	if len(items) == 0 {
		return nil, ErrEmpty
	}

	cums := make([]float32, len(weights))
	var total float32
	for i, w := range weights {
		if math32.IsNaN(w) || math32.IsInf(w, 0) {
			return nil, fmt.Errorf("%w: weights[%d]=%f", ErrNotFinite, i, w)
		}
		if w <= 0 {
			return nil, fmt.Errorf("%w: weights[%d]=%f", ErrNonPositive, i, w)
		}
		total += w
		cums[i] = total
	}

	if math32.IsInf(total, 0) {
		return nil, fmt.Errorf("%w: sum of weights overflows float32", ErrNotFinite)
	}

	for i := range cums {
		cums[i] /= total
	}
	// 丸め誤差で最終要素が1.0を下回ると、u がテーブルの範囲外に落ちる
	cums[len(cums)-1] = 1.0

	return &Distribution[V]{
		cumulatives: cums,
		values:      slices.Clone(items),
	}, nil
}

func (d *Distribution[V]) Len() int {
	return len(d.values)
}

func (d *Distribution[V]) Cumulatives() []float32 {
	return slices.Clone(d.cumulatives)
}

// Sample は u ~ U[0,1) を引き、累積重みが u 以上となる最小のインデックスの値を返す。
// 累積重みが u と一致する場合も、そのインデックスが選ばれる(挿入点の規則)。
func (d *Distribution[V]) Sample(rng *rand.Rand) V {
	u := rng.Float32()
	idx := sort.Search(len(d.cumulatives), func(i int) bool {
		return d.cumulatives[i] >= u
	})
	return d.values[idx]
}
