package mathx

import (
	"errors"

	"golang.org/x/exp/constraints"
)

var ErrEmptySlice = errors.New("empty slice")

// 最大値・最小値が複数ある場合は、最も小さいインデックスを優先する。
func ArgMax[X constraints.Ordered](xs []X) (int, error) {
	if len(xs) == 0 {
		return -1, ErrEmptySlice
	}

	maxIdx := 0
	max := xs[0]
	for i, x := range xs[1:] {
		if x > max {
			max = x
			maxIdx = i + 1
		}
	}
	return maxIdx, nil
}

func ArgMin[X constraints.Ordered](xs []X) (int, error) {
	if len(xs) == 0 {
		return -1, ErrEmptySlice
	}

	minIdx := 0
	min := xs[0]
	for i, x := range xs[1:] {
		if x < min {
			min = x
			minIdx = i + 1
		}
	}
	return minIdx, nil
}

func MaxVal[X constraints.Ordered](xs []X) (X, error) {
	idx, err := ArgMax(xs)
	if err != nil {
		var zero X
		return zero, err
	}
	return xs[idx], nil
}

func MinVal[X constraints.Ordered](xs []X) (X, error) {
	idx, err := ArgMin(xs)
	if err != nil {
		var zero X
		return zero, err
	}
	return xs[idx], nil
}
