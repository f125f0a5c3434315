package ml

import (
	"math"
	"math/rand"
)

// TrainTestSplit shuffles 0..n-1 with a fixed seed and returns disjoint train
// and test index sets. The test set holds ceil(n*testRatio) rows, clamped so
// both sides are non-empty when n >= 2.
func TrainTestSplit(n int, testRatio float64, seed int64) (train, test []int) {
	if n <= 0 {
		return nil, nil
	}
	if testRatio <= 0 || testRatio >= 1 {
		testRatio = 0.2
	}
	indices := rand.New(rand.NewSource(seed)).Perm(n)
	nTest := int(math.Ceil(float64(n) * testRatio))
	if nTest >= n {
		nTest = n - 1
	}
	if nTest < 1 && n > 1 {
		nTest = 1
	}
	return indices[nTest:], indices[:nTest]
}
