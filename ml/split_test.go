package ml

import "testing"

func TestTrainTestSplit(t *testing.T) {
	train, test := TrainTestSplit(101, 0.2, 42)
	if len(test) != 21 || len(train) != 80 {
		t.Fatalf("unexpected sizes: train=%d test=%d", len(train), len(test))
	}
	seen := make(map[int]bool)
	for _, i := range append(append([]int(nil), train...), test...) {
		if seen[i] {
			t.Fatalf("index %d appears twice", i)
		}
		seen[i] = true
	}
	if len(seen) != 101 {
		t.Fatalf("expected every index once, got %d", len(seen))
	}

	again, _ := TrainTestSplit(101, 0.2, 42)
	for k := range train {
		if train[k] != again[k] {
			t.Fatal("split is not deterministic for a fixed seed")
		}
	}
}

func TestTrainTestSplitSmall(t *testing.T) {
	train, test := TrainTestSplit(2, 0.2, 1)
	if len(train) != 1 || len(test) != 1 {
		t.Fatalf("expected 1/1 split, got %d/%d", len(train), len(test))
	}
}
