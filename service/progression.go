package service

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"churnguard/dataset"
)

const (
	bucketWidth = 12
	bucketCount = 6
)

// TenureBucket is the churn rate of customers whose tenure falls in Group.
type TenureBucket struct {
	Group     string `json:"tenure_group"`
	Rate      string `json:"churn_rate"`
	Customers int    `json:"-"`
	Churned   int    `json:"-"`
}

// TenureGroups lists the bucket labels in order: 0-12, 13-24, ... 61-72.
func TenureGroups() []string {
	groups := make([]string, bucketCount)
	for i := range groups {
		lo := i*bucketWidth + 1
		if i == 0 {
			lo = 0
		}
		groups[i] = fmt.Sprintf("%d-%d", lo, (i+1)*bucketWidth)
	}
	return groups
}

// tenureBucket places tenure in (12(i-1), 12i], with 0 in the first bucket.
// Values outside [0, 72] have no bucket.
func tenureBucket(tenure float64) int {
	if tenure < 0 || tenure > bucketWidth*bucketCount || math.IsNaN(tenure) {
		return -1
	}
	if tenure <= bucketWidth {
		return 0
	}
	return int(math.Ceil(tenure/bucketWidth)) - 1
}

// ChurnProgression re-reads the dataset and reports the churn rate per tenure
// bucket. It does not need the fitted model.
func (s *Service) ChurnProgression(ctx context.Context) ([]TenureBucket, error) {
	key := s.source.Name()
	if s.progression != nil {
		if cached, ok := s.progression.Get(key); ok {
			return cached, nil
		}
	}

	ds, err := s.source.Load(ctx)
	if err != nil {
		s.log.Warn("churn progression: dataset unavailable", zap.Error(err))
		return nil, dataErr(err)
	}
	buckets, err := progression(ds, s.opts.TenureColumn)
	if err != nil {
		return nil, err
	}
	if s.progression != nil {
		s.progression.Add(key, buckets)
	}
	return buckets, nil
}

func progression(ds *dataset.Dataset, tenureColumn string) ([]TenureBucket, error) {
	buckets := make([]TenureBucket, bucketCount)
	for i, group := range TenureGroups() {
		buckets[i].Group = group
	}
	seen := false
	for i, row := range ds.Rows {
		tenure, ok := dataset.Float(row[tenureColumn])
		if !ok {
			continue
		}
		seen = true
		b := tenureBucket(tenure)
		if b < 0 {
			continue
		}
		buckets[b].Customers++
		buckets[b].Churned += ds.Labels[i]
	}
	if !seen {
		return nil, newError(KindInternal, "dataset has no numeric %q column", tenureColumn)
	}
	for i := range buckets {
		rate := 0.0
		if buckets[i].Customers > 0 {
			rate = float64(buckets[i].Churned) / float64(buckets[i].Customers)
		}
		buckets[i].Rate = fmt.Sprintf("%.2f%%", rate*100)
	}
	return buckets, nil
}
