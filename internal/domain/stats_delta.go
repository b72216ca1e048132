package domain

// StatsDelta is the incremental adjustment a single review mutation applies
// to a target's statistics. Count, Sum, and the histogram buckets always move
// together; Buckets index 0 holds rating 1.
type StatsDelta struct {
	Count   int
	Sum     int
	Buckets [5]int
}

// IsZero reports whether the delta leaves the statistics unchanged.
func (d StatsDelta) IsZero() bool {
	return d == StatsDelta{}
}

// AddRatingDelta is the adjustment for a rating entering the active set.
func AddRatingDelta(rating int) StatsDelta {
	d := StatsDelta{Count: 1, Sum: rating}
	d.Buckets[rating-1] = 1
	return d
}

// RemoveRatingDelta is the adjustment for a rating leaving the active set.
func RemoveRatingDelta(rating int) StatsDelta {
	d := StatsDelta{Count: -1, Sum: -rating}
	d.Buckets[rating-1] = -1
	return d
}

// ChangeRatingDelta is the adjustment for an active review's rating moving
// from oldRating to newRating. Equal ratings yield a zero delta.
func ChangeRatingDelta(oldRating, newRating int) StatsDelta {
	d := StatsDelta{Sum: newRating - oldRating}
	d.Buckets[oldRating-1]--
	d.Buckets[newRating-1]++
	return d
}

// Apply folds the delta into the statistics.
func (s *RatingStats) Apply(d StatsDelta) {
	s.TotalReviews += d.Count
	s.RatingSum += d.Sum
	for i, b := range d.Buckets {
		s.Distribution[i+1] += b
	}
}
