package scoring

import (
	"math"

	"github.com/oggyb/muzz-matching/internal/model"
)

// Factor weights. They sum to 100.
const (
	WeightUserType = 30.0
	WeightDistance = 20.0
	WeightAge      = 15.0
	WeightTags     = 20.0
	WeightBehavior = 15.0
)

// Behavior stages by the viewer's total swipe count.
const (
	ColdStartThreshold = 20
	WarmStartThreshold = 50
)

// Preferred age range applied when the viewer has not set one.
const (
	DefaultAgeMin = 18
	DefaultAgeMax = 99
)

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func userTypeScore(viewerType, candidateType string) float64 {
	if viewerType == "" || candidateType == "" {
		return WeightUserType * 0.5
	}
	if complementary(viewerType, candidateType) {
		return WeightUserType
	}
	return WeightUserType * 0.3
}

func complementary(a, b string) bool {
	return (a == model.UserTypeSugarDaddy && b == model.UserTypeSugarBaby) ||
		(a == model.UserTypeSugarBaby && b == model.UserTypeSugarDaddy)
}

// distanceScore is a non-increasing step function of km. ok is false when
// either user has no position.
func distanceScore(km float64, ok bool) float64 {
	if !ok {
		return WeightDistance * 0.5
	}
	switch {
	case km <= 10:
		return WeightDistance
	case km <= 25:
		return WeightDistance * 0.85
	case km <= 50:
		return WeightDistance * 0.7
	case km <= 100:
		return WeightDistance * 0.5
	case km <= 200:
		return WeightDistance * 0.3
	default:
		return WeightDistance * 0.1
	}
}

func ageScore(viewerAge, candidateAge *int, prefMin, prefMax int) float64 {
	if viewerAge == nil || candidateAge == nil {
		return WeightAge * 0.5
	}
	age := *candidateAge
	if age >= prefMin && age <= prefMax {
		return WeightAge
	}
	diff := prefMin - age
	if age > prefMax {
		diff = age - prefMax
	}
	switch {
	case diff <= 3:
		return WeightAge * 0.7
	case diff <= 5:
		return WeightAge * 0.4
	default:
		return WeightAge * 0.1
	}
}

func tagScore(viewerTags, candidateTags []model.Tag) float64 {
	if len(viewerTags) == 0 || len(candidateTags) == 0 {
		return WeightTags * 0.5
	}
	ratio := float64(CommonTags(viewerTags, candidateTags)) /
		float64(min(len(viewerTags), len(candidateTags)))
	return round2(WeightTags * math.Min(ratio*1.5, 1))
}

// CommonTags counts candidate tags whose id is also in viewer.
func CommonTags(viewer, candidate []model.Tag) int {
	ids := make(map[string]struct{}, len(viewer))
	for _, t := range viewer {
		ids[t.ID] = struct{}{}
	}
	n := 0
	for _, t := range candidate {
		if _, ok := ids[t.ID]; ok {
			n++
		}
	}
	return n
}

// behaviorScore blends candidate popularity (0..100) with the ML score
// (nil when unavailable) according to the viewer's stage.
func behaviorScore(swipeCount int64, popularity float64, ml *float64) float64 {
	popScore := WeightBehavior * math.Min(math.Max(popularity, 0)/100, 1)

	if swipeCount < ColdStartThreshold || ml == nil {
		return round2(popScore)
	}
	mlScore := math.Min(math.Max(*ml, 0), 1)

	if swipeCount < WarmStartThreshold {
		t := float64(swipeCount-ColdStartThreshold) / float64(WarmStartThreshold-ColdStartThreshold)
		return round2((1-t)*popScore + t*WeightBehavior*mlScore)
	}

	baseline := WeightBehavior * 0.5
	return round2(WeightBehavior*mlScore*0.6 + baseline*0.3 + popScore*0.1)
}

// Total sums the five factors.
func Total(b model.Breakdown) float64 {
	return round2(b.UserTypeMatch + b.DistanceScore + b.AgeScore + b.TagScore + b.BehaviorScore)
}
