package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oggyb/muzz-matching/internal/model"
)

func ptr[T any](v T) *T { return &v }

func tags(ids ...string) []model.Tag {
	out := make([]model.Tag, len(ids))
	for i, id := range ids {
		out[i] = model.Tag{ID: id}
	}
	return out
}

func TestUserTypeScore(t *testing.T) {
	assert.Equal(t, 30.0, userTypeScore(model.UserTypeSugarDaddy, model.UserTypeSugarBaby))
	assert.Equal(t, 30.0, userTypeScore(model.UserTypeSugarBaby, model.UserTypeSugarDaddy))
	assert.Equal(t, 9.0, userTypeScore(model.UserTypeSugarBaby, model.UserTypeSugarBaby))
	assert.Equal(t, 15.0, userTypeScore("", model.UserTypeSugarBaby))
}

func TestDistanceScoreSteps(t *testing.T) {
	cases := []struct {
		km   float64
		want float64
	}{
		{0, 20}, {10, 20}, {15, 17}, {25, 17}, {40, 14}, {100, 10}, {150, 6}, {201, 2}, {5000, 2},
	}
	for _, c := range cases {
		assert.InDelta(t, c.want, distanceScore(c.km, true), 1e-9, "km=%v", c.km)
	}
	assert.Equal(t, 10.0, distanceScore(0, false))
}

func TestDistanceScoreIsNonIncreasing(t *testing.T) {
	prev := distanceScore(0, true)
	for km := 0.0; km <= 600; km += 0.5 {
		s := distanceScore(km, true)
		assert.LessOrEqual(t, s, prev, "km=%v", km)
		prev = s
	}
	assert.Equal(t, distanceScore(42, true), distanceScore(42, true))
}

func TestAgeScore(t *testing.T) {
	assert.Equal(t, 15.0, ageScore(ptr(30), ptr(25), 18, 35))
	assert.InDelta(t, 10.5, ageScore(ptr(30), ptr(38), 18, 35), 1e-9)
	assert.InDelta(t, 6.0, ageScore(ptr(30), ptr(40), 18, 35), 1e-9)
	assert.InDelta(t, 1.5, ageScore(ptr(30), ptr(50), 18, 35), 1e-9)
	assert.InDelta(t, 10.5, ageScore(ptr(30), ptr(20), 23, 35), 1e-9)
	assert.Equal(t, 7.5, ageScore(nil, ptr(25), 18, 35))
	assert.Equal(t, 7.5, ageScore(ptr(25), nil, 18, 35))
}

func TestTagScore(t *testing.T) {
	assert.Equal(t, 10.0, tagScore(nil, tags("a")))
	assert.Equal(t, 10.0, tagScore(tags("a"), []model.Tag{}))

	// no overlap contributes nothing once both sides have tags
	assert.Equal(t, 0.0, tagScore(tags("a", "b"), tags("c", "d")))

	// ratio 1/2 → 20 × 0.75
	assert.Equal(t, 15.0, tagScore(tags("a", "b"), tags("a", "c", "d")))

	// ratio ≥ 2/3 is capped at the full weight
	assert.Equal(t, 20.0, tagScore(tags("a", "b", "c"), tags("a", "b", "x")))
	assert.Equal(t, 20.0, tagScore(tags("a"), tags("a", "b", "c")))
}

func TestBehaviorScoreStages(t *testing.T) {
	// cold: popularity only
	assert.Equal(t, 6.0, behaviorScore(5, 40, ptr(1.0)))
	assert.Equal(t, 15.0, behaviorScore(0, 250, nil))

	// warm without ML stays on popularity
	assert.Equal(t, 6.0, behaviorScore(35, 40, nil))
	// warm halfway between popularity 0 and ML 1
	assert.Equal(t, 7.5, behaviorScore(35, 0, ptr(1.0)))
	// warm at the lower edge is pure popularity
	assert.Equal(t, 6.0, behaviorScore(20, 40, ptr(1.0)))

	// hot: 0.6·ML + 0.3·baseline + 0.1·popularity
	assert.Equal(t, 12.75, behaviorScore(60, 100, ptr(1.0)))
	// ML clamped to [0,1]
	assert.Equal(t, 12.75, behaviorScore(60, 100, ptr(7.0)))
	assert.Equal(t, 3.75, behaviorScore(60, 100, ptr(-2.0)))
	// hot without ML falls back to popularity
	assert.Equal(t, 6.0, behaviorScore(80, 40, nil))
}

func TestComponentsStayWithinWeights(t *testing.T) {
	for _, count := range []int64{0, 19, 20, 35, 49, 50, 500} {
		for _, pop := range []float64{-5, 0, 50, 100, 1000} {
			for _, ml := range []*float64{nil, ptr(-1.0), ptr(0.3), ptr(1.0), ptr(3.0)} {
				s := behaviorScore(count, pop, ml)
				assert.GreaterOrEqual(t, s, 0.0)
				assert.LessOrEqual(t, s, WeightBehavior)
			}
		}
	}

	maxed := model.Breakdown{
		UserTypeMatch: userTypeScore(model.UserTypeSugarDaddy, model.UserTypeSugarBaby),
		DistanceScore: distanceScore(0, true),
		AgeScore:      ageScore(ptr(30), ptr(30), 18, 99),
		TagScore:      tagScore(tags("a"), tags("a")),
		BehaviorScore: behaviorScore(100, 100, ptr(1.0)),
	}
	assert.LessOrEqual(t, Total(maxed), 100.0)
}

func TestTotal(t *testing.T) {
	b := model.Breakdown{UserTypeMatch: 30, DistanceScore: 17, AgeScore: 15, TagScore: 10, BehaviorScore: 6}
	assert.Equal(t, 78.0, Total(b))
}
