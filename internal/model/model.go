package model

import "time"

// SwipeAction is the direction a swiper chose for a candidate.
type SwipeAction string

const (
	ActionLike      SwipeAction = "like"
	ActionPass      SwipeAction = "pass"
	ActionSuperLike SwipeAction = "super_like"
)

// Valid reports whether the action is one of the known swipe actions.
func (a SwipeAction) Valid() bool {
	switch a {
	case ActionLike, ActionPass, ActionSuperLike:
		return true
	}
	return false
}

// Positive is true for like and super_like.
func (a SwipeAction) Positive() bool {
	return a == ActionLike || a == ActionSuperLike
}

// MatchStatus is the lifecycle state of a MatchRecord.
type MatchStatus string

const (
	MatchActive    MatchStatus = "active"
	MatchUnmatched MatchStatus = "unmatched"
	MatchBlocked   MatchStatus = "blocked"
)

// User types on the two sides of the matching relationship.
const (
	UserTypeSugarDaddy = "sugar_daddy"
	UserTypeSugarBaby  = "sugar_baby"
)

const VerificationVerified = "verified"

// SwipeRecord is one directional decision. At most one exists per (SwiperID, SwipedID).
type SwipeRecord struct {
	SwiperID  string      `json:"swiperId"`
	SwipedID  string      `json:"swipedId"`
	Action    SwipeAction `json:"action"`
	CreatedAt time.Time   `json:"createdAt"`
}

// MatchRecord is created once per unordered pair on the first mutual like.
type MatchRecord struct {
	ID        string      `json:"id"`
	UserAID   string      `json:"userAId"`
	UserBID   string      `json:"userBId"`
	MatchedAt time.Time   `json:"matchedAt"`
	Status    MatchStatus `json:"status"`
}

// Involves reports whether userID is one of the two participants.
func (m MatchRecord) Involves(userID string) bool {
	return m.UserAID == userID || m.UserBID == userID
}

// BoostRecord is a paid, time-limited discovery boost.
type BoostRecord struct {
	UserID      string    `json:"userId"`
	StartedAt   time.Time `json:"startedAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
	DiamondCost int64     `json:"diamondCost"`
	// Pending is set while the boost is reserved but not paid yet.
	Pending bool `json:"pending,omitempty"`
}

// Tag is an interest tag attached to a profile.
type Tag struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Breakdown holds the five compatibility factors.
type Breakdown struct {
	UserTypeMatch float64 `json:"userTypeMatch"`
	DistanceScore float64 `json:"distanceScore"`
	AgeScore      float64 `json:"ageScore"`
	TagScore      float64 `json:"tagScore"`
	BehaviorScore float64 `json:"behaviorScore"`
}

// Card is the lightweight profile projection served by the profile directory.
type Card struct {
	ID                 string    `json:"id"`
	Username           string    `json:"username,omitempty"`
	DisplayName        string    `json:"displayName"`
	Bio                string    `json:"bio,omitempty"`
	AvatarURL          string    `json:"avatarUrl,omitempty"`
	UserType           string    `json:"userType,omitempty"`
	VerificationStatus string    `json:"verificationStatus,omitempty"`
	LastActiveAt       time.Time `json:"lastActiveAt"`
	City               string    `json:"city,omitempty"`
	Distance           *float64  `json:"distance,omitempty"`
}

// EnhancedCard is a Card decorated with matching signals for one viewer.
type EnhancedCard struct {
	Card
	Age                *int    `json:"age,omitempty"`
	CompatibilityScore float64 `json:"compatibilityScore"`
	CommonTagCount     int     `json:"commonTagCount"`
	IsBoosted          bool    `json:"isBoosted"`
	Tags               []Tag   `json:"tags"`
}

// Post is a preview of a user's recent content.
type Post struct {
	ID        string    `json:"id"`
	Caption   string    `json:"caption,omitempty"`
	MediaURL  string    `json:"mediaUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// CardDetail is the full profile view of one candidate.
type CardDetail struct {
	EnhancedCard
	Photos         []string  `json:"photos"`
	RecentPosts    []Post    `json:"recentPosts"`
	ScoreBreakdown Breakdown `json:"scoreBreakdown"`
}

// Recommendation is one entry from the external recommendation model.
type Recommendation struct {
	UserID string  `json:"userId"`
	Score  float64 `json:"score"`
}

// Tier is a user's subscription tier.
type Tier struct {
	IsSubscriber bool   `json:"isSubscriber"`
	TierName     string `json:"tierName"`
}
