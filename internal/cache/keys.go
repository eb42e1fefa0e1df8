package cache

import "fmt"

// GeoUsersKey is the geo index of every user with a known position.
const GeoUsersKey = "geo:users"

// Key prefixes of the daily fixed-window counters.
const (
	SwipeCounterPrefix = "swipe_counter"
	UndoCounterPrefix  = "undo_counter"
)

func KeySwipe(swiperID, swipedID string) string {
	return fmt.Sprintf("swipe:%s:%s", swiperID, swipedID)
}

func KeyUserSwipes(userID string) string { return "user_swipes:" + userID }

func KeyLastSwipe(userID string) string { return "last_swipe:" + userID }

func KeyLikesReceived(userID string) string { return "likes_received:" + userID }

// KeyMatch is the canonical key of the unordered pair (a, b).
func KeyMatch(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("match:%s:%s", a, b)
}

// KeyMatchID points from a match id to its canonical pair key.
func KeyMatchID(matchID string) string { return "match_id:" + matchID }

func KeyUserMatches(userID string) string { return "user_matches:" + userID }

func KeyBoost(userID string) string { return "boost:active:" + userID }

// KeyBoostPending holds a boost whose payment is still in flight.
func KeyBoostPending(userID string) string { return "boost:pending:" + userID }

func KeyBlocks(userID string) string { return "user:blocks:" + userID }

func KeyBlockedBy(userID string) string { return "user:blocked-by:" + userID }

func KeyUserType(userID string) string { return "user:type:" + userID }

func KeyUserAge(userID string) string { return "user:age:" + userID }

func KeyPrefAgeMin(userID string) string { return "user:pref_age_min:" + userID }

func KeyPrefAgeMax(userID string) string { return "user:pref_age_max:" + userID }

func KeyUserTags(userID string) string { return "user:tags:" + userID }

func KeyUserPhotos(userID string) string { return "user:photos:" + userID }

func KeyPopularity(userID string) string { return "popularity:" + userID }

func KeyCompat(viewerID, candidateID string) string {
	return fmt.Sprintf("compat:%s:%s", viewerID, candidateID)
}

// CompatPatterns returns the forward and reverse patterns covering every
// cached score involving userID.
func CompatPatterns(userID string) (forward, reverse string) {
	return fmt.Sprintf("compat:%s:*", userID), fmt.Sprintf("compat:*:%s", userID)
}

func KeyRecommendations(userID string) string { return "ml_recs:" + userID }
