package db

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/muzz-matching/internal/cache"
	"github.com/oggyb/muzz-matching/internal/model"
)

// seedCity is a demo city and the position profiles are scattered around.
type seedCity struct {
	Name     string
	Lon, Lat float64
}

var seedCities = []seedCity{
	{"London", -0.1276, 51.5072},
	{"Manchester", -2.2426, 53.4808},
	{"Birmingham", -1.8904, 52.4862},
	{"Leeds", -1.5491, 53.8008},
	{"Bristol", -2.5879, 51.4545},
}

var seedTags = []model.Tag{
	{ID: "travel", Name: "Travel"},
	{ID: "fine-dining", Name: "Fine dining"},
	{ID: "art", Name: "Art"},
	{ID: "fitness", Name: "Fitness"},
	{ID: "wine", Name: "Wine"},
	{ID: "music", Name: "Music"},
	{ID: "fashion", Name: "Fashion"},
	{ID: "sailing", Name: "Sailing"},
}

// SeedProfiles resets the profiles table and inserts n demo profiles,
// alternating the two user types. Returns the inserted rows.
//
// Compatible with both MySQL and SQLite.
func SeedProfiles(db *gorm.DB, n int) ([]Profile, error) {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	if err := db.Exec("DELETE FROM profiles").Error; err != nil {
		return nil, fmt.Errorf("failed to clear profiles: %w", err)
	}
	log.Println("Cleared existing profiles")

	profiles := make([]Profile, 0, n)
	for i := 1; i <= n; i++ {
		userType := model.UserTypeSugarDaddy
		if i%2 == 0 {
			userType = model.UserTypeSugarBaby
		}
		verification := "unverified"
		if r.Intn(100) < 40 {
			verification = model.VerificationVerified
		}
		profiles = append(profiles, Profile{
			ID:                 fmt.Sprintf("user-%d", i),
			Username:           fmt.Sprintf("user%d", i),
			DisplayName:        fmt.Sprintf("User %d", i),
			Bio:                fmt.Sprintf("Bio for user %d", i),
			AvatarURL:          fmt.Sprintf("https://cdn.example.com/avatars/%d.jpg", i),
			UserType:           userType,
			VerificationStatus: verification,
			City:               seedCities[r.Intn(len(seedCities))].Name,
			Active:             true,
			LastActiveAt:       time.Now().Add(-time.Duration(r.Intn(72)) * time.Hour),
		})
	}

	if err := db.Clauses(clause.OnConflict{UpdateAll: true}).CreateInBatches(&profiles, 100).Error; err != nil {
		return nil, fmt.Errorf("failed to seed profiles: %w", err)
	}
	log.Printf("Seeded %d profiles.", n)
	return profiles, nil
}

// SeedSignals writes the Redis-side profile signals for profiles: position in
// the geo index, user type, age, preferred age range, tags and photos.
func SeedSignals(ctx context.Context, rc *cache.RedisCache, profiles []Profile) error {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	byName := make(map[string]seedCity, len(seedCities))
	for _, c := range seedCities {
		byName[c.Name] = c
	}

	_, err := rc.Client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, prof := range profiles {
			city := byName[prof.City]
			// within roughly 20km of the city centre
			p.GeoAdd(ctx, cache.GeoUsersKey, &redis.GeoLocation{
				Name:      prof.ID,
				Longitude: city.Lon + (r.Float64()-0.5)*0.6,
				Latitude:  city.Lat + (r.Float64()-0.5)*0.36,
			})

			age := 21 + r.Intn(40)
			p.Set(ctx, cache.KeyUserType(prof.ID), prof.UserType, 0)
			p.Set(ctx, cache.KeyUserAge(prof.ID), strconv.Itoa(age), 0)
			p.Set(ctx, cache.KeyPrefAgeMin(prof.ID), strconv.Itoa(max(18, age-10)), 0)
			p.Set(ctx, cache.KeyPrefAgeMax(prof.ID), strconv.Itoa(age+10), 0)

			tags := make([]model.Tag, 0, 4)
			for _, i := range r.Perm(len(seedTags))[:2+r.Intn(3)] {
				tags = append(tags, seedTags[i])
			}
			tagJSON, err := json.Marshal(tags)
			if err != nil {
				return err
			}
			p.Set(ctx, cache.KeyUserTags(prof.ID), tagJSON, 0)

			photos := []string{prof.AvatarURL}
			for i := 1; i <= r.Intn(4); i++ {
				photos = append(photos, fmt.Sprintf("https://cdn.example.com/photos/%s/%d.jpg", prof.ID, i))
			}
			photoJSON, err := json.Marshal(photos)
			if err != nil {
				return err
			}
			p.Set(ctx, cache.KeyUserPhotos(prof.ID), photoJSON, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to seed signals: %w", err)
	}
	log.Printf("Seeded signals for %d profiles.", len(profiles))
	return nil
}
