package db

import (
	"fmt"
	"math/rand/v2"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/campus-match/internal/logger"
	"github.com/oggyb/campus-match/internal/mission"
)

// DemoAdminID is the moderator account printed by the seed command.
const DemoAdminID = "demo-admin"

// SeedTestData resets the matching tables and populates them with demo data.
//
// Behavior:
//  1. Clears messages, matches, notifications, swipes, reports and profiles.
//     The audit log is append-only and left alone.
//  2. Creates 20 approved profiles (10 male, 10 female) across colleges.
//  3. Generates swipes with ~70% right swipes; every 3rd pair is made mutual
//     and gets a match with missions assigned.
//
// Returns the seeded user ids in creation order.
func SeedTestData(db *gorm.DB) ([]string, error) {
	seed := uint64(time.Now().UnixNano())
	r := rand.New(rand.NewPCG(seed, seed>>1))

	// --- Fresh start ---
	for _, table := range []string{"messages", "matches", "notifications", "swipes", "reports", "profiles"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return nil, fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	logger.Info("cleared existing data")

	// --- Seed profiles (10 male, 10 female) ---
	ids := make([]string, 0, 20)
	profiles := make(map[string]*Profile, 20)
	now := time.Now().UTC()
	for i := 1; i <= 20; i++ {
		p := demoProfile(i, r, now)
		if err := db.Create(p).Error; err != nil {
			return nil, fmt.Errorf("failed to seed profile: %w", err)
		}
		ids = append(ids, p.UserID)
		profiles[p.UserID] = p
	}
	logger.Info("seeded profiles", "count", len(ids))

	// --- Seed swipes and matches ---
	swipes, matches := 0, 0
	for _, swiperID := range ids {
		for j := 0; j < 8; j++ {
			swipedID := ids[r.IntN(len(ids))]
			if swipedID == swiperID || !Compatible(&profiles[swiperID].PublicFields, &profiles[swipedID].PublicFields) {
				continue
			}

			dir := DirectionLeft
			if r.IntN(100) < 70 {
				dir = DirectionRight
			}
			mutual := swipes%3 == 0
			if mutual {
				dir = DirectionRight
			}

			if err := insertSwipe(db, swiperID, swipedID, dir, mutual); err != nil {
				return nil, err
			}
			swipes++

			if !mutual {
				continue
			}
			if err := insertSwipe(db, swipedID, swiperID, DirectionRight, true); err != nil {
				return nil, err
			}
			created, err := seedMatch(db, r, swiperID, swipedID)
			if err != nil {
				return nil, err
			}
			if created {
				matches++
			}
		}
	}
	logger.Info("seeded swipes", "swipes", swipes, "matches", matches)

	return ids, nil
}

func demoProfile(i int, r *rand.Rand, now time.Time) *Profile {
	gender, preferred := "Male", "Female"
	if i > 10 {
		gender, preferred = "Female", "Male"
	}
	if i%7 == 0 {
		preferred = PreferenceEveryone
	}

	id := fmt.Sprintf("demo-%02d", i)
	submitted := now.Add(-time.Duration(r.IntN(500)) * time.Hour)
	fields := PublicFields{
		Nickname:        fmt.Sprintf("Student %d", i),
		PhotoURLs:       []string{fmt.Sprintf("/profile-photos/%s/%d-0.jpg", id, submitted.UnixMilli())},
		College:         Colleges[i%len(Colleges)],
		YearLevel:       MinYearLevel + i%4,
		Hobbies:         []string{"music", "basketball", "reading", "coffee"}[:1+i%4],
		Description:     "Just here to meet new people on campus.",
		Gender:          gender,
		PreferredGender: preferred,
	}
	return &Profile{
		UserID:          id,
		EmailHash:       fmt.Sprintf("%064x", i),
		PublicFields:    fields,
		LookingFor:      LookingFor[i%len(LookingFor)],
		Status:          StatusApproved,
		TermsAcceptedAt: &submitted,
		AgeConfirmedAt:  &submitted,
		SubmittedAt:     submitted,
		ReviewedAt:      &now,
		ReviewedBy:      ptr(DemoAdminID),
		Approved:        fields,
		SnapshotAt:      &now,
	}
}

// insertSwipe keeps an existing decision unless force is set; mutual pairs
// force right swipes both ways.
func insertSwipe(db *gorm.DB, swiperID, swipedID string, dir Direction, force bool) error {
	onConflict := clause.OnConflict{DoNothing: true}
	if force {
		onConflict = clause.OnConflict{
			Columns:   []clause.Column{{Name: "swiper_id"}, {Name: "swiped_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"direction"}),
		}
	}
	err := db.Clauses(onConflict).
		Create(&Swipe{SwiperID: swiperID, SwipedID: swipedID, Direction: dir}).Error
	if err != nil {
		return fmt.Errorf("failed to seed swipe: %w", err)
	}
	return nil
}

func seedMatch(db *gorm.DB, r *rand.Rand, a, b string) (bool, error) {
	u1, u2 := SortedPair(a, b)
	missions := mission.Assign(r)
	m := Match{
		User1ID:       u1,
		User2ID:       u2,
		Mission1ID:    missions[0],
		Mission2ID:    missions[1],
		Mission3ID:    missions[2],
		MissionNumber: 1,
	}
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&m)
	if res.Error != nil {
		return false, fmt.Errorf("failed to seed match: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	notes := []Notification{
		{RecipientID: u1, OriginID: u2, Type: NotificationMatch},
		{RecipientID: u2, OriginID: u1, Type: NotificationMatch},
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&notes).Error; err != nil {
		return false, fmt.Errorf("failed to seed notifications: %w", err)
	}
	return true, nil
}

func ptr[T any](v T) *T { return &v }
