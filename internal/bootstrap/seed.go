package bootstrap

import (
	"github.com/oneceylon/oneceylon/internal/model"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Role{},
		&model.User{},
		&model.Tag{},
		&model.Question{},
		&model.Answer{},
		&model.Vote{},
		&model.ReputationEntry{},
		&model.Badge{},
		&model.UserBadge{},
		&model.BadgeProgress{},
		&model.UserTagScore{},
		&model.UserTagBadge{},
		&model.TagBadgeActivity{},
		&model.TagBadgeTierConfig{},
		&model.QualityStrike{},
		&model.QuestionQualityMetrics{},
		&model.QualityBan{},
		&model.QualityBanConfig{},
		&model.RateLimitAction{},
		&model.RateLimitConfig{},
		&model.CloseReason{},
		&model.QuestionCloseVote{},
		&model.QuestionReopenVote{},
		&model.ClosureConfig{},
		&model.AutoCloseLog{},
		&model.Notification{},
	)
}

func SeedRoles(db *gorm.DB) error {
	defaultRoles := []model.Role{
		{Name: "admin", Description: "Super administrator"},
		{Name: "moderator", Description: "Community moderator"},
		{Name: "member", Description: "Regular member"},
	}

	for _, role := range defaultRoles {
		var count int64
		if err := db.Model(&model.Role{}).
			Where("name = ?", role.Name).
			Count(&count).Error; err != nil {
			return err
		}

		if count == 0 {
			if err := db.Create(&role).Error; err != nil {
				return err
			}
		}
	}

	return nil
}

func SeedBadges(db *gorm.DB) error {
	defaultBadges := []model.Badge{
		{Name: model.BadgeAyubowan, Description: "Verify your email and fill in your bio or home country"},
		{Name: model.BadgeFirstLanding, Description: "Ask your first question and have it well received"},
		{Name: model.BadgeRiceAndCurry, Description: "Cast 10 upvotes on other people's content"},
		{Name: model.BadgeSnapshot, Description: "Post content with an image that reaches a score of 5"},
		{Name: model.BadgePearlDiver, Description: "Reach 1000 reputation"},
	}

	for _, badge := range defaultBadges {
		var count int64
		if err := db.Model(&model.Badge{}).
			Where("name = ?", badge.Name).
			Count(&count).Error; err != nil {
			return err
		}

		if count == 0 {
			if err := db.Create(&badge).Error; err != nil {
				return err
			}
		}
	}

	return nil
}

func SeedTagBadgeTiers(db *gorm.DB) error {
	defaultTiers := []model.TagBadgeTierConfig{
		{Tier: model.TierBronze, MinScore: 100, MinAcceptedAnswers: 2},
		{Tier: model.TierSilver, MinScore: 400, MinAcceptedAnswers: 10},
		{Tier: model.TierGold, MinScore: 1000, MinAcceptedAnswers: 25, FreshnessDays: 90, FreshnessPoints: 50},
	}

	for _, tier := range defaultTiers {
		var count int64
		if err := db.Model(&model.TagBadgeTierConfig{}).
			Where("tier = ?", tier.Tier).
			Count(&count).Error; err != nil {
			return err
		}

		if count == 0 {
			if err := db.Create(&tier).Error; err != nil {
				return err
			}
		}
	}

	return nil
}

func SeedQualityBanConfig(db *gorm.DB) error {
	var count int64
	if err := db.Model(&model.QualityBanConfig{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	return db.Create(&model.QualityBanConfig{
		DownvoteStrikeValue: 0.5,
		ClosedStrikeValue:   2,
		DeletedStrikeValue:  3,
		WarningThreshold:    3,
		WeekThreshold:       5,
		MonthThreshold:      8,
		PermanentThreshold:  12,
		ImprovementMinScore: 0,
	}).Error
}

func SeedRateLimitConfigs(db *gorm.DB) error {
	var count int64
	if err := db.Model(&model.RateLimitConfig{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	lowRepCeiling := 200

	defaults := []model.RateLimitConfig{
		// low-reputation users get both a burst window and a daily cap on votes
		{ActionType: model.ActionVote, MinReputation: 0, MaxReputation: &lowRepCeiling, MaxActions: 5, TimeWindowMinutes: 15},
		{ActionType: model.ActionVote, MinReputation: 0, MaxReputation: &lowRepCeiling, MaxActions: 20, TimeWindowMinutes: 24 * 60},
		{ActionType: model.ActionVote, MinReputation: 201, MaxActions: 40, TimeWindowMinutes: 60},
		{ActionType: model.ActionQuestion, MinReputation: 0, MaxReputation: &lowRepCeiling, MaxActions: 3, TimeWindowMinutes: 24 * 60},
		{ActionType: model.ActionQuestion, MinReputation: 201, MaxActions: 10, TimeWindowMinutes: 24 * 60},
		{ActionType: model.ActionAnswer, MinReputation: 0, MaxReputation: &lowRepCeiling, MaxActions: 10, TimeWindowMinutes: 24 * 60},
		{ActionType: model.ActionCloseVote, MinReputation: 0, MaxActions: 24, TimeWindowMinutes: 24 * 60},
	}

	return db.Create(&defaults).Error
}

func SeedCloseReasons(db *gorm.DB) error {
	defaultReasons := []model.CloseReason{
		{Key: model.CloseReasonDuplicate, Label: "Duplicate", Description: "This question has already been asked and answered"},
		{Key: model.CloseReasonOffTopic, Label: "Off-topic", Description: "This question is not about the site's subject matter"},
		{Key: model.CloseReasonLowQuality, Label: "Low quality", Description: "This question needs more detail or clarity"},
		{Key: model.CloseReasonSpam, Label: "Spam", Description: "This question exists to promote a product or service"},
		{Key: model.CloseReasonOpinion, Label: "Opinion-based", Description: "This question invites opinions rather than facts"},
	}

	for _, reason := range defaultReasons {
		var count int64
		if err := db.Model(&model.CloseReason{}).
			Where("key = ?", reason.Key).
			Count(&count).Error; err != nil {
			return err
		}

		if count == 0 {
			if err := db.Create(&reason).Error; err != nil {
				return err
			}
		}
	}

	return nil
}

func SeedClosureConfig(db *gorm.DB) error {
	var count int64
	if err := db.Model(&model.ClosureConfig{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	return db.Create(&model.ClosureConfig{
		CloseVotesRequired:      3,
		ReopenVotesRequired:     3,
		GoldBadgeHammerEnabled:  true,
		AutoCloseEnabled:        true,
		AutoCloseScoreThreshold: -5,
		CloseVoteAgingDays:      14,
	}).Error
}

// SeedAll runs every seeder in dependency order.
func SeedAll(db *gorm.DB) error {
	seeders := []func(*gorm.DB) error{
		SeedRoles,
		SeedBadges,
		SeedTagBadgeTiers,
		SeedQualityBanConfig,
		SeedRateLimitConfigs,
		SeedCloseReasons,
		SeedClosureConfig,
	}

	for _, seed := range seeders {
		if err := seed(db); err != nil {
			return err
		}
	}
	return nil
}
