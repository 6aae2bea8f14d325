package gamificationtypes

// UserID identifies a participant. Values are opaque to the service.
type UserID string

// AttemptID identifies a single quiz attempt. Values are opaque to the service.
type AttemptID string

func (u UserID) String() string    { return string(u) }
func (a AttemptID) String() string { return string(a) }

// BadgeKind is one member of the closed set of achievements a user can hold.
type BadgeKind string

const (
	BadgeBronze       BadgeKind = "BRONZE"
	BadgeSilver       BadgeKind = "SILVER"
	BadgeGold         BadgeKind = "GOLD"
	BadgeFirstSuccess BadgeKind = "FIRST_SUCCESS"
	BadgeSpecialValue BadgeKind = "SPECIAL_VALUE"
)

// AllBadgeKinds lists every badge kind in canonical order.
var AllBadgeKinds = []BadgeKind{
	BadgeBronze,
	BadgeSilver,
	BadgeGold,
	BadgeFirstSuccess,
	BadgeSpecialValue,
}

// Valid reports whether k is a known badge kind.
func (k BadgeKind) Valid() bool {
	return k.rank() >= 0
}

func (k BadgeKind) rank() int {
	for i, known := range AllBadgeKinds {
		if known == k {
			return i
		}
	}
	return -1
}

// SortBadgeKinds returns the distinct valid kinds of in, in canonical order.
func SortBadgeKinds(in []BadgeKind) []BadgeKind {
	seen := make(map[BadgeKind]struct{}, len(in))
	for _, k := range in {
		seen[k] = struct{}{}
	}
	out := make([]BadgeKind, 0, len(seen))
	for _, k := range AllBadgeKinds {
		if _, ok := seen[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// UserGameStats is the aggregate of a user's score events and badge grants.
// It is always derived from the ledgers and never stored.
type UserGameStats struct {
	UserID     UserID      `json:"userId"`
	TotalScore int         `json:"score"`
	Badges     []BadgeKind `json:"badges"`
}

// EmptyStats returns the aggregate for a user with no history.
func EmptyStats(userID UserID) UserGameStats {
	return UserGameStats{UserID: userID, TotalScore: 0, Badges: []BadgeKind{}}
}

// HasBadge reports whether the aggregate contains kind.
func (s UserGameStats) HasBadge(kind BadgeKind) bool {
	for _, k := range s.Badges {
		if k == kind {
			return true
		}
	}
	return false
}

// OutcomeResult is what the engine produces for one outcome notification.
// NewBadges holds the kinds granted by this call. AwardedBadges holds every
// kind ever granted for this attempt, so a redelivery still reports them.
type OutcomeResult struct {
	Stats         UserGameStats
	NewBadges     []BadgeKind
	AwardedBadges []BadgeKind
}

// LeaderboardRow is one ranked entry of the leaderboard.
type LeaderboardRow struct {
	UserID     UserID `json:"userId"`
	TotalScore int    `json:"totalScore"`
}

// AttemptOperands carries the two factors of the original attempt.
type AttemptOperands struct {
	AttemptID AttemptID
	OperandA  int
	OperandB  int
}
