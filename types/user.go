package types

import "time"

// Roles a user account can hold. New accounts default to RolePlayer.
const (
	RolePlayer     = "player"
	RoleScout      = "scout"
	RoleFederation = "federation"
	RoleAdmin      = "admin"
)

// Field positions a player profile can declare. The empty string means
// the player has not set one yet.
const (
	PositionGoalkeeper = "Goalkeeper"
	PositionDefender   = "Defender"
	PositionMidfielder = "Midfielder"
	PositionForward    = "Forward"
)

// User represents an account in the system: identity and credentials
// for every role, plus the scouting profile fields players fill in.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Name is the user's display or full name.
	Name string `json:"name" db:"name"`

	// Email is the user's email address, stored lowercased and unique
	// across all accounts. Search results clear it before encoding.
	Email string `json:"email,omitempty" db:"email"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// Role indicates the user's place in the system: player, scout,
	// federation, or admin.
	Role string `json:"role" db:"role"`

	// Position is the player's field position, empty when unset.
	Position string `json:"position" db:"position"`

	// Age in years. Nil when the player has not provided it.
	Age *int `json:"age,omitempty" db:"age"`

	// Height in centimeters.
	Height *int `json:"height,omitempty" db:"height"`

	// Weight in kilograms.
	Weight *int `json:"weight,omitempty" db:"weight"`

	// DominantFoot is "Left", "Right", "Both", or empty when unset.
	DominantFoot string `json:"dominantFoot" db:"dominant_foot"`

	// Team is the club or academy the player currently belongs to.
	Team string `json:"team" db:"team"`

	// Location is where the player is based.
	Location Location `json:"location" db:"location"`

	// Skills holds the player's self-reported skill ratings.
	Skills Skills `json:"skills" db:"skills"`

	// Bio is a short free-text introduction, at most 500 characters.
	Bio string `json:"bio" db:"bio"`

	// ProfileImage is the object key of the player's profile picture,
	// empty when none has been uploaded.
	ProfileImage string `json:"profileImage" db:"profile_image"`

	// IsVerified reports whether a federation has confirmed the
	// player's identity.
	IsVerified bool `json:"isVerified" db:"is_verified"`

	// CreatedAt is the timestamp when the account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Location is the city and country a player is based in.
type Location struct {
	City    string `json:"city,omitempty"`
	Country string `json:"country,omitempty"`
}

// Skills holds per-category ratings on a 1-100 scale. Nil means the
// player has not rated that category.
type Skills struct {
	Pace      *int `json:"pace,omitempty"`
	Shooting  *int `json:"shooting,omitempty"`
	Passing   *int `json:"passing,omitempty"`
	Dribbling *int `json:"dribbling,omitempty"`
	Defense   *int `json:"defense,omitempty"`
	Physical  *int `json:"physical,omitempty"`
}

// Rating returns the rating for the named category, or nil when the
// name is unknown or the category is unrated.
func (s Skills) Rating(name string) *int {
	switch name {
	case "pace":
		return s.Pace
	case "shooting":
		return s.Shooting
	case "passing":
		return s.Passing
	case "dribbling":
		return s.Dribbling
	case "defense":
		return s.Defense
	case "physical":
		return s.Physical
	default:
		return nil
	}
}

// ProfileUpdate carries a partial profile edit. Nil fields are left
// untouched; Skills and Location replace the stored value wholesale
// when present.
type ProfileUpdate struct {
	Position     *string   `json:"position"`
	Age          *int      `json:"age"`
	Height       *int      `json:"height"`
	Weight       *int      `json:"weight"`
	DominantFoot *string   `json:"dominantFoot"`
	Team         *string   `json:"team"`
	Location     *Location `json:"location"`
	Skills       *Skills   `json:"skills"`
	Bio          *string   `json:"bio"`
}

// PlayerFilter describes a scout's search. Zero values mean "no
// constraint". Skill and MinRating are applied together.
type PlayerFilter struct {
	Position  string
	MinAge    *int
	MaxAge    *int
	Skill     string
	MinRating *int
}

// ValidRole reports whether role is one of the accepted account roles.
func ValidRole(role string) bool {
	switch role {
	case RolePlayer, RoleScout, RoleFederation, RoleAdmin:
		return true
	}
	return false
}

// ValidPosition reports whether position is an accepted field position
// or empty.
func ValidPosition(position string) bool {
	switch position {
	case "", PositionGoalkeeper, PositionDefender, PositionMidfielder, PositionForward:
		return true
	}
	return false
}

// ValidDominantFoot reports whether foot is "Left", "Right", "Both",
// or empty.
func ValidDominantFoot(foot string) bool {
	switch foot {
	case "", "Left", "Right", "Both":
		return true
	}
	return false
}

// SkillNames lists the recognized skill categories, in display order.
func SkillNames() []string {
	return []string{"pace", "shooting", "passing", "dribbling", "defense", "physical"}
}
