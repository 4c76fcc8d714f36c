package auth

import "time"

// Levels of access. Higher levels administer lower ones.
const (
	LevelMember    = 0
	LevelTrusted   = 1
	LevelOrganizer = 2
	LevelAdmin     = 3
)

// PublicOrgID is the reserved organisation every self-registered user joins.
// It always exists and can never be deleted.
const PublicOrgID = "org:public"

// User is a human account. UserID is the unique business key; Email is unique
// as well. A user always belongs to exactly one organisation.
type User struct {
	UserID        string    `json:"user_id"`
	Email         string    `json:"email"`
	UserName      string    `json:"user_name,omitempty"`
	MemberOf      string    `json:"member_of"`
	LevelOfAccess int       `json:"level_of_access"`
	PasswordHash  string    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Organisation groups users. Membership is derived by querying users, never
// stored redundantly.
type Organisation struct {
	OrgID     string    `json:"organisation_id"`
	Name      string    `json:"organisation_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Token is a persisted session token. The signed artifact handed to clients
// carries TokenID as its subject; deleting the row revokes the session.
type Token struct {
	TokenID   string    `json:"token_uuid"`
	UserID    string    `json:"issued_by"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Device    string    `json:"device,omitempty"`
	Location  string    `json:"location,omitempty"`
}

// InviteCode gates signup. Redeeming it places the new user into AddTo and
// increments NumRegistered.
type InviteCode struct {
	Code          string    `json:"code"`
	IssuerID      string    `json:"issuer_id"`
	AddTo         string    `json:"add_to"`
	NumRegistered int       `json:"num_registered"`
	CreatedAt     time.Time `json:"created_at"`
}

// UserUpdate describes a partial user mutation. Nil fields are left untouched.
type UserUpdate struct {
	UserID   *string
	UserName *string
	Email    *string
	MemberOf *string
	Level    *int
}

// OrgUpdate describes a partial organisation mutation.
type OrgUpdate struct {
	OrgID *string
	Name  *string
}
