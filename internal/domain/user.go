package domain

import "time"

type User struct {
	ID                UserID     `gorm:"type:uuid;primaryKey" db:"id" json:"id"`
	Email             string     `gorm:"type:text;not null;uniqueIndex:ux_users_email" db:"email" json:"email"`
	EmailVerifiedAt   *time.Time `db:"email_verified_at" json:"emailVerifiedAt,omitempty"`
	CommunityVerified bool       `gorm:"not null;default:false" db:"community_verified" json:"communityVerified"`
	IsAdmin           bool       `gorm:"not null;default:false" db:"is_admin" json:"isAdmin"`
	CreatedAt         time.Time  `gorm:"not null" db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time  `gorm:"not null" db:"updated_at" json:"updatedAt"`
}

func (User) TableName() string { return "users" }

func (u *User) Flags() RoleFlags {
	return RoleFlags{CommunityVerified: u.CommunityVerified, IsAdmin: u.IsAdmin}
}

// RoleFlags are the role bits decided by the geofence/role resolver.
// Both bits only ever move from false to true.
type RoleFlags struct {
	CommunityVerified bool
	IsAdmin           bool
}

// Merge returns the union of f and o.
func (f RoleFlags) Merge(o RoleFlags) RoleFlags {
	return RoleFlags{
		CommunityVerified: f.CommunityVerified || o.CommunityVerified,
		IsAdmin:           f.IsAdmin || o.IsAdmin,
	}
}

// Gains reports the bits set in f that are not yet set in current.
func (f RoleFlags) Gains(current RoleFlags) RoleFlags {
	return RoleFlags{
		CommunityVerified: f.CommunityVerified && !current.CommunityVerified,
		IsAdmin:           f.IsAdmin && !current.IsAdmin,
	}
}

func (f RoleFlags) Any() bool { return f.CommunityVerified || f.IsAdmin }
