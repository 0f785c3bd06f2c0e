// Package models holds the persisted and wire-facing shapes shared across the
// repository, scheduler, and API layers.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Profile is the canonical user view exposed at the API boundary. It is
// constructed on hub fetch and on DB read, and is never mutated in place.
type Profile struct {
	FID            uint64  `json:"fid"`
	Username       *string `json:"username,omitempty"`
	DisplayName    *string `json:"display_name,omitempty"`
	Bio            *string `json:"bio,omitempty"`
	URL            *string `json:"url,omitempty"`
	ProfilePicture *string `json:"profile_picture,omitempty"`
}

// User is the persisted form of Profile. fid is stored signed (same bit
// pattern as the unsigned wire form).
type User struct {
	FID         int64
	Username    *string
	DisplayName *string
	Bio         *string
	URL         *string
	ProfilePic  *string
}

// EmptyUser builds a placeholder row used to satisfy foreign-key constraints
// before the real profile has been fetched.
func EmptyUser(fid int64) User {
	return User{FID: fid}
}

// UserFromProfile converts a hub profile into its persisted form.
func UserFromProfile(p Profile) User {
	return User{
		FID:         int64(p.FID),
		Username:    p.Username,
		DisplayName: p.DisplayName,
		Bio:         p.Bio,
		URL:         p.URL,
		ProfilePic:  p.ProfilePicture,
	}
}

// ProfileFromUser converts a persisted row back into the wire shape.
func ProfileFromUser(u User) Profile {
	return Profile{
		FID:            uint64(u.FID),
		Username:       u.Username,
		DisplayName:    u.DisplayName,
		Bio:            u.Bio,
		URL:            u.URL,
		ProfilePicture: u.ProfilePic,
	}
}

// Signer is an (pk, fid, active) triple. active=false denotes a revoked
// signer. pk is the primary key.
type Signer struct {
	PK     []byte
	FID    int64
	Active bool
}

// Link is a directed follow edge, primary keyed by (fid, target).
type Link struct {
	FID       int64
	Target    int64
	Timestamp time.Time
}

// Notification is the reserved, unused-by-live-paths row kept for schema
// parity with the original source. No operation in this repository writes
// to the notifications table.
type Notification struct {
	ID               uuid.UUID
	FID              int64
	NotificationType int32
	NotificationData []byte
	Created          time.Time
	Viewed           bool
}
