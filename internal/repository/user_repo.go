package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"hubgateway/internal/hub"
	"hubgateway/internal/models"
)

// GetUserProfile implements the read-through policy: a DB error is
// treated as a cache miss, not a failure, so the hot path stays available
// when storage is unhealthy.
func (r *Repository) GetUserProfile(ctx context.Context, fid uint64, forceFetch bool) (models.Profile, error) {
	if forceFetch {
		return r.fetchAndStoreProfile(ctx, fid)
	}

	var u models.User
	err := r.Pool.Raw().QueryRow(ctx, `
		SELECT fid, username, display_name, bio, url, profile_pic
		FROM users WHERE fid = $1
	`, int64(fid)).Scan(&u.FID, &u.Username, &u.DisplayName, &u.Bio, &u.URL, &u.ProfilePic)
	if err != nil {
		if r.FailClosedReads && !errors.Is(err, pgx.ErrNoRows) {
			return models.Profile{}, fmt.Errorf("repository: query user fid=%d: %w", fid, err)
		}
		// Miss-like outcome (no row, or any query error): fall through.
		return r.fetchAndStoreProfile(ctx, fid)
	}
	return models.ProfileFromUser(u), nil
}

// FetchAndStoreProfile services scheduler IndexFid tasks; it discards the
// fetched profile and reports only success/failure, matching the narrow
// scheduler.ProfileIndexer capability.
func (r *Repository) FetchAndStoreProfile(ctx context.Context, fid uint64) error {
	_, err := r.fetchAndStoreProfile(ctx, fid)
	return err
}

func (r *Repository) fetchAndStoreProfile(ctx context.Context, fid uint64) (models.Profile, error) {
	v, err, _ := r.flight.Do(fmt.Sprintf("profile:%d", fid), func() (interface{}, error) {
		resp, err := r.Hub.GetUserProfile(ctx, fid)
		if err != nil {
			return models.Profile{}, fmt.Errorf("repository: hub get_user_profile fid=%d: %w", fid, err)
		}
		profile := models.Profile{
			FID:            resp.FID,
			Username:       resp.Username,
			DisplayName:    resp.DisplayName,
			Bio:            resp.Bio,
			URL:            resp.URL,
			ProfilePicture: resp.ProfilePicture,
		}
		u := models.UserFromProfile(profile)
		_, err = r.Pool.Raw().Exec(ctx, `
			INSERT INTO users (fid, username, display_name, bio, url, profile_pic)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (fid) DO UPDATE SET
				username = EXCLUDED.username,
				display_name = EXCLUDED.display_name,
				bio = EXCLUDED.bio,
				url = EXCLUDED.url,
				profile_pic = EXCLUDED.profile_pic
		`, u.FID, u.Username, u.DisplayName, u.Bio, u.URL, u.ProfilePic)
		if err != nil {
			return models.Profile{}, fmt.Errorf("repository: upsert user fid=%d: %w", fid, err)
		}
		return profile, nil
	})
	if err != nil {
		return models.Profile{}, err
	}
	return v.(models.Profile), nil
}

// FollowDirection selects which side of the links table is queried.
type FollowDirection int

const (
	Following FollowDirection = iota
	FollowedBy
)

// GetProfileLinks returns the profiles linked to fid in the given
// direction, read-through: a DB error falls through to the hub.
func (r *Repository) GetProfileLinks(ctx context.Context, fid uint64, forceFetch bool, dir FollowDirection) ([]models.Profile, error) {
	if forceFetch {
		return r.fetchAndStoreLinks(ctx, fid, dir)
	}
	profiles, err := r.queryLinkedProfiles(ctx, fid, dir)
	if err != nil {
		if r.FailClosedReads {
			return nil, err
		}
		return r.fetchAndStoreLinks(ctx, fid, dir)
	}
	return profiles, nil
}

// FetchAndStoreLinks services scheduler IndexLinks tasks: both follow
// directions are refreshed.
func (r *Repository) FetchAndStoreLinks(ctx context.Context, fid uint64) error {
	if _, err := r.fetchAndStoreLinks(ctx, fid, Following); err != nil {
		return err
	}
	if _, err := r.fetchAndStoreLinks(ctx, fid, FollowedBy); err != nil {
		return err
	}
	return nil
}

func (r *Repository) queryLinkedProfiles(ctx context.Context, fid uint64, dir FollowDirection) ([]models.Profile, error) {
	var query string
	switch dir {
	case Following:
		query = `
			SELECT u.fid, u.username, u.display_name, u.bio, u.url, u.profile_pic
			FROM users u JOIN links l ON l.target = u.fid
			WHERE l.fid = $1`
	case FollowedBy:
		query = `
			SELECT u.fid, u.username, u.display_name, u.bio, u.url, u.profile_pic
			FROM users u JOIN links l ON l.fid = u.fid
			WHERE l.target = $1`
	}
	rows, err := r.Pool.Raw().Query(ctx, query, int64(fid))
	if err != nil {
		return nil, fmt.Errorf("repository: query links fid=%d: %w", fid, err)
	}
	defer rows.Close()

	var out []models.Profile
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.FID, &u.Username, &u.DisplayName, &u.Bio, &u.URL, &u.ProfilePic); err != nil {
			return nil, fmt.Errorf("repository: scan linked profile fid=%d: %w", fid, err)
		}
		out = append(out, models.ProfileFromUser(u))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: iterate linked profiles fid=%d: %w", fid, err)
	}
	return out, nil
}

func (r *Repository) fetchAndStoreLinks(ctx context.Context, fid uint64, dir FollowDirection) ([]models.Profile, error) {
	key := fmt.Sprintf("links:%d:%d", dir, fid)
	_, err, _ := r.flight.Do(key, func() (interface{}, error) {
		msgs, err := r.fetchLinkMessages(ctx, fid, dir)
		if err != nil {
			return nil, err
		}
		actions := hub.DecodeLinkActions(msgs)
		return nil, r.applyLinkActions(ctx, actions)
	})
	if err != nil {
		return nil, err
	}
	return r.queryLinkedProfiles(ctx, fid, dir)
}

func (r *Repository) fetchLinkMessages(ctx context.Context, fid uint64, dir FollowDirection) ([]hub.Message, error) {
	switch dir {
	case Following:
		resp, err := r.Hub.GetLinksByFid(ctx, hub.LinksByFidRequest{FID: fid, LinkType: hub.LinkType})
		if err != nil {
			return nil, fmt.Errorf("repository: hub get_links_by_fid fid=%d: %w", fid, err)
		}
		return resp.Messages, nil
	default:
		resp, err := r.Hub.GetLinksByTarget(ctx, hub.LinksByTargetRequest{TargetFID: fid, LinkType: hub.LinkType})
		if err != nil {
			return nil, fmt.Errorf("repository: hub get_links_by_target fid=%d: %w", fid, err)
		}
		return resp.Messages, nil
	}
}

// applyLinkActions runs the three-step transactional write: upsert empty
// users for FK safety, insert adds, delete removes. The hub fetch above
// happens before the transaction opens so no session is held across the
// upstream round trip.
func (r *Repository) applyLinkActions(ctx context.Context, actions []hub.LinkAction) error {
	if len(actions) == 0 {
		return nil
	}

	fids := make(map[int64]struct{})
	type edge struct{ fid, target int64 }
	var adds []struct {
		fid, target int64
		ts          int64
	}
	var deletes []edge

	for _, a := range actions {
		fid := int64(a.SourceFID)
		target := int64(a.TargetFID)
		switch a.Kind {
		case hub.LinkActionAdd:
			fids[fid] = struct{}{}
			fids[target] = struct{}{}
			ts, ok := hub.FCTimestampToUnix(a.TimestampFC)
			if !ok {
				ts = 0
			}
			adds = append(adds, struct {
				fid, target int64
				ts          int64
			}{fid, target, ts})
		case hub.LinkActionRemove:
			deletes = append(deletes, edge{fid, target})
		}
	}

	return r.Pool.WithTx(ctx, func(tx pgx.Tx) error {
		for fid := range fids {
			if _, err := tx.Exec(ctx, `
				INSERT INTO users (fid) VALUES ($1)
				ON CONFLICT (fid) DO NOTHING
			`, fid); err != nil {
				return fmt.Errorf("repository: upsert empty user fid=%d: %w", fid, err)
			}
		}
		for _, a := range adds {
			if _, err := tx.Exec(ctx, `
				INSERT INTO links (fid, target, timestamp)
				VALUES ($1, $2, to_timestamp($3))
				ON CONFLICT (fid, target) DO NOTHING
			`, a.fid, a.target, a.ts); err != nil {
				return fmt.Errorf("repository: insert link %d->%d: %w", a.fid, a.target, err)
			}
		}
		for _, d := range deletes {
			if _, err := tx.Exec(ctx, `
				DELETE FROM links WHERE fid = $1 AND target = $2
			`, d.fid, d.target); err != nil {
				return fmt.Errorf("repository: delete link %d->%d: %w", d.fid, d.target, err)
			}
		}
		return nil
	})
}
