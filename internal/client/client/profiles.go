package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/dmitrijs2005/gophauth/internal/client/models"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/google/uuid"
)

const (
	profilesPath     = "/rest/v1/profiles"
	profileColumns   = "id,username,website,avatar_url,updated_at"
	singleObjectMIME = "application/vnd.pgrst.object+json"
)

// Profiles reads and writes the profiles table through the data API. It
// authenticates with the current session when there is one and with the
// anon key otherwise.
type Profiles struct {
	auth *Auth
}

func NewProfiles(auth *Auth) *Profiles {
	return &Profiles{auth: auth}
}

func (p *Profiles) GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	var profile models.Profile
	err := p.authorized(ctx, request{
		method: http.MethodGet,
		path:   profilesPath,
		query: url.Values{
			"select": {profileColumns},
			"id":     {"eq." + id.String()},
		},
		header: http.Header{"Accept": {singleObjectMIME}},
	}, &profile)
	if err != nil {
		// single-object requests answer 406 when no row matched
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotAcceptable {
			return nil, nil
		}
		return nil, fmt.Errorf("get profile %s: %w", id, err)
	}
	return &profile, nil
}

// UpsertProfile inserts the row or merges it into the existing one.
func (p *Profiles) UpsertProfile(ctx context.Context, row models.ProfileRow) error {
	err := p.authorized(ctx, request{
		method: http.MethodPost,
		path:   profilesPath,
		body:   row,
		header: http.Header{common.PreferHeaderName: {"resolution=merge-duplicates,return=minimal"}},
	}, nil)
	if err != nil {
		return fmt.Errorf("upsert profile %s: %w", row.ID, err)
	}
	return nil
}

// authorized sends r with the session's access token. When the backend
// rejects a token the client still thought valid, the session is refreshed
// once and the request repeated.
func (p *Profiles) authorized(ctx context.Context, r request, out any) error {
	s, err := p.auth.GetSession(ctx)
	if err != nil {
		return err
	}
	if s != nil {
		r.token = s.AccessToken
	}

	err = p.auth.rt.do(ctx, r, out)
	var apiErr *APIError
	if s == nil || !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		return err
	}

	p.auth.logger.Debug(ctx, "access token rejected, refreshing")
	s, rerr := p.auth.forceRefresh(ctx, s)
	if rerr != nil || s == nil {
		return err
	}
	r.token = s.AccessToken
	return p.auth.rt.do(ctx, r, out)
}
