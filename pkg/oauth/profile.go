package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"

	"github.com/mitchellh/mapstructure"
)

// Profile is the user profile as returned by Roblox.
//
// Both the OpenID userinfo shape (sub, picture) and the legacy users API shape (numeric id, imageUrl, displayName)
// are accepted.
type Profile struct {
	Sub               string `mapstructure:"sub" json:"sub,omitempty"`
	ID                string `mapstructure:"id" json:"id,omitempty"`
	Name              string `mapstructure:"name" json:"name,omitempty"`
	Nickname          string `mapstructure:"nickname" json:"nickname,omitempty"`
	PreferredUsername string `mapstructure:"preferred_username" json:"preferred_username,omitempty"`
	DisplayName       string `mapstructure:"displayName" json:"displayName,omitempty"`
	Profile           string `mapstructure:"profile" json:"profile,omitempty"`
	Picture           string `mapstructure:"picture" json:"picture,omitempty"`
	ImageURL          string `mapstructure:"imageUrl" json:"imageUrl,omitempty"`
	CreatedAt         string `mapstructure:"created_at" json:"created_at,omitempty"`
	Premium           bool   `mapstructure:"premium" json:"premium,omitempty"`
	Nonce             string `mapstructure:"nonce" json:"nonce,omitempty"`

	// Raw is the payload exactly as returned by the provider.
	Raw map[string]any `mapstructure:"-" json:"-"`
}

// MarshalJSON encodes the raw payload, so the profile is passed through unchanged.
func (p Profile) MarshalJSON() ([]byte, error) {
	if p.Raw != nil {
		return json.Marshal(p.Raw)
	}

	// Profiles built in code carry no raw payload.
	type plain Profile
	return json.Marshal(plain(p))
}

// ProfileFromMap decodes a raw payload into a Profile. Numeric fields are coerced into strings.
func ProfileFromMap(raw map[string]any) (*Profile, error) {
	profile := &Profile{Raw: raw}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           profile,
	})
	if err != nil {
		return nil, fmt.Errorf("error in mapstructure.NewDecoder call: %w", err)
	}

	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("error in decoder.Decode call: %w", err)
	}

	return profile, nil
}

// fetchProfile calls the userinfo endpoint with the given access token.
func (r *Roblox) fetchProfile(ctx context.Context, accessToken string) (*Profile, error) {
	// Form the HTTP request.
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoints.UserInfoURL, nil)
	if err != nil {
		return nil, errors.Join(ErrProfileFetch, fmt.Errorf("error in http.NewRequestWithContext call: %w", err))
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	// Execute request.
	res, err := r.httpClient.Do(req)
	if err != nil {
		return nil, errors.Join(ErrProfileFetch, ErrTransport, fmt.Errorf("error in httpClient.Do call: %w", err))
	}
	// Close response body upon return.
	defer func() { _ = res.Body.Close() }()

	// Check if the request failed.
	if !is2xx(res.StatusCode) {
		// Decode response body only for logging.
		resBody, err := io.ReadAll(res.Body)
		if err != nil {
			resBody = []byte("error in io.ReadAll call: " + err.Error())
		}
		slog.ErrorContext(ctx, "request failed", "code", res.StatusCode, "body", string(resBody))
		return nil, errors.Join(ErrProfileFetch, fmt.Errorf("request failed with status code: %d", res.StatusCode))
	}

	// Numbers are kept as is, so that large IDs do not lose precision.
	var raw map[string]any
	decoder := json.NewDecoder(res.Body)
	decoder.UseNumber()
	if err := decoder.Decode(&raw); err != nil {
		return nil, errors.Join(ErrProfileFetch, fmt.Errorf("error in json Decode call: %w", err))
	}
	if len(raw) == 0 {
		return nil, errors.Join(ErrProfileFetch, errors.New("profile is empty"))
	}

	profile, err := ProfileFromMap(raw)
	if err != nil {
		return nil, errors.Join(ErrProfileFetch, fmt.Errorf("error in ProfileFromMap call: %w", err))
	}

	return profile, nil
}

// normalize maps the profile to the canonical user. It returns nil if the profile has no subject identifier.
func (r *Roblox) normalize(ctx context.Context, profile *Profile) (*User, error) {
	id := profile.Sub
	if id == "" {
		id = profile.ID
	}
	// Display names are not unique, so they can never stand in for the subject.
	if id == "" {
		return nil, nil
	}

	name := profile.PreferredUsername
	if name == "" {
		name = profile.Name
	}

	image := profile.Picture
	if image == "" {
		image = profile.ImageURL
	}

	user := &User{ID: id, Name: name, Email: nil, EmailVerified: false, Image: ptr(image)}
	if r.opts.MapProfileToUser == nil {
		return user, nil
	}

	patch, err := r.opts.MapProfileToUser(ctx, *profile)
	if err != nil {
		return nil, fmt.Errorf("error in MapProfileToUser call: %w", err)
	}

	user.apply(patch)
	return user, nil
}

// apply overrides the user's fields with the non-nil fields of the patch.
func (u *User) apply(patch UserPatch) {
	if patch.ID != nil {
		u.ID = *patch.ID
	}
	if patch.Name != nil {
		u.Name = *patch.Name
	}
	if patch.Email != nil {
		u.Email = patch.Email
	}
	if patch.EmailVerified != nil {
		u.EmailVerified = *patch.EmailVerified
	}
	if patch.Image != nil {
		u.Image = patch.Image
	}
	if len(patch.Extra) > 0 {
		if u.Extra == nil {
			u.Extra = make(map[string]any, len(patch.Extra))
		}
		maps.Copy(u.Extra, patch.Extra)
	}
}
