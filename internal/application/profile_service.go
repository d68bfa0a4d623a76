package application

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/sirupsen/logrus"

	"github.com/prasatya/authflow/internal/domain/entity"
	"github.com/prasatya/authflow/internal/domain/repository"
	"github.com/prasatya/authflow/internal/notify"
	"github.com/prasatya/authflow/internal/session"
)

var ErrProfileNotFound = errors.New("profile not found")

// ProfileService is the only code path that mutates profiles. It
// computes which fields actually changed, persists the update, refreshes
// the session store, and fires a detached account-change notice.
type ProfileService struct {
	Repo     repository.ProfileRepository
	Store    *session.Store
	Notifier notify.Notifier
	Logger   *logrus.Logger

	ES              *elasticsearch.Client
	ESProfilesIndex string

	// NotifyDone, when set, is called after the detached account-update
	// notice settles. Test hook.
	NotifyDone func(userID string, err error)

	// IndexDone, when set, is called after the detached search re-index
	// settles. Test hook.
	IndexDone func(userID string, err error)
}

// UpdateProfileInput is a partial update: nil means "not touched", a
// non-nil pointer means "set to this value" (empty string included).
type UpdateProfileInput struct {
	Name     *string
	Email    *string
	Phone    *string
	Address  *string
	City     *string
	Postcode *string
	Country  *string
}

// ChangedFields returns the names of attributes whose incoming value is
// defined and differs from the snapshot, in a fixed order.
func ChangedFields(snapshot *entity.Profile, in UpdateProfileInput) []string {
	type field struct {
		name    string
		current string
		next    *string
	}
	fields := []field{
		{"name", snapshot.Name, in.Name},
		{"email", snapshot.Email, in.Email},
		{"phone", snapshot.Phone, in.Phone},
		{"address", snapshot.Address, in.Address},
		{"city", snapshot.City, in.City},
		{"postcode", snapshot.Postcode, in.Postcode},
		{"country", snapshot.Country, in.Country},
	}
	var changed []string
	for _, f := range fields {
		if f.next != nil && *f.next != f.current {
			changed = append(changed, f.name)
		}
	}
	return changed
}

func applyUpdate(p *entity.Profile, in UpdateProfileInput) {
	if in.Name != nil {
		p.Name = *in.Name
	}
	if in.Email != nil {
		p.Email = *in.Email
	}
	if in.Phone != nil {
		p.Phone = *in.Phone
	}
	if in.Address != nil {
		p.Address = *in.Address
	}
	if in.City != nil {
		p.City = *in.City
	}
	if in.Postcode != nil {
		p.Postcode = *in.Postcode
	}
	if in.Country != nil {
		p.Country = *in.Country
	}
}

// GetProfile loads a profile by user id.
func (s *ProfileService) GetProfile(ctx context.Context, userID string) (*entity.Profile, error) {
	p, err := s.Repo.GetByID(ctx, userID)
	if err != nil || p == nil {
		return nil, ErrProfileNotFound
	}
	return p, nil
}

// UpdateProfile persists a partial update. Persistence failure is
// surfaced to the caller, the UI must not claim success, and no
// notification is sent. On success the store is refreshed and, when
// something actually changed and an email is known, a detached
// account-update notice carries the changed-field list.
func (s *ProfileService) UpdateProfile(ctx context.Context, userID string, in UpdateProfileInput) (*entity.Profile, []string, error) {
	p, err := s.Repo.GetByID(ctx, userID)
	if err != nil || p == nil {
		return nil, nil, ErrProfileNotFound
	}

	changed := ChangedFields(p, in)
	applyUpdate(p, in)

	if err := s.Repo.Update(ctx, p); err != nil {
		return nil, nil, err
	}

	s.Store.RefreshProfile(ctx)

	if len(changed) > 0 && p.Email != "" && s.Notifier != nil {
		req := notify.AccountUpdateRequest{
			UserID:        p.ID,
			Email:         p.Email,
			Name:          p.Name,
			ChangedFields: changed,
		}
		go s.dispatchAccountUpdate(req)
	}

	// Re-index for admin search off the request path; a slow cluster
	// must not delay the update response.
	if s.ES != nil && s.ESProfilesIndex != "" {
		go s.indexDetached(p)
	}

	return p, changed, nil
}

func (s *ProfileService) indexDetached(p *entity.Profile) {
	err := s.indexProfile(context.Background(), p)
	if s.IndexDone != nil {
		s.IndexDone(p.ID, err)
	}
}

func (s *ProfileService) dispatchAccountUpdate(req notify.AccountUpdateRequest) {
	err := s.Notifier.SendAccountUpdate(context.Background(), req)
	if err != nil && s.Logger != nil {
		s.Logger.WithError(err).WithField("user_id", req.UserID).Warn("account-update notice failed")
	}
	if s.NotifyDone != nil {
		s.NotifyDone(req.UserID, err)
	}
}

func (s *ProfileService) indexProfile(ctx context.Context, p *entity.Profile) error {
	if s.ES == nil || s.ESProfilesIndex == "" {
		return nil
	}
	doc := map[string]any{
		"id":         p.ID,
		"email":      p.Email,
		"name":       p.Name,
		"city":       p.City,
		"country":    p.Country,
		"status":     p.Status,
		"role":       p.Role,
		"updated_at": p.UpdatedAt.Format(time.RFC3339Nano),
	}
	b, _ := json.Marshal(doc)
	req := esapi.IndexRequest{Index: s.ESProfilesIndex, DocumentID: p.ID, Body: strings.NewReader(string(b)), Refresh: "false"}
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := req.Do(c, s.ES)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", p.ID).Warn("es index failed")
		}
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() && s.Logger != nil {
		s.Logger.WithField("status", res.Status()).WithField("user_id", p.ID).Warn("es index response error")
	}
	return nil
}

// SearchProfiles performs a multi_match search on email, name, city and
// country for the admin dashboard.
func (s *ProfileService) SearchProfiles(ctx context.Context, q string, size int) ([]map[string]any, error) {
	if s.ES == nil || s.ESProfilesIndex == "" {
		return []map[string]any{}, nil
	}
	if size <= 0 || size > 50 {
		size = 10
	}
	query := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  q,
				"fields": []string{"email^2", "name", "city", "country"},
			},
		},
		"size": size,
	}
	b, _ := json.Marshal(query)

	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := s.ES.Search(s.ES.Search.WithContext(c), s.ES.Search.WithIndex(s.ESProfilesIndex), s.ES.Search.WithBody(strings.NewReader(string(b))))
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID     string         `json:"_id"`
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}
