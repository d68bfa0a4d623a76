package application

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/prasatya/authflow/internal/domain/entity"
	"github.com/prasatya/authflow/internal/notify"
	"github.com/prasatya/authflow/internal/session"
)

func strp(s string) *string { return &s }

func storedProfile() *entity.Profile {
	return &entity.Profile{
		ID:       "u1",
		Name:     "Ada",
		Email:    "ada@example.com",
		Phone:    "+15550001111",
		Address:  "1 Main St",
		City:     "Berlin",
		Postcode: "10115",
		Country:  "DE",
		Status:   entity.StatusActive,
		Role:     entity.RoleCustomer,
	}
}

func newProfileService(repo *mockRepo, n notify.Notifier) *ProfileService {
	return &ProfileService{
		Repo:     repo,
		Store:    session.NewStore(repo, testLogger()),
		Notifier: n,
		Logger:   testLogger(),
	}
}

func TestChangedFieldsDetectsOnlyDifferences(t *testing.T) {
	p := storedProfile()
	in := UpdateProfileInput{
		Phone: strp("+15550002222"),
		City:  strp("Hamburg"),
		Name:  strp("Ada"), // same value, not a change
	}

	got := ChangedFields(p, in)
	want := []string{"phone", "city"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("changed fields = %v, want %v", got, want)
	}
}

func TestChangedFieldsEmptyStringIsAChange(t *testing.T) {
	p := storedProfile()
	in := UpdateProfileInput{Phone: strp("")}

	got := ChangedFields(p, in)
	if !reflect.DeepEqual(got, []string{"phone"}) {
		t.Fatalf("clearing a field must count as a change, got %v", got)
	}
}

func TestChangedFieldsNilMeansUntouched(t *testing.T) {
	p := storedProfile()

	if got := ChangedFields(p, UpdateProfileInput{}); len(got) != 0 {
		t.Fatalf("no defined fields means no changes, got %v", got)
	}
}

func TestChangedFieldsFixedOrder(t *testing.T) {
	p := storedProfile()
	in := UpdateProfileInput{
		Country: strp("FR"),
		Name:    strp("Grace"),
		City:    strp("Paris"),
	}

	got := ChangedFields(p, in)
	want := []string{"name", "city", "country"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("changed fields = %v, want attribute order %v", got, want)
	}
}

func TestUpdateProfilePersistsAndNotifies(t *testing.T) {
	var persisted *entity.Profile
	repo := &mockRepo{
		getByID: func(ctx context.Context, id string) (*entity.Profile, error) {
			return storedProfile(), nil
		},
		update: func(ctx context.Context, p *entity.Profile) error {
			persisted = p
			return nil
		},
	}

	var got notify.AccountUpdateRequest
	done := make(chan error, 1)
	n := &mockNotifier{
		sendAccountUpdate: func(ctx context.Context, req notify.AccountUpdateRequest) error {
			got = req
			return nil
		},
	}
	svc := newProfileService(repo, n)
	svc.NotifyDone = func(userID string, err error) { done <- err }

	p, changed, err := svc.UpdateProfile(context.Background(), "u1", UpdateProfileInput{
		Phone: strp("+15550002222"),
		City:  strp("Hamburg"),
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if p.Phone != "+15550002222" || p.City != "Hamburg" {
		t.Fatal("returned profile should carry the new values")
	}
	if persisted == nil || persisted.City != "Hamburg" {
		t.Fatal("update must be persisted")
	}
	if !reflect.DeepEqual(changed, []string{"phone", "city"}) {
		t.Fatalf("changed = %v, want [phone city]", changed)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("notice failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the account-update notice")
	}
	if !reflect.DeepEqual(got.ChangedFields, []string{"phone", "city"}) {
		t.Fatalf("notice carried %v, want the changed-field list", got.ChangedFields)
	}
	if got.Email != "ada@example.com" {
		t.Fatalf("notice should go to the stored email, got %q", got.Email)
	}
}

func TestUpdateProfilePersistFailureSurfacesAndSkipsNotice(t *testing.T) {
	repo := &mockRepo{
		getByID: func(ctx context.Context, id string) (*entity.Profile, error) {
			return storedProfile(), nil
		},
		update: func(ctx context.Context, p *entity.Profile) error {
			return errors.New("db down")
		},
	}
	var notices int32
	n := &mockNotifier{
		sendAccountUpdate: func(ctx context.Context, req notify.AccountUpdateRequest) error {
			atomic.AddInt32(&notices, 1)
			return nil
		},
	}
	svc := newProfileService(repo, n)

	_, _, err := svc.UpdateProfile(context.Background(), "u1", UpdateProfileInput{City: strp("Hamburg")})
	if err == nil {
		t.Fatal("persist failure must surface to the caller")
	}
	if atomic.LoadInt32(&notices) != 0 {
		t.Fatal("no notice may be sent for a failed update")
	}
}

func TestUpdateProfileNoChangesSkipsNotice(t *testing.T) {
	repo := &mockRepo{
		getByID: func(ctx context.Context, id string) (*entity.Profile, error) {
			return storedProfile(), nil
		},
		update: func(ctx context.Context, p *entity.Profile) error {
			return nil
		},
	}
	var notices int32
	n := &mockNotifier{
		sendAccountUpdate: func(ctx context.Context, req notify.AccountUpdateRequest) error {
			atomic.AddInt32(&notices, 1)
			return nil
		},
	}
	svc := newProfileService(repo, n)

	_, changed, err := svc.UpdateProfile(context.Background(), "u1", UpdateProfileInput{
		City: strp("Berlin"), // identical to the stored value
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if len(changed) != 0 {
		t.Fatalf("identical values are not changes, got %v", changed)
	}
	if atomic.LoadInt32(&notices) != 0 {
		t.Fatal("no-op updates must not produce a notice")
	}
}

func TestUpdateProfileUnknownUser(t *testing.T) {
	repo := &mockRepo{
		getByID: func(ctx context.Context, id string) (*entity.Profile, error) {
			return nil, errors.New("not found")
		},
	}
	svc := newProfileService(repo, &mockNotifier{})

	_, _, err := svc.UpdateProfile(context.Background(), "ghost", UpdateProfileInput{City: strp("Hamburg")})
	if !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
}

func TestUpdateProfileIndexesOffTheRequestPath(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		<-release
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	if err != nil {
		t.Fatalf("es client: %v", err)
	}

	repo := &mockRepo{
		getByID: func(ctx context.Context, id string) (*entity.Profile, error) {
			return storedProfile(), nil
		},
		update: func(ctx context.Context, p *entity.Profile) error {
			return nil
		},
	}
	svc := newProfileService(repo, &mockNotifier{
		sendAccountUpdate: func(ctx context.Context, req notify.AccountUpdateRequest) error {
			return nil
		},
	})
	svc.ES = es
	svc.ESProfilesIndex = "profiles"
	indexed := make(chan error, 1)
	svc.IndexDone = func(userID string, err error) { indexed <- err }

	start := time.Now()
	_, _, err = svc.UpdateProfile(context.Background(), "u1", UpdateProfileInput{City: strp("Hamburg")})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	// The search cluster is still holding the index request open; the
	// update must not have waited for it.
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("update blocked %v on the search re-index", elapsed)
	}

	close(release)
	select {
	case err := <-indexed:
		if err != nil {
			t.Fatalf("re-index failed: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for the detached re-index")
	}
}

func TestSearchProfilesWithoutESReturnsEmpty(t *testing.T) {
	svc := newProfileService(&mockRepo{}, &mockNotifier{})

	hits, err := svc.SearchProfiles(context.Background(), "ada", 10)
	if err != nil {
		t.Fatalf("search without ES must degrade, not fail: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected no hits, got %d", len(hits))
	}
}
