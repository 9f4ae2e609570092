package authpw

import (
	"context"
	"errors"
	"testing"

	"lexdraft/api/internal/store"
)

type fakeUserStore struct {
	users map[string]store.User // keyed by id
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]store.User)}
}

func (f *fakeUserStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return store.User{}, store.ErrNotFound
}

func (f *fakeUserStore) GetUserByID(_ context.Context, id string) (store.User, error) {
	u, ok := f.users[id]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserStore) CreateUser(_ context.Context, user store.User) error {
	f.users[user.ID] = user
	return nil
}

func (f *fakeUserStore) UpdateUserProfile(_ context.Context, id, displayName, organization string) error {
	u, ok := f.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.DisplayName = displayName
	u.Organization = organization
	f.users[id] = u
	return nil
}

func (f *fakeUserStore) UpdateUserPassword(_ context.Context, id, passwordHash string) error {
	u, ok := f.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.PasswordHash = passwordHash
	f.users[id] = u
	return nil
}

func TestSignUpAndSignIn(t *testing.T) {
	svc := NewService(newFakeUserStore())
	ctx := context.Background()

	user, err := svc.SignUp(ctx, SignUpRequest{
		Email:       "Drafter@Example.com",
		Password:    "correct-horse",
		DisplayName: "Jordan",
	})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if user.Email != "drafter@example.com" {
		t.Errorf("email not normalized: %q", user.Email)
	}
	if user.PasswordHash == "correct-horse" {
		t.Error("password stored in plaintext")
	}

	signed, err := svc.SignIn(ctx, "drafter@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if signed.ID != user.ID {
		t.Errorf("signed-in user mismatch")
	}

	if _, err := svc.SignIn(ctx, "drafter@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: %v", err)
	}
	if _, err := svc.SignIn(ctx, "nobody@example.com", "x"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email: %v", err)
	}
}

func TestSignUpValidation(t *testing.T) {
	svc := NewService(newFakeUserStore())
	ctx := context.Background()

	cases := []SignUpRequest{
		{Email: "", Password: "long-enough", DisplayName: "A"},
		{Email: "not-an-email", Password: "long-enough", DisplayName: "A"},
		{Email: "a@b.com", Password: "short", DisplayName: "A"},
		{Email: "a@b.com", Password: "long-enough", DisplayName: " "},
	}
	for _, req := range cases {
		if _, err := svc.SignUp(ctx, req); err == nil {
			t.Errorf("SignUp(%+v) succeeded, want error", req)
		}
	}
}

func TestSignUpDuplicateEmail(t *testing.T) {
	svc := NewService(newFakeUserStore())
	ctx := context.Background()

	req := SignUpRequest{Email: "a@b.com", Password: "long-enough", DisplayName: "A"}
	if _, err := svc.SignUp(ctx, req); err != nil {
		t.Fatalf("first SignUp: %v", err)
	}
	if _, err := svc.SignUp(ctx, req); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("duplicate SignUp: %v", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	svc := NewService(newFakeUserStore())
	ctx := context.Background()

	user, err := svc.SignUp(ctx, SignUpRequest{Email: "a@b.com", Password: "long-enough", DisplayName: "A"})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}

	updated, err := svc.UpdateProfile(ctx, user.ID, "Alex", "Acme Legal")
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if updated.DisplayName != "Alex" || updated.Organization != "Acme Legal" {
		t.Errorf("profile not updated: %+v", updated)
	}

	if _, err := svc.UpdateProfile(ctx, "missing", "X", ""); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("missing user: %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	svc := NewService(newFakeUserStore())
	ctx := context.Background()

	user, err := svc.SignUp(ctx, SignUpRequest{Email: "a@b.com", Password: "long-enough", DisplayName: "A"})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}

	if err := svc.ChangePassword(ctx, user.ID, "wrong", "another-long-one"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong current password: %v", err)
	}
	if err := svc.ChangePassword(ctx, user.ID, "long-enough", "another-long-one"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if _, err := svc.SignIn(ctx, "a@b.com", "another-long-one"); err != nil {
		t.Errorf("sign in with new password: %v", err)
	}
}
