package profiles

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"semaphore/classroom/internal/auth"
	"semaphore/classroom/internal/metrics"
	"semaphore/classroom/internal/model"
	"semaphore/classroom/internal/operations"
	"semaphore/classroom/internal/storage"
)

type Store interface {
	GetProfileByIdentity(ctx context.Context, identityID string) (model.Profile, error)
	UpsertProfile(ctx context.Context, profile model.Profile) (model.Profile, error)
	UpdateAvatar(ctx context.Context, profileID, avatarURL string, at time.Time) error
	ListRegistrations(ctx context.Context, profileID string) ([]model.Membership, error)
}

type Service struct {
	store   Store
	uploads *storage.Uploader
	now     func() time.Time
}

func NewService(store Store, uploads *storage.Uploader, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, uploads: uploads, now: now}
}

// Input is the editable part of a profile. Nil fields keep their value.
type Input struct {
	Username    *string
	Phone       *string
	UserClass   *string
	UserSchool  *string
	Address     *string
	DateOfBirth *time.Time
	Gender      *string
}

// Resolve completes an actor with its profile id. A caller without profile
// gets a NotFound error.
func (s *Service) Resolve(ctx context.Context, actor auth.Actor) (auth.Actor, error) {
	profile, err := s.store.GetProfileByIdentity(ctx, actor.IdentityID)
	if err != nil {
		return actor, err
	}
	actor.ProfileID = profile.ID
	return actor, nil
}

func (s *Service) Me(ctx context.Context, actor auth.Actor) (model.Profile, error) {
	profile, err := s.store.GetProfileByIdentity(ctx, actor.IdentityID)
	if err != nil {
		return model.Profile{}, err
	}
	registrations, err := s.store.ListRegistrations(ctx, profile.ID)
	if err != nil {
		return model.Profile{}, err
	}
	profile.RegisteredClasses = registrations
	return profile, nil
}

// UpdateMe creates the caller's profile on first use and overwrites the
// provided fields afterwards.
func (s *Service) UpdateMe(ctx context.Context, actor auth.Actor, in Input) (profile model.Profile, err error) {
	defer func() { metrics.Observe("profiles", "update_me", err) }()
	var gender model.Gender
	if in.Gender != nil {
		parsed, ok := model.ParseGender(*in.Gender)
		if !ok {
			return model.Profile{}, operations.InvalidFields([]string{"gender must be male, female or other"})
		}
		gender = parsed
	}
	now := s.now().UTC()
	if in.DateOfBirth != nil && in.DateOfBirth.After(now) {
		return model.Profile{}, operations.InvalidFields([]string{"dateOfBirth must be in the past"})
	}

	current, err := s.store.GetProfileByIdentity(ctx, actor.IdentityID)
	switch {
	case err == nil:
		profile = current
	case operations.IsCode(err, operations.ErrProfileNotFound):
		profile = model.Profile{
			ID:         uuid.NewString(),
			IdentityID: actor.IdentityID,
			Email:      actor.Email,
			Gender:     model.GenderOther,
			CreatedAt:  now,
		}
	default:
		return model.Profile{}, err
	}
	profile.Role = string(actor.Role)
	if in.Username != nil {
		profile.Username = strings.TrimSpace(*in.Username)
	}
	if in.Phone != nil {
		profile.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.UserClass != nil {
		profile.UserClass = *in.UserClass
	}
	if in.UserSchool != nil {
		profile.UserSchool = *in.UserSchool
	}
	if in.Address != nil {
		profile.Address = *in.Address
	}
	if in.DateOfBirth != nil {
		dob := in.DateOfBirth.UTC()
		profile.DateOfBirth = &dob
	}
	if in.Gender != nil {
		profile.Gender = gender
	}
	profile.UpdatedAt = now
	saved, err := s.store.UpsertProfile(ctx, profile)
	if err != nil {
		return model.Profile{}, err
	}
	registrations, err := s.store.ListRegistrations(ctx, saved.ID)
	if err != nil {
		return model.Profile{}, err
	}
	saved.RegisteredClasses = registrations
	return saved, nil
}

// UploadAvatar stores a new avatar image and drops the previous one.
func (s *Service) UploadAvatar(ctx context.Context, actor auth.Actor, file storage.File) (profile model.Profile, err error) {
	defer func() { metrics.Observe("profiles", "upload_avatar", err) }()
	if !strings.HasPrefix(file.MimeType, "image/") {
		return model.Profile{}, operations.Invalid(operations.ErrInvalidFileType, "avatar must be an image")
	}
	profile, err = s.store.GetProfileByIdentity(ctx, actor.IdentityID)
	if err != nil {
		return model.Profile{}, err
	}
	uploaded, err := s.uploads.UploadAll(ctx, storage.AvatarPrefix(profile.ID), []storage.File{file})
	if err != nil {
		return model.Profile{}, err
	}
	previous := profile.Avatar
	now := s.now().UTC()
	if err := s.store.UpdateAvatar(ctx, profile.ID, uploaded[0].FileURL, now); err != nil {
		s.uploads.Abandon(ctx, "avatar", uploaded)
		return model.Profile{}, err
	}
	s.uploads.DeleteBestEffort(ctx, []string{previous})
	profile.Avatar = uploaded[0].FileURL
	profile.UpdatedAt = now
	return profile, nil
}
