package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/playconnect/apiserver/internal/mq"
	"github.com/playconnect/apiserver/internal/storage"
	"github.com/playconnect/apiserver/types"
)

// PlayerEventsChannel is the broker channel profile change events are
// published on.
const PlayerEventsChannel = "player-events"

// PlayerService encapsulates player profile use-cases: reads and
// partial updates, scout search, and profile image uploads. Storage
// and broker are optional; a nil broker disables event publication and
// a nil storage disables image uploads.
type PlayerService struct {
	repo    UserRepository
	storage *storage.Storage
	broker  *mq.MQ
}

func NewPlayerService(repo UserRepository, store *storage.Storage, broker *mq.MQ) *PlayerService {
	return &PlayerService{
		repo:    repo,
		storage: store,
		broker:  broker,
	}
}

func (s *PlayerService) Get(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdateProfile applies a partial edit to the caller's own profile and
// publishes a profile-updated event.
func (s *PlayerService) UpdateProfile(ctx context.Context, id int, update types.ProfileUpdate) (types.User, error) {
	user, err := s.repo.UpdateProfile(ctx, id, update)
	if err != nil {
		return types.User{}, err
	}
	s.publishEvent(ctx, types.EventPlayerProfileUpdated, user)
	return user, nil
}

func (s *PlayerService) Search(ctx context.Context, filter types.PlayerFilter) ([]types.User, error) {
	return s.repo.Search(ctx, filter)
}

// ImageUploadsEnabled reports whether an object storage backend is
// configured.
func (s *PlayerService) ImageUploadsEnabled() bool {
	return s.storage != nil
}

// SaveProfileImage stores the uploaded picture, records its key on the
// account, and removes the replaced object if there was one.
func (s *PlayerService) SaveProfileImage(ctx context.Context, id int, r io.Reader, size int64, contentType string) (types.User, error) {
	key := fmt.Sprintf("profiles/%d/%d", id, time.Now().UnixNano())
	if err := s.storage.Put(ctx, key, r, size, contentType); err != nil {
		return types.User{}, err
	}

	user, previous, err := s.repo.SetProfileImage(ctx, id, key)
	if err != nil {
		// Roll back the orphaned object; the account was not updated.
		_ = s.storage.Delete(ctx, key)
		return types.User{}, err
	}

	if previous != "" && previous != key {
		if err := s.storage.Delete(ctx, previous); err != nil {
			log.Printf("failed to delete replaced profile image %s: %v", previous, err)
		}
	}

	s.publishEvent(ctx, types.EventPlayerImageUpdated, user)
	return user, nil
}

// OpenProfileImage opens a reader for a stored profile picture.
func (s *PlayerService) OpenProfileImage(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.storage.Get(ctx, key)
}

// PublishRegistered announces a newly created account. Called by the
// register flow after the identity exists.
func (s *PlayerService) PublishRegistered(ctx context.Context, user types.User) {
	s.publishEvent(ctx, types.EventPlayerRegistered, user)
}

// publishEvent emits a player event on a best-effort basis. Broker
// failures are logged and never fail the request that caused them.
func (s *PlayerService) publishEvent(ctx context.Context, eventType string, user types.User) {
	if s.broker == nil {
		return
	}
	event := types.PlayerEvent{
		Type:       eventType,
		UserID:     user.ID,
		Role:       user.Role,
		OccurredAt: time.Now(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("failed to encode %s event: %v", eventType, err)
		return
	}
	attrs := map[string]string{"type": eventType}
	if _, err := s.broker.Publish(ctx, PlayerEventsChannel, data, attrs); err != nil {
		log.Printf("failed to publish %s event for user %d: %v", eventType, user.ID, err)
	}
}
