package service

import (
	"context"
	"log/slog"

	"github.com/voxkit/license-server/internal/models"
	"github.com/voxkit/license-server/internal/repository"
)

type NotificationService struct {
	log  *slog.Logger
	repo *repository.NotificationRepository
}

func NewNotificationService(log *slog.Logger, repo *repository.NotificationRepository) *NotificationService {
	return &NotificationService{log: log, repo: repo}
}

// Fetch returns the device's undelivered notifications and marks them seen.
// Each notification is delivered at most once.
func (s *NotificationService) Fetch(ctx context.Context, deviceID string) ([]models.Notification, error) {
	notifications, err := s.repo.FetchUnseenAndMarkSeen(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if len(notifications) > 0 {
		s.log.Debug("notifications delivered", "device", deviceID, "count", len(notifications))
	}
	return notifications, nil
}
