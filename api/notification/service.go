package notification

import (
	"BudgetCorpSaas/internal/serviceiface"
)

type NotificationService struct {
	config map[string]interface{}
}

func NewNotificationService(cfg map[string]interface{}) serviceiface.Service {
	return &NotificationService{config: cfg}
}

func (s *NotificationService) Name() string {
	return "notification"
}

func (s *NotificationService) Start() error {
	go StartNotificationService(s.config)
	return nil
}

func (s *NotificationService) Stop() error {
	return nil
}
