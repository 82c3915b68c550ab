package service

import (
	"context"
	"log"

	"backoffice/internal/model"
	"backoffice/internal/repository"

	"github.com/google/uuid"
)

// AuditService records and lists audit trail entries
type AuditService interface {
	Record(ctx context.Context, userID *uuid.UUID, action, entityID, details string)
	List(ctx context.Context, offset, limit int) ([]model.AuditLog, int64, error)
}

type auditService struct {
	repo repository.AuditRepository
}

func NewAuditService(repo repository.AuditRepository) AuditService {
	return &auditService{repo: repo}
}

// Record writes an audit entry. Audit failures are logged and swallowed: the
// operation being audited must not fail because the trail write did.
func (s *auditService) Record(ctx context.Context, userID *uuid.UUID, action, entityID, details string) {
	entry := &model.AuditLog{
		UserID:   userID,
		Action:   action,
		EntityID: entityID,
		Details:  details,
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		log.Printf("audit write failed (action=%s): %v", action, err)
	}
}

func (s *auditService) List(ctx context.Context, offset, limit int) ([]model.AuditLog, int64, error) {
	return s.repo.List(ctx, offset, limit)
}
