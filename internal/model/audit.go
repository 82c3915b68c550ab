package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionLogin             = "LOGIN"
	ActionRefreshToken      = "REFRESH_TOKEN"
	ActionLogout            = "LOGOUT"
	ActionRevokeUserTokens  = "REVOKE_USER_TOKENS"
	ActionSweepTokens       = "SWEEP_EXPIRED_TOKENS"
	ActionCreateUser        = "CREATE_USER"
	ActionUpdateUser        = "UPDATE_USER"
	ActionDeleteUser        = "DELETE_USER"
	ActionCreateOrder       = "CREATE_ORDER"
	ActionUpdateOrderStatus = "UPDATE_ORDER_STATUS"
	ActionDeleteOrder       = "DELETE_ORDER"
)

// AuditLog tracks Who, What, and When for critical system changes
type AuditLog struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // Nullable for unauthenticated events
	User      *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Action    string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID  string     `gorm:"type:varchar(50);index" json:"entity_id"`
	Details   string     `gorm:"type:text" json:"details"`
	CreatedAt time.Time  `gorm:"index" json:"created_at"`
}
