package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Action string

const (
	ActionCreate          Action = "CREATE"
	ActionUpdate          Action = "UPDATE"
	ActionDelete          Action = "DELETE"
	ActionPermanentDelete Action = "PERMANENT_DELETE"
	ActionRegister        Action = "REGISTER"
	ActionLogin           Action = "LOGIN"
	ActionLogout          Action = "LOGOUT"
	ActionPasswordChange  Action = "PASSWORD_CHANGE"
	ActionError           Action = "ERROR"
	ActionRegisterError   Action = "REGISTER_ERROR"
	ActionAccess          Action = "ACCESS"
	ActionLoginFail       Action = "LOGIN_FAIL"
)

// Activity is one row of the audit trail.
type Activity struct {
	Model
	Action         Action            `gorm:"not null;index" json:"action"`
	CollectionType string            `gorm:"not null" json:"collectionType"`
	DocumentID     *uuid.UUID        `gorm:"type:uuid;index" json:"documentId"`
	UserID         *uuid.UUID        `gorm:"type:uuid" json:"user"`
	Description    string            `json:"description"`
	IP             string            `json:"ip"`
	Metadata       datatypes.JSONMap `json:"metadata"`
	Timestamp      time.Time         `gorm:"index" json:"timestamp"`
}
