package models

// AuditLog records changes to a user's expenses.
type AuditLog struct {
	Base
	UserID       string `gorm:"type:uuid;not null;index" json:"userId"`
	Action       string `gorm:"not null" json:"action"`
	ResourceType string `gorm:"not null" json:"resourceType"`
	ResourceID   string `json:"resourceId"`
	IPAddress    string `json:"ipAddress"`
	Changes      string `json:"changes,omitempty"`
}
