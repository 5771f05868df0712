package models

import (
	"time"
)

// AppConfig holds the runtime switches edited from the CRM frontend
// Table: app_config
// Singleton row with id = 1
type AppConfig struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	AutoSaveLeads  bool      `gorm:"not null;default:false" json:"autoSaveLeads"`
	DefaultTrigger string    `gorm:"size:128;not null;default:''" json:"defaultTrigger"`
	AutoEnroll     bool      `gorm:"not null;default:false" json:"autoEnroll"`
	UpdatedAt      time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (AppConfig) TableName() string { return "app_config" }

// AppConfigSingletonID is the primary key of the only app_config row
const AppConfigSingletonID uint = 1

// LeadTrigger returns the trigger assigned to newly created leads
func (c *AppConfig) LeadTrigger(fallback string) string {
	if c == nil || c.DefaultTrigger == "" {
		return fallback
	}
	return c.DefaultTrigger
}
