package model

import "time"

// AccessMode describes how clients obtain food from a pantry.
type AccessMode string

const (
	AccessWalkIn      AccessMode = "walk-in"
	AccessAppointment AccessMode = "appointment"
	AccessMobile      AccessMode = "mobile"
	AccessUnset       AccessMode = ""
)

// PantryRecord is the canonical directory entity. IDs are assigned by the
// store at creation; callers leave ID empty on create.
type PantryRecord struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Address     string     `json:"address,omitempty"`
	City        string     `json:"city,omitempty"`
	State       string     `json:"state"`
	PostalCode  string     `json:"postal_code,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	Email       string     `json:"email,omitempty"`
	Website     string     `json:"website,omitempty"`
	Latitude    *float64   `json:"latitude,omitempty"`
	Longitude   *float64   `json:"longitude,omitempty"`
	Hours       string     `json:"hours,omitempty"`
	Description string     `json:"description,omitempty"`
	Services    []string   `json:"services,omitempty"`
	AccessMode  AccessMode `json:"access_mode,omitempty"`
	Active      bool       `json:"active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// HasCoordinates reports whether both latitude and longitude are set.
// A record with only one of the pair is treated as having neither.
func (p *PantryRecord) HasCoordinates() bool {
	return p.Latitude != nil && p.Longitude != nil
}

// SyncStatus is the lifecycle state of a remote-list sync run, written back
// to the SyncConfiguration after every run.
type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusSyncing SyncStatus = "syncing"
	SyncStatusSuccess SyncStatus = "success"
	SyncStatusError   SyncStatus = "error"
)

// Credentials identifies the remote list source. Opaque to the ingestion
// core; only pkg/listapi interprets them.
type Credentials struct {
	BaseURL      string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`
	ListID       string `json:"list_id" yaml:"list_id" mapstructure:"list_id"`
	ClientID     string `json:"client_id" yaml:"client_id" mapstructure:"client_id"`
	ClientSecret string `json:"client_secret" yaml:"client_secret" mapstructure:"client_secret"`
}

// SyncConfiguration describes one remote-list source: where it lives, how to
// authenticate, and how its columns map onto canonical pantry fields.
type SyncConfiguration struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Kind           string            `json:"kind"`
	Credentials    Credentials       `json:"credentials"`
	Mapping        map[string]string `json:"mapping"`
	LastSyncStatus SyncStatus        `json:"last_sync_status"`
	LastError      string            `json:"last_error,omitempty"`
	LastSyncTime   *time.Time        `json:"last_sync_time,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// SourceColumn returns the mapped source column for a canonical field, or ""
// when the field is unmapped.
func (c *SyncConfiguration) SourceColumn(field string) string {
	if c.Mapping == nil {
		return ""
	}
	return c.Mapping[field]
}
