package entity

import "time"

// InternalAPIKey authenticates another internal service. AllowedAccess lists
// the services the key's owner may call.
type InternalAPIKey struct {
	ID            uint64
	ServiceName   string
	KeyHash       string
	AllowedAccess []string
	IsActive      bool
	ExpiresAt     time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (k *InternalAPIKey) IsUsable(now time.Time) bool {
	return k.IsActive && now.Before(k.ExpiresAt)
}

func (k *InternalAPIKey) Allows(service string) bool {
	for _, allowed := range k.AllowedAccess {
		if allowed == service {
			return true
		}
	}
	return false
}
