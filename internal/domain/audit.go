package domain

import (
	"time"
)

// SecurityEventKind classifies security-relevant account activity.
type SecurityEventKind string

const (
	SecurityEventLogin           SecurityEventKind = "login"
	SecurityEventLogout          SecurityEventKind = "logout"
	SecurityEventPasswordChange  SecurityEventKind = "password_change"
	SecurityEventAccountLock     SecurityEventKind = "account_lock"
	SecurityEventAccountUnlock   SecurityEventKind = "account_unlock"
	SecurityEventEmailChange     SecurityEventKind = "email_change"
	SecurityEventPhoneChange     SecurityEventKind = "phone_change"
	SecurityEventAccountDeletion SecurityEventKind = "account_deletion"
	SecurityEventOther           SecurityEventKind = "other"
)

// IsValidSecurityEventKind checks whether the given kind is recognized.
func IsValidSecurityEventKind(kind SecurityEventKind) bool {
	switch kind {
	case SecurityEventLogin, SecurityEventLogout, SecurityEventPasswordChange,
		SecurityEventAccountLock, SecurityEventAccountUnlock,
		SecurityEventEmailChange, SecurityEventPhoneChange,
		SecurityEventAccountDeletion, SecurityEventOther:
		return true
	}
	return false
}

// SecurityEvent is an append-only record of security-relevant activity on
// an account. Rows are never updated or deleted by the service.
type SecurityEvent struct {
	ID          int64             `json:"id"`
	AccountID   int64             `json:"account_id"`
	Kind        SecurityEventKind `json:"kind"`
	Description string            `json:"description,omitempty"`
	IPAddress   string            `json:"ip_address,omitempty"`
	Device      string            `json:"device,omitempty"`
	Location    string            `json:"location,omitempty"`
	OccurredAt  time.Time         `json:"occurred_at"`
}

// AccessKind classifies resource access recorded in the access log.
type AccessKind string

const (
	AccessView     AccessKind = "view"
	AccessDownload AccessKind = "download"
	AccessEdit     AccessKind = "edit"
	AccessExport   AccessKind = "export"
)

// IsValidAccessKind checks whether the given kind is recognized.
func IsValidAccessKind(kind AccessKind) bool {
	switch kind {
	case AccessView, AccessDownload, AccessEdit, AccessExport:
		return true
	}
	return false
}

// AccessLog is an append-only record of resource access by an account.
type AccessLog struct {
	ID         int64      `json:"id"`
	AccountID  int64      `json:"account_id"`
	Kind       AccessKind `json:"kind"`
	Resource   string     `json:"resource,omitempty"`
	IPAddress  string     `json:"ip_address,omitempty"`
	Device     string     `json:"device,omitempty"`
	UserAgent  string     `json:"user_agent,omitempty"`
	Location   string     `json:"location,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}
