// Package models contains data structures for the application
package models

import (
	"time"
)

// Role is the kind of account a person signed up as
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return true
	}
	return false
}

// ApprovalStatus gates access to role-specific screens
type ApprovalStatus string

const (
	StatusPending  ApprovalStatus = "pending"
	StatusApproved ApprovalStatus = "approved"
	StatusDeclined ApprovalStatus = "declined"
)

// Valid reports whether s is one of the known statuses
func (s ApprovalStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusDeclined:
		return true
	}
	return false
}

// Account is a person registered in one of the role partitions
type Account struct {
	ID             string         `json:"id"`
	Role           Role           `json:"role"`
	ApprovalStatus ApprovalStatus `json:"approvalStatus"`
	Name           string         `json:"name"`
	Email          string         `json:"email"`
	Phone          string         `json:"phone,omitempty"`
	Profession     string         `json:"profession,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	LastActiveTime *time.Time     `json:"lastActiveTime,omitempty"`
}

// ScanRecord is one room visit stored on the presence document and in the scan history
type ScanRecord struct {
	ID        string    `json:"id,omitempty"`
	Room      string    `json:"room"`
	Timestamp time.Time `json:"timestamp"`
}

// TeacherPresence is the last known location of a teacher
type TeacherPresence struct {
	TeacherID       string
	CurrentLocation string
	LastActiveTime  *time.Time
	Scans           []ScanRecord
}

// ScanEvent is a decoded QR payload waiting for the teacher's decision
type ScanEvent struct {
	ID           string    `json:"id"`
	RawPayload   string    `json:"rawPayload"`
	ResolvedRoom string    `json:"resolvedRoom"`
	OccurredAt   time.Time `json:"occurredAt"`
}

// Record converts the event into the record persisted for it
func (e ScanEvent) Record() ScanRecord {
	return ScanRecord{ID: e.ID, Room: e.ResolvedRoom, Timestamp: e.OccurredAt}
}

// TeacherLocation is a teacher as shown in the student locator
type TeacherLocation struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	Email           string       `json:"email"`
	Phone           string       `json:"phone"`
	Profession      string       `json:"profession"`
	CurrentLocation string       `json:"currentLocation,omitempty"`
	LastActiveTime  *time.Time   `json:"lastActiveTime,omitempty"`
	LastSeen        string       `json:"lastSeen"`
	Scans           []ScanRecord `json:"scans"`
}

// UserRow is an account as listed on the administrator's users screen
type UserRow struct {
	ID             string         `json:"id"`
	Role           Role           `json:"role"`
	Name           string         `json:"name"`
	Email          string         `json:"email"`
	Phone          string         `json:"phone,omitempty"`
	Profession     string         `json:"profession,omitempty"`
	ApprovalStatus ApprovalStatus `json:"approvalStatus"`
	CreatedAt      time.Time      `json:"createdAt"`
	LastActiveTime *time.Time     `json:"lastActiveTime,omitempty"`
	Activity       string         `json:"activity"`
}

// StatusChangeRequest is an administrator's decision on an account
type StatusChangeRequest struct {
	Status ApprovalStatus `json:"status" validate:"required,oneof=pending approved declined"`
}

// DashboardStats summarizes accounts for the administrator
type DashboardStats struct {
	TotalStudents    int `json:"totalStudents"`
	TotalTeachers    int `json:"totalTeachers"`
	PendingApprovals int `json:"pendingApprovals"`
	ActiveUsers      int `json:"activeUsers"`
}

// SignUpRequest carries the fields collected on the sign-up form
type SignUpRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=6"`
	Name       string `json:"name" validate:"required"`
	Phone      string `json:"phone" validate:"required_if=Role teacher"`
	Profession string `json:"profession"`
	Role       Role   `json:"role" validate:"required,oneof=student teacher"`
}

// SignInRequest carries login credentials
type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Identity is the opaque account key returned by the identity provider
type Identity struct {
	UID   string
	Email string
}
