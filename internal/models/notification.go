package models

import "time"

// NotificationType enumerates notification kinds.
type NotificationType string

const (
	NotificationNewTask            NotificationType = "NEW_TASK"
	NotificationTaskGraded         NotificationType = "TASK_GRADED"
	NotificationDeadlineReminder   NotificationType = "DEADLINE_REMINDER"
	NotificationSubmissionReceived NotificationType = "SUBMISSION_RECEIVED"
	NotificationAdminAnnouncement  NotificationType = "ADMIN_ANNOUNCEMENT"
	NotificationCourseEnrollment   NotificationType = "COURSE_ENROLLMENT"
	NotificationTaskEdited         NotificationType = "TASK_EDITED"
)

// Notification is addressed to a single user; sender may be a user or the system.
type Notification struct {
	ID            string           `db:"id" json:"id"`
	RecipientKind UserRole         `db:"recipient_kind" json:"recipientModel"`
	RecipientID   string           `db:"recipient_id" json:"recipient"`
	SenderKind    *UserRole        `db:"sender_kind" json:"senderModel,omitempty"`
	SenderID      *string          `db:"sender_id" json:"sender,omitempty"`
	Type          NotificationType `db:"type" json:"type"`
	Message       string           `db:"message" json:"message"`
	Link          *string          `db:"link" json:"link,omitempty"`
	IsRead        bool             `db:"is_read" json:"isRead"`
	CreatedAt     time.Time        `db:"created_at" json:"createdAt"`
}

// NotificationFilter scopes a recipient's inbox.
type NotificationFilter struct {
	Recipient  ActorRef
	UnreadOnly bool
	Page       int
	PageSize   int
}

// NotificationRequest describes a fan-out to a set of recipients.
type NotificationRequest struct {
	Recipients []ActorRef
	Sender     *ActorRef
	Type       NotificationType
	Message    string
	Link       string
}

// AnnouncementRequest is an admin broadcast. Empty Role broadcasts to every user.
type AnnouncementRequest struct {
	Role    UserRole `json:"role" validate:"omitempty,oneof=ADMIN FACULTY STUDENT"`
	Message string   `json:"message" validate:"required,max=1000"`
	Link    string   `json:"link"`
}
