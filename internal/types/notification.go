package types

import "time"

// EmailMessage is the body accepted by the email relay
type EmailMessage struct {
	To      string `json:"to" binding:"required,simple_email"`
	Subject string `json:"subject" binding:"required"`
	HTML    string `json:"html" binding:"required"`
	From    string `json:"from,omitempty"`
	ReplyTo string `json:"replyTo,omitempty"`
}

// EmailResult is returned by the email relay on success
type EmailResult struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	Message string `json:"message"`
}

// NotificationType drives the client deep link of a push notification
type NotificationType string

const (
	NotificationWithdrawal  NotificationType = "withdrawal"
	NotificationTask        NotificationType = "task"
	NotificationLeaderboard NotificationType = "leaderboard"
	NotificationReferral    NotificationType = "referral"
	NotificationAchievement NotificationType = "achievement"
)

var deepLinks = map[NotificationType]string{
	NotificationWithdrawal:  "/wallet",
	NotificationTask:        "/tasks",
	NotificationLeaderboard: "/leaderboard",
	NotificationReferral:    "/referrals",
	NotificationAchievement: "/achievements",
}

// DeepLink returns the client path opened by a notification of this type
func (t NotificationType) DeepLink() string {
	if link, ok := deepLinks[t]; ok {
		return link
	}
	return "/"
}

// PushRequest is the body accepted by the push relay
type PushRequest struct {
	UserID   string           `json:"userId" binding:"required"`
	Title    string           `json:"title" binding:"required"`
	Message  string           `json:"message" binding:"required"`
	Type     NotificationType `json:"type"`
	Metadata map[string]any   `json:"metadata,omitempty"`
}

// PushResult is returned by the push relay
type PushResult struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	NotificationID string `json:"notificationId,omitempty"`
}

// PushSubscription is a browser push subscription registered by a user
type PushSubscription struct {
	UserID    string    `json:"userId" binding:"required"`
	Endpoint  string    `json:"endpoint" binding:"required,url"`
	P256dh    string    `json:"p256dh" binding:"required"`
	Auth      string    `json:"auth" binding:"required"`
	CreatedAt time.Time `json:"createdAt"`
}

// NotificationRecord is the persisted form of a relayed push notification
type NotificationRecord struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	URL       string           `json:"url"`
	Metadata  map[string]any   `json:"metadata,omitempty"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}
