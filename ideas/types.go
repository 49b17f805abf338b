package ideas

import "time"

// PostStatus is the review state of an idea.
type PostStatus string

const (
	StatusToVerify    PostStatus = "TO_VERIFY"
	StatusSubmitted   PostStatus = "SUBMITTED"
	StatusInProgress  PostStatus = "IN_PROGRESS"
	StatusImplemented PostStatus = "IMPLEMENTED"
)

// Author is the public part of a user: the backend never sends more.
type Author struct {
	ID       int    `json:"id"`
	Nickname string `json:"nickname"`
}

type Post struct {
	ID            int        `json:"id"`
	Title         string     `json:"title,omitempty"`
	Author        Author     `json:"author"`
	Content       string     `json:"content"`
	Category      int        `json:"category"`
	Status        PostStatus `json:"status,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	LikesCount    int        `json:"likes_count"`
	CommentsCount int        `json:"comments_count"`
	IsLikedByMe   bool       `json:"is_liked_by_me"`
}

// PostInput creates a post. Category is the category id.
type PostInput struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Category int    `json:"category"`
}

// PostPatch carries the fields to change; nil fields are left alone.
type PostPatch struct {
	Title    *string     `json:"title,omitempty"`
	Content  *string     `json:"content,omitempty"`
	Category *int        `json:"category,omitempty"`
	Status   *PostStatus `json:"status,omitempty"`
}

type Comment struct {
	ID        int       `json:"id"`
	Post      int       `json:"post"`
	Author    Author    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type CommentInput struct {
	Text string `json:"text"`
}

// LikeStatus is "liked" or "unliked" after a toggle.
type LikeStatus struct {
	Status string `json:"status"`
}

func (l LikeStatus) Liked() bool {
	return l.Status == "liked"
}

type Category struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

// FrequencyUnit is how often the wasted time occurs.
type FrequencyUnit string

const (
	FrequencyDay   FrequencyUnit = "DAY"
	FrequencyWeek  FrequencyUnit = "WEEK"
	FrequencyMonth FrequencyUnit = "MONTH"
)

// SurveyInput is the cost/benefit questionnaire attached to a post.
type SurveyInput struct {
	FrequencyValue  int           `json:"frequency_value"`
	FrequencyUnit   FrequencyUnit `json:"frequency_unit"`
	AffectedPeople  int           `json:"affected_people"`
	TimeLostMinutes int           `json:"time_lost_minutes"`
}

// Survey is a stored questionnaire with the estimates the backend derived.
type Survey struct {
	SurveyInput
	EstimatedTimeSavingsHours float64 `json:"estimated_time_savings_hours"`
	EstimatedFinancialSavings string  `json:"estimated_financial_savings"`
}

type NotificationType string

const (
	NotificationLike    NotificationType = "LIKE"
	NotificationComment NotificationType = "COMMENT"
)

type Notification struct {
	ID        int              `json:"id"`
	Type      NotificationType `json:"type"`
	Actor     Author           `json:"actor"`
	Post      int              `json:"post"`
	Comment   *int             `json:"comment"`
	CreatedAt time.Time        `json:"created_at"`
	ReadAt    *time.Time       `json:"read_at"`
	IsRead    bool             `json:"is_read"`
}

type UnreadCount struct {
	UnreadCount int `json:"unread_count"`
}
