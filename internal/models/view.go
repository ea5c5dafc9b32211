package models

// ReplyUser summarises the comment a reply answers
type ReplyUser struct {
	Avatar string `json:"avatar"`
	Link   string `json:"link"`
	Nick   string `json:"nick"`
}

// CommentView is a comment as rendered to clients. Mail and IP are only
// populated for administrators.
type CommentView struct {
	ObjectID  int64         `json:"objectId"`
	Status    CommentStatus `json:"status"`
	Like      int           `json:"like"`
	Sticky    bool          `json:"sticky"`
	Link      string        `json:"link"`
	Nick      string        `json:"nick"`
	Mail      string        `json:"mail,omitempty"`
	IP        string        `json:"ip,omitempty"`
	UserID    *int64        `json:"user_id,omitempty"`
	Type      string        `json:"type,omitempty"`
	Label     string        `json:"label,omitempty"`
	Browser   string        `json:"browser"`
	OS        string        `json:"os"`
	Orig      string        `json:"orig"`
	Comment   string        `json:"comment"`
	URL       string        `json:"url"`
	PID       *int64        `json:"pid,omitempty"`
	RID       *int64        `json:"rid,omitempty"`
	Time      int64         `json:"time"`
	Avatar    string        `json:"avatar"`
	Level     int           `json:"level"`
	ReplyUser *ReplyUser    `json:"reply_user,omitempty"`
	Children  []CommentView `json:"children"`
}

// ThreadQuery is a public thread listing request
type ThreadQuery struct {
	Path     string
	Page     int
	PageSize int
	SortBy   string
}

// ThreadPage is one page of root comments with their replies
type ThreadPage struct {
	Count      int           `json:"count"`
	Data       []CommentView `json:"data"`
	Page       int           `json:"page"`
	PageSize   int           `json:"pageSize"`
	TotalPages int           `json:"totalPages"`
}

// AdminQuery is a moderation listing request
type AdminQuery struct {
	Owner   string
	Status  string
	Keyword string
	Page    int
}

// AdminPage is one page of the moderation listing
type AdminPage struct {
	Data         []CommentView `json:"data"`
	Page         int           `json:"page"`
	PageSize     int           `json:"pageSize"`
	TotalPages   int           `json:"totalPages"`
	SpamCount    int           `json:"spamCount"`
	WaitingCount int           `json:"waitingCount"`
}

// UserProfile is an account as returned to clients
type UserProfile struct {
	ObjectID    int64  `json:"objectId"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Type        string `json:"type"`
	Label       string `json:"label"`
	URL         string `json:"url"`
	Avatar      string `json:"avatar"`
	MailMD5     string `json:"mailMd5"`
	Token       string `json:"token,omitempty"`
}

// UserPage is one page of the account listing
type UserPage struct {
	Data       []UserProfile `json:"data"`
	Page       int           `json:"page"`
	PageSize   int           `json:"pageSize"`
	TotalPages int           `json:"totalPages"`
}

// TotalPages rounds total/pageSize up
func TotalPages(total, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// Stats is the operational snapshot served on /metrics
type Stats struct {
	Comments    int `json:"comments"`
	Waiting     int `json:"waiting"`
	Spam        int `json:"spam"`
	Users       int `json:"users"`
	Counters    int `json:"counters"`
	LimiterKeys int `json:"limiter_keys"`
}
