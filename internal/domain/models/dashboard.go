package models

// ChartData is a labelled series for the dashboard chart
type ChartData struct {
	Labels []string `json:"labels"`
	Data   []int    `json:"data"`
}

// Dashboard summarises what needs the user's attention
type Dashboard struct {
	IncomingCount       int            `json:"incoming_count"`
	SentCount           int            `json:"sent_count"`
	SignedCount         int            `json:"signed_count"`
	RecentNotifications []Notification `json:"recent_notifications"`
	RecentComments      []DocumentLog  `json:"recent_comments"`
	Chart               ChartData      `json:"chart"`
}
