package models

// OutboundMessageRequest represents requests to send a message manually via the API.
type OutboundMessageRequest struct {
	To         string `json:"to" binding:"required"`
	Message    string `json:"message" binding:"required"`
	PreviewURL bool   `json:"preview_url"`
}

// ReviewStatus is the classification handed to the notification collaborator.
type ReviewStatus string

const (
	ReviewOK          ReviewStatus = "ok"
	ReviewNeedsReview ReviewStatus = "needs review"
)

// Notice is what the notification collaborator presents to a user.
type Notice struct {
	Recipient string       `json:"recipient"`
	Status    ReviewStatus `json:"status,omitempty"`
	Summary   string       `json:"summary"`
}
