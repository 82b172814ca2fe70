package model

// Session is the per-user conversational state kept by the chat front-end.
type Session struct {
	UserID          int64  `json:"user_id"`
	Email           string `json:"email,omitempty"`
	AwaitingContact bool   `json:"awaiting_contact"`
}

func (s *Session) HasContact() bool { return s != nil && s.Email != "" }
