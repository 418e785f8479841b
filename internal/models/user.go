package models

// Identity is a user directory record.
type Identity struct {
	ID          FlexibleID `json:"id"`
	DisplayName string     `json:"username"`
}

// Viewer is the authenticated user looking at the room.
type Viewer struct {
	UserID   string
	Username string
	// Token is the credential passed to every backend call.
	Token string
}

// Owns reports whether the sender refers to the viewer.
func (v Viewer) Owns(sender Sender, displayName string) bool {
	if v.UserID != "" && sender.ID == v.UserID {
		return true
	}
	return v.Username != "" && displayName == v.Username
}
