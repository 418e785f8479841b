package models

// ChatRoom is a room as listed by the chat service. Room lifecycle is handled
// by the service; the client only reads this record to pick a room to open.
type ChatRoom struct {
	// ID is the room identifier used in every room-scoped request.
	ID FlexibleID `json:"id"`
	// Name is the human readable room name.
	Name string `json:"name"`
	// Members holds the user ids of the room participants.
	Members []FlexibleID `json:"members"`
	// Admin is the user id of the room administrator.
	Admin FlexibleID `json:"admin"`
}

// RoomContext is the viewer's current subscription. It is replaced as a
// whole when the room or the display language changes.
type RoomContext struct {
	RoomID   string
	Language Language
	// Generation increases with every replacement and tags every
	// asynchronous result that belongs to this context.
	Generation uint64
}

// WithLanguage returns a copy of the context using lang and the given
// generation.
func (c RoomContext) WithLanguage(lang Language, generation uint64) RoomContext {
	return RoomContext{RoomID: c.RoomID, Language: lang, Generation: generation}
}
