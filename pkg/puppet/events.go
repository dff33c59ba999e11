package puppet

// EventType identifies one entry of the adapter's event vocabulary.
type EventType string

const (
	EventTypeReady      EventType = "ready"
	EventTypeScan       EventType = "scan"
	EventTypeLogin      EventType = "login"
	EventTypeLogout     EventType = "logout"
	EventTypeMessage    EventType = "message"
	EventTypeRoomJoin   EventType = "room-join"
	EventTypeRoomLeave  EventType = "room-leave"
	EventTypeRoomTopic  EventType = "room-topic"
	EventTypeRoomAdmin  EventType = "room-admin"
	EventTypeRoomInvite EventType = "room-invite"
	EventTypeError      EventType = "error"
)

// Event is implemented by every payload published on the Bus.
type Event interface {
	Type() EventType
}

// EventReady signals that the adapter finished its post-login bulk load and
// is ready to serve lookups.
type EventReady struct{}

// EventScan carries a QR login state change.
type EventScan struct {
	QRCodeURL string
	Status    ScanStatus
	Data      string // raw scan record, for diagnostics
}

// EventLogin is emitted exactly once per session when login is discovered.
type EventLogin struct {
	User Contact
}

// EventLogout is emitted when the session ends.
type EventLogout struct {
	Reason string
}

// EventMessage references a normalized message by id; the full record is
// retrieved through the adapter's message lookup.
type EventMessage struct {
	MessageID string
}

// EventRoomJoin is emitted when members are added to a room.
type EventRoomJoin struct {
	RoomID    string
	InviterID string
	MemberIDs []string
}

// EventRoomLeave is emitted when members are removed from a room.
type EventRoomLeave struct {
	RoomID     string
	OperatorID string
	MemberIDs  []string
}

// EventRoomTopic is emitted when a room topic changes.
type EventRoomTopic struct {
	RoomID     string
	OperatorID string
	Topic      string
	OldTopic   string
}

// EventRoomAdmin is emitted when room admins are added or removed.
type EventRoomAdmin struct {
	RoomID     string
	OperatorID string
	AdminIDs   []string
	Removed    bool
}

// EventRoomInvite is emitted for a room invitation awaiting confirmation.
type EventRoomInvite struct {
	RoomInvitationID string
}

// EventError surfaces a non-fatal adapter error to the host.
type EventError struct {
	Message string
	Data    string
}

func (EventReady) Type() EventType      { return EventTypeReady }
func (EventScan) Type() EventType       { return EventTypeScan }
func (EventLogin) Type() EventType      { return EventTypeLogin }
func (EventLogout) Type() EventType     { return EventTypeLogout }
func (EventMessage) Type() EventType    { return EventTypeMessage }
func (EventRoomJoin) Type() EventType   { return EventTypeRoomJoin }
func (EventRoomLeave) Type() EventType  { return EventTypeRoomLeave }
func (EventRoomTopic) Type() EventType  { return EventTypeRoomTopic }
func (EventRoomAdmin) Type() EventType  { return EventTypeRoomAdmin }
func (EventRoomInvite) Type() EventType { return EventTypeRoomInvite }
func (EventError) Type() EventType      { return EventTypeError }
