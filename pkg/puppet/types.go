package puppet

// MessageKind is the closed set of normalized message categories, independent
// of the SDK's numeric type codes.
type MessageKind int

const (
	MessageUnknown MessageKind = iota
	MessageText
	MessageImage
	MessageVideo
	MessageAudio
	MessageURL
	MessageAttachment
	MessageContact
	MessageEmoticon
	MessageLocation
	MessageMiniProgram
	MessageChatHistory
	MessageGroupNote
	MessageTransfer
	MessageRedEnvelope
	MessageRecalled
	MessagePost
	MessageSystemNotice
)

// String returns the string representation of a MessageKind.
func (k MessageKind) String() string {
	switch k {
	case MessageText:
		return "text"
	case MessageImage:
		return "image"
	case MessageVideo:
		return "video"
	case MessageAudio:
		return "audio"
	case MessageURL:
		return "url"
	case MessageAttachment:
		return "attachment"
	case MessageContact:
		return "contact"
	case MessageEmoticon:
		return "emoticon"
	case MessageLocation:
		return "location"
	case MessageMiniProgram:
		return "miniprogram"
	case MessageChatHistory:
		return "chathistory"
	case MessageGroupNote:
		return "groupnote"
	case MessageTransfer:
		return "transfer"
	case MessageRedEnvelope:
		return "redenvelope"
	case MessageRecalled:
		return "recalled"
	case MessagePost:
		return "post"
	case MessageSystemNotice:
		return "system"
	default:
		return "unknown"
	}
}

// ScanStatus represents the progress of a QR login scan.
type ScanStatus int

const (
	ScanUnknown ScanStatus = iota
	ScanWaiting
	ScanScanned
	ScanConfirmed
)

// String returns the string representation of a ScanStatus.
func (s ScanStatus) String() string {
	switch s {
	case ScanWaiting:
		return "waiting"
	case ScanScanned:
		return "scanned"
	case ScanConfirmed:
		return "confirmed"
	default:
		return "unknown"
	}
}

// ContactKind classifies a contact by account type.
type ContactKind int

const (
	ContactIndividual ContactKind = iota
	ContactOfficial
	ContactCorporation
)

// Contact is a WeChat contact as seen by the adapter. Entries are created on
// first reference and enriched in place when profile detail arrives.
type Contact struct {
	ID        string
	Name      string
	Alias     string
	Avatar    string
	Kind      ContactKind
	Gender    int // 0: unknown, 1: male, 2: female
	City      string
	Province  string
	Signature string
	TagIDs    []string
	Friend    bool
}

// RoomMember is one member of a chat room.
type RoomMember struct {
	ID        string
	Name      string
	RoomAlias string // in-room display name
	Avatar    string
	IsAdmin   bool
	IsOwner   bool
}

// Room is a chat room. MemberIDs is always a superset of the ids appearing in
// Members; OwnerID, when non-empty, is an element of MemberIDs.
type Room struct {
	ID           string
	Topic        string
	Avatar       string
	OwnerID      string
	Announcement string
	AdminIDs     []string
	MemberIDs    []string
	Members      []RoomMember
}

// Member returns the member with the given id, or nil.
func (r *Room) Member(id string) *RoomMember {
	for i := range r.Members {
		if r.Members[i].ID == id {
			return &r.Members[i]
		}
	}
	return nil
}

// Message is the canonical immutable record for one inbound push message.
type Message struct {
	ID          string
	Kind        MessageKind
	SubKind     string // raw app-message subtype, kept for diagnostics
	Text        string
	SenderID    string
	RecipientID string
	RoomID      string // empty for direct messages
	Timestamp   int64  // milliseconds since epoch
}

// Tag is a contact label. Membership is a derived view over contacts.
type Tag struct {
	ID   string
	Name string
}
