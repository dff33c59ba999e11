// Package normalize maps raw push records onto the adapter's closed set of
// canonical message kinds.
package normalize

import (
	"encoding/xml"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openwx/wechatsdk-bridge/internal/sdk"
	"github.com/openwx/wechatsdk-bridge/pkg/puppet"
)

// roomSenderSep separates the prefixed sender id from the body of a room
// message's content field.
const roomSenderSep = ":\n"

// Raw numeric type codes pushed by the SDK.
const (
	rawText      = 1
	rawImage     = 3
	rawVideoOld  = 4
	rawURLShare  = 5
	rawAudio     = 34
	rawCard      = 37
	rawContact   = 42
	rawVideo     = 43
	rawEmoticon  = 47
	rawLocation  = 48
	rawAppMsg    = 49
	rawGroupNote = 53
	rawSystem    = 10000
	rawRecalled  = 10002
	rawPost      = 1000000000
)

var subTypePattern = regexp.MustCompile(`<type>(\d+)</type>`)

// appEnvelope is the nested discriminator of a type-49 app message.
type appEnvelope struct {
	XMLName xml.Name `xml:"msg"`
	AppMsg  struct {
		Type  string `xml:"type"`
		Title string `xml:"title"`
	} `xml:"appmsg"`
}

// Normalizer classifies raw push records. It never lets a malformed payload
// escape as a panic or error: classification degrades to Unknown instead.
type Normalizer struct {
	log *slog.Logger
}

// New creates a Normalizer.
func New(log *slog.Logger) *Normalizer {
	return &Normalizer{log: log}
}

// Normalize converts one raw pushed message into the canonical record.
func (n *Normalizer) Normalize(raw *sdk.RecvMsg) *puppet.Message {
	msg := &puppet.Message{
		ID:          raw.MsgSvrID.String(),
		Kind:        puppet.MessageUnknown,
		SenderID:    raw.TalkerInfo.UserName,
		RecipientID: raw.To,
		Timestamp:   timestampMillis(raw.CreateTime),
	}
	if msg.ID == "" || msg.ID == "0" {
		msg.ID = uuid.NewString()
	}
	if raw.IsChatroomMsg != 0 {
		msg.RoomID = raw.From
	} else if msg.SenderID == "" {
		msg.SenderID = raw.From
	}

	content := raw.Content
	if msg.RoomID != "" {
		// Room messages carry "senderId:\n" glued to the content; the
		// sender id is recovered from that prefix, not a separate field.
		if sender, body, ok := strings.Cut(content, roomSenderSep); ok {
			msg.SenderID = sender
			content = body
		}
	}
	msg.Text = content

	msg.SubKind = "0"
	if m := subTypePattern.FindStringSubmatch(content); m != nil {
		msg.SubKind = m[1]
	}

	switch raw.Type {
	case rawText:
		msg.Kind = puppet.MessageText
	case rawImage:
		msg.Kind = puppet.MessageImage
	case rawVideoOld, rawVideo:
		msg.Kind = puppet.MessageVideo
	case rawURLShare:
		msg.Kind = puppet.MessageURL
	case rawAudio:
		msg.Kind = puppet.MessageAudio
	case rawCard, rawContact:
		msg.Kind = puppet.MessageContact
	case rawEmoticon:
		msg.Kind = puppet.MessageEmoticon
	case rawLocation:
		msg.Kind = puppet.MessageLocation
	case rawAppMsg:
		msg.Kind, msg.SubKind = n.classifyAppMessage(content, msg.SubKind)
	case rawGroupNote:
		msg.Kind = puppet.MessageGroupNote
	case rawSystem:
		msg.Kind = puppet.MessageSystemNotice
	case rawRecalled:
		msg.Kind = puppet.MessageRecalled
	case rawPost:
		msg.Kind = puppet.MessagePost
	default:
		n.log.Debug("unmapped message type", "type", raw.Type, "msg_id", msg.ID)
	}

	return msg
}

// classifyAppMessage decodes the embedded app-message envelope of a type-49
// record. On parse failure the coarse classification stands and the
// regex-derived subtype is kept as a best-effort default.
func (n *Normalizer) classifyAppMessage(content, fallbackSub string) (puppet.MessageKind, string) {
	sub := fallbackSub

	var env appEnvelope
	if err := xml.Unmarshal([]byte(content), &env); err != nil {
		n.log.Warn("app message envelope parse failed", "error", err)
	} else if env.AppMsg.Type != "" {
		sub = env.AppMsg.Type
	}

	switch sub {
	case "1", "4", "5":
		return puppet.MessageURL, sub
	case "6":
		return puppet.MessageAttachment, sub
	case "19":
		return puppet.MessageChatHistory, sub
	case "33":
		return puppet.MessageMiniProgram, sub
	case "87":
		return puppet.MessageGroupNote, sub
	case "2000":
		return puppet.MessageTransfer, sub
	case "2001":
		return puppet.MessageRedEnvelope, sub
	case "10002":
		return puppet.MessageRecalled, sub
	default:
		return puppet.MessageUnknown, sub
	}
}

// timestampMillis converts the SDK's createTime (epoch seconds as a string)
// to milliseconds, falling back to the receive time.
func timestampMillis(createTime string) int64 {
	if secs, err := strconv.ParseInt(createTime, 10, 64); err == nil && secs > 0 {
		return secs * 1000
	}
	return time.Now().UnixMilli()
}
