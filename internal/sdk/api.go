package sdk

import (
	"context"
	"fmt"
)

// Opcodes of the automation API, as observed against SDK 3.9.10.19.
const (
	OpQRCode   = 0
	OpUserInfo = 28

	OpContactList     = 30
	OpContactInfo     = 31
	OpChatRoomList    = 32
	OpChatRoomInfo    = 33
	OpChatRoomMembers = 34

	OpSendText        = 36
	OpSendImage       = 38
	OpSendFile        = 39
	OpSendContactCard = 40
	OpSendLocation    = 41
	OpSendPat         = 42
	OpSendEmoji       = 43
	OpSendAppMsg      = 44

	OpCreateChatRoom     = 50
	OpDestroyChatRoom    = 51
	OpQuitChatRoom       = 52
	OpModifyTopic        = 53
	OpModifyAnnouncement = 54
	OpAddMembers         = 55
	OpRemoveMembers      = 56
	OpInviteMembers      = 57
	OpAddAdmins          = 58
	OpRemoveAdmins       = 59

	OpTagList           = 60
	OpCreateTag         = 61
	OpDeleteTag         = 62
	OpModifyContactTags = 63

	OpCdnUpload   = 66
	OpCdnDownload = 67

	OpHookMsg   = 74
	OpUnhookMsg = 75

	OpExit = 81
)

// Hook protocol codes advertised when registering the push hook.
const (
	HookProtocolHTTP = 2
	HookProtocolWS   = 3
)

// CDN file type codes for the download-and-decrypt opcode.
const (
	CdnFileFull      = 1
	CdnFileMid       = 2
	CdnFileThumb     = 3
	CdnFileVideo     = 4
	CdnFileAttach    = 5
	CdnFileBigAttach = 7 // attachments over 25MB
	CdnFileAudio     = 15
)

// QRCode fetches the raw login QR code image.
func (c *Client) QRCode(ctx context.Context) ([]byte, error) {
	var res QRCodeResult
	if err := c.callInto(ctx, OpQRCode, nil, &res); err != nil {
		return nil, err
	}
	return res.QRCode, nil
}

// UserInfo queries the current login state and account profile.
func (c *Client) UserInfo(ctx context.Context) (*UserInfo, error) {
	var user UserInfo
	if err := c.callInto(ctx, OpUserInfo, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// HookMsg registers the push hook and returns the session cookie used to
// unregister it later. protocol is HookProtocolHTTP or HookProtocolWS.
func (c *Client) HookMsg(ctx context.Context, protocol int, url string) (string, error) {
	var res HookResult
	err := c.callInto(ctx, OpHookMsg, map[string]any{
		"protocol": protocol,
		"url":      url,
	}, &res)
	if err != nil {
		return "", err
	}
	if res.Cookie == "" {
		return "", fmt.Errorf("hook msg: empty cookie")
	}
	return res.Cookie, nil
}

// UnhookMsg unregisters a previously registered push hook.
func (c *Client) UnhookMsg(ctx context.Context, cookie string) error {
	return c.callInto(ctx, OpUnhookMsg, map[string]any{"cookie": cookie}, nil)
}

// Exit asks the automation process to shut down.
func (c *Client) Exit(ctx context.Context) error {
	return c.callInto(ctx, OpExit, nil, nil)
}

// --- Contacts ---

// ContactList fetches the full contact list.
func (c *Client) ContactList(ctx context.Context) ([]ContactRecord, error) {
	var res struct {
		Contacts []ContactRecord `json:"contacts"`
	}
	if err := c.callInto(ctx, OpContactList, nil, &res); err != nil {
		return nil, err
	}
	return res.Contacts, nil
}

// ContactInfo fetches the full profile of one contact.
func (c *Client) ContactInfo(ctx context.Context, userName string) (*ContactDetail, error) {
	var detail ContactDetail
	err := c.callInto(ctx, OpContactInfo, map[string]any{"userName": userName}, &detail)
	if err != nil {
		return nil, err
	}
	return &detail, nil
}

// --- Chat rooms ---

// ChatRoomList fetches the full chat room list.
func (c *Client) ChatRoomList(ctx context.Context) ([]ChatRoomRecord, error) {
	var res struct {
		ChatRooms []ChatRoomRecord `json:"chatrooms"`
	}
	if err := c.callInto(ctx, OpChatRoomList, nil, &res); err != nil {
		return nil, err
	}
	return res.ChatRooms, nil
}

// ChatRoomInfo fetches detail for one chat room.
func (c *Client) ChatRoomInfo(ctx context.Context, roomID string) (*ChatRoomInfo, error) {
	var info ChatRoomInfo
	err := c.callInto(ctx, OpChatRoomInfo, map[string]any{"userName": roomID}, &info)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// ChatRoomMembers fetches the member list of one chat room.
func (c *Client) ChatRoomMembers(ctx context.Context, roomID string) (*ChatRoomMemberList, error) {
	var members ChatRoomMemberList
	err := c.callInto(ctx, OpChatRoomMembers, map[string]any{"userName": roomID}, &members)
	if err != nil {
		return nil, err
	}
	return &members, nil
}

// CreateChatRoom creates a room with the given initial members and returns
// the new room id.
func (c *Client) CreateChatRoom(ctx context.Context, memberIDs []string) (string, error) {
	var res CreateRoomResult
	err := c.callInto(ctx, OpCreateChatRoom, map[string]any{"userNames": memberIDs}, &res)
	if err != nil {
		return "", err
	}
	return res.ChatroomUserName, nil
}

// DestroyChatRoom dissolves a room owned by the logged-in account.
func (c *Client) DestroyChatRoom(ctx context.Context, roomID string) error {
	return c.callInto(ctx, OpDestroyChatRoom, map[string]any{"chatroomUserName": roomID}, nil)
}

// QuitChatRoom leaves a room.
func (c *Client) QuitChatRoom(ctx context.Context, roomID string) error {
	return c.callInto(ctx, OpQuitChatRoom, map[string]any{"chatroomUserName": roomID}, nil)
}

// ModifyTopic changes a room topic.
func (c *Client) ModifyTopic(ctx context.Context, roomID, topic string) error {
	return c.callInto(ctx, OpModifyTopic, map[string]any{
		"chatroomUserName": roomID,
		"nickName":         topic,
	}, nil)
}

// ModifyAnnouncement changes a room announcement.
func (c *Client) ModifyAnnouncement(ctx context.Context, roomID, text string) error {
	return c.callInto(ctx, OpModifyAnnouncement, map[string]any{
		"chatroomUserName": roomID,
		"announcement":     text,
	}, nil)
}

// AddMembers adds members directly (rooms under 40 members).
func (c *Client) AddMembers(ctx context.Context, roomID string, memberIDs []string) error {
	return c.callInto(ctx, OpAddMembers, map[string]any{
		"chatroomUserName": roomID,
		"userNames":        memberIDs,
	}, nil)
}

// RemoveMembers removes members from a room.
func (c *Client) RemoveMembers(ctx context.Context, roomID string, memberIDs []string) error {
	return c.callInto(ctx, OpRemoveMembers, map[string]any{
		"chatroomUserName": roomID,
		"userNames":        memberIDs,
	}, nil)
}

// InviteMembers sends join invitations (rooms of 40 members or more).
func (c *Client) InviteMembers(ctx context.Context, roomID string, memberIDs []string) error {
	return c.callInto(ctx, OpInviteMembers, map[string]any{
		"chatroomUserName": roomID,
		"userNames":        memberIDs,
	}, nil)
}

// AddAdmins grants room admin to the given members.
func (c *Client) AddAdmins(ctx context.Context, roomID string, memberIDs []string) error {
	return c.callInto(ctx, OpAddAdmins, map[string]any{
		"chatroomUserName": roomID,
		"userNames":        memberIDs,
	}, nil)
}

// RemoveAdmins revokes room admin from the given members.
func (c *Client) RemoveAdmins(ctx context.Context, roomID string, memberIDs []string) error {
	return c.callInto(ctx, OpRemoveAdmins, map[string]any{
		"chatroomUserName": roomID,
		"userNames":        memberIDs,
	}, nil)
}

// --- Sending ---

// SendText sends a text message; atList mentions room members by id.
func (c *Client) SendText(ctx context.Context, to, content string, atList []string) (*SendResult, error) {
	params := map[string]any{
		"userName": to,
		"content":  content,
	}
	if len(atList) > 0 {
		params["atUserNames"] = atList
	}
	var res SendResult
	if err := c.callInto(ctx, OpSendText, params, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SendImage sends an image from a local path on the SDK host.
func (c *Client) SendImage(ctx context.Context, to, path string) (*SendResult, error) {
	var res SendResult
	err := c.callInto(ctx, OpSendImage, map[string]any{
		"userName": to,
		"filePath": path,
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// SendFile sends a file attachment from a local path on the SDK host.
func (c *Client) SendFile(ctx context.Context, to, path string) (*SendResult, error) {
	var res SendResult
	err := c.callInto(ctx, OpSendFile, map[string]any{
		"userName": to,
		"filePath": path,
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// SendContactCard shares a contact card.
func (c *Client) SendContactCard(ctx context.Context, to, contactID string) (*SendResult, error) {
	var res SendResult
	err := c.callInto(ctx, OpSendContactCard, map[string]any{
		"userName":        to,
		"contactUserName": contactID,
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// SendLocation sends a geographic location.
func (c *Client) SendLocation(ctx context.Context, to string, latitude, longitude float64, label string) (*SendResult, error) {
	var res SendResult
	err := c.callInto(ctx, OpSendLocation, map[string]any{
		"userName":  to,
		"latitude":  latitude,
		"longitude": longitude,
		"label":     label,
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// SendPat pats a room member.
func (c *Client) SendPat(ctx context.Context, roomID, memberID string) error {
	return c.callInto(ctx, OpSendPat, map[string]any{
		"chatroomUserName": roomID,
		"userName":         memberID,
	}, nil)
}

// SendEmoji sends a sticker by its md5 reference.
func (c *Client) SendEmoji(ctx context.Context, to, md5 string, totalLen int64) (*SendResult, error) {
	var res SendResult
	err := c.callInto(ctx, OpSendEmoji, map[string]any{
		"userName": to,
		"md5":      md5,
		"totalLen": totalLen,
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// SendAppMsg sends a raw app-message envelope (url links, mini programs).
func (c *Client) SendAppMsg(ctx context.Context, to, xml string) (*SendResult, error) {
	var res SendResult
	err := c.callInto(ctx, OpSendAppMsg, map[string]any{
		"userName": to,
		"content":  xml,
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// --- Tags ---

// TagList fetches all contact labels.
func (c *Client) TagList(ctx context.Context) ([]TagRecord, error) {
	var res struct {
		Labels []TagRecord `json:"labels"`
	}
	if err := c.callInto(ctx, OpTagList, nil, &res); err != nil {
		return nil, err
	}
	return res.Labels, nil
}

// CreateTag creates a contact label and returns it.
func (c *Client) CreateTag(ctx context.Context, name string) (*TagRecord, error) {
	var tag TagRecord
	err := c.callInto(ctx, OpCreateTag, map[string]any{"labelName": name}, &tag)
	if err != nil {
		return nil, err
	}
	return &tag, nil
}

// DeleteTag removes a contact label.
func (c *Client) DeleteTag(ctx context.Context, labelID int) error {
	return c.callInto(ctx, OpDeleteTag, map[string]any{"labelId": labelID}, nil)
}

// ModifyContactTags replaces the label set of one contact.
func (c *Client) ModifyContactTags(ctx context.Context, userName string, labelIDs []int) error {
	return c.callInto(ctx, OpModifyContactTags, map[string]any{
		"userName": userName,
		"labelIds": labelIDs,
	}, nil)
}

// --- CDN ---

// CdnDownload downloads and decrypts a CDN payload to savePath on the SDK
// host. fileType is one of the CdnFile* codes.
func (c *Client) CdnDownload(ctx context.Context, fileID, aesKey string, fileType int, savePath string) error {
	return c.callInto(ctx, OpCdnDownload, map[string]any{
		"fileid":   fileID,
		"aeskey":   aesKey,
		"fileType": fileType,
		"savePath": savePath,
	}, nil)
}

// CdnUpload uploads a local file to the CDN and returns the raw result.
func (c *Client) CdnUpload(ctx context.Context, filePath string) (map[string]any, error) {
	var res map[string]any
	err := c.callInto(ctx, OpCdnUpload, map[string]any{"filePath": filePath}, &res)
	if err != nil {
		return nil, err
	}
	return res, nil
}
