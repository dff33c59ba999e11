package sdk

import "encoding/json"

// SuccessCode is the error_code the automation process returns for a
// successful call.
const SuccessCode = 10000

// Result is the envelope every API call returns.
type Result struct {
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Data        json.RawMessage `json:"data"`
	Robot       *Robot          `json:"robot"`
}

// Robot describes the automation process instance serving the API.
type Robot struct {
	Alias           string `json:"alias"`
	IsLogin         bool   `json:"isLogin"`
	NickName        string `json:"nickeName"` // sic, matches the SDK wire format
	PID             int    `json:"pid"`
	Port            int    `json:"port"`
	SmallHeadImgURL string `json:"smallHeadImgUrl"`
	UserName        string `json:"userName"`
}

// UserInfo is the logged-in account profile returned by the user-info opcode.
type UserInfo struct {
	IsLogin         bool   `json:"isLogin"`
	UserName        string `json:"userName"`
	NickName        string `json:"nickName"`
	Alias           string `json:"alias"`
	SmallHeadImgURL string `json:"smallHeadImgUrl"`
	BigHeadImgURL   string `json:"bigHeadImgUrl"`
	City            string `json:"city"`
	Province        string `json:"province"`
	Nation          string `json:"nation"`
	Signature       string `json:"signature"`
	Sex             int    `json:"sex"`
	Phone           string `json:"phone"`
	UIN             int64  `json:"uin"`
}

// ContactRecord is one row of the bulk contact list.
type ContactRecord struct {
	UserName        string `json:"UserName"`
	NickName        string `json:"NickName"`
	Remark          string `json:"Remark"`
	PYInitial       string `json:"PYInitial"`
	SmallHeadImgURL string `json:"smallHeadImgUrl"`
}

// ContactDetail is the full profile returned by the contact-info opcode.
type ContactDetail struct {
	UserName        string `json:"userName"`
	NickName        string `json:"nickName"`
	Alias           string `json:"alias"`
	Remark          string `json:"remark"`
	SmallHeadImgURL string `json:"smallHeadImgUrl"`
	BigHeadImgURL   string `json:"bigHeadImgUrl"`
	City            string `json:"city"`
	Province        string `json:"province"`
	Nation          string `json:"nation"`
	Signature       string `json:"signature"`
	Sex             int    `json:"sex"`
	LabelIDs        []int  `json:"labelIds"`
}

// ChatRoomRecord is one row of the bulk chat room list.
type ChatRoomRecord struct {
	UserName  string `json:"UserName"`
	NickName  string `json:"NickName"`
	Remark    string `json:"Remark"`
	PYInitial string `json:"PYInitial"`
	Type      int    `json:"Type"`
}

// ChatRoomInfo is the detail record for one chat room.
type ChatRoomInfo struct {
	Announcement  string `json:"announcement"`
	CreateTime    int64  `json:"createTime"`
	OwnerUserName string `json:"ownerUserName"`
	Profile       struct {
		Data struct {
			NickName        string `json:"nickName"`
			SmallHeadImgURL string `json:"smallHeadImgUrl"`
			UserName        string `json:"userName"`
		} `json:"data"`
	} `json:"profile"`
}

// ChatRoomMember is one member row of a chat room member list.
type ChatRoomMember struct {
	UserName         string `json:"userName"`
	NickName         string `json:"nickName"`
	ChatroomNickName string `json:"chatroomNickName"`
	SmallHeadImgURL  string `json:"smallHeadImgUrl"`
	BigHeadImgURL    string `json:"bigHeadImgUrl"`
	IsAdmin          bool   `json:"isAdmin"`
	Permission       int    `json:"permission"`
}

// ChatRoomMemberList is the member-list opcode result.
type ChatRoomMemberList struct {
	ChatroomUserName       string           `json:"chatroomUserName"`
	OwnerUserName          string           `json:"ownerUserName"`
	ChatroomAdminUserNames []string         `json:"chatroomAdminUserNames"`
	Members                []ChatRoomMember `json:"members"`
	Count                  int              `json:"count"`
}

// TagRecord is one contact label.
type TagRecord struct {
	LabelID   int    `json:"labelId"`
	LabelName string `json:"labelName"`
}

// TalkerInfo identifies the actual sender of a pushed message.
type TalkerInfo struct {
	Alias           string `json:"alias"`
	NickName        string `json:"nickName"`
	SmallHeadImgURL string `json:"smallHeadImgUrl"`
	Type            int    `json:"type"`
	UserName        string `json:"userName"`
}

// RecvMsg is a raw pushed message record.
type RecvMsg struct {
	Type          int64       `json:"type"`
	Content       string      `json:"content"`
	From          string      `json:"from"`
	To            string      `json:"to"`
	IsChatroomMsg int         `json:"isChatroomMsg"`
	IsSender      int         `json:"isSender"`
	MsgSvrID      json.Number `json:"msgSvrID"`
	CreateTime    string      `json:"createTime"`
	TalkerInfo    TalkerInfo  `json:"talkerInfo"`
}

// RecvScanRecord is a raw pushed QR scan state record. It carries no type
// code; the only discriminator is the "scan" substring in Desc.
type RecvScanRecord struct {
	Desc       string `json:"desc"`
	State      int    `json:"state"` // 0: waiting, 1: scanned, 2: confirmed
	Step       int    `json:"step"`
	UUID       string `json:"uuid"`
	NickName   string `json:"nickName"`
	HeadImgURL string `json:"headImgUrl"`
}

// QRCodeResult is the qrcode opcode result: raw image pixels to be decoded
// by a QR decoder.
type QRCodeResult struct {
	QRCode []byte `json:"qrcode"`
}

// HookResult is the hook-registration opcode result.
type HookResult struct {
	Cookie string `json:"cookie"`
}

// SendResult is returned by the send opcodes.
type SendResult struct {
	MsgSvrID json.Number `json:"msgSvrID"`
	Status   int         `json:"status"`
	Desc     string      `json:"desc"`
}

// CreateRoomResult is returned by the create-chatroom opcode.
type CreateRoomResult struct {
	ChatroomUserName string `json:"chatroomUserName"`
}
