package roster

import (
	"context"
	"log/slog"
	"testing"

	"github.com/openwx/wechatsdk-bridge/internal/sdk"
)

const noticeRoom = "9@chatroom"

func newNoticeFixture(t *testing.T) (*fakeAPI, *Roster, *Reconciler) {
	t.Helper()
	api := newFakeAPI()
	info := &sdk.ChatRoomInfo{OwnerUserName: "wxid_self"}
	info.Profile.Data.NickName = "旧的群名"
	api.rooms[noticeRoom] = info
	api.members[noticeRoom] = &sdk.ChatRoomMemberList{
		OwnerUserName: "wxid_self",
		Members: []sdk.ChatRoomMember{
			{UserName: "wxid_self", NickName: "Self"},
			{UserName: "wxid_zhang", NickName: "张三"},
			{UserName: "wxid_li", NickName: "李四", ChatroomNickName: "小李"},
		},
	}

	r := newTestRoster(t, api)
	if _, err := r.ResolveRoom(context.Background(), noticeRoom); err != nil {
		t.Fatalf("hydrate room: %v", err)
	}
	return api, r, NewReconciler(r, slog.Default())
}

func TestParseRoomSystemNotice_AdminAdd(t *testing.T) {
	_, r, rc := newNoticeFixture(t)

	// Fullwidth quotes, as the client actually renders them.
	n := rc.ParseRoomSystemNotice(context.Background(), noticeRoom,
		"张三将“李四”添加为群管理员", "wxid_self")
	if n == nil {
		t.Fatal("notice not recognized")
	}
	if n.Kind != NoticeAdminAdd {
		t.Errorf("kind: %d", n.Kind)
	}
	if n.OperatorID != "wxid_zhang" {
		t.Errorf("operator: %q", n.OperatorID)
	}
	if len(n.MemberIDs) != 1 || n.MemberIDs[0] != "wxid_li" {
		t.Errorf("members: %v", n.MemberIDs)
	}

	room, _ := r.ResolveRoom(context.Background(), noticeRoom)
	if m := room.Member("wxid_li"); m == nil || !m.IsAdmin {
		t.Error("admin flag not folded into cached room")
	}
}

func TestParseRoomSystemNotice_AdminRemove(t *testing.T) {
	_, r, rc := newNoticeFixture(t)
	ctx := context.Background()

	rc.ParseRoomSystemNotice(ctx, noticeRoom, `张三将"李四"添加为群管理员`, "wxid_self")
	n := rc.ParseRoomSystemNotice(ctx, noticeRoom, `张三将"李四"移出了群管理员`, "wxid_self")
	if n == nil || n.Kind != NoticeAdminRemove {
		t.Fatalf("notice: %+v", n)
	}

	room, _ := r.ResolveRoom(ctx, noticeRoom)
	if len(room.AdminIDs) != 0 {
		t.Errorf("admin ids: %v", room.AdminIDs)
	}
	if m := room.Member("wxid_li"); m == nil || m.IsAdmin {
		t.Error("admin flag not cleared")
	}
}

func TestParseRoomSystemNotice_TopicBySelf(t *testing.T) {
	_, r, rc := newNoticeFixture(t)

	n := rc.ParseRoomSystemNotice(context.Background(), noticeRoom,
		`你修改群名为"新的群名"`, "wxid_self")
	if n == nil || n.Kind != NoticeTopic {
		t.Fatalf("notice: %+v", n)
	}
	if n.OperatorID != "wxid_self" {
		t.Errorf("operator: %q", n.OperatorID)
	}
	if n.Topic != "新的群名" || n.OldTopic != "旧的群名" {
		t.Errorf("topic: %q old %q", n.Topic, n.OldTopic)
	}

	room, _ := r.ResolveRoom(context.Background(), noticeRoom)
	if room.Topic != "新的群名" {
		t.Errorf("cached topic: %q", room.Topic)
	}
}

func TestParseRoomSystemNotice_InviteResolvesViaRefresh(t *testing.T) {
	api, r, rc := newNoticeFixture(t)
	ctx := context.Background()

	// The joined member only appears in the post-join member list.
	api.mu.Lock()
	api.members[noticeRoom].Members = append(api.members[noticeRoom].Members,
		sdk.ChatRoomMember{UserName: "wxid_wang", NickName: "王五"})
	api.mu.Unlock()

	n := rc.ParseRoomSystemNotice(ctx, noticeRoom, `张三邀请"王五"加入了群聊`, "wxid_self")
	if n == nil || n.Kind != NoticeJoin {
		t.Fatalf("notice: %+v", n)
	}
	if n.OperatorID != "wxid_zhang" {
		t.Errorf("inviter: %q", n.OperatorID)
	}
	if len(n.MemberIDs) != 1 || n.MemberIDs[0] != "wxid_wang" {
		t.Errorf("members: %v", n.MemberIDs)
	}
	if api.memberCalls[noticeRoom] < 2 {
		t.Errorf("expected a forced member refresh, calls: %d", api.memberCalls[noticeRoom])
	}

	room, _ := r.ResolveRoom(ctx, noticeRoom)
	found := false
	for _, id := range room.MemberIDs {
		if id == "wxid_wang" {
			found = true
		}
	}
	if !found {
		t.Error("joined member missing from cached room")
	}
}

func TestParseRoomSystemNotice_Leave(t *testing.T) {
	_, r, rc := newNoticeFixture(t)

	n := rc.ParseRoomSystemNotice(context.Background(), noticeRoom,
		`你将"小李"移出了群聊`, "wxid_self")
	if n == nil || n.Kind != NoticeLeave {
		t.Fatalf("notice: %+v", n)
	}
	// Resolved by the in-room alias, not the profile name.
	if len(n.MemberIDs) != 1 || n.MemberIDs[0] != "wxid_li" {
		t.Errorf("members: %v", n.MemberIDs)
	}

	room, _ := r.ResolveRoom(context.Background(), noticeRoom)
	if room.Member("wxid_li") != nil {
		t.Error("removed member still in cached room")
	}
}

func TestParseRoomSystemNotice_UnresolvedNameSuppressed(t *testing.T) {
	api, _, rc := newNoticeFixture(t)

	n := rc.ParseRoomSystemNotice(context.Background(), noticeRoom,
		`张三将"不存在的人"添加为群管理员`, "wxid_self")
	if n != nil {
		t.Errorf("unresolvable notice should be suppressed, got %+v", n)
	}
	if api.memberCalls[noticeRoom] < 2 {
		t.Error("suppression should happen only after a forced refresh")
	}
}

func TestParseRoomSystemNotice_Unrecognized(t *testing.T) {
	_, _, rc := newNoticeFixture(t)

	n := rc.ParseRoomSystemNotice(context.Background(), noticeRoom,
		"张三领取了你的红包", "wxid_self")
	if n != nil {
		t.Errorf("unrecognized notice should return nil, got %+v", n)
	}
}
