package roster

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/openwx/wechatsdk-bridge/internal/sdk"
	"github.com/openwx/wechatsdk-bridge/pkg/puppet"
)

type fakeAPI struct {
	mu sync.Mutex

	contacts map[string]*sdk.ContactDetail
	rooms    map[string]*sdk.ChatRoomInfo
	members  map[string]*sdk.ChatRoomMemberList
	tags     []sdk.TagRecord

	contactInfoCalls map[string]int
	memberCalls      map[string]int
	deletedTags      []int
	modifiedTags     map[string][]int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		contacts:         make(map[string]*sdk.ContactDetail),
		rooms:            make(map[string]*sdk.ChatRoomInfo),
		members:          make(map[string]*sdk.ChatRoomMemberList),
		contactInfoCalls: make(map[string]int),
		memberCalls:      make(map[string]int),
		modifiedTags:     make(map[string][]int),
	}
}

func (f *fakeAPI) ContactList(ctx context.Context) ([]sdk.ContactRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sdk.ContactRecord
	for id, d := range f.contacts {
		out = append(out, sdk.ContactRecord{UserName: id, NickName: d.NickName})
	}
	return out, nil
}

func (f *fakeAPI) ContactInfo(ctx context.Context, userName string) (*sdk.ContactDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contactInfoCalls[userName]++
	d, ok := f.contacts[userName]
	if !ok {
		return &sdk.ContactDetail{UserName: userName}, nil
	}
	return d, nil
}

func (f *fakeAPI) ChatRoomList(ctx context.Context) ([]sdk.ChatRoomRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sdk.ChatRoomRecord
	for id := range f.rooms {
		out = append(out, sdk.ChatRoomRecord{UserName: id})
	}
	return out, nil
}

func (f *fakeAPI) ChatRoomInfo(ctx context.Context, roomID string) (*sdk.ChatRoomInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, ok := f.rooms[roomID]
	if !ok {
		return &sdk.ChatRoomInfo{}, nil
	}
	return info, nil
}

func (f *fakeAPI) ChatRoomMembers(ctx context.Context, roomID string) (*sdk.ChatRoomMemberList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.memberCalls[roomID]++
	list, ok := f.members[roomID]
	if !ok {
		return &sdk.ChatRoomMemberList{}, nil
	}
	return list, nil
}

func (f *fakeAPI) TagList(ctx context.Context) ([]sdk.TagRecord, error) {
	return f.tags, nil
}

func (f *fakeAPI) CreateTag(ctx context.Context, name string) (*sdk.TagRecord, error) {
	tag := sdk.TagRecord{LabelID: len(f.tags) + 1, LabelName: name}
	f.tags = append(f.tags, tag)
	return &tag, nil
}

func (f *fakeAPI) DeleteTag(ctx context.Context, labelID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedTags = append(f.deletedTags, labelID)
	return nil
}

func (f *fakeAPI) ModifyContactTags(ctx context.Context, userName string, labelIDs []int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modifiedTags[userName] = labelIDs
	return nil
}

func newTestRoster(t *testing.T, api API) *Roster {
	t.Helper()
	r, err := New(api, 64, 16, slog.Default())
	if err != nil {
		t.Fatalf("new roster: %v", err)
	}
	return r
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		id   string
		want puppet.ContactKind
	}{
		{"wxid_abc", puppet.ContactIndividual},
		{"gh_12345", puppet.ContactOfficial},
		{"1688850001@openim", puppet.ContactCorporation},
	}
	for _, tc := range cases {
		if got := KindOf(tc.id); got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.id, got, tc.want)
		}
	}
}

func TestResolveContact_Idempotent(t *testing.T) {
	api := newFakeAPI()
	api.contacts["wxid_a"] = &sdk.ContactDetail{
		UserName: "wxid_a", NickName: "Alice", LabelIDs: []int{1, 2},
	}
	r := newTestRoster(t, api)
	ctx := context.Background()

	c1, err := r.ResolveContact(ctx, "wxid_a")
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	c2, err := r.ResolveContact(ctx, "wxid_a")
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}

	if api.contactInfoCalls["wxid_a"] != 1 {
		t.Errorf("detail fetched %d times", api.contactInfoCalls["wxid_a"])
	}
	if c1 != c2 {
		t.Error("second resolve should return the cached entry")
	}
	if c1.Name != "Alice" {
		t.Errorf("name: %q", c1.Name)
	}
	if len(c1.TagIDs) != 2 || c1.TagIDs[0] != "1" {
		t.Errorf("tag ids: %v", c1.TagIDs)
	}
}

func TestResolveRoom_MergesInfoAndMembers(t *testing.T) {
	api := newFakeAPI()
	info := &sdk.ChatRoomInfo{OwnerUserName: "wxid_owner", Announcement: "rules"}
	info.Profile.Data.NickName = "Team"
	api.rooms["123@chatroom"] = info
	api.members["123@chatroom"] = &sdk.ChatRoomMemberList{
		ChatroomAdminUserNames: []string{"wxid_admin"},
		Members: []sdk.ChatRoomMember{
			{UserName: "wxid_owner", NickName: "Owner"},
			{UserName: "wxid_admin", NickName: "Admin"},
			{UserName: "wxid_a", NickName: "Alice", ChatroomNickName: "Al"},
		},
	}
	r := newTestRoster(t, api)

	room, err := r.ResolveRoom(context.Background(), "123@chatroom")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if room.Topic != "Team" || room.OwnerID != "wxid_owner" || room.Announcement != "rules" {
		t.Errorf("room: %+v", room)
	}
	if len(room.MemberIDs) != 3 {
		t.Errorf("member ids: %v", room.MemberIDs)
	}
	owner := room.Member("wxid_owner")
	if owner == nil || !owner.IsOwner {
		t.Errorf("owner member: %+v", owner)
	}
	admin := room.Member("wxid_admin")
	if admin == nil || !admin.IsAdmin {
		t.Errorf("admin member: %+v", admin)
	}
	if al := room.Member("wxid_a"); al == nil || al.RoomAlias != "Al" {
		t.Errorf("alias member: %+v", al)
	}
}

func TestLoadAll(t *testing.T) {
	api := newFakeAPI()
	api.contacts["wxid_a"] = &sdk.ContactDetail{UserName: "wxid_a", NickName: "Alice"}
	api.contacts["wxid_b"] = &sdk.ContactDetail{UserName: "wxid_b", NickName: "Bob"}
	api.rooms["1@chatroom"] = &sdk.ChatRoomInfo{}
	r := newTestRoster(t, api)

	if err := r.LoadAll(context.Background()); err != nil {
		t.Fatalf("load all: %v", err)
	}
	if len(r.ContactIDs()) != 2 {
		t.Errorf("contacts: %v", r.ContactIDs())
	}
	if len(r.RoomIDs()) != 1 {
		t.Errorf("rooms: %v", r.RoomIDs())
	}
}

// gaugeAPI counts how many ContactInfo calls are in flight at once.
type gaugeAPI struct {
	*fakeAPI

	gaugeMu  sync.Mutex
	inFlight int
	maxSeen  int
}

func (g *gaugeAPI) ContactInfo(ctx context.Context, userName string) (*sdk.ContactDetail, error) {
	g.gaugeMu.Lock()
	g.inFlight++
	if g.inFlight > g.maxSeen {
		g.maxSeen = g.inFlight
	}
	g.gaugeMu.Unlock()

	// Hold the call open long enough for the hydration goroutines to pile up.
	time.Sleep(2 * time.Millisecond)

	g.gaugeMu.Lock()
	g.inFlight--
	g.gaugeMu.Unlock()
	return g.fakeAPI.ContactInfo(ctx, userName)
}

func TestLoadAll_BoundsDetailFanOut(t *testing.T) {
	api := &gaugeAPI{fakeAPI: newFakeAPI()}
	for i := 0; i < 48; i++ {
		id := fmt.Sprintf("wxid_%02d", i)
		api.contacts[id] = &sdk.ContactDetail{UserName: id}
	}
	r := newTestRoster(t, api)

	if err := r.LoadAll(context.Background()); err != nil {
		t.Fatalf("load all: %v", err)
	}

	if len(r.ContactIDs()) != 48 {
		t.Errorf("contacts loaded: %d", len(r.ContactIDs()))
	}
	if api.maxSeen > hydrateConcurrency {
		t.Errorf("in-flight detail calls peaked at %d, limit is %d", api.maxSeen, hydrateConcurrency)
	}
	if api.maxSeen < 2 {
		t.Errorf("in-flight detail calls peaked at %d, hydration did not run concurrently", api.maxSeen)
	}
}

func TestDeleteTag_CascadesOverCachedContacts(t *testing.T) {
	api := newFakeAPI()
	api.contacts["wxid_a"] = &sdk.ContactDetail{UserName: "wxid_a", LabelIDs: []int{1, 2}}
	api.contacts["wxid_b"] = &sdk.ContactDetail{UserName: "wxid_b", LabelIDs: []int{2}}
	r := newTestRoster(t, api)
	ctx := context.Background()

	if _, err := r.ResolveContact(ctx, "wxid_a"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.ResolveContact(ctx, "wxid_b"); err != nil {
		t.Fatal(err)
	}

	if err := r.DeleteTag(ctx, "2"); err != nil {
		t.Fatalf("delete tag: %v", err)
	}

	if len(api.deletedTags) != 1 || api.deletedTags[0] != 2 {
		t.Errorf("deleted tags: %v", api.deletedTags)
	}
	a, _ := r.ResolveContact(ctx, "wxid_a")
	if len(a.TagIDs) != 1 || a.TagIDs[0] != "1" {
		t.Errorf("wxid_a tags: %v", a.TagIDs)
	}
	b, _ := r.ResolveContact(ctx, "wxid_b")
	if len(b.TagIDs) != 0 {
		t.Errorf("wxid_b tags: %v", b.TagIDs)
	}
	if api.contactInfoCalls["wxid_a"] != 1 {
		t.Error("cascade should mutate the cache, not refetch")
	}
}

func TestSetContactTags_UpdatesCache(t *testing.T) {
	api := newFakeAPI()
	api.contacts["wxid_a"] = &sdk.ContactDetail{UserName: "wxid_a"}
	r := newTestRoster(t, api)
	ctx := context.Background()

	if _, err := r.ResolveContact(ctx, "wxid_a"); err != nil {
		t.Fatal(err)
	}
	if err := r.SetContactTags(ctx, "wxid_a", []string{"3", "4"}); err != nil {
		t.Fatalf("set tags: %v", err)
	}

	if got := api.modifiedTags["wxid_a"]; len(got) != 2 || got[0] != 3 {
		t.Errorf("modified tags: %v", got)
	}
	members := r.TagMembers("3")
	if len(members) != 1 || members[0] != "wxid_a" {
		t.Errorf("tag members: %v", members)
	}
}

func TestDeleteTag_RejectsNonNumericID(t *testing.T) {
	r := newTestRoster(t, newFakeAPI())
	if err := r.DeleteTag(context.Background(), "abc"); err == nil {
		t.Error("want error for non-numeric tag id")
	}
}
