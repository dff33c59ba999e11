package roster

import (
	"context"
	"log/slog"
	"strings"

	"github.com/openwx/wechatsdk-bridge/pkg/puppet"
)

// NoticeKind classifies a parsed room system notice.
type NoticeKind int

const (
	NoticeNone NoticeKind = iota
	NoticeTopic
	NoticeAdminAdd
	NoticeAdminRemove
	NoticeJoin
	NoticeLeave
)

// Notice is the structured form of a free-text room system notice.
type Notice struct {
	Kind       NoticeKind
	RoomID     string
	OperatorID string
	Topic      string
	OldTopic   string
	MemberIDs  []string
}

// Reconciler turns room system notices into structured notices and folds
// their effects back into the cached room state. The notices are free-form
// localized text; recognition is anchored on fixed phrase fragments.
type Reconciler struct {
	roster *Roster
	log    *slog.Logger
}

// NewReconciler creates a Reconciler over the given roster.
func NewReconciler(r *Roster, log *slog.Logger) *Reconciler {
	return &Reconciler{roster: r, log: log.With("component", "reconciler")}
}

const (
	anchorTopic       = "修改群名为"
	anchorAdminAdd    = "添加为群管理员"
	anchorAdminRemove = "移出了群管理员"
	anchorInvite      = "邀请"
	anchorJoin        = "加入了群聊"
	anchorLeave       = "移出了群聊"
	selfMarker        = "你"
)

// ParseRoomSystemNotice parses one room system notice. Unrecognized notices
// and notices whose referenced names cannot be resolved to member ids return
// nil: a wrong attribution is worse than a dropped event. Recognized notices
// are applied to the cached room before being returned.
func (rc *Reconciler) ParseRoomSystemNotice(ctx context.Context, roomID, text, selfID string) *Notice {
	text = normalizeQuotes(strings.TrimSpace(text))

	var n *Notice
	switch {
	case strings.Contains(text, anchorTopic):
		n = rc.parseTopic(ctx, roomID, text, selfID)
	case strings.Contains(text, anchorAdminAdd):
		n = rc.parseMemberList(ctx, roomID, text, selfID, anchorAdminAdd, NoticeAdminAdd)
	case strings.Contains(text, anchorAdminRemove):
		n = rc.parseMemberList(ctx, roomID, text, selfID, anchorAdminRemove, NoticeAdminRemove)
	case strings.Contains(text, anchorLeave):
		n = rc.parseMemberList(ctx, roomID, text, selfID, anchorLeave, NoticeLeave)
	case strings.Contains(text, anchorInvite) && strings.Contains(text, anchorJoin):
		n = rc.parseInvite(ctx, roomID, text, selfID)
	}

	if n == nil {
		rc.log.Debug("unrecognized room system notice", "room", roomID, "text", text)
		return nil
	}
	rc.apply(n)
	return n
}

// parseTopic handles `<operator>修改群名为"New Topic"`.
func (rc *Reconciler) parseTopic(ctx context.Context, roomID, text, selfID string) *Notice {
	before, after, _ := strings.Cut(text, anchorTopic)
	topic := strings.Trim(strings.TrimSpace(after), `"`)
	if topic == "" {
		return nil
	}
	operatorID, ok := rc.resolveOperator(ctx, roomID, before, selfID)
	if !ok {
		return nil
	}

	n := &Notice{Kind: NoticeTopic, RoomID: roomID, OperatorID: operatorID, Topic: topic}
	if room, ok := rc.roster.rooms.Get(roomID); ok {
		n.OldTopic = room.Topic
	}
	return n
}

// parseMemberList handles `<operator>将"A"、"B"<anchor>` notices.
func (rc *Reconciler) parseMemberList(ctx context.Context, roomID, text, selfID, anchor string, kind NoticeKind) *Notice {
	body, _, _ := strings.Cut(text, anchor)
	before, quoted, found := strings.Cut(body, "将")
	if !found {
		return nil
	}
	memberIDs, ok := rc.resolveNames(ctx, roomID, splitQuotedNames(quoted), selfID)
	if !ok || len(memberIDs) == 0 {
		return nil
	}
	operatorID, ok := rc.resolveOperator(ctx, roomID, before, selfID)
	if !ok {
		return nil
	}
	return &Notice{Kind: kind, RoomID: roomID, OperatorID: operatorID, MemberIDs: memberIDs}
}

// parseInvite handles `<operator>邀请"A"、"B"加入了群聊`. Joined members are
// not yet in the member list, so their names resolve via a forced refresh.
func (rc *Reconciler) parseInvite(ctx context.Context, roomID, text, selfID string) *Notice {
	body, _, _ := strings.Cut(text, anchorJoin)
	before, quoted, found := strings.Cut(body, anchorInvite)
	if !found {
		return nil
	}
	memberIDs, ok := rc.resolveNames(ctx, roomID, splitQuotedNames(quoted), selfID)
	if !ok || len(memberIDs) == 0 {
		return nil
	}
	operatorID, ok := rc.resolveOperator(ctx, roomID, before, selfID)
	if !ok {
		return nil
	}
	return &Notice{Kind: NoticeJoin, RoomID: roomID, OperatorID: operatorID, MemberIDs: memberIDs}
}

// apply folds a recognized notice into the cached room, if present.
func (rc *Reconciler) apply(n *Notice) {
	room, ok := rc.roster.rooms.Get(n.RoomID)
	if !ok {
		return
	}

	switch n.Kind {
	case NoticeTopic:
		room.Topic = n.Topic

	case NoticeAdminAdd:
		for _, id := range n.MemberIDs {
			if !contains(room.AdminIDs, id) {
				room.AdminIDs = append(room.AdminIDs, id)
			}
			if m := room.Member(id); m != nil {
				m.IsAdmin = true
			}
		}

	case NoticeAdminRemove:
		room.AdminIDs = remove(room.AdminIDs, n.MemberIDs)
		for _, id := range n.MemberIDs {
			if m := room.Member(id); m != nil {
				m.IsAdmin = false
			}
		}

	case NoticeJoin:
		for _, id := range n.MemberIDs {
			if !contains(room.MemberIDs, id) {
				room.MemberIDs = append(room.MemberIDs, id)
			}
		}

	case NoticeLeave:
		room.MemberIDs = remove(room.MemberIDs, n.MemberIDs)
		kept := room.Members[:0]
		for _, m := range room.Members {
			if !contains(n.MemberIDs, m.ID) {
				kept = append(kept, m)
			}
		}
		room.Members = kept
	}

	rc.roster.rooms.Put(n.RoomID, room)
}

// resolveOperator maps the operator fragment preceding an anchor to a member
// id. The self marker maps to selfID without a lookup.
func (rc *Reconciler) resolveOperator(ctx context.Context, roomID, fragment, selfID string) (string, bool) {
	name := strings.Trim(strings.TrimSpace(fragment), `"`)
	if name == "" || name == selfMarker {
		return selfID, true
	}
	ids, ok := rc.resolveNames(ctx, roomID, []string{name}, selfID)
	if !ok || len(ids) != 1 {
		return "", false
	}
	return ids[0], true
}

// resolveNames maps display names to member ids against the cached room,
// forcing one member refresh when any name misses. Names still unresolved
// after the refresh fail the whole resolution.
func (rc *Reconciler) resolveNames(ctx context.Context, roomID string, names []string, selfID string) ([]string, bool) {
	if len(names) == 0 {
		return nil, false
	}

	room, err := rc.roster.ResolveRoom(ctx, roomID)
	if err != nil {
		rc.log.Warn("room resolution failed", "room", roomID, "error", err)
		return nil, false
	}

	ids, missing := matchNames(room, names, selfID)
	if !missing {
		return ids, true
	}

	// Names absent from the cached member list may belong to members added
	// after the last hydration.
	room, err = rc.roster.RefreshRoom(ctx, roomID)
	if err != nil {
		rc.log.Warn("room refresh failed", "room", roomID, "error", err)
		return nil, false
	}
	ids, missing = matchNames(room, names, selfID)
	if missing {
		rc.log.Warn("unresolved names in room system notice", "room", roomID, "names", names)
		return nil, false
	}
	return ids, true
}

// matchNames resolves display names against a room's member list, matching
// the in-room alias first and the profile name second. The second return is
// true when any name failed to resolve.
func matchNames(room *puppet.Room, names []string, selfID string) ([]string, bool) {
	ids := make([]string, 0, len(names))
	for _, name := range names {
		if name == selfMarker {
			ids = append(ids, selfID)
			continue
		}
		id := ""
		for i := range room.Members {
			m := &room.Members[i]
			if m.RoomAlias == name || m.Name == name {
				id = m.ID
				break
			}
		}
		if id == "" {
			return nil, true
		}
		ids = append(ids, id)
	}
	return ids, false
}

func normalizeQuotes(s string) string {
	return strings.NewReplacer("“", `"`, "”", `"`).Replace(s)
}

// splitQuotedNames extracts `"A"、"B"` fragments into names.
func splitQuotedNames(s string) []string {
	var names []string
	for _, part := range strings.Split(s, "、") {
		name := strings.Trim(strings.TrimSpace(part), `"`)
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

func contains(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

func remove(list, drop []string) []string {
	kept := list[:0]
	for _, v := range list {
		if !contains(drop, v) {
			kept = append(kept, v)
		}
	}
	return kept
}
