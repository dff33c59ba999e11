// Package roster maintains the contact, room and tag views on top of the
// bulk-list and detail opcodes. Reads are served from bounded LRU caches and
// hydrated on demand.
package roster

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/openwx/wechatsdk-bridge/internal/cache"
	"github.com/openwx/wechatsdk-bridge/internal/sdk"
	"github.com/openwx/wechatsdk-bridge/pkg/puppet"
)

// hydrateConcurrency bounds the detail fan-out during a bulk load.
const hydrateConcurrency = 15

const (
	officialPrefix    = "gh_"
	corporationSuffix = "@openim"
)

// API is the slice of the transport client the roster needs.
type API interface {
	ContactList(ctx context.Context) ([]sdk.ContactRecord, error)
	ContactInfo(ctx context.Context, userName string) (*sdk.ContactDetail, error)
	ChatRoomList(ctx context.Context) ([]sdk.ChatRoomRecord, error)
	ChatRoomInfo(ctx context.Context, roomID string) (*sdk.ChatRoomInfo, error)
	ChatRoomMembers(ctx context.Context, roomID string) (*sdk.ChatRoomMemberList, error)
	TagList(ctx context.Context) ([]sdk.TagRecord, error)
	CreateTag(ctx context.Context, name string) (*sdk.TagRecord, error)
	DeleteTag(ctx context.Context, labelID int) error
	ModifyContactTags(ctx context.Context, userName string, labelIDs []int) error
}

// Roster is the cached contact/room/tag directory.
type Roster struct {
	api      API
	contacts *cache.Store[*puppet.Contact]
	rooms    *cache.Store[*puppet.Room]
	log      *slog.Logger
}

// New creates a Roster backed by LRU caches of the given capacities.
func New(api API, contactCap, roomCap int, log *slog.Logger) (*Roster, error) {
	contacts, err := cache.New[*puppet.Contact](contactCap, nil)
	if err != nil {
		return nil, fmt.Errorf("contact cache: %w", err)
	}
	rooms, err := cache.New[*puppet.Room](roomCap, nil)
	if err != nil {
		return nil, fmt.Errorf("room cache: %w", err)
	}
	return &Roster{
		api:      api,
		contacts: contacts,
		rooms:    rooms,
		log:      log.With("component", "roster"),
	}, nil
}

// KindOf classifies a contact id by its well-known affixes.
func KindOf(id string) puppet.ContactKind {
	switch {
	case strings.HasPrefix(id, officialPrefix):
		return puppet.ContactOfficial
	case strings.HasSuffix(id, corporationSuffix):
		return puppet.ContactCorporation
	default:
		return puppet.ContactIndividual
	}
}

// ResolveContact returns the cached contact, hydrating it from the detail
// opcode on a miss.
func (r *Roster) ResolveContact(ctx context.Context, id string) (*puppet.Contact, error) {
	if c, ok := r.contacts.Get(id); ok {
		return c, nil
	}
	return r.RefreshContact(ctx, id)
}

// RefreshContact hydrates a contact from the detail opcode unconditionally.
func (r *Roster) RefreshContact(ctx context.Context, id string) (*puppet.Contact, error) {
	detail, err := r.api.ContactInfo(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("contact info %s: %w", id, err)
	}
	c := contactFromDetail(detail)
	r.contacts.Put(c.ID, c)
	return c, nil
}

// ResolveRoom returns the cached room, hydrating it from the info and
// member-list opcodes on a miss.
func (r *Roster) ResolveRoom(ctx context.Context, id string) (*puppet.Room, error) {
	if room, ok := r.rooms.Get(id); ok {
		return room, nil
	}
	return r.RefreshRoom(ctx, id)
}

// RefreshRoom hydrates a room unconditionally, replacing any cached entry.
func (r *Roster) RefreshRoom(ctx context.Context, id string) (*puppet.Room, error) {
	info, err := r.api.ChatRoomInfo(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("chatroom info %s: %w", id, err)
	}
	members, err := r.api.ChatRoomMembers(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("chatroom members %s: %w", id, err)
	}

	room := &puppet.Room{
		ID:           id,
		Topic:        info.Profile.Data.NickName,
		Avatar:       info.Profile.Data.SmallHeadImgURL,
		OwnerID:      info.OwnerUserName,
		Announcement: info.Announcement,
	}
	if room.OwnerID == "" {
		room.OwnerID = members.OwnerUserName
	}
	room.AdminIDs = append(room.AdminIDs, members.ChatroomAdminUserNames...)

	admins := make(map[string]bool, len(room.AdminIDs))
	for _, id := range room.AdminIDs {
		admins[id] = true
	}
	for _, m := range members.Members {
		room.MemberIDs = append(room.MemberIDs, m.UserName)
		room.Members = append(room.Members, puppet.RoomMember{
			ID:        m.UserName,
			Name:      m.NickName,
			RoomAlias: m.ChatroomNickName,
			Avatar:    m.SmallHeadImgURL,
			IsAdmin:   m.IsAdmin || admins[m.UserName],
			IsOwner:   m.UserName == room.OwnerID,
		})
	}

	r.rooms.Put(id, room)
	return room, nil
}

// LoadAll pulls the full contact and room lists and hydrates every entry,
// bounding the detail fan-out. Individual hydration failures are logged and
// skipped so one broken record cannot starve the whole load.
func (r *Roster) LoadAll(ctx context.Context) error {
	contacts, err := r.api.ContactList(ctx)
	if err != nil {
		return fmt.Errorf("contact list: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(hydrateConcurrency)
	for _, rec := range contacts {
		rec := rec
		g.Go(func() error {
			if _, err := r.RefreshContact(gctx, rec.UserName); err != nil {
				r.log.Warn("contact hydration failed", "id", rec.UserName, "error", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	rooms, err := r.api.ChatRoomList(ctx)
	if err != nil {
		return fmt.Errorf("chatroom list: %w", err)
	}

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(hydrateConcurrency)
	for _, rec := range rooms {
		rec := rec
		g.Go(func() error {
			if _, err := r.RefreshRoom(gctx, rec.UserName); err != nil {
				r.log.Warn("room hydration failed", "id", rec.UserName, "error", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	r.log.Info("roster loaded", "contacts", r.contacts.Len(), "rooms", r.rooms.Len())
	return nil
}

// ContactIDs returns the ids of all cached contacts.
func (r *Roster) ContactIDs() []string {
	return r.contacts.Keys()
}

// RoomIDs returns the ids of all cached rooms.
func (r *Roster) RoomIDs() []string {
	return r.rooms.Keys()
}

// EvictRoom drops a room from the cache.
func (r *Roster) EvictRoom(id string) {
	r.rooms.Remove(id)
}

// Tags lists all contact labels.
func (r *Roster) Tags(ctx context.Context) ([]puppet.Tag, error) {
	records, err := r.api.TagList(ctx)
	if err != nil {
		return nil, fmt.Errorf("tag list: %w", err)
	}
	tags := make([]puppet.Tag, 0, len(records))
	for _, rec := range records {
		tags = append(tags, puppet.Tag{
			ID:   strconv.Itoa(rec.LabelID),
			Name: rec.LabelName,
		})
	}
	return tags, nil
}

// CreateTag creates a contact label and returns its id.
func (r *Roster) CreateTag(ctx context.Context, name string) (string, error) {
	tag, err := r.api.CreateTag(ctx, name)
	if err != nil {
		return "", fmt.Errorf("create tag %q: %w", name, err)
	}
	return strconv.Itoa(tag.LabelID), nil
}

// DeleteTag deletes a contact label and strips its id from every cached
// contact so stale references never surface on a later read.
func (r *Roster) DeleteTag(ctx context.Context, tagID string) error {
	labelID, err := strconv.Atoi(tagID)
	if err != nil {
		return fmt.Errorf("invalid tag id %q: %w", tagID, err)
	}
	if err := r.api.DeleteTag(ctx, labelID); err != nil {
		return fmt.Errorf("delete tag %s: %w", tagID, err)
	}

	for _, id := range r.contacts.Keys() {
		c, ok := r.contacts.Get(id)
		if !ok {
			continue
		}
		kept := c.TagIDs[:0:0]
		for _, t := range c.TagIDs {
			if t != tagID {
				kept = append(kept, t)
			}
		}
		if len(kept) != len(c.TagIDs) {
			c.TagIDs = kept
			r.contacts.Put(id, c)
		}
	}
	return nil
}

// SetContactTags replaces a contact's label set.
func (r *Roster) SetContactTags(ctx context.Context, contactID string, tagIDs []string) error {
	labelIDs := make([]int, 0, len(tagIDs))
	for _, t := range tagIDs {
		id, err := strconv.Atoi(t)
		if err != nil {
			return fmt.Errorf("invalid tag id %q: %w", t, err)
		}
		labelIDs = append(labelIDs, id)
	}
	if err := r.api.ModifyContactTags(ctx, contactID, labelIDs); err != nil {
		return fmt.Errorf("modify tags for %s: %w", contactID, err)
	}
	if c, ok := r.contacts.Get(contactID); ok {
		c.TagIDs = append([]string(nil), tagIDs...)
		r.contacts.Put(contactID, c)
	}
	return nil
}

// TagMembers returns the ids of all cached contacts carrying the tag. This is
// a derived view over the cache rather than a served opcode.
func (r *Roster) TagMembers(tagID string) []string {
	var out []string
	for _, id := range r.contacts.Keys() {
		c, ok := r.contacts.Get(id)
		if !ok {
			continue
		}
		for _, t := range c.TagIDs {
			if t == tagID {
				out = append(out, id)
				break
			}
		}
	}
	return out
}

func contactFromDetail(d *sdk.ContactDetail) *puppet.Contact {
	c := &puppet.Contact{
		ID:        d.UserName,
		Name:      d.NickName,
		Alias:     d.Remark,
		Avatar:    d.SmallHeadImgURL,
		Kind:      KindOf(d.UserName),
		Gender:    d.Sex,
		City:      d.City,
		Province:  d.Province,
		Signature: d.Signature,
		Friend:    true,
	}
	if c.Alias == "" {
		c.Alias = d.Alias
	}
	if c.Avatar == "" {
		c.Avatar = d.BigHeadImgURL
	}
	for _, labelID := range d.LabelIDs {
		c.TagIDs = append(c.TagIDs, strconv.Itoa(labelID))
	}
	return c
}
