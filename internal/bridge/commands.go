package bridge

import (
	"context"
	"fmt"

	"github.com/openwx/wechatsdk-bridge/pkg/puppet"
)

// throttle blocks until the outbound rate limiter admits one send.
func (a *Adapter) throttle(ctx context.Context) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("send throttled: %w", err)
	}
	return nil
}

// SendText sends a text message to a contact or room. mentions lists room
// member ids to @-notify.
func (a *Adapter) SendText(ctx context.Context, to, text string, mentions []string) (string, error) {
	if err := a.throttle(ctx); err != nil {
		return "", err
	}
	res, err := a.api.SendText(ctx, to, text, mentions)
	if err != nil {
		return "", fmt.Errorf("send text to %s: %w", to, err)
	}
	return res.MsgSvrID.String(), nil
}

// SendImage sends an image from a local path on the SDK host.
func (a *Adapter) SendImage(ctx context.Context, to, path string) (string, error) {
	if err := a.throttle(ctx); err != nil {
		return "", err
	}
	res, err := a.api.SendImage(ctx, to, path)
	if err != nil {
		return "", fmt.Errorf("send image to %s: %w", to, err)
	}
	return res.MsgSvrID.String(), nil
}

// SendFile sends a file attachment from a local path on the SDK host.
func (a *Adapter) SendFile(ctx context.Context, to, path string) (string, error) {
	if err := a.throttle(ctx); err != nil {
		return "", err
	}
	res, err := a.api.SendFile(ctx, to, path)
	if err != nil {
		return "", fmt.Errorf("send file to %s: %w", to, err)
	}
	return res.MsgSvrID.String(), nil
}

// SendContactCard shares a contact card.
func (a *Adapter) SendContactCard(ctx context.Context, to, contactID string) (string, error) {
	if err := a.throttle(ctx); err != nil {
		return "", err
	}
	res, err := a.api.SendContactCard(ctx, to, contactID)
	if err != nil {
		return "", fmt.Errorf("send contact card to %s: %w", to, err)
	}
	return res.MsgSvrID.String(), nil
}

// SendLocation sends a geographic location.
func (a *Adapter) SendLocation(ctx context.Context, to string, latitude, longitude float64, label string) (string, error) {
	if err := a.throttle(ctx); err != nil {
		return "", err
	}
	res, err := a.api.SendLocation(ctx, to, latitude, longitude, label)
	if err != nil {
		return "", fmt.Errorf("send location to %s: %w", to, err)
	}
	return res.MsgSvrID.String(), nil
}

// SendEmoji sends a sticker by its md5 reference.
func (a *Adapter) SendEmoji(ctx context.Context, to, md5 string, totalLen int64) (string, error) {
	if err := a.throttle(ctx); err != nil {
		return "", err
	}
	res, err := a.api.SendEmoji(ctx, to, md5, totalLen)
	if err != nil {
		return "", fmt.Errorf("send emoji to %s: %w", to, err)
	}
	return res.MsgSvrID.String(), nil
}

// SendURLLink sends a url card.
func (a *Adapter) SendURLLink(ctx context.Context, to string, link *URLLink) (string, error) {
	if err := a.throttle(ctx); err != nil {
		return "", err
	}
	res, err := a.api.SendAppMsg(ctx, to, link.Envelope())
	if err != nil {
		return "", fmt.Errorf("send url link to %s: %w", to, err)
	}
	return res.MsgSvrID.String(), nil
}

// SendMiniProgram sends a mini program card.
func (a *Adapter) SendMiniProgram(ctx context.Context, to string, mp *MiniProgram) (string, error) {
	if err := a.throttle(ctx); err != nil {
		return "", err
	}
	res, err := a.api.SendAppMsg(ctx, to, mp.Envelope())
	if err != nil {
		return "", fmt.Errorf("send mini program to %s: %w", to, err)
	}
	return res.MsgSvrID.String(), nil
}

// PatRoomMember pats a room member.
func (a *Adapter) PatRoomMember(ctx context.Context, roomID, memberID string) error {
	if err := a.throttle(ctx); err != nil {
		return err
	}
	if err := a.api.SendPat(ctx, roomID, memberID); err != nil {
		return fmt.Errorf("pat %s in %s: %w", memberID, roomID, err)
	}
	return nil
}

// --- room management ---

// CreateRoom creates a chat room with the given initial members and returns
// the new room id.
func (a *Adapter) CreateRoom(ctx context.Context, memberIDs []string) (string, error) {
	roomID, err := a.api.CreateChatRoom(ctx, memberIDs)
	if err != nil {
		return "", fmt.Errorf("create room: %w", err)
	}
	if _, err := a.roster.RefreshRoom(ctx, roomID); err != nil {
		a.log.Warn("new room hydration failed", "room", roomID, "error", err)
	}
	return roomID, nil
}

// DestroyRoom dissolves a room owned by the logged-in account.
func (a *Adapter) DestroyRoom(ctx context.Context, roomID string) error {
	if err := a.api.DestroyChatRoom(ctx, roomID); err != nil {
		return fmt.Errorf("destroy room %s: %w", roomID, err)
	}
	a.roster.EvictRoom(roomID)
	return nil
}

// QuitRoom leaves a room.
func (a *Adapter) QuitRoom(ctx context.Context, roomID string) error {
	if err := a.api.QuitChatRoom(ctx, roomID); err != nil {
		return fmt.Errorf("quit room %s: %w", roomID, err)
	}
	a.roster.EvictRoom(roomID)
	return nil
}

// SetRoomTopic changes a room topic. The cached room is refreshed so reads
// reflect the change before the system notice arrives.
func (a *Adapter) SetRoomTopic(ctx context.Context, roomID, topic string) error {
	if err := a.api.ModifyTopic(ctx, roomID, topic); err != nil {
		return fmt.Errorf("set topic of %s: %w", roomID, err)
	}
	if _, err := a.roster.RefreshRoom(ctx, roomID); err != nil {
		a.log.Warn("room refresh after topic change failed", "room", roomID, "error", err)
	}
	return nil
}

// SetRoomAnnouncement changes a room announcement.
func (a *Adapter) SetRoomAnnouncement(ctx context.Context, roomID, text string) error {
	if err := a.api.ModifyAnnouncement(ctx, roomID, text); err != nil {
		return fmt.Errorf("set announcement of %s: %w", roomID, err)
	}
	if _, err := a.roster.RefreshRoom(ctx, roomID); err != nil {
		a.log.Warn("room refresh after announcement change failed", "room", roomID, "error", err)
	}
	return nil
}

// AddRoomMembers adds members to a room. Large rooms only accept
// invitations, so past the threshold the invite opcode is used instead.
func (a *Adapter) AddRoomMembers(ctx context.Context, roomID string, memberIDs []string) error {
	room, err := a.roster.ResolveRoom(ctx, roomID)
	if err != nil {
		return err
	}

	if len(room.MemberIDs) >= largeRoomThreshold {
		if err := a.api.InviteMembers(ctx, roomID, memberIDs); err != nil {
			return fmt.Errorf("invite members to %s: %w", roomID, err)
		}
		return nil
	}
	if err := a.api.AddMembers(ctx, roomID, memberIDs); err != nil {
		return fmt.Errorf("add members to %s: %w", roomID, err)
	}
	return nil
}

// RemoveRoomMembers removes members from a room.
func (a *Adapter) RemoveRoomMembers(ctx context.Context, roomID string, memberIDs []string) error {
	if err := a.api.RemoveMembers(ctx, roomID, memberIDs); err != nil {
		return fmt.Errorf("remove members from %s: %w", roomID, err)
	}
	if _, err := a.roster.RefreshRoom(ctx, roomID); err != nil {
		a.log.Warn("room refresh after member removal failed", "room", roomID, "error", err)
	}
	return nil
}

// SetRoomAdmins grants or revokes room admin for the given members.
func (a *Adapter) SetRoomAdmins(ctx context.Context, roomID string, memberIDs []string, grant bool) error {
	var err error
	if grant {
		err = a.api.AddAdmins(ctx, roomID, memberIDs)
	} else {
		err = a.api.RemoveAdmins(ctx, roomID, memberIDs)
	}
	if err != nil {
		return fmt.Errorf("modify admins of %s: %w", roomID, err)
	}
	if _, err := a.roster.RefreshRoom(ctx, roomID); err != nil {
		a.log.Warn("room refresh after admin change failed", "room", roomID, "error", err)
	}
	return nil
}

// --- tags ---

// Tags lists all contact labels.
func (a *Adapter) Tags(ctx context.Context) ([]puppet.Tag, error) {
	return a.roster.Tags(ctx)
}

// CreateTag creates a contact label and returns its id.
func (a *Adapter) CreateTag(ctx context.Context, name string) (string, error) {
	return a.roster.CreateTag(ctx, name)
}

// DeleteTag deletes a contact label everywhere.
func (a *Adapter) DeleteTag(ctx context.Context, tagID string) error {
	return a.roster.DeleteTag(ctx, tagID)
}

// SetContactTags replaces a contact's label set.
func (a *Adapter) SetContactTags(ctx context.Context, contactID string, tagIDs []string) error {
	return a.roster.SetContactTags(ctx, contactID, tagIDs)
}

// TagMembers lists cached contacts carrying the tag.
func (a *Adapter) TagMembers(tagID string) []string {
	return a.roster.TagMembers(tagID)
}

// --- lifecycle ---

// ExitSDK asks the automation process to shut down. The adapter keeps
// running; callers typically Stop right after.
func (a *Adapter) ExitSDK(ctx context.Context) error {
	if err := a.api.Exit(ctx); err != nil {
		return fmt.Errorf("exit sdk: %w", err)
	}
	return nil
}
