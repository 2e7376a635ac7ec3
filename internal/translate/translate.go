// Package translate turns gateway entity events into normalized cache
// updates and AdminAPI deletes.
package translate

import (
	"github.com/oxyl/shardgate/internal/gateway"
	"github.com/oxyl/shardgate/pkg/gwlog"
	"go.uber.org/zap"
)

// CacheSink accepts normalized updates. It must not block.
type CacheSink interface {
	PushUpdate(u *CacheUpdate)
}

// Deleter removes entities that no longer exist. Calls are best effort.
type Deleter interface {
	DeleteGuild(guildID string)
	DeleteChannel(guildID, channelID string)
	DeleteRole(guildID, roleID string)
	DeleteMember(guildID, userID string)
	DeleteVoiceState(guildID, userID string)
}

type Translator struct {
	gwlog.Log
	cache   CacheSink
	deleter Deleter
}

func New(cache CacheSink, deleter Deleter) *Translator {
	return &Translator{
		Log:     gwlog.NewGWLog("Translator"),
		cache:   cache,
		deleter: deleter,
	}
}

// PushEvent implements gateway.EntitySink.
func (t *Translator) PushEvent(shard int, ev gateway.Event) {
	switch d := ev.Data.(type) {
	case *gateway.Ready:
		t.update(EntityUser, toUser(d.User))
	case *gateway.Guild:
		t.update(EntityGuild, toGuild(d))
	case *gateway.UnavailableGuild:
		// an outage, not a removal
		if d.Unavailable {
			return
		}
		t.deleter.DeleteGuild(d.ID)
	case *gateway.Channel:
		if ev.Kind == gateway.EventChannelDelete {
			t.deleter.DeleteChannel(d.GuildID, d.ID)
			return
		}
		t.update(EntityChannel, toChannel("", *d))
	case *gateway.RoleEvent:
		t.update(EntityRole, toRole(d.GuildID, d.Role))
	case *gateway.RoleDelete:
		t.deleter.DeleteRole(d.GuildID, d.RoleID)
	case *gateway.Member:
		t.update(EntityMember, toMember("", *d))
	case *gateway.MemberRemove:
		t.deleter.DeleteMember(d.GuildID, d.User.ID)
	case *gateway.MembersChunk:
		for _, m := range d.Members {
			t.update(EntityMember, toMember(d.GuildID, m))
		}
	case *gateway.User:
		t.update(EntityUser, toUser(*d))
	case *gateway.VoiceState:
		if d.ChannelID == "" {
			t.deleter.DeleteVoiceState(d.GuildID, d.UserID)
			return
		}
		t.update(EntityVoiceState, toVoiceState("", *d))
	default:
		t.Debug("no translation for event", zap.String("event", ev.Name), zap.Int("shard", shard))
	}
}

func (t *Translator) update(entityType string, payload any) {
	t.cache.PushUpdate(&CacheUpdate{EntityType: entityType, EntityPayload: payload})
}
