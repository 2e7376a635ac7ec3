package translate

import "github.com/oxyl/shardgate/internal/gateway"

// Entity types understood by the cache.
const (
	EntityGuild      = "guild"
	EntityChannel    = "channel"
	EntityRole       = "role"
	EntityUser       = "user"
	EntityMember     = "member"
	EntityVoiceState = "voiceState"
)

// CacheUpdate is one normalized entity bound for the cache.
type CacheUpdate struct {
	EntityType    string `json:"entityType"`
	EntityPayload any    `json:"entityPayload"`
}

type User struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
	Avatar        string `json:"avatar,omitempty"`
	Bot           bool   `json:"bot"`
}

type Member struct {
	GuildID  string   `json:"guildId"`
	Nickname string   `json:"nickname,omitempty"`
	Roles    []string `json:"roles"`
	JoinedAt string   `json:"joinedAt"`
	User     User     `json:"user"`
}

type Role struct {
	ID          string `json:"id"`
	GuildID     string `json:"guildId"`
	Name        string `json:"name"`
	Color       int64  `json:"color"`
	Position    int64  `json:"position"`
	Permissions string `json:"permissions"`
}

type Overwrite struct {
	ID    string `json:"id"`
	Type  int64  `json:"type"`
	Allow string `json:"allow"`
	Deny  string `json:"deny"`
}

type Channel struct {
	ID         string      `json:"id"`
	GuildID    string      `json:"guildId,omitempty"`
	Type       int64       `json:"type"`
	Position   int64       `json:"position"`
	Name       string      `json:"name"`
	NSFW       bool        `json:"nsfw"`
	Overwrites []Overwrite `json:"overwrites"`
	UserLimit  int64       `json:"userLimit"`
	ParentID   string      `json:"parentId,omitempty"`
}

type VoiceState struct {
	GuildID   string `json:"guildId"`
	ChannelID string `json:"channelId"`
	UserID    string `json:"userId"`
	Deaf      bool   `json:"deaf"`
	Mute      bool   `json:"mute"`
	SelfDeaf  bool   `json:"selfDeaf"`
	SelfMute  bool   `json:"selfMute"`
}

type Guild struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Icon        *string      `json:"icon"`
	OwnerID     string       `json:"ownerId"`
	Roles       []Role       `json:"roles"`
	MemberCount *int64       `json:"memberCount"`
	Members     []Member     `json:"members"`
	VoiceStates []VoiceState `json:"voiceStates"`
	Channels    []Channel    `json:"channels"`
}

func toUser(u gateway.User) User {
	return User{
		ID:            u.ID,
		Username:      u.Username,
		Discriminator: u.Discriminator,
		Avatar:        u.Avatar,
		Bot:           u.Bot,
	}
}

func toMember(guildID string, m gateway.Member) Member {
	if m.GuildID != "" {
		guildID = m.GuildID
	}
	roles := m.Roles
	if roles == nil {
		roles = []string{}
	}
	return Member{
		GuildID:  guildID,
		Nickname: m.Nick,
		Roles:    roles,
		JoinedAt: m.JoinedAt,
		User:     toUser(m.User),
	}
}

func toRole(guildID string, r gateway.Role) Role {
	return Role{
		ID:          r.ID,
		GuildID:     guildID,
		Name:        r.Name,
		Color:       r.Color,
		Position:    r.Position,
		Permissions: r.Permissions,
	}
}

func toChannel(guildID string, c gateway.Channel) Channel {
	if c.GuildID != "" {
		guildID = c.GuildID
	}
	overwrites := make([]Overwrite, 0, len(c.PermissionOverwrites))
	for _, o := range c.PermissionOverwrites {
		overwrites = append(overwrites, Overwrite(o))
	}
	return Channel{
		ID:         c.ID,
		GuildID:    guildID,
		Type:       c.Type,
		Position:   c.Position,
		Name:       c.Name,
		NSFW:       c.NSFW,
		Overwrites: overwrites,
		UserLimit:  c.UserLimit,
		ParentID:   c.ParentID,
	}
}

func toVoiceState(guildID string, v gateway.VoiceState) VoiceState {
	if v.GuildID != "" {
		guildID = v.GuildID
	}
	return VoiceState{
		GuildID:   guildID,
		ChannelID: v.ChannelID,
		UserID:    v.UserID,
		Deaf:      v.Deaf,
		Mute:      v.Mute,
		SelfDeaf:  v.SelfDeaf,
		SelfMute:  v.SelfMute,
	}
}

func toGuild(g *gateway.Guild) Guild {
	out := Guild{
		ID:          g.ID,
		Name:        g.Name,
		OwnerID:     g.OwnerID,
		Roles:       make([]Role, 0, len(g.Roles)),
		Members:     make([]Member, 0, len(g.Members)),
		VoiceStates: make([]VoiceState, 0, len(g.VoiceStates)),
		Channels:    make([]Channel, 0, len(g.Channels)),
	}
	if g.Icon != "" {
		icon := g.Icon
		out.Icon = &icon
	}
	if g.MemberCount > 0 {
		n := g.MemberCount
		out.MemberCount = &n
	}
	for _, r := range g.Roles {
		out.Roles = append(out.Roles, toRole(g.ID, r))
	}
	for _, m := range g.Members {
		out.Members = append(out.Members, toMember(g.ID, m))
	}
	for _, v := range g.VoiceStates {
		out.VoiceStates = append(out.VoiceStates, toVoiceState(g.ID, v))
	}
	for _, c := range g.Channels {
		out.Channels = append(out.Channels, toChannel(g.ID, c))
	}
	return out
}
