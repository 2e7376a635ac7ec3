package gateway

import (
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
)

// EventKind enumerates the dispatch events a shard understands.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventReady
	EventResumed
	EventMessageCreate
	EventGuildCreate
	EventGuildUpdate
	EventGuildDelete
	EventChannelCreate
	EventChannelUpdate
	EventChannelDelete
	EventRoleCreate
	EventRoleUpdate
	EventRoleDelete
	EventMemberAdd
	EventMemberUpdate
	EventMemberRemove
	EventMembersChunk
	EventUserUpdate
	EventVoiceStateUpdate
)

var eventNames = map[string]EventKind{
	"READY":               EventReady,
	"RESUMED":             EventResumed,
	"MESSAGE_CREATE":      EventMessageCreate,
	"GUILD_CREATE":        EventGuildCreate,
	"GUILD_UPDATE":        EventGuildUpdate,
	"GUILD_DELETE":        EventGuildDelete,
	"CHANNEL_CREATE":      EventChannelCreate,
	"CHANNEL_UPDATE":      EventChannelUpdate,
	"CHANNEL_DELETE":      EventChannelDelete,
	"GUILD_ROLE_CREATE":   EventRoleCreate,
	"GUILD_ROLE_UPDATE":   EventRoleUpdate,
	"GUILD_ROLE_DELETE":   EventRoleDelete,
	"GUILD_MEMBER_ADD":    EventMemberAdd,
	"GUILD_MEMBER_UPDATE": EventMemberUpdate,
	"GUILD_MEMBER_REMOVE": EventMemberRemove,
	"GUILD_MEMBERS_CHUNK": EventMembersChunk,
	"USER_UPDATE":         EventUserUpdate,
	"VOICE_STATE_UPDATE":  EventVoiceStateUpdate,
}

// KindOf maps a dispatch name to its kind. Unmapped names are EventUnknown.
func KindOf(name string) EventKind {
	return eventNames[name]
}

func (k EventKind) String() string {
	for name, kind := range eventNames {
		if kind == k {
			return name
		}
	}
	return "UNKNOWN"
}

// Event is a decoded dispatch. Data holds the pointer type matching Kind
// (*Ready for EventReady, *Member for EventMemberAdd, ...); for
// EventUnknown it is the raw payload.
type Event struct {
	Kind EventKind
	Name string
	Seq  int64
	Data any
}

type Hello struct {
	HeartbeatInterval int64 `json:"heartbeat_interval"`
}

type User struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
	GlobalName    string `json:"global_name"`
	Avatar        string `json:"avatar"`
	Bot           bool   `json:"bot"`
}

type UnavailableGuild struct {
	ID          string `json:"id"`
	Unavailable bool   `json:"unavailable"`
}

type Ready struct {
	SessionID        string             `json:"session_id"`
	ResumeGatewayURL string             `json:"resume_gateway_url"`
	User             User               `json:"user"`
	Guilds           []UnavailableGuild `json:"guilds"`
	Shard            []int64            `json:"shard"`
}

type Message struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	GuildID   string `json:"guild_id"`
	Author    User   `json:"author"`
	Content   string `json:"content"`
}

type Overwrite struct {
	ID    string `json:"id"`
	Type  int64  `json:"type"`
	Allow string `json:"allow"`
	Deny  string `json:"deny"`
}

type Channel struct {
	ID                   string      `json:"id"`
	Type                 int64       `json:"type"`
	GuildID              string      `json:"guild_id"`
	Name                 string      `json:"name"`
	Position             int64       `json:"position"`
	Topic                string      `json:"topic"`
	NSFW                 bool        `json:"nsfw"`
	Bitrate              int64       `json:"bitrate"`
	UserLimit            int64       `json:"user_limit"`
	ParentID             string      `json:"parent_id"`
	PermissionOverwrites []Overwrite `json:"permission_overwrites"`
}

type Role struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Color       int64  `json:"color"`
	Hoist       bool   `json:"hoist"`
	Position    int64  `json:"position"`
	Permissions string `json:"permissions"`
	Managed     bool   `json:"managed"`
	Mentionable bool   `json:"mentionable"`
}

type RoleEvent struct {
	GuildID string `json:"guild_id"`
	Role    Role   `json:"role"`
}

type RoleDelete struct {
	GuildID string `json:"guild_id"`
	RoleID  string `json:"role_id"`
}

type Member struct {
	GuildID  string   `json:"guild_id"`
	User     User     `json:"user"`
	Nick     string   `json:"nick"`
	Roles    []string `json:"roles"`
	JoinedAt string   `json:"joined_at"`
	Deaf     bool     `json:"deaf"`
	Mute     bool     `json:"mute"`
}

type MemberRemove struct {
	GuildID string `json:"guild_id"`
	User    User   `json:"user"`
}

type MembersChunk struct {
	GuildID    string   `json:"guild_id"`
	Members    []Member `json:"members"`
	ChunkIndex int64    `json:"chunk_index"`
	ChunkCount int64    `json:"chunk_count"`
	NotFound   []string `json:"not_found"`
	Nonce      string   `json:"nonce"`
}

type VoiceState struct {
	GuildID   string `json:"guild_id"`
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Deaf      bool   `json:"deaf"`
	Mute      bool   `json:"mute"`
	SelfDeaf  bool   `json:"self_deaf"`
	SelfMute  bool   `json:"self_mute"`
	Suppress  bool   `json:"suppress"`
}

type Guild struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Icon        string       `json:"icon"`
	OwnerID     string       `json:"owner_id"`
	MemberCount int64        `json:"member_count"`
	Large       bool         `json:"large"`
	Unavailable bool         `json:"unavailable"`
	Roles       []Role       `json:"roles"`
	Members     []Member     `json:"members"`
	Channels    []Channel    `json:"channels"`
	VoiceStates []VoiceState `json:"voice_states"`
}

func newPayload(kind EventKind) any {
	switch kind {
	case EventReady:
		return &Ready{}
	case EventMessageCreate:
		return &Message{}
	case EventGuildCreate, EventGuildUpdate:
		return &Guild{}
	case EventGuildDelete:
		return &UnavailableGuild{}
	case EventChannelCreate, EventChannelUpdate, EventChannelDelete:
		return &Channel{}
	case EventRoleCreate, EventRoleUpdate:
		return &RoleEvent{}
	case EventRoleDelete:
		return &RoleDelete{}
	case EventMemberAdd, EventMemberUpdate:
		return &Member{}
	case EventMemberRemove:
		return &MemberRemove{}
	case EventMembersChunk:
		return &MembersChunk{}
	case EventUserUpdate:
		return &User{}
	case EventVoiceStateUpdate:
		return &VoiceState{}
	}
	return nil
}

// DecodeEvent turns a dispatch name and payload into a typed Event.
func DecodeEvent(name string, d any) (Event, error) {
	ev := Event{Kind: KindOf(name), Name: name}
	out := newPayload(ev.Kind)
	if out == nil {
		ev.Data = d
		return ev, nil
	}
	if err := decodePayload(d, out); err != nil {
		return ev, errors.Wrapf(err, "decode %s", name)
	}
	ev.Data = out
	return ev, nil
}

func decodePayload(in any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}
