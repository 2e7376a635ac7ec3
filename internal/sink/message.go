// Package sink delivers gateway output to downstream consumers: chat
// messages to Kafka or a local disk spool, entity updates to a Redis stream.
package sink

import (
	"fmt"

	"github.com/oxyl/shardgate/internal/gateway"
	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the DiscordMessage record.
const (
	fieldID        protowire.Number = 1
	fieldChannelID protowire.Number = 2
	fieldAuthorID  protowire.Number = 3
	fieldGuildID   protowire.Number = 4
	fieldContent   protowire.Number = 5
)

// Message is the record pushed to message consumers.
type Message struct {
	ID        string
	ChannelID string
	AuthorID  string
	GuildID   string
	Content   string
}

func FromGateway(m *gateway.Message) *Message {
	return &Message{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		AuthorID:  m.Author.ID,
		GuildID:   m.GuildID,
		Content:   m.Content,
	}
}

// EncodeMessage writes m in protobuf wire format. Empty fields are omitted.
func EncodeMessage(m *Message) []byte {
	var b []byte
	for _, f := range []struct {
		num protowire.Number
		v   string
	}{
		{fieldID, m.ID},
		{fieldChannelID, m.ChannelID},
		{fieldAuthorID, m.AuthorID},
		{fieldGuildID, m.GuildID},
		{fieldContent, m.Content},
	} {
		if f.v == "" {
			continue
		}
		b = protowire.AppendTag(b, f.num, protowire.BytesType)
		b = protowire.AppendString(b, f.v)
	}
	return b
}

// DecodeMessage is the inverse of EncodeMessage. Unknown fields are skipped.
func DecodeMessage(b []byte) (*Message, error) {
	m := &Message{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		if typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
			continue
		}
		v, n := protowire.ConsumeString(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case fieldID:
			m.ID = v
		case fieldChannelID:
			m.ChannelID = v
		case fieldAuthorID:
			m.AuthorID = v
		case fieldGuildID:
			m.GuildID = v
		case fieldContent:
			m.Content = v
		}
	}
	return m, nil
}

func (m *Message) String() string {
	return fmt.Sprintf("Message[%s] channel=%s author=%s", m.ID, m.ChannelID, m.AuthorID)
}
