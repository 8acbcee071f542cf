package server

import (
	"chat-relay/domain"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestJSONRenderer(t *testing.T) {
	id := uuid.MustParse("7f1e0b8a-3c47-4f5e-9a61-2b9d1c0e4a55")
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	message := domain.ChatMessage{ID: id, Sender: "alice", Text: "hi", At: at}

	tests := []struct {
		name     string
		payload  domain.Payload
		expected string
	}{
		{"connected users", domain.ConnectedUsers{Count: 3}, `{"type":"connected_users","value":3}`},
		{"recipient chosen", domain.RecipientChosen{Counterpart: "bob"}, `{"type":"recipient_chosen","value":"bob"}`},
		{"room killed", domain.RoomKilled{Reason: domain.ReasonOtherUserLeft, ConnectedUsers: []domain.Identity{"alice"}},
			`{"type":"room_killed","value":{"reason":"The other user left","connected_users":["alice"]}}`},
		{"chat message", message,
			`{"type":"chat_message","value":{"id":"7f1e0b8a-3c47-4f5e-9a61-2b9d1c0e4a55","sender":"alice","text":"hi","at":"2024-05-01T12:00:00Z"}}`},
		{"own message", domain.OwnMessage{ChatMessage: message},
			`{"type":"own_message","value":{"id":"7f1e0b8a-3c47-4f5e-9a61-2b9d1c0e4a55","sender":"alice","text":"hi","at":"2024-05-01T12:00:00Z"}}`},
		{"tagged chat message", domain.ChatMessage{ID: id, Sender: "alice", Text: "hi", At: at, Lang: "fr"},
			`{"type":"chat_message","value":{"id":"7f1e0b8a-3c47-4f5e-9a61-2b9d1c0e4a55","sender":"alice","text":"hi","at":"2024-05-01T12:00:00Z","lang":"fr"}}`},
		{"no recipient", domain.NoRecipient{Text: "Choose a recipient first"}, `{"type":"no_recipient","value":"Choose a recipient first"}`},
		{"failure", domain.Failure{Message: "boom"}, `{"type":"error","value":"boom"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := JSONRenderer{}.Render(context.Background(), tt.payload)
			require.NoError(t, err)
			require.JSONEq(t, tt.expected, string(data))
		})
	}
}

func TestHTMLRenderer_Escapes_User_Content(t *testing.T) {
	req := require.New(t)
	id := uuid.MustParse("7f1e0b8a-3c47-4f5e-9a61-2b9d1c0e4a55")

	data, err := HTMLRenderer{}.Render(context.Background(), domain.ChatMessage{
		ID: id, Sender: "<b>eve</b>", Text: `<i>"x"</i>`,
	})
	req.NoError(err)
	req.Equal(`<div id="messages" hx-swap-oob="beforeend"><p class="message" id="msg-7f1e0b8a-3c47-4f5e-9a61-2b9d1c0e4a55">`+
		`<b>&lt;b&gt;eve&lt;/b&gt;</b> &lt;i&gt;&#34;x&#34;&lt;/i&gt;</p></div>`, string(data))

	data, err = HTMLRenderer{}.Render(context.Background(), domain.RoomKilled{
		Reason: domain.ReasonOtherUserLeft, ConnectedUsers: []domain.Identity{"a&b", "carol"},
	})
	req.NoError(err)
	req.Equal(`<div id="recipient" hx-swap-oob="true"><em>The other user left</em></div>`+
		`<ul id="users" hx-swap-oob="true"><li>a&amp;b</li><li>carol</li></ul>`, string(data))
}

func TestHTMLRenderer_Carries_Message_Language(t *testing.T) {
	req := require.New(t)
	id := uuid.MustParse("7f1e0b8a-3c47-4f5e-9a61-2b9d1c0e4a55")

	// Given a message already tagged by the broker
	message := domain.ChatMessage{ID: id, Sender: "alice", Text: "salut", Lang: "fr"}

	// When it is rendered as the sender's echo
	data, err := HTMLRenderer{}.Render(context.Background(), domain.OwnMessage{ChatMessage: message})

	// Then the tag is used as is, with no detection on such a short text
	req.NoError(err)
	req.Contains(string(data), `id="msg-7f1e0b8a-3c47-4f5e-9a61-2b9d1c0e4a55" lang="fr">`)
	req.Contains(string(data), `<b>alice</b> salut</p>`)
}

func TestRendererFor(t *testing.T) {
	req := require.New(t)
	r, err := rendererFor("")
	req.NoError(err)
	req.IsType(JSONRenderer{}, r)
	r, err = rendererFor(FormatHTML)
	req.NoError(err)
	req.IsType(HTMLRenderer{}, r)
	_, err = rendererFor("xml")
	req.Error(err)
}
