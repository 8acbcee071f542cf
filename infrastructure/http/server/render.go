package server

import (
	"bytes"
	"chat-relay/domain"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
)

const (
	FormatJSON = "json"
	FormatHTML = "html"
)

// Renderer turns a payload into one websocket text frame.
type Renderer interface {
	Render(ctx context.Context, payload domain.Payload) ([]byte, error)
}

func rendererFor(format string) (Renderer, error) {
	switch format {
	case "", FormatJSON:
		return JSONRenderer{}, nil
	case FormatHTML:
		return HTMLRenderer{}, nil
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}

type JSONRenderer struct{}

func (JSONRenderer) Render(_ context.Context, payload domain.Payload) ([]byte, error) {
	return json.Marshal(toOutboundFrame(payload))
}

// HTMLRenderer writes htmx out-of-band fragments, targeting the element ids
// #connected-users, #recipient, #users, #messages and #notice.
type HTMLRenderer struct{}

func (HTMLRenderer) Render(ctx context.Context, payload domain.Payload) ([]byte, error) {
	var buf bytes.Buffer
	if err := fragment(payload).Render(ctx, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func fragment(payload domain.Payload) templ.Component {
	switch p := payload.(type) {
	case domain.ConnectedUsers:
		return swap("span", "connected-users", "true", fmt.Sprint(p.Count))
	case domain.RecipientChosen:
		return swap("div", "recipient", "true", "Chatting with <strong>"+templ.EscapeString(p.Counterpart.String())+"</strong>")
	case domain.RoomKilled:
		return roomKilled(p)
	case domain.ChatMessage:
		return message(p, "message")
	case domain.OwnMessage:
		return message(p.ChatMessage, "message own")
	case domain.NoRecipient:
		return swap("div", "notice", "true", templ.EscapeString(p.Text))
	case domain.Failure:
		return swap("div", "notice", "true", `<span class="error">`+templ.EscapeString(p.Message)+"</span>")
	default:
		return templ.NopComponent
	}
}

// swap renders <tag id="id" hx-swap-oob="mode">inner</tag>. inner must be escaped already.
func swap(tag, id, mode, inner string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<%s id="%s" hx-swap-oob="%s">%s</%s>`, tag, id, mode, inner, tag)
		return err
	})
}

func roomKilled(p domain.RoomKilled) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := swap("div", "recipient", "true", "<em>"+templ.EscapeString(p.Reason)+"</em>").Render(ctx, w); err != nil {
			return err
		}
		var items strings.Builder
		for _, user := range p.ConnectedUsers {
			items.WriteString("<li>" + templ.EscapeString(user.String()) + "</li>")
		}
		return swap("ul", "users", "true", items.String()).Render(ctx, w)
	})
}

func message(m domain.ChatMessage, class string) templ.Component {
	value := toChatMessageValue(m)
	lang := ""
	if value.Lang != "" {
		lang = ` lang="` + templ.EscapeString(value.Lang) + `"`
	}
	inner := fmt.Sprintf(`<p class="%s" id="msg-%s"%s><b>%s</b> %s</p>`,
		class, value.ID, lang, templ.EscapeString(value.Sender), templ.EscapeString(value.Text))
	return swap("div", "messages", "beforeend", inner)
}
