// Package server exposes the relay over HTTP: a websocket per participant and
// a few JSON endpoints around it.
package server

import (
	"chat-relay/codec"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/services"
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const maxCloseReason = 123

type Options struct {
	MaxNameLength     int
	MessagesPerSecond float64
	MessageBurst      int
	PingInterval      time.Duration
	RequestTimeout    time.Duration
}

type Handler struct {
	ctx      context.Context
	log      *slog.Logger
	service  services.IChatService
	codec    codec.INameCodec
	options  Options
	upgrader websocket.Upgrader
}

// NewHandler builds the handler. Open sockets are closed once ctx is done.
func NewHandler(ctx context.Context, log *slog.Logger, service services.IChatService,
	codec codec.INameCodec, options Options) *Handler {
	if options.RequestTimeout <= 0 {
		options.RequestTimeout = 15 * time.Second
	}
	return &Handler{
		ctx:     ctx,
		log:     log,
		service: service,
		codec:   codec,
		options: options,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.log))
	r.Use(middleware.Recoverer)
	h.RegisterRoutes(r)
	return r
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.health)
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(h.options.RequestTimeout))
		r.Post("/names", h.createName)
		r.Get("/stats", h.stats)
	})
	r.Get("/ws/{token}", h.serveWs)
}

type nameRequest struct {
	Name string `json:"name"`
}

type nameResponse struct {
	Name  string `json:"name"`
	Token string `json:"token"`
	URL   string `json:"url"`
}

// createName issues the token a participant connects with. Accepts JSON or a form.
func (h *Handler) createName(w http.ResponseWriter, r *http.Request) {
	var body nameRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, fmt.Errorf("%w: %v", errors.ErrInvalidIdentity, err))
			return
		}
	} else {
		body.Name = r.FormValue("name")
	}

	identity, err := domain.ValidateIdentity(body.Name, h.options.MaxNameLength)
	if err != nil {
		writeError(w, err)
		return
	}
	token, err := h.codec.Encode(identity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, nameResponse{Name: identity.String(), Token: token, URL: "/ws/" + token})
}

func (h *Handler) stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Stats())
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) serveWs(w http.ResponseWriter, r *http.Request) {
	identity, err := h.codec.Decode(chi.URLParam(r, "token"))
	if err != nil {
		writeError(w, err)
		return
	}
	renderer, err := rendererFor(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", errors.ErrInvalidFrame, err))
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("Websocket upgrade failed", "error", err)
		return
	}
	conn := NewConnection(ws, renderer)
	if _, err := h.service.Connect(identity.String(), conn); err != nil {
		h.log.Info("Connection rejected", "identity", identity, "error", err)
		_ = conn.Reject(rejectReason(err))
		return
	}

	ctx, cancel := context.WithCancel(h.ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	go conn.keepAlive(ctx, h.options.PingInterval)

	h.readPump(identity, conn)
	h.service.Disconnect(identity)
}

// readPump dispatches inbound frames until the socket fails or closes.
func (h *Handler) readPump(identity domain.Identity, conn *Connection) {
	ws := conn.ws
	ws.SetReadLimit(maxFrameSize)
	if h.options.PingInterval > 0 {
		pongWait := 2 * h.options.PingInterval
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(pongWait))
		})
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if h.options.MessagesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(h.options.MessagesPerSecond), max(h.options.MessageBurst, 1))
	}

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("Websocket read failed", "identity", identity, "error", err)
			}
			return
		}
		if !limiter.Allow() {
			h.service.Report(identity, errors.ErrRateLimited)
			continue
		}
		if err := h.dispatch(identity, data); err != nil {
			if stdErrors.Is(err, errors.ErrNoCounterpart) {
				h.log.Debug("Message without recipient", "identity", identity)
				continue
			}
			h.service.Report(identity, err)
		}
	}
}

func (h *Handler) dispatch(identity domain.Identity, data []byte) error {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidFrame, err)
	}
	switch frame.Type {
	case FrameChooseRecipient:
		return h.service.ChooseRecipient(domain.ChooseRecipientCommand{Sender: identity, Recipient: frame.Value})
	case FrameChatMessage:
		return h.service.PostMessage(domain.PostMessageCommand{Sender: identity, Content: frame.Value, CreatedAt: time.Now().UTC()})
	default:
		return fmt.Errorf("%w: unknown type %q", errors.ErrInvalidFrame, frame.Type)
	}
}

// rejectReason fits the close reason in a control frame.
func rejectReason(err error) string {
	if stdErrors.Is(err, errors.ErrNameTaken) {
		return "Username taken"
	}
	reason := err.Error()
	if len(reason) > maxCloseReason {
		reason = strings.ToValidUTF8(reason[:maxCloseReason], "")
	}
	return reason
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, errors.HTTPStatus(err), map[string]string{"error": err.Error()})
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()))
		})
	}
}
