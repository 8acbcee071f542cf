package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

const frameWait = 3 * time.Second

type BaseRelaySuite struct {
	suite.Suite
	Config Config
	local  *localRelay
}

// SetupSuite loads the environment configuration and boots a relay when none is targeted
func (s *BaseRelaySuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)

	if s.Config.RelayAddr == "" {
		s.local, err = startLocalRelay()
		s.Require().NoError(err)
		s.Config.RelayAddr = s.local.http.URL
		s.Config.GrpcAddr = s.local.grpcAddr
	}
}

func (s *BaseRelaySuite) TearDownSuite() {
	if s.local != nil {
		s.local.Stop()
	}
}

func (s *BaseRelaySuite) header(t *testing.T, name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)
}

// Frame is one message written by the relay on a JSON socket.
type Frame struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// Participant is one websocket client, named after the identity it registered.
type Participant struct {
	suite *BaseRelaySuite
	Name  string
	ws    *websocket.Conn
}

// Join registers name and opens its socket.
func (s *BaseRelaySuite) Join(name string) *Participant {
	s.header(s.T(), "Join as "+name)
	ws, _, err := websocket.DefaultDialer.Dial(s.socketURL(name), nil)
	s.Require().NoError(err, "Failed to open websocket for "+name)
	return &Participant{suite: s, Name: name, ws: ws}
}

// JoinRejected expects the relay to refuse name and returns the close frame.
func (s *BaseRelaySuite) JoinRejected(name string) *websocket.CloseError {
	ws, _, err := websocket.DefaultDialer.Dial(s.socketURL(name), nil)
	s.Require().NoError(err)
	defer ws.Close()

	s.Require().NoError(ws.SetReadDeadline(time.Now().Add(frameWait)))
	_, _, err = ws.ReadMessage()
	var closeErr *websocket.CloseError
	s.Require().ErrorAs(err, &closeErr)
	return closeErr
}

func (s *BaseRelaySuite) socketURL(name string) string {
	body := strings.NewReader(fmt.Sprintf(`{"name":%q}`, name))
	resp, err := http.Post(s.Config.RelayAddr+"/api/names", "application/json", body)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusCreated, resp.StatusCode)

	var created struct {
		URL string `json:"url"`
	}
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&created))
	return "ws" + strings.TrimPrefix(s.Config.RelayAddr, "http") + created.URL
}

func (p *Participant) Send(frameType, value string) {
	p.suite.Require().NoError(p.ws.WriteJSON(map[string]string{"type": frameType, "value": value}))
}

// Next blocks until the relay writes the next frame.
func (p *Participant) Next() Frame {
	p.suite.Require().NoError(p.ws.SetReadDeadline(time.Now().Add(frameWait)))
	var frame Frame
	p.suite.Require().NoError(p.ws.ReadJSON(&frame), p.Name+" did not receive a frame")
	if p.suite.Config.DebugJSON {
		p.suite.T().Logf("%s <- %s %s", p.Name, frame.Type, frame.Value)
	}
	return frame
}

// NextOf skips frames until one of frameType arrives.
func (p *Participant) NextOf(frameType string) Frame {
	for {
		if frame := p.Next(); frame.Type == frameType {
			return frame
		}
	}
}

// Flush returns every frame queued for the participant so far. An invalid
// frame is sent as a marker: its error reply is queued behind everything else.
func (p *Participant) Flush() []Frame {
	p.Send("flush", "")
	var frames []Frame
	for {
		frame := p.Next()
		if frame.Type == "error" {
			return frames
		}
		frames = append(frames, frame)
	}
}

func (p *Participant) Leave() {
	_ = p.ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = p.ws.Close()
}

// WithHealth provides a grpc.health.v1 client logging every call
func (s *BaseRelaySuite) WithHealth(name string, fn func(ctx context.Context, client healthpb.HealthClient)) {
	s.header(s.T(), name)
	marshaler := protojson.MarshalOptions{
		UseProtoNames:   true,
		Multiline:       true,
		EmitUnpopulated: true,
	}

	conn, err := grpc.NewClient(s.Config.GrpcAddr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
			start := time.Now()
			err := invoker(ctx, method, req, reply, cc, opts...)

			logBuilder := strings.Builder{}
			fmt.Fprintf(&logBuilder, "GRPC %s [%s] in %v", method, status.Code(err), time.Since(start))
			if s.Config.DebugJSON && err == nil {
				fmt.Fprintln(&logBuilder, "\nRESPONSE:")
				fmt.Fprintln(&logBuilder, marshaler.Format(reply.(proto.Message)))
			}
			s.T().Log(logBuilder.String())
			return err
		}),
	)
	s.Require().NoError(err, "Failed to connect to gRPC server at "+s.Config.GrpcAddr)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	fn(ctx, healthpb.NewHealthClient(conn))
}
