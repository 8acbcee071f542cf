package e2e

import (
	"chat-relay/codec"
	grpcserver "chat-relay/infrastructure/grpc/server"
	httpserver "chat-relay/infrastructure/http/server"
	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"
	"context"
	"log/slog"
	"net"
	"net/http/httptest"
	"time"

	"github.com/mama165/sdk-go/logs"
)

// localRelay is the whole relay wired in process, in strict recipient mode.
type localRelay struct {
	http     *httptest.Server
	health   *grpcserver.HealthServer
	grpcAddr string
	broker   *runtime.Broker
	cancel   context.CancelFunc
}

func startLocalRelay() (*localRelay, error) {
	log := logs.GetLoggerFromLevel(slog.LevelWarn)
	ctx, cancel := context.WithCancel(context.Background())

	dictionary, err := moderation.DefaultDictionary()
	if err != nil {
		cancel()
		return nil, err
	}
	moderator, err := moderation.NewModerator(dictionary.Words, '*', log)
	if err != nil {
		cancel()
		return nil, err
	}
	nameCodec, err := codec.NewNameCodec("")
	if err != nil {
		cancel()
		return nil, err
	}

	broker := runtime.NewBroker(log, workers.NewSupervisor(log, 50*time.Millisecond),
		runtime.NewRegistry(log), runtime.NewDeliveryQueue(), observability.NewMonitoring(log),
		runtime.Options{StrictRecipient: true, SendTimeout: 2 * time.Second, Language: moderation.DetectLanguage})
	broker.Start(ctx)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		cancel()
		broker.Stop()
		return nil, err
	}
	health := grpcserver.NewHealthServer(log)
	go func() { _ = health.Serve(listener) }()
	go health.Track(ctx, broker.Done())

	service := services.NewChatService(log, broker, moderator, 32, 500)
	handler := httpserver.NewHandler(ctx, log, service, nameCodec, httpserver.Options{MaxNameLength: 32})

	return &localRelay{
		http:     httptest.NewServer(handler.Router()),
		health:   health,
		grpcAddr: listener.Addr().String(),
		broker:   broker,
		cancel:   cancel,
	}, nil
}

func (r *localRelay) Stop() {
	r.http.Close()
	r.cancel()
	r.broker.Stop()
	r.health.GracefulStop()
}
