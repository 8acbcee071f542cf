package main

import (
	"chat-relay/infrastructure/grpc/client"
	grpcserver "chat-relay/infrastructure/grpc/server"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/gookit/color"
	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/encoding/protojson"
)

func newHealthCmd() *cobra.Command {
	var addr, service string
	var asJSON bool
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:     "health",
		Aliases: []string{"h"},
		Short:   "Ask the relay whether its broker is serving",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			healthClient, err := client.NewHealthClient(addr)
			if err != nil {
				return err
			}
			defer healthClient.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			resp, err := healthClient.Check(ctx, service)
			if err != nil {
				return fmt.Errorf("health check: %w", err)
			}
			if err := renderHealth(cmd.OutOrStdout(), service, resp, asJSON); err != nil {
				return err
			}
			if resp.Status != healthpb.HealthCheckResponse_SERVING {
				return fmt.Errorf("%s is %s", service, resp.Status)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "grpc-addr", "localhost:50051", "gRPC address of the relay")
	cmd.Flags().StringVar(&service, "service", grpcserver.BrokerService, "Service name to check")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw response as JSON")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "Request timeout")
	return cmd
}

func renderHealth(w io.Writer, service string, resp *healthpb.HealthCheckResponse, asJSON bool) error {
	if asJSON {
		data, err := protojson.MarshalOptions{UseProtoNames: true, EmitUnpopulated: true}.Marshal(resp)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	status := resp.Status.String()
	if resp.Status == healthpb.HealthCheckResponse_SERVING {
		status = color.Green.Render(status)
	} else {
		status = color.Red.Render(status)
	}
	_, err := fmt.Fprintf(w, "%s: %s\n", service, status)
	return err
}
