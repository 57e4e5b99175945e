package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"availability/backend/internal/domain"
	grpcTransport "availability/backend/internal/transport/grpc"
)

func previewCmd() *cobra.Command {
	var from, to, serviceType string

	cmd := &cobra.Command{
		Use:   "preview <snapshot.json>",
		Short: "Print the available slots of a snapshot file without a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			slots, err := previewSlots(f, from, to, serviceType)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), slots)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last date (YYYY-MM-DD), inclusive")
	cmd.Flags().StringVar(&serviceType, "service-type", "", "only list slots of this service type")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

// previewSlots decodes a snapshot, validates it and lists its available
// slots for the inclusive date range.
func previewSlots(r io.Reader, from, to, serviceType string) ([]domain.TimeSlot, error) {
	var snap domain.Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	agg, err := domain.FromSnapshot(snap)
	if err != nil {
		return nil, err
	}
	if err := agg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid snapshot: %w", err)
	}

	start, err := domain.ParseDate(from)
	if err != nil {
		return nil, err
	}
	end, err := domain.ParseDate(to)
	if err != nil {
		return nil, err
	}
	rng, err := domain.NewDateRange(start, end)
	if err != nil {
		return nil, err
	}

	var filter *domain.ServiceType
	if serviceType != "" {
		st, err := domain.ParseServiceType(serviceType)
		if err != nil {
			return nil, err
		}
		filter = &st
	}
	return agg.AvailableTimeSlots(rng, filter), nil
}

func slotsCmd() *cobra.Command {
	var addr, providerID, from, to, serviceType string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "slots",
		Short: "List a provider's available slots from a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
			if err != nil {
				return err
			}
			defer conn.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			var resp grpcTransport.ListAvailableSlotsResponse
			err = grpcTransport.NewClient(conn).Call(ctx, "ListAvailableSlots", grpcTransport.ListAvailableSlotsRequest{
				ProviderID:  providerID,
				From:        from,
				To:          to,
				ServiceType: serviceType,
			}, &resp)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), resp.Slots)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:50051", "gRPC server address")
	cmd.Flags().StringVar(&providerID, "provider", "", "provider id")
	cmd.Flags().StringVar(&from, "from", "", "first date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last date (YYYY-MM-DD), inclusive")
	cmd.Flags().StringVar(&serviceType, "service-type", "", "only list slots of this service type")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")
	_ = cmd.MarkFlagRequired("provider")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
