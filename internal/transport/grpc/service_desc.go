package grpc

import (
	"context"

	grpclib "google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "availability.v1.AvailabilityService"

// AvailabilityServiceServer is the server side of the availability service.
// Requests and responses travel as google.protobuf.Struct documents whose
// field names follow the JSON shape of the domain types.
type AvailabilityServiceServer interface {
	RegisterProvider(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetAvailability(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AddTimeSlot(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RemoveTimeSlot(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AddRecurringSchedule(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RemoveRecurringSchedule(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AddException(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RemoveException(context.Context, *structpb.Struct) (*structpb.Struct, error)
	BookSlot(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UnbookSlot(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Reserve(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListAvailableSlots(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CheckAvailability(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func RegisterAvailabilityServiceServer(r grpclib.ServiceRegistrar, srv AvailabilityServiceServer) {
	r.RegisterService(&ServiceDesc, srv)
}

var ServiceDesc = grpclib.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AvailabilityServiceServer)(nil),
	Methods: []grpclib.MethodDesc{
		unaryMethod("RegisterProvider", AvailabilityServiceServer.RegisterProvider),
		unaryMethod("GetAvailability", AvailabilityServiceServer.GetAvailability),
		unaryMethod("AddTimeSlot", AvailabilityServiceServer.AddTimeSlot),
		unaryMethod("RemoveTimeSlot", AvailabilityServiceServer.RemoveTimeSlot),
		unaryMethod("AddRecurringSchedule", AvailabilityServiceServer.AddRecurringSchedule),
		unaryMethod("RemoveRecurringSchedule", AvailabilityServiceServer.RemoveRecurringSchedule),
		unaryMethod("AddException", AvailabilityServiceServer.AddException),
		unaryMethod("RemoveException", AvailabilityServiceServer.RemoveException),
		unaryMethod("BookSlot", AvailabilityServiceServer.BookSlot),
		unaryMethod("UnbookSlot", AvailabilityServiceServer.UnbookSlot),
		unaryMethod("Reserve", AvailabilityServiceServer.Reserve),
		unaryMethod("ListAvailableSlots", AvailabilityServiceServer.ListAvailableSlots),
		unaryMethod("CheckAvailability", AvailabilityServiceServer.CheckAvailability),
	},
	Streams:  []grpclib.StreamDesc{},
	Metadata: "availability/v1/availability.proto",
}

type unaryCall func(AvailabilityServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryMethod(name string, call unaryCall) grpclib.MethodDesc {
	fullMethod := FullMethod(name)
	return grpclib.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpclib.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			server := srv.(AvailabilityServiceServer)
			if interceptor == nil {
				return call(server, ctx, in)
			}
			info := &grpclib.UnaryServerInfo{
				Server:     srv,
				FullMethod: fullMethod,
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(server, ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// FullMethod returns the wire name of a service method, e.g.
// "/availability.v1.AvailabilityService/Reserve".
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}
