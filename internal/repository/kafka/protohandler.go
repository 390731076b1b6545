package kafka

import (
	"context"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

func ProtoHandler[M proto.Message](ctor func() M, handle func(context.Context, []byte, M) error) Handler {
	return func(ctx context.Context, key, value []byte) error {
		msg := ctor()
		if err := proto.Unmarshal(value, msg); err != nil {
			return err
		}
		return handle(ctx, key, msg)
	}
}

// StructHandler decodes a google.protobuf.Struct payload. Values that are not
// binary protobuf are tried as JSON so events can be produced by hand.
func StructHandler(handle func(context.Context, []byte, *structpb.Struct) error) Handler {
	return func(ctx context.Context, key, value []byte) error {
		msg := &structpb.Struct{}
		if err := proto.Unmarshal(value, msg); err != nil || (len(msg.GetFields()) == 0 && len(value) > 0) {
			msg = &structpb.Struct{}
			if jerr := protojson.Unmarshal(value, msg); jerr != nil {
				if err != nil {
					return err
				}
				return jerr
			}
		}
		return handle(ctx, key, msg)
	}
}
