package cont

import (
	"context"
	"qrattend/entity"
)

type ctxKey string

const (
	MemberDataKey ctxKey = "memberData"
	DeviceKey     ctxKey = "device"
)

func PutMember(c context.Context, member *entity.Member) context.Context {
	return context.WithValue(c, MemberDataKey, *member)
}

// GetMember returns nil when the request did not pass authentication.
func GetMember(c context.Context) *entity.Member {
	member, ok := c.Value(MemberDataKey).(entity.Member)
	if !ok {
		return nil
	}
	return &member
}

func PutDevice(c context.Context, device string) context.Context {
	return context.WithValue(c, DeviceKey, device)
}

func GetDevice(c context.Context) string {
	device, _ := c.Value(DeviceKey).(string)
	if device == "" {
		return "unknown"
	}
	return device
}
