package threads

import (
	"context"

	"Threadview/internal/core/resolver"
)

// SlotStore is the key/value area the producer writes thread data into.
type SlotStore interface {
	// GetSlot returns the slot value and whether it exists.
	GetSlot(ctx context.Context, key string) (string, bool, error)

	// SetSlot creates or replaces a slot.
	SetSlot(ctx context.Context, key, value string) error

	// DeleteSlot removes a slot. Missing slots are ignored.
	DeleteSlot(ctx context.Context, key string) error
}

// AttachmentResolver renders message attachments.
type AttachmentResolver interface {
	ResolveAttachment(ctx context.Context, a resolver.Attachment) resolver.Element

	// ResolveFullImage renders an image attachment at full size.
	ResolveFullImage(ctx context.Context, a resolver.Attachment) resolver.Element
}
