// Copyright 2015-2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package mediamanager

import (
	"fmt"
)

// MarshalText returns a string representing a trash state.
func (ts TrashState) MarshalText() ([]byte, error) {
	switch ts {
	case TrashOut:
		return []byte("out"), nil
	case TrashIn:
		return []byte("in"), nil
	case TrashAny:
		return []byte("any"), nil
	default:
		return nil, fmt.Errorf("invalid trash state (marshal, %+v)", int(ts))
	}
}

// UnmarshalText populates a trash state from a string.
func (ts *TrashState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "out":
		*ts = TrashOut
	case "in":
		*ts = TrashIn
	case "any":
		*ts = TrashAny
	default:
		return fmt.Errorf("invalid trash state (unmarshal, %+v)", string(text))
	}
	return nil
}

// MarshalText returns the notification event name for an import
// event kind, such as "import.started".
func (k ImportEventKind) MarshalText() ([]byte, error) {
	switch k {
	case ImportStartedEvent:
		return []byte("import.started"), nil
	case ImagesCreatedEvent:
		return []byte("import.images.created"), nil
	case ImageCreatedEvent:
		return []byte("import.image.created"), nil
	case ImagesVariantCreatedEvent:
		return []byte("import.images.variant.created"), nil
	case ImageVariantCreatedEvent:
		return []byte("import.image.variant.created"), nil
	case ImagesImportedEvent:
		return []byte("import.images.imported"), nil
	case ImageImportedEvent:
		return []byte("import.image.imported"), nil
	case ImportCompletedEvent:
		return []byte("import.completed"), nil
	default:
		return nil, fmt.Errorf("invalid import event (marshal, %+v)", int(k))
	}
}

// UnmarshalText populates an import event kind from its event name.
func (k *ImportEventKind) UnmarshalText(text []byte) error {
	for _, kind := range AllImportEventKinds {
		name, _ := kind.MarshalText()
		if string(name) == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("invalid import event (unmarshal, %+v)", string(text))
}

// String returns the event name of an import event kind.
func (k ImportEventKind) String() string {
	text, err := k.MarshalText()
	if err != nil {
		return fmt.Sprintf("ImportEventKind(%d)", int(k))
	}
	return string(text)
}

// MarshalText returns the notification event name for a sync event
// kind, such as "sync.started".
func (k SyncEventKind) MarshalText() ([]byte, error) {
	switch k {
	case SyncStartedEvent:
		return []byte("sync.started"), nil
	case SyncProgressEvent:
		return []byte("sync.progress"), nil
	case SyncCompletedEvent:
		return []byte("sync.completed"), nil
	default:
		return nil, fmt.Errorf("invalid sync event (marshal, %+v)", int(k))
	}
}

// UnmarshalText populates a sync event kind from its event name.
func (k *SyncEventKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "sync.started":
		*k = SyncStartedEvent
	case "sync.progress":
		*k = SyncProgressEvent
	case "sync.completed":
		*k = SyncCompletedEvent
	default:
		return fmt.Errorf("invalid sync event (unmarshal, %+v)", string(text))
	}
	return nil
}

// String returns the event name of a sync event kind.
func (k SyncEventKind) String() string {
	text, err := k.MarshalText()
	if err != nil {
		return fmt.Sprintf("SyncEventKind(%d)", int(k))
	}
	return string(text)
}

// MarshalText returns a string representing a document operation.
func (op DocOp) MarshalText() ([]byte, error) {
	switch op {
	case DocCreated:
		return []byte("created"), nil
	case DocUpdated:
		return []byte("updated"), nil
	case DocDeleted:
		return []byte("deleted"), nil
	default:
		return nil, fmt.Errorf("invalid document operation (marshal, %+v)", int(op))
	}
}

// UnmarshalText populates a document operation from a string.
func (op *DocOp) UnmarshalText(text []byte) error {
	switch string(text) {
	case "created":
		*op = DocCreated
	case "updated":
		*op = DocUpdated
	case "deleted":
		*op = DocDeleted
	default:
		return fmt.Errorf("invalid document operation (unmarshal, %+v)", string(text))
	}
	return nil
}
