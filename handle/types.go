package handle

import "fmt"

// Handle is an opaque reference to an object in a Table.
// Handle 0 is reserved and always invalid.
type Handle uint32

// Kind tags the object behind a handle.
type Kind uint8

const (
	KindValue Kind = iota + 1
	KindType
	KindStruct
	KindStructBuf
	KindModule
	KindFunction
)

func (k Kind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindType:
		return "type"
	case KindStruct:
		return "struct"
	case KindStructBuf:
		return "struct buffer"
	case KindModule:
		return "module"
	case KindFunction:
		return "function"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// EventType identifies a lifecycle notification.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDropped
)

func (e EventType) String() string {
	if e == EventCreated {
		return "created"
	}
	return "dropped"
}

// Event is a handle lifecycle notification.
type Event struct {
	Object any
	Handle Handle
	Kind   Kind
	Type   EventType
}

// Observer receives lifecycle notifications.
type Observer interface {
	OnHandleEvent(Event)
}

// Dropper is implemented by objects that release resources when their
// handle goes away.
type Dropper interface {
	Drop()
}
