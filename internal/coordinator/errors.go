package coordinator

import "errors"

var (
	ErrNotRegistered     = errors.New("coordinator: not registered with relay")
	ErrAlreadyRegistered = errors.New("coordinator: already registered")
	ErrSessionExists     = errors.New("coordinator: a session with this peer already exists")
	ErrNoSuchSession     = errors.New("coordinator: no session with this peer")
	ErrNotActive         = errors.New("coordinator: session is not Active")
	ErrNoSuchTransfer    = errors.New("coordinator: no such transfer")
	ErrSelfPeer          = errors.New("coordinator: cannot start a session with yourself")
	ErrAlreadyInitiating = errors.New("coordinator: another session is already InitiatingSession")
)
