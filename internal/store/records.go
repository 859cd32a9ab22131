package store

import (
	"sync"

	"gram/internal/backend"
)

// Records is the in-memory cache of full message records, keyed by chat and
// message id. The sqlite mirror keeps flattened rows for rendering; Records
// keeps the structured content the binder and upload queue mutate.
type Records struct {
	mu     sync.RWMutex
	byChat map[int64]map[int64]*backend.Message
	byFile map[int64]*backend.FileRef
}

// NewRecords creates an empty record cache.
func NewRecords() *Records {
	return &Records{
		byChat: make(map[int64]map[int64]*backend.Message),
		byFile: make(map[int64]*backend.FileRef),
	}
}

// Put stores a message record, indexing its file references.
func (r *Records) Put(msg *backend.Message) {
	if msg == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	chat := r.byChat[msg.ChatID]
	if chat == nil {
		chat = make(map[int64]*backend.Message)
		r.byChat[msg.ChatID] = chat
	}
	chat[msg.ID] = msg
	for _, ref := range fileRefs(msg) {
		r.byFile[ref.ID] = ref
	}
}

// Get returns the record for a message, or nil when absent.
func (r *Records) Get(chatID, messageID int64) *backend.Message {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byChat[chatID][messageID]
}

// Rekey moves a record from a pending local id to the server-assigned id
// and clears its pending state. Absent records are ignored.
func (r *Records) Rekey(chatID, oldID, newID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	chat := r.byChat[chatID]
	msg, ok := chat[oldID]
	if !ok {
		return
	}
	delete(chat, oldID)
	msg.ID = newID
	msg.SendingState = backend.SendingNone
	chat[newID] = msg
}

// ResolveFile applies the backend's authoritative local availability for a
// file: the resolved path wins and any optimistic binding is superseded.
func (r *Records) ResolveFile(fileID int64, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref, ok := r.byFile[fileID]
	if !ok {
		return
	}
	ref.Ready = true
	ref.Path = path
	ref.Handle = nil
}

// Update runs fn on the record under the write lock, for callers that must
// read and conditionally mutate one record atomically. fn is not called
// when the record is absent.
func (r *Records) Update(chatID, messageID int64, fn func(*backend.Message)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg := r.byChat[chatID][messageID]
	if msg == nil {
		return
	}
	fn(msg)
}

func fileRefs(msg *backend.Message) []*backend.FileRef {
	var refs []*backend.FileRef
	switch c := msg.Content.(type) {
	case *backend.PhotoContent:
		for _, size := range c.Sizes {
			if size.File != nil {
				refs = append(refs, size.File)
			}
		}
	case *backend.DocumentContent:
		if c.File != nil {
			refs = append(refs, c.File)
		}
	}
	return refs
}
