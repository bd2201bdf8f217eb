package game

import (
	"sync"

	"github.com/ndquoc/pairmatch/internal/models"
)

// RoomStore manages the active rooms in memory. It guards only the
// registry itself (add/get/delete/list); the contents of each Room are
// serialized by the session manager.
type RoomStore struct {
	mu    sync.Mutex
	rooms map[string]*Room
}

// NewRoomStore initializes an empty RoomStore.
func NewRoomStore() *RoomStore {
	return &RoomStore{
		rooms: make(map[string]*Room),
	}
}

// Add registers a room.
func (s *RoomStore) Add(room *Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[room.ID] = room
}

// Get retrieves a room by id.
func (s *RoomStore) Get(id string) (*Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	return r, ok
}

// Delete removes a room from the registry.
func (s *RoomStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, id)
}

// FindByPlayer returns the room the player is seated in, or nil.
func (s *RoomStore) FindByPlayer(key models.Key) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rooms {
		if r.HasPlayer(key) {
			return r
		}
	}
	return nil
}

// List returns a snapshot of all active rooms.
func (s *RoomStore) List() []*Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, r)
	}
	return out
}
