package health

import (
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// MessageType is the WebSocket message type used for status changes.
const MessageType = "health:status"

// Broadcaster defines the interface for sending WebSocket messages.
type Broadcaster interface {
	Broadcast(msgType string, payload interface{}) error
}

// Service manages the health state of all tracked items.
// All state is in-memory and resets on application restart.
type Service struct {
	items       map[string]*Item
	mu          sync.RWMutex
	broadcaster Broadcaster
	clock       clockwork.Clock
	logger      zerolog.Logger
}

// NewService creates a new health service.
func NewService(logger zerolog.Logger) *Service {
	return &Service{
		items:  make(map[string]*Item),
		clock:  clockwork.NewRealClock(),
		logger: logger.With().Str("component", "health").Logger(),
	}
}

// SetBroadcaster sets the WebSocket broadcaster for real-time updates.
func (s *Service) SetBroadcaster(b Broadcaster) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcaster = b
}

// SetClock replaces the clock used for timestamps.
func (s *Service) SetClock(c clockwork.Clock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = c
}

// RegisterItem adds an item with OK status. Registering an existing item is a no-op.
func (s *Service) RegisterItem(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[id]; exists {
		return
	}
	s.items[id] = &Item{ID: id, Name: name, Status: StatusOK}

	s.logger.Debug().Str("id", id).Str("name", name).Msg("Registered health item")
}

// SetError sets an item to Error status with a message.
func (s *Service) SetError(id, message string) {
	s.setStatus(id, StatusError, message)
}

// SetWarning sets an item to Warning status with a message.
func (s *Service) SetWarning(id, message string) {
	s.setStatus(id, StatusWarning, message)
}

// ClearStatus resets an item to OK status.
func (s *Service) ClearStatus(id string) {
	s.setStatus(id, StatusOK, "")
}

func (s *Service) setStatus(id string, status Status, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, exists := s.items[id]
	if !exists {
		s.logger.Warn().Str("id", id).Msg("Attempted to update status for unregistered item")
		return
	}

	now := s.clock.Now()
	item.CheckedAt = &now

	// Only broadcast when the status changed
	if item.Status == status && item.Message == message {
		return
	}

	oldStatus := item.Status
	item.Status = status
	item.Message = message
	if status != StatusOK {
		item.Timestamp = &now
	} else {
		item.Timestamp = nil
	}

	s.logger.Info().
		Str("id", id).
		Str("oldStatus", string(oldStatus)).
		Str("newStatus", string(status)).
		Str("message", message).
		Msg("Health status changed")

	s.broadcastUpdate(item)
}

// GetItem returns a copy of a single item, or nil when it is not tracked.
func (s *Service) GetItem(id string) *Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if item, exists := s.items[id]; exists {
		c := *item
		return &c
	}
	return nil
}

// IsHealthy returns true if the specified item is OK.
func (s *Service) IsHealthy(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if item, exists := s.items[id]; exists {
		return item.Status == StatusOK
	}
	return false
}

// GetSummary returns status counts and all items ordered by id.
func (s *Service) GetSummary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := Summary{Items: make([]Item, 0, len(s.items))}
	for _, item := range s.items {
		switch item.Status {
		case StatusOK:
			summary.OK++
		case StatusWarning:
			summary.Warning++
		case StatusError:
			summary.Error++
		}
		summary.Items = append(summary.Items, *item)
	}
	summary.HasIssues = summary.Warning > 0 || summary.Error > 0
	sort.Slice(summary.Items, func(i, j int) bool { return summary.Items[i].ID < summary.Items[j].ID })
	return summary
}

// broadcastUpdate sends a health update via WebSocket. Caller holds s.mu.
func (s *Service) broadcastUpdate(item *Item) {
	if s.broadcaster == nil {
		return
	}

	payload := UpdatePayload{
		ID:        item.ID,
		Name:      item.Name,
		Status:    item.Status,
		Message:   item.Message,
		Timestamp: item.Timestamp,
	}

	if err := s.broadcaster.Broadcast(MessageType, payload); err != nil {
		s.logger.Error().Err(err).Msg("Failed to broadcast health update")
	}
}

// Since reports how long ago the item was last probed; ok is false if it never was.
func (s *Service) Since(id string) (time.Duration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.items[id]
	if !exists || item.CheckedAt == nil {
		return 0, false
	}
	return s.clock.Since(*item.CheckedAt), true
}
