// Package sse provides Server-Sent Events support for real-time speed-to-lead updates.
package sse

import (
	"encoding/json"
	"net/http"
	"sync"

	"orengen_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// EventType represents different types of SSE events
type EventType string

const (
	EventLeadAssigned       EventType = "lead_assigned"
	EventSLABreached        EventType = "sla_breached"
	EventLeadEscalated      EventType = "lead_escalated"
	EventNotificationQueued EventType = "notification_queued"
)

const clientBufferSize = 32

// Event represents an SSE event payload
type Event struct {
	Type    EventType   `json:"type"`
	LeadID  uuid.UUID   `json:"leadId,omitempty"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// client represents a connected SSE client
type client struct {
	userID   uuid.UUID
	tenantID uuid.UUID
	events   chan Event
}

// Service manages SSE connections and event broadcasting
type Service struct {
	mu        sync.RWMutex
	clients   map[uuid.UUID][]*client              // userID -> clients
	tenantMap map[uuid.UUID]map[uuid.UUID]struct{} // tenantID -> userIDs
	log       *logger.Logger
}

// New creates a new SSE service
func New(log *logger.Logger) *Service {
	return &Service{
		clients:   make(map[uuid.UUID][]*client),
		tenantMap: make(map[uuid.UUID]map[uuid.UUID]struct{}),
		log:       log,
	}
}

// addClient registers a new client connection
func (s *Service) addClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clients[c.userID] = append(s.clients[c.userID], c)

	if c.tenantID != uuid.Nil {
		members, ok := s.tenantMap[c.tenantID]
		if !ok {
			members = make(map[uuid.UUID]struct{})
			s.tenantMap[c.tenantID] = members
		}
		members[c.userID] = struct{}{}
	}
}

// removeClient unregisters a client connection
func (s *Service) removeClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clients := s.clients[c.userID]
	found := false
	for i, cl := range clients {
		if cl == c {
			s.clients[c.userID] = append(clients[:i], clients[i+1:]...)
			found = true
			break
		}
	}
	// Close already released the channel.
	if !found {
		return
	}
	if len(s.clients[c.userID]) == 0 {
		delete(s.clients, c.userID)
		if members, ok := s.tenantMap[c.tenantID]; ok {
			delete(members, c.userID)
			if len(members) == 0 {
				delete(s.tenantMap, c.tenantID)
			}
		}
	}

	close(c.events)
}

// Publish sends an event to a specific user. Slow clients drop events.
func (s *Service) Publish(userID uuid.UUID, event Event) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	delivered := 0
	for _, c := range s.clients[userID] {
		select {
		case c.events <- event:
			delivered++
		default:
			s.log.Warn("sse buffer full", "userId", userID, "event", event.Type)
		}
	}
	return delivered
}

// PublishToTenant broadcasts an event to every connected user of a tenant.
func (s *Service) PublishToTenant(tenantID uuid.UUID, event Event) int {
	s.mu.RLock()
	userIDs := make([]uuid.UUID, 0, len(s.tenantMap[tenantID]))
	for id := range s.tenantMap[tenantID] {
		userIDs = append(userIDs, id)
	}
	s.mu.RUnlock()

	delivered := 0
	for _, userID := range userIDs {
		delivered += s.Publish(userID, event)
	}
	return delivered
}

// Handler returns a Gin handler for SSE connections
func (s *Service) Handler(getUserID func(*gin.Context) (uuid.UUID, bool), getTenantID func(*gin.Context) (uuid.UUID, bool)) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := getUserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		tenantID, _ := getTenantID(c)

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.Header().Set("X-Accel-Buffering", "no")

		cl := &client{
			userID:   userID,
			tenantID: tenantID,
			events:   make(chan Event, clientBufferSize),
		}
		s.addClient(cl)
		defer s.removeClient(cl)

		c.SSEvent("connected", gin.H{"userId": userID, "tenantId": tenantID})
		c.Writer.Flush()

		s.log.Debug("sse client connected", "userId", userID, "tenantId", tenantID)

		clientGone := c.Request.Context().Done()
		for {
			select {
			case <-clientGone:
				s.log.Debug("sse client disconnected", "userId", userID)
				return
			case event, ok := <-cl.events:
				if !ok {
					return
				}
				data, _ := json.Marshal(event)
				c.SSEvent(string(event.Type), string(data))
				c.Writer.Flush()
			}
		}
	}
}

// Close shuts down the SSE service
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, clients := range s.clients {
		for _, c := range clients {
			close(c.events)
		}
	}
	s.clients = make(map[uuid.UUID][]*client)
	s.tenantMap = make(map[uuid.UUID]map[uuid.UUID]struct{})
}
