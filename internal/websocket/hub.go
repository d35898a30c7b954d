package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/deeres/gateway/internal/model"
	"github.com/deeres/gateway/internal/poller"
)

// Client represents a WebSocket client
type Client struct {
	JobID string
	Conn  *websocket.Conn
	Send  chan []byte
}

// Hub maintains active WebSocket connections and runs one polling tracker
// per watched job, pushing snapshots to all subscribers so browsers do not
// have to poll themselves.
type Hub struct {
	source      poller.StatusSource
	pollOptions poller.Options

	// Clients grouped by job ID
	clients map[string]map[*Client]bool

	// One tracker per job currently being watched
	trackers map[string]*poller.Tracker

	// Register requests
	register chan *Client

	// Unregister requests
	unregister chan *Client

	// Broadcast messages to job subscribers
	broadcast chan *BroadcastMessage

	mu sync.RWMutex
}

// BroadcastMessage represents a message to broadcast
type BroadcastMessage struct {
	JobID   string
	Message []byte
}

// NewHub creates a new Hub polling job status through source.
func NewHub(source poller.StatusSource, pollOptions poller.Options) *Hub {
	return &Hub{
		source:      source,
		pollOptions: pollOptions,
		clients:     make(map[string]map[*Client]bool),
		trackers:    make(map[string]*poller.Tracker),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *BroadcastMessage, 256),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.JobID] == nil {
				h.clients[client.JobID] = make(map[*Client]bool)
			}
			h.clients[client.JobID][client] = true
			needsTracker := h.trackers[client.JobID] == nil
			if needsTracker {
				tracker := poller.NewTracker(h.source, h.pollOptions)
				h.trackers[client.JobID] = tracker
			}
			tracker := h.trackers[client.JobID]
			h.mu.Unlock()
			if needsTracker {
				h.startWatch(client.JobID, tracker)
			}
			log.Printf("Client registered for job %s", client.JobID)

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeClientLocked(client)
			h.mu.Unlock()
			log.Printf("Client unregistered from job %s", client.JobID)

		case msg := <-h.broadcast:
			h.mu.Lock()
			if clients, ok := h.clients[msg.JobID]; ok {
				for client := range clients {
					select {
					case client.Send <- msg.Message:
					default:
						// Slow consumer: evict it like an unregister so
						// the last-subscriber tracker shutdown still runs
						h.removeClientLocked(client)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// removeClientLocked drops a client and, when it was the job's last
// subscriber, stops the job's tracker. Callers hold h.mu. Removing an
// already-evicted client is a no-op.
func (h *Hub) removeClientLocked(client *Client) {
	clients, ok := h.clients[client.JobID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.Send)
	if len(clients) == 0 {
		delete(h.clients, client.JobID)
		if tracker, ok := h.trackers[client.JobID]; ok {
			tracker.Close()
			delete(h.trackers, client.JobID)
		}
	}
}

// startWatch attaches a tracker to the job and pumps its snapshots out to
// subscribers until the stream ends.
func (h *Hub) startWatch(jobID string, tracker *poller.Tracker) {
	if err := tracker.Watch(context.Background(), jobID); err != nil {
		log.Printf("Failed to watch job %s: %v", jobID, err)
		h.dropTracker(jobID, tracker)
		return
	}

	go func() {
		for snap := range tracker.Snapshots() {
			switch snap.State {
			case poller.StateCompleted:
				h.BroadcastComplete(jobID, snap.Report)
			case poller.StateFailed:
				h.BroadcastError(jobID, snap.Detail)
			default:
				h.BroadcastProgress(jobID, snap)
			}
		}
		h.dropTracker(jobID, tracker)
	}()
}

func (h *Hub) dropTracker(jobID string, tracker *poller.Tracker) {
	h.mu.Lock()
	if h.trackers[jobID] == tracker {
		delete(h.trackers, jobID)
	}
	h.mu.Unlock()
}

// Register adds a new client
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// BroadcastProgress sends a progress update to all job subscribers
func (h *Hub) BroadcastProgress(jobID string, snap poller.Snapshot) {
	msg := model.WSProgressMessage{
		Type:       model.WSMessageTypeProgress,
		JobID:      jobID,
		Status:     snap.Status,
		Progress:   snap.Progress,
		Stage:      snap.Stage,
		StageLabel: snap.StageLabel,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal progress message: %v", err)
		return
	}

	h.broadcast <- &BroadcastMessage{JobID: jobID, Message: data}
}

// BroadcastComplete sends the finished report to all job subscribers
func (h *Hub) BroadcastComplete(jobID string, report *model.ReportResult) {
	msg := model.WSCompleteMessage{
		Type:   model.WSMessageTypeComplete,
		JobID:  jobID,
		Report: report,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal complete message: %v", err)
		return
	}

	h.broadcast <- &BroadcastMessage{JobID: jobID, Message: data}
}

// BroadcastError sends a failure message to all job subscribers
func (h *Hub) BroadcastError(jobID string, detail string) {
	msg := model.WSErrorMessage{
		Type:   model.WSMessageTypeError,
		JobID:  jobID,
		Detail: detail,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal error message: %v", err)
		return
	}

	h.broadcast <- &BroadcastMessage{JobID: jobID, Message: data}
}

// HandleConnection handles a WebSocket connection
func (h *Hub) HandleConnection(c *websocket.Conn, jobID string) {
	client := &Client{
		JobID: jobID,
		Conn:  c,
		Send:  make(chan []byte, 256),
	}

	h.Register(client)
	defer h.Unregister(client)

	// Start writer goroutine
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case message, ok := <-client.Send:
				if !ok {
					c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}

			case <-ticker.C:
				// Send ping for keep-alive
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// Reader loop
	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		// Handle client messages (ping/pong)
		var msg model.WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		if msg.Type == model.WSMessageTypePing {
			pong := model.WSMessage{Type: model.WSMessageTypePong}
			data, _ := json.Marshal(pong)
			client.Send <- data
		}
	}
}
