package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"
)

type ClientMessage struct {
	Client  *Client
	Message []byte
}

// Manager owns the set of live connections and the room/identity indexes
// used for fan-out to local clients. All inbound messages and disconnects
// are funneled through the Run loop, so handling is serialized per process.
type Manager struct {
	clients       map[string]*Client
	projectIndex  map[string]map[string]bool
	identityIndex map[string]map[string]bool
	clientsMutex  sync.RWMutex
	Register      chan *Client
	Unregister    chan *Client
	HandleMessage chan *ClientMessage

	writeWait      time.Duration
	pongWait       time.Duration
	pingPeriod     time.Duration
	messageHandler MessageHandler
}

// MessageHandler is the session gateway callback. It is injected after
// construction so the gateway and the manager can reference each other
// without a circular ownership.
type MessageHandler interface {
	HandleWebSocketMessage(client *Client, msg *Message) error
	HandleDisconnect(client *Client)
}

func NewManager(writeWait, pongWait, pingPeriod time.Duration) *Manager {
	return &Manager{
		clients:       make(map[string]*Client),
		projectIndex:  make(map[string]map[string]bool),
		identityIndex: make(map[string]map[string]bool),
		Register:      make(chan *Client),
		Unregister:    make(chan *Client),
		HandleMessage: make(chan *ClientMessage),
		writeWait:     writeWait,
		pongWait:      pongWait,
		pingPeriod:    pingPeriod,
	}
}

func (m *Manager) SetMessageHandler(handler MessageHandler) {
	m.messageHandler = handler
}

func (m *Manager) Run() {
	for {
		select {
		case client := <-m.Register:
			m.registerClient(client)

		case client := <-m.Unregister:
			if m.messageHandler != nil {
				m.messageHandler.HandleDisconnect(client)
			}
			m.unregisterClient(client)

		case clientMsg := <-m.HandleMessage:
			m.processMessage(clientMsg)
		}
	}
}

func (m *Manager) registerClient(client *Client) {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	m.clients[client.ID] = client

	log.Printf("client registered: %s", client.ID)
}

func (m *Manager) unregisterClient(client *Client) {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	if _, ok := m.clients[client.ID]; ok {
		delete(m.clients, client.ID)
		m.dropFromIndexes(client)

		close(client.Send)
		log.Printf("client unregistered: %s", client.ID)
	}
}

func (m *Manager) dropFromIndexes(client *Client) {
	if client.ProjectID != "" {
		if conns, ok := m.projectIndex[client.ProjectID]; ok {
			delete(conns, client.ID)
			if len(conns) == 0 {
				delete(m.projectIndex, client.ProjectID)
			}
		}
	}

	if client.IdentityID != "" {
		if conns, ok := m.identityIndex[client.IdentityID]; ok {
			delete(conns, client.ID)
			if len(conns) == 0 {
				delete(m.identityIndex, client.IdentityID)
			}
		}
	}
}

// JoinProject indexes a client under its room and identity after the gateway
// has admitted it. Must be called from the Run goroutine.
func (m *Manager) JoinProject(client *Client, projectID string) {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	if m.projectIndex[projectID] == nil {
		m.projectIndex[projectID] = make(map[string]bool)
	}
	m.projectIndex[projectID][client.ID] = true

	if client.IdentityID != "" {
		if m.identityIndex[client.IdentityID] == nil {
			m.identityIndex[client.IdentityID] = make(map[string]bool)
		}
		m.identityIndex[client.IdentityID][client.ID] = true
	}
}

// LeaveProject removes a client from its room index, keeping the identity
// index intact. Must be called from the Run goroutine.
func (m *Manager) LeaveProject(client *Client, projectID string) {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	if conns, ok := m.projectIndex[projectID]; ok {
		delete(conns, client.ID)
		if len(conns) == 0 {
			delete(m.projectIndex, projectID)
		}
	}
}

// LeaveIdentity removes a client from its identity index. Called when a
// connection rejoins under a different account, so identity-targeted sends
// stop reaching the old entry. Must be called from the Run goroutine.
func (m *Manager) LeaveIdentity(client *Client) {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	if client.IdentityID == "" {
		return
	}
	if conns, ok := m.identityIndex[client.IdentityID]; ok {
		delete(conns, client.ID)
		if len(conns) == 0 {
			delete(m.identityIndex, client.IdentityID)
		}
	}
}

// ClientsForIdentity returns the live connections of one identity.
func (m *Manager) ClientsForIdentity(identityID string) []*Client {
	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()

	var clients []*Client
	for clientID := range m.identityIndex[identityID] {
		if client, ok := m.clients[clientID]; ok {
			clients = append(clients, client)
		}
	}
	return clients
}

func (m *Manager) processMessage(clientMsg *ClientMessage) {
	var msg Message
	if err := json.Unmarshal(clientMsg.Message, &msg); err != nil {
		log.Printf("error unmarshaling message: %v", err)
		return
	}

	if m.messageHandler != nil {
		if err := m.messageHandler.HandleWebSocketMessage(clientMsg.Client, &msg); err != nil {
			log.Printf("error handling message: %v", err)
		}
	}
}

// BroadcastToProject delivers a message to every connection joined to the
// room, excluding excludeConnID when non-empty.
func (m *Manager) BroadcastToProject(projectID string, message *Message, excludeConnID string) error {
	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()

	messageBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	clientIDs, exists := m.projectIndex[projectID]
	if !exists {
		return nil
	}

	for clientID := range clientIDs {
		if clientID == excludeConnID {
			continue
		}
		client := m.clients[clientID]
		if client == nil {
			continue
		}
		select {
		case client.Send <- messageBytes:
		default:
			log.Printf("client %s send buffer full, dropping message", clientID)
		}
	}

	return nil
}

// SendToIdentity delivers a message to every connection of one identity,
// across all rooms. Used for the owner's personal edit-request channel.
func (m *Manager) SendToIdentity(identityID string, message *Message) error {
	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()

	messageBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	clientIDs, exists := m.identityIndex[identityID]
	if !exists {
		return nil
	}

	for clientID := range clientIDs {
		client := m.clients[clientID]
		if client == nil {
			continue
		}
		select {
		case client.Send <- messageBytes:
		default:
			log.Printf("client %s send buffer full, dropping message", clientID)
		}
	}

	return nil
}

func (m *Manager) SendToClient(clientID string, message *Message) error {
	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()

	client, exists := m.clients[clientID]
	if !exists {
		return nil
	}

	messageBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	select {
	case client.Send <- messageBytes:
	default:
		log.Printf("client %s send buffer full", clientID)
	}

	return nil
}

// ProjectConnections returns the number of local connections in a room.
func (m *Manager) ProjectConnections(projectID string) int {
	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()

	if clients, exists := m.projectIndex[projectID]; exists {
		return len(clients)
	}
	return 0
}
