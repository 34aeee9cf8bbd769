package realtime

import (
	"errors"
	"sync"

	"github.com/RubenRamosM/SW1erParcial-sub001/internal/domain"
	"github.com/RubenRamosM/SW1erParcial-sub001/internal/websocket"
)

var errSimulated = errors.New("simulated write failure")

type mockBoardRepo struct {
	mu       sync.Mutex
	boards   map[string]*domain.BoardSnapshot
	writes   int
	failNext bool
}

func newMockBoardRepo() *mockBoardRepo {
	return &mockBoardRepo{
		boards: make(map[string]*domain.BoardSnapshot),
	}
}

func (m *mockBoardRepo) Read(projectID string) (*domain.BoardSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot, ok := m.boards[projectID]
	if !ok {
		return nil, nil
	}
	copied := *snapshot
	return &copied, nil
}

func (m *mockBoardRepo) Write(snapshot *domain.BoardSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.writes++
	if m.failNext {
		m.failNext = false
		return errSimulated
	}

	copied := *snapshot
	m.boards[snapshot.ProjectID] = &copied
	return nil
}

func (m *mockBoardRepo) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *mockBoardRepo) stored(projectID string) *domain.BoardSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.boards[projectID]
}

type recordedMessage struct {
	ProjectID string
	Message   *websocket.Message
	Exclude   string
}

type mockBroadcaster struct {
	mu       sync.Mutex
	messages []recordedMessage
}

func (m *mockBroadcaster) BroadcastToProject(projectID string, msg *websocket.Message, excludeConnID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, recordedMessage{ProjectID: projectID, Message: msg, Exclude: excludeConnID})
	return nil
}

func (m *mockBroadcaster) SendToIdentity(identityID string, msg *websocket.Message) error {
	return nil
}

func (m *mockBroadcaster) countType(msgType websocket.MessageType) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, rec := range m.messages {
		if rec.Message.Type == msgType {
			count++
		}
	}
	return count
}
