package websocket

import (
	"encoding/json"
	"time"

	"github.com/RubenRamosM/SW1erParcial-sub001/internal/domain"
)

type MessageType string

const (
	TypeJoin           MessageType = "join"
	TypeJoined         MessageType = "joined"
	TypeJoinDenied     MessageType = "joinDenied"
	TypeRoster         MessageType = "presence:roster"
	TypePresenceJoined MessageType = "presence:joined"
	TypePresenceLeft   MessageType = "presence:left"
	TypeHeartbeat      MessageType = "presence:heartbeat"
	TypePong           MessageType = "presence:pong"
	TypePatch          MessageType = "patch"
	TypeRequestEdit    MessageType = "requestEdit"
	TypeEditRequest    MessageType = "editRequest"
	TypeApproveEdit    MessageType = "approveEdit"
	TypeEditDenied     MessageType = "editDenied"
	TypeMemberUpdated  MessageType = "memberUpdated"
	TypeSyncPull       MessageType = "y:sync:pull"
	TypeSync           MessageType = "y:sync"
	TypeSyncPush       MessageType = "y:sync:push"
	TypeUpdate         MessageType = "y:update"
	TypeAwareness      MessageType = "awareness:update"
)

type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type JoinPayload struct {
	ProjectID  string `json:"projectId"`
	ShareToken string `json:"shareToken,omitempty"`
	AuthToken  string `json:"authToken,omitempty"`
}

type JoinedPayload struct {
	ProjectID string                 `json:"projectId"`
	Snapshot  *domain.BoardResponse  `json:"snapshot"`
	Role      domain.Role            `json:"role"`
	Presence  *domain.PresenceEntry  `json:"presence"`
	Roster    []domain.PresenceEntry `json:"roster"`
}

type JoinDeniedPayload struct {
	ProjectID string `json:"projectId"`
	Reason    string `json:"reason"`
}

type RosterPayload struct {
	ProjectID string                 `json:"projectId"`
	Roster    []domain.PresenceEntry `json:"roster"`
}

type HeartbeatPayload struct {
	ProjectID string `json:"projectId"`
}

type PongPayload struct {
	Ts time.Time `json:"ts"`
}

type PatchPayload struct {
	ProjectID string          `json:"projectId"`
	Patch     json.RawMessage `json:"patch"`
}

type RequestEditPayload struct {
	ProjectID string `json:"projectId"`
	Message   string `json:"message,omitempty"`
}

type EditRequestPayload struct {
	ProjectID   string `json:"projectId"`
	RequesterID string `json:"requesterId"`
	RequestID   string `json:"requestId"`
	Message     string `json:"message,omitempty"`
}

type ApproveEditPayload struct {
	ProjectID string `json:"projectId"`
	UserID    string `json:"userId"`
	Role      string `json:"role,omitempty"`
}

type EditDeniedPayload struct {
	ProjectID string `json:"projectId"`
	Reason    string `json:"reason"`
}

type MemberUpdatedPayload struct {
	ProjectID  string      `json:"projectId"`
	UserID     string      `json:"userId"`
	Role       domain.Role `json:"role"`
	RequestIDs []string    `json:"requestIds,omitempty"`
}

type SyncPullPayload struct {
	ProjectID string `json:"projectId"`
}

type SyncPayload struct {
	ProjectID    string `json:"projectId"`
	UpdateBase64 string `json:"updateBase64"`
}

type SyncPushPayload struct {
	ProjectID    string `json:"projectId"`
	UpdateBase64 string `json:"updateBase64"`
}

type AwarenessPayload struct {
	ProjectID string          `json:"projectId"`
	States    json.RawMessage `json:"states"`
}

func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	var payloadBytes json.RawMessage
	if payload != nil {
		bytes, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		payloadBytes = bytes
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Payload:   payloadBytes,
	}, nil
}

func (m *Message) UnmarshalPayload(v interface{}) error {
	if m.Payload == nil {
		return nil
	}
	return json.Unmarshal(m.Payload, v)
}
