package realtime

import (
	"context"
	"encoding/json"
	"log"

	"github.com/RubenRamosM/SW1erParcial-sub001/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	documentChannel = "collab:documents"
	presenceChannel = "collab:presence"
)

// Document message kinds.
const (
	DocUpdate    = "update"
	DocPatch     = "patch"
	DocAwareness = "awareness"
)

// Presence event types.
const (
	PresenceJoin      = "join"
	PresenceHeartbeat = "heartbeat"
	PresenceLeave     = "leave"
)

// DocumentMessage replicates a locally applied document event to peer
// instances. SourceInstanceID exists solely so an instance can ignore its
// own echoed publications.
type DocumentMessage struct {
	SourceInstanceID string          `json:"sourceInstanceId"`
	ProjectID        string          `json:"projectId"`
	Kind             string          `json:"kind"`
	UpdateBase64     string          `json:"updateBase64,omitempty"`
	Payload          json.RawMessage `json:"payload,omitempty"`
}

// PresenceMessage replicates a roster mutation to peer instances.
type PresenceMessage struct {
	SourceInstanceID string               `json:"sourceInstanceId"`
	Type             string               `json:"type"`
	ProjectID        string               `json:"projectId"`
	Entry            domain.PresenceEntry `json:"entry"`
}

// RemoteHandler consumes events published by peer instances. It is injected
// after construction to break the fabric/service dependency cycle.
type RemoteHandler interface {
	HandleRemoteDocument(msg *DocumentMessage)
	HandleRemotePresence(msg *PresenceMessage)
}

// Fabric is the Redis pub/sub bus connecting all server instances. Delivery
// is at-least-once and order-insensitive; correctness under duplication and
// reordering comes from the CRDT merge, not from the transport.
type Fabric struct {
	client     *redis.Client
	instanceID string
	handler    RemoteHandler
}

func NewFabric(client *redis.Client, instanceID string) *Fabric {
	return &Fabric{
		client:     client,
		instanceID: instanceID,
	}
}

func (f *Fabric) SetHandler(handler RemoteHandler) {
	f.handler = handler
}

func (f *Fabric) InstanceID() string {
	return f.instanceID
}

// PublishDocument replicates a locally originated document event. Publish
// failures are returned for logging only; local room state stays correct and
// cross-instance convergence resumes when connectivity does.
func (f *Fabric) PublishDocument(ctx context.Context, msg *DocumentMessage) error {
	msg.SourceInstanceID = f.instanceID

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return f.client.Publish(ctx, documentChannel, payload).Err()
}

// PublishPresence replicates a locally originated roster mutation.
func (f *Fabric) PublishPresence(ctx context.Context, msg *PresenceMessage) error {
	msg.SourceInstanceID = f.instanceID

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return f.client.Publish(ctx, presenceChannel, payload).Err()
}

// Run subscribes to both logical channels and dispatches incoming messages
// to the handler until the context is cancelled.
func (f *Fabric) Run(ctx context.Context) {
	pubsub := f.client.Subscribe(ctx, documentChannel, presenceChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				log.Printf("fan-out subscription closed")
				return
			}
			f.dispatch(msg)

		case <-ctx.Done():
			return
		}
	}
}

func (f *Fabric) dispatch(msg *redis.Message) {
	if f.handler == nil {
		return
	}

	switch msg.Channel {
	case documentChannel:
		var doc DocumentMessage
		if err := json.Unmarshal([]byte(msg.Payload), &doc); err != nil {
			log.Printf("malformed document message: %v", err)
			return
		}
		f.handler.HandleRemoteDocument(&doc)

	case presenceChannel:
		var presence PresenceMessage
		if err := json.Unmarshal([]byte(msg.Payload), &presence); err != nil {
			log.Printf("malformed presence message: %v", err)
			return
		}
		f.handler.HandleRemotePresence(&presence)
	}
}
