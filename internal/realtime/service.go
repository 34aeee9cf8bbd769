package realtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/RubenRamosM/SW1erParcial-sub001/internal/domain"
	"github.com/RubenRamosM/SW1erParcial-sub001/internal/websocket"
)

// Broadcaster pushes protocol messages to clients connected to this
// instance. The websocket manager implements it; it is injected after both
// sides exist (late-bound collaborator, no circular ownership).
type Broadcaster interface {
	BroadcastToProject(projectID string, msg *websocket.Message, excludeConnID string) error
	SendToIdentity(identityID string, msg *websocket.Message) error
}

// Service orchestrates the room registry, presence tracker, debounced saver
// and fan-out fabric. Every locally originated mutation is published to peer
// instances exactly once; replayed remote mutations are never re-published.
type Service struct {
	registry      *Registry
	tracker       *Tracker
	saver         *Saver
	fabric        *Fabric
	instanceID    string
	sweepInterval time.Duration
	broadcaster   Broadcaster
}

func NewService(registry *Registry, tracker *Tracker, saver *Saver, fabric *Fabric, sweepInterval time.Duration) *Service {
	return &Service{
		registry:      registry,
		tracker:       tracker,
		saver:         saver,
		fabric:        fabric,
		instanceID:    fabric.InstanceID(),
		sweepInterval: sweepInterval,
	}
}

func (s *Service) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// JoinRoom admits a connection into a room: the room is ensured and
// hydrated, a presence entry created, peers on this and other instances are
// notified. It returns the entry, the live board and the current roster.
func (s *Service) JoinRoom(projectID, connID, identityID, name string, role domain.Role) (*domain.PresenceEntry, *domain.BoardResponse, []domain.PresenceEntry, error) {
	room, err := s.registry.HydrateIfEmpty(projectID)
	if err != nil {
		return nil, nil, nil, err
	}

	entry := s.tracker.Upsert(room, connID, identityID, name, role)

	s.publishPresence(PresenceJoin, projectID, *entry)
	s.broadcast(projectID, websocket.TypePresenceJoined, entry, connID)

	return entry, room.LiveBoard(), s.tracker.Roster(room), nil
}

// ApplyLocalUpdate merges a client-pushed update into the room document,
// schedules a durable write, replicates to peer instances and forwards the
// update to local peers.
func (s *Service) ApplyLocalUpdate(projectID, updateBase64 string, excludeConnID string) error {
	update, err := base64.StdEncoding.DecodeString(updateBase64)
	if err != nil {
		return fmt.Errorf("invalid update encoding: %w", err)
	}

	room, err := s.registry.EnsureRoom(projectID)
	if err != nil {
		return err
	}

	if err := room.ApplyUpdate(update); err != nil {
		return err
	}

	s.saver.Schedule(room)

	s.publishDocument(&DocumentMessage{
		ProjectID:    projectID,
		Kind:         DocUpdate,
		UpdateBase64: updateBase64,
	})

	s.broadcast(projectID, websocket.TypeUpdate, &websocket.SyncPayload{
		ProjectID:    projectID,
		UpdateBase64: updateBase64,
	}, excludeConnID)

	return nil
}

// EncodeFullState returns the room's complete document state, base64
// encoded, for a sync pull.
func (s *Service) EncodeFullState(projectID string) (string, error) {
	room, err := s.registry.HydrateIfEmpty(projectID)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(room.EncodeFull()), nil
}

// RelayPatch forwards a legacy non-CRDT patch to local peers and to peer
// instances. Patches do not touch the document or the durable store.
func (s *Service) RelayPatch(projectID string, patch json.RawMessage, excludeConnID string) {
	s.publishDocument(&DocumentMessage{
		ProjectID: projectID,
		Kind:      DocPatch,
		Payload:   patch,
	})

	s.broadcast(projectID, websocket.TypePatch, &websocket.PatchPayload{
		ProjectID: projectID,
		Patch:     patch,
	}, excludeConnID)
}

// RelayAwareness forwards ephemeral cursor/selection state. No permission
// check, nothing persisted.
func (s *Service) RelayAwareness(projectID string, states json.RawMessage, excludeConnID string) {
	s.publishDocument(&DocumentMessage{
		ProjectID: projectID,
		Kind:      DocAwareness,
		Payload:   states,
	})

	s.broadcast(projectID, websocket.TypeAwareness, &websocket.AwarenessPayload{
		ProjectID: projectID,
		States:    states,
	}, excludeConnID)
}

// Heartbeat refreshes a participant's liveness. It reports false for a
// connection unknown to the room, which callers silently ignore.
func (s *Service) Heartbeat(projectID, connID string) bool {
	room, err := s.registry.EnsureRoom(projectID)
	if err != nil {
		log.Printf("heartbeat for unavailable room %s: %v", projectID, err)
		return false
	}

	entry := s.tracker.Touch(room, connID)
	if entry == nil {
		return false
	}

	s.publishPresence(PresenceHeartbeat, projectID, *entry)
	return true
}

// LeaveRoom removes a participant and notifies local peers and peer
// instances. Unknown connections are a no-op.
func (s *Service) LeaveRoom(projectID, connID string) *domain.PresenceEntry {
	room, err := s.registry.EnsureRoom(projectID)
	if err != nil {
		log.Printf("leave for unavailable room %s: %v", projectID, err)
		return nil
	}

	entry := s.tracker.Remove(room, connID)
	if entry == nil {
		return nil
	}

	s.publishPresence(PresenceLeave, projectID, *entry)
	s.broadcast(projectID, websocket.TypePresenceLeft, entry, connID)
	return entry
}

// PromotePresence updates a connected participant's role in place, so an
// approved viewer becomes an editor without reconnecting. The refreshed
// entry is replicated as a join upsert and pushed to local peers.
func (s *Service) PromotePresence(projectID, connID string, role domain.Role) {
	room, err := s.registry.EnsureRoom(projectID)
	if err != nil {
		log.Printf("promotion for unavailable room %s: %v", projectID, err)
		return
	}

	entry := room.setPresenceRole(connID, role)
	if entry == nil {
		return
	}

	s.publishPresence(PresenceJoin, projectID, *entry)
	s.broadcast(projectID, websocket.TypePresenceJoined, entry, "")
}

// Roster returns the room's current roster.
func (s *Service) Roster(projectID string) ([]domain.PresenceEntry, error) {
	room, err := s.registry.EnsureRoom(projectID)
	if err != nil {
		return nil, err
	}
	return s.tracker.Roster(room), nil
}

// HandleRemoteDocument replays a document event published by a peer
// instance. Self-originated echoes are discarded; replayed updates are
// applied and scheduled for persistence but never re-published.
func (s *Service) HandleRemoteDocument(msg *DocumentMessage) {
	if msg.SourceInstanceID == s.instanceID {
		return
	}

	switch msg.Kind {
	case DocUpdate:
		update, err := base64.StdEncoding.DecodeString(msg.UpdateBase64)
		if err != nil {
			log.Printf("malformed remote update for project %s: %v", msg.ProjectID, err)
			return
		}

		room, err := s.registry.EnsureRoom(msg.ProjectID)
		if err != nil {
			log.Printf("failed to ensure room %s for remote update: %v", msg.ProjectID, err)
			return
		}

		if err := room.ApplyUpdate(update); err != nil {
			log.Printf("failed to apply remote update for project %s: %v", msg.ProjectID, err)
			return
		}
		s.saver.Schedule(room)

		s.broadcast(msg.ProjectID, websocket.TypeUpdate, &websocket.SyncPayload{
			ProjectID:    msg.ProjectID,
			UpdateBase64: msg.UpdateBase64,
		}, "")

	case DocPatch:
		s.broadcast(msg.ProjectID, websocket.TypePatch, &websocket.PatchPayload{
			ProjectID: msg.ProjectID,
			Patch:     msg.Payload,
		}, "")

	case DocAwareness:
		s.broadcast(msg.ProjectID, websocket.TypeAwareness, &websocket.AwarenessPayload{
			ProjectID: msg.ProjectID,
			States:    msg.Payload,
		}, "")
	}
}

// HandleRemotePresence converges the local roster with a presence event from
// a peer instance and forwards the delta to local clients.
func (s *Service) HandleRemotePresence(msg *PresenceMessage) {
	if msg.SourceInstanceID == s.instanceID {
		return
	}

	room, err := s.registry.EnsureRoom(msg.ProjectID)
	if err != nil {
		log.Printf("failed to ensure room %s for remote presence: %v", msg.ProjectID, err)
		return
	}

	entry := s.tracker.ApplyRemote(room, msg.Type, msg.Entry)
	if entry == nil {
		return
	}

	switch msg.Type {
	case PresenceJoin:
		s.broadcast(msg.ProjectID, websocket.TypePresenceJoined, entry, "")
	case PresenceLeave:
		s.broadcast(msg.ProjectID, websocket.TypePresenceLeft, entry, "")
	}
}

// RunSweeper garbage-collects stale presence entries every sweep interval,
// publishing a synthetic leave for each so every instance's roster forgets
// participants that disconnected uncleanly.
func (s *Service) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweepOnce(time.Now())
		case <-ctx.Done():
			return
		}
	}
}

func (s *Service) sweepOnce(now time.Time) {
	for _, room := range s.registry.Rooms() {
		for _, entry := range s.tracker.SweepStale(room, now) {
			s.publishPresence(PresenceLeave, room.ProjectID, entry)
			s.broadcast(room.ProjectID, websocket.TypePresenceLeft, &entry, "")
		}
	}
}

func (s *Service) publishDocument(msg *DocumentMessage) {
	if err := s.fabric.PublishDocument(context.Background(), msg); err != nil {
		log.Printf("failed to replicate document event for project %s: %v", msg.ProjectID, err)
	}
}

func (s *Service) publishPresence(eventType, projectID string, entry domain.PresenceEntry) {
	err := s.fabric.PublishPresence(context.Background(), &PresenceMessage{
		Type:      eventType,
		ProjectID: projectID,
		Entry:     entry,
	})
	if err != nil {
		log.Printf("failed to replicate presence event for project %s: %v", projectID, err)
	}
}

func (s *Service) broadcast(projectID string, msgType websocket.MessageType, payload interface{}, excludeConnID string) {
	if s.broadcaster == nil {
		return
	}

	msg, err := websocket.NewMessage(msgType, payload)
	if err != nil {
		log.Printf("failed to encode %s message: %v", msgType, err)
		return
	}

	if err := s.broadcaster.BroadcastToProject(projectID, msg, excludeConnID); err != nil {
		log.Printf("failed to broadcast %s to project %s: %v", msgType, projectID, err)
	}
}
