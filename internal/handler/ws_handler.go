package handler

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/RubenRamosM/SW1erParcial-sub001/internal/domain"
	"github.com/RubenRamosM/SW1erParcial-sub001/internal/realtime"
	"github.com/RubenRamosM/SW1erParcial-sub001/internal/repository"
	"github.com/RubenRamosM/SW1erParcial-sub001/internal/service"
	"github.com/RubenRamosM/SW1erParcial-sub001/internal/websocket"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
)

// Join denial reasons.
const (
	ReasonUnauthorized     = "unauthorized"
	ReasonInvalidShareLink = "invalid_share_link"
	ReasonProjectNotFound  = "project_not_found"
	ReasonUnavailable      = "unavailable"
)

// Edit denial reasons.
const (
	ReasonNoPermission  = "no_permission"
	ReasonLoginRequired = "login_required"
)

// WebSocketHandler upgrades HTTP requests to websocket connections. The
// connection starts unauthenticated; credentials travel in the join message,
// so the upgrade itself is open.
type WebSocketHandler struct {
	manager  *websocket.Manager
	upgrader ws.Upgrader
}

func NewWebSocketHandler(manager *websocket.Manager) *WebSocketHandler {
	return &WebSocketHandler{
		manager: manager,
		upgrader: ws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WebSocket] Failed to upgrade connection: %v", err)
		return
	}

	client := websocket.NewClient(uuid.New().String(), conn, h.manager)
	h.manager.Register <- client

	go client.WritePump()
	go client.ReadPump()
}

// Gateway is the per-connection state machine: Connected (unauthenticated)
// → Joined(role, room) → Closed. It resolves identity and role on join,
// gates every mutation on the resolved role, and drives the sync and
// presence protocol. All its methods run on the websocket manager's Run
// goroutine, so per-process handling of a room's messages is serialized.
type Gateway struct {
	manager      *websocket.Manager
	collab       *realtime.Service
	auth         *service.AuthService
	access       *service.AccessService
	shares       *service.ShareService
	editRequests *service.EditRequestService
	users        repository.UserRepository
}

func NewGateway(
	manager *websocket.Manager,
	collab *realtime.Service,
	auth *service.AuthService,
	access *service.AccessService,
	shares *service.ShareService,
	editRequests *service.EditRequestService,
	users repository.UserRepository,
) *Gateway {
	return &Gateway{
		manager:      manager,
		collab:       collab,
		auth:         auth,
		access:       access,
		shares:       shares,
		editRequests: editRequests,
		users:        users,
	}
}

func (g *Gateway) HandleWebSocketMessage(client *websocket.Client, msg *websocket.Message) error {
	switch msg.Type {
	case websocket.TypeJoin:
		return g.handleJoin(client, msg)

	case websocket.TypeHeartbeat:
		return g.handleHeartbeat(client, msg)

	case websocket.TypeSyncPull:
		return g.handleSyncPull(client, msg)

	case websocket.TypeSyncPush:
		return g.handleSyncPush(client, msg)

	case websocket.TypePatch:
		return g.handlePatch(client, msg)

	case websocket.TypeAwareness:
		return g.handleAwareness(client, msg)

	case websocket.TypeRequestEdit:
		return g.handleRequestEdit(client, msg)

	case websocket.TypeApproveEdit:
		return g.handleApproveEdit(client, msg)

	default:
		log.Printf("unknown message type: %s", msg.Type)
	}

	return nil
}

// HandleDisconnect runs on any transport-level close. Peers see a
// presence:left if the connection had joined a room.
func (g *Gateway) HandleDisconnect(client *websocket.Client) {
	if client.Joined {
		g.collab.LeaveRoom(client.ProjectID, client.ID)
		client.Joined = false
	}
}

func (g *Gateway) handleJoin(client *websocket.Client, msg *websocket.Message) error {
	var payload websocket.JoinPayload
	if err := msg.UnmarshalPayload(&payload); err != nil {
		log.Printf("malformed join payload from %s: %v", client.ID, err)
		return nil
	}
	if payload.ProjectID == "" {
		g.denyJoin(client, payload.ProjectID, ReasonUnauthorized)
		return nil
	}

	identityID, displayName, role, reason := g.resolveJoin(&payload)
	if reason != "" {
		g.denyJoin(client, payload.ProjectID, reason)
		return nil
	}
	if displayName == "" {
		displayName = "Guest-" + client.ID[:8]
	}

	// Re-joining from the same connection moves it to the new room.
	if client.Joined {
		g.collab.LeaveRoom(client.ProjectID, client.ID)
		g.manager.LeaveProject(client, client.ProjectID)
	}
	if client.IdentityID != "" && client.IdentityID != identityID {
		g.manager.LeaveIdentity(client)
	}

	client.IdentityID = identityID
	client.DisplayName = displayName
	client.ProjectID = payload.ProjectID
	client.Role = role
	client.Joined = true

	g.manager.JoinProject(client, payload.ProjectID)

	entry, board, roster, err := g.collab.JoinRoom(payload.ProjectID, client.ID, identityID, displayName, role)
	if err != nil {
		log.Printf("failed to join room %s: %v", payload.ProjectID, err)
		g.manager.LeaveProject(client, payload.ProjectID)
		client.Joined = false
		g.denyJoin(client, payload.ProjectID, ReasonUnavailable)
		return nil
	}

	g.send(client, websocket.TypeJoined, &websocket.JoinedPayload{
		ProjectID: payload.ProjectID,
		Snapshot:  board,
		Role:      role,
		Presence:  entry,
		Roster:    roster,
	})
	g.send(client, websocket.TypeRoster, &websocket.RosterPayload{
		ProjectID: payload.ProjectID,
		Roster:    roster,
	})

	return nil
}

// resolveJoin applies the credential resolution order: a valid auth token
// wins and is resolved through the access control resolver; otherwise a
// share token is validated; no usable credential denies the join.
func (g *Gateway) resolveJoin(payload *websocket.JoinPayload) (identityID, displayName string, role domain.Role, denyReason string) {
	if payload.AuthToken != "" {
		claims, err := g.auth.ValidateToken(payload.AuthToken)
		if err == nil {
			resolved, rerr := g.access.ResolveRole(payload.ProjectID, claims.UserID)
			if rerr != nil {
				if errors.Is(rerr, service.ErrProjectNotFound) {
					return "", "", "", ReasonProjectNotFound
				}
				log.Printf("failed to resolve role for %s: %v", claims.UserID, rerr)
				return "", "", "", ReasonUnavailable
			}
			return claims.UserID, g.displayName(claims.UserID), resolved, ""
		}
		log.Printf("invalid auth token on join: %v", err)
	}

	if payload.ShareToken != "" {
		role, err := g.shares.Validate(payload.ProjectID, payload.ShareToken)
		if err != nil {
			return "", "", "", ReasonInvalidShareLink
		}
		return "", "", role, ""
	}

	return "", "", "", ReasonUnauthorized
}

func (g *Gateway) displayName(userID string) string {
	user, err := g.users.FindByID(userID)
	if err != nil || user.Username == "" {
		return "User-" + shortID(userID)
	}
	return user.Username
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (g *Gateway) handleHeartbeat(client *websocket.Client, msg *websocket.Message) error {
	var payload websocket.HeartbeatPayload
	if err := msg.UnmarshalPayload(&payload); err != nil {
		log.Printf("malformed heartbeat payload from %s: %v", client.ID, err)
		return nil
	}

	// Heartbeats for rooms this connection is not joined to are silently
	// ignored; they occur during reconnect races.
	if !client.Joined || client.ProjectID != payload.ProjectID {
		return nil
	}

	if g.collab.Heartbeat(payload.ProjectID, client.ID) {
		g.send(client, websocket.TypePong, &websocket.PongPayload{Ts: time.Now()})
	}

	return nil
}

func (g *Gateway) handleSyncPull(client *websocket.Client, msg *websocket.Message) error {
	var payload websocket.SyncPullPayload
	if err := msg.UnmarshalPayload(&payload); err != nil {
		log.Printf("malformed sync pull from %s: %v", client.ID, err)
		return nil
	}
	if !client.Joined || client.ProjectID != payload.ProjectID {
		return nil
	}

	encoded, err := g.collab.EncodeFullState(payload.ProjectID)
	if err != nil {
		log.Printf("failed to encode state for %s: %v", payload.ProjectID, err)
		return nil
	}

	g.send(client, websocket.TypeSync, &websocket.SyncPayload{
		ProjectID:    payload.ProjectID,
		UpdateBase64: encoded,
	})

	return nil
}

func (g *Gateway) handleSyncPush(client *websocket.Client, msg *websocket.Message) error {
	var payload websocket.SyncPushPayload
	if err := msg.UnmarshalPayload(&payload); err != nil {
		log.Printf("malformed sync push from %s: %v", client.ID, err)
		return nil
	}

	if !g.allowEdit(client, payload.ProjectID) {
		return nil
	}

	if err := g.collab.ApplyLocalUpdate(payload.ProjectID, payload.UpdateBase64, client.ID); err != nil {
		log.Printf("failed to apply update from %s: %v", client.ID, err)
	}

	return nil
}

func (g *Gateway) handlePatch(client *websocket.Client, msg *websocket.Message) error {
	var payload websocket.PatchPayload
	if err := msg.UnmarshalPayload(&payload); err != nil {
		log.Printf("malformed patch from %s: %v", client.ID, err)
		return nil
	}

	if !g.allowEdit(client, payload.ProjectID) {
		return nil
	}

	g.collab.RelayPatch(payload.ProjectID, payload.Patch, client.ID)
	return nil
}

func (g *Gateway) handleAwareness(client *websocket.Client, msg *websocket.Message) error {
	var payload websocket.AwarenessPayload
	if err := msg.UnmarshalPayload(&payload); err != nil {
		log.Printf("malformed awareness update from %s: %v", client.ID, err)
		return nil
	}

	// Ephemeral relay: no permission check, nothing persisted.
	if !client.Joined || client.ProjectID != payload.ProjectID {
		return nil
	}

	g.collab.RelayAwareness(payload.ProjectID, payload.States, client.ID)
	return nil
}

func (g *Gateway) handleRequestEdit(client *websocket.Client, msg *websocket.Message) error {
	var payload websocket.RequestEditPayload
	if err := msg.UnmarshalPayload(&payload); err != nil {
		log.Printf("malformed edit request from %s: %v", client.ID, err)
		return nil
	}

	if !client.Joined || client.ProjectID != payload.ProjectID {
		return nil
	}
	if client.IdentityID == "" {
		g.denyEdit(client, payload.ProjectID, ReasonLoginRequired)
		return nil
	}

	req, granted, err := g.editRequests.Request(payload.ProjectID, client.IdentityID, payload.Message)
	if err != nil {
		log.Printf("failed to upsert edit request: %v", err)
		return nil
	}

	if granted {
		// Requester already holds edit rights; grant in place.
		role, rerr := g.access.ResolveRole(payload.ProjectID, client.IdentityID)
		if rerr != nil {
			log.Printf("failed to resolve role after grant: %v", rerr)
			return nil
		}
		g.promote(payload.ProjectID, client.IdentityID, role, nil)
		return nil
	}

	owner, err := g.access.Owner(payload.ProjectID)
	if err != nil {
		log.Printf("failed to resolve owner of %s: %v", payload.ProjectID, err)
		return nil
	}

	notice, err := websocket.NewMessage(websocket.TypeEditRequest, &websocket.EditRequestPayload{
		ProjectID:   payload.ProjectID,
		RequesterID: client.IdentityID,
		RequestID:   req.ID,
		Message:     req.Message,
	})
	if err != nil {
		return err
	}
	return g.manager.SendToIdentity(owner, notice)
}

func (g *Gateway) handleApproveEdit(client *websocket.Client, msg *websocket.Message) error {
	var payload websocket.ApproveEditPayload
	if err := msg.UnmarshalPayload(&payload); err != nil {
		log.Printf("malformed approval from %s: %v", client.ID, err)
		return nil
	}

	if !client.Joined || client.ProjectID != payload.ProjectID {
		return nil
	}
	if client.IdentityID == "" {
		g.denyEdit(client, payload.ProjectID, ReasonLoginRequired)
		return nil
	}

	requestIDs, granted, err := g.editRequests.Approve(payload.ProjectID, client.IdentityID, payload.UserID, payload.Role)
	if err != nil {
		if errors.Is(err, service.ErrNoPermission) {
			g.denyEdit(client, payload.ProjectID, ReasonNoPermission)
			return nil
		}
		log.Printf("failed to approve edit request: %v", err)
		return nil
	}

	g.promote(payload.ProjectID, payload.UserID, granted, requestIDs)
	return nil
}

// promote applies a role change to every connection of the target identity
// currently in the room and broadcasts memberUpdated, so an already
// connected viewer is promoted without reconnecting.
func (g *Gateway) promote(projectID, userID string, role domain.Role, requestIDs []string) {
	for _, target := range g.manager.ClientsForIdentity(userID) {
		if target.Joined && target.ProjectID == projectID {
			target.Role = role
			g.collab.PromotePresence(projectID, target.ID, role)
		}
	}

	update, err := websocket.NewMessage(websocket.TypeMemberUpdated, &websocket.MemberUpdatedPayload{
		ProjectID:  projectID,
		UserID:     userID,
		Role:       role,
		RequestIDs: requestIDs,
	})
	if err != nil {
		log.Printf("failed to encode memberUpdated: %v", err)
		return
	}
	g.manager.BroadcastToProject(projectID, update, "")
}

// allowEdit enforces the mutation permission gate. Denied mutations are
// dropped, never queued or retried.
func (g *Gateway) allowEdit(client *websocket.Client, projectID string) bool {
	if !client.Joined || client.ProjectID != projectID {
		g.denyEdit(client, projectID, ReasonLoginRequired)
		return false
	}
	if !client.Role.CanEdit() {
		reason := ReasonNoPermission
		if client.IdentityID == "" {
			reason = ReasonLoginRequired
		}
		g.denyEdit(client, projectID, reason)
		return false
	}
	return true
}

func (g *Gateway) denyJoin(client *websocket.Client, projectID, reason string) {
	g.send(client, websocket.TypeJoinDenied, &websocket.JoinDeniedPayload{
		ProjectID: projectID,
		Reason:    reason,
	})
}

func (g *Gateway) denyEdit(client *websocket.Client, projectID, reason string) {
	g.send(client, websocket.TypeEditDenied, &websocket.EditDeniedPayload{
		ProjectID: projectID,
		Reason:    reason,
	})
}

func (g *Gateway) send(client *websocket.Client, msgType websocket.MessageType, payload interface{}) {
	msg, err := websocket.NewMessage(msgType, payload)
	if err != nil {
		log.Printf("failed to encode %s message: %v", msgType, err)
		return
	}
	g.manager.SendToClient(client.ID, msg)
}
