package peerhandlers

import (
	roomservice "github.com/Black-And-White-Club/arena-sync/app/modules/room/application"
	"github.com/Black-And-White-Club/arena-sync/internal/relay"
)

func (h *PeerHandlers) buildRoutes() map[string]eventHandler {
	return map[string]eventHandler{
		// CONNECTION: directory and room membership
		string(relay.EventConnectedToMaster): h.HandleConnectedToMaster,
		string(relay.EventDisconnected):      h.HandleDisconnected,
		string(relay.EventJoinedLobby):       h.HandleJoinedLobby,
		string(relay.EventRoomListUpdate):    h.HandleRoomListUpdate,
		string(relay.EventJoinedRoom):        h.HandleJoinedRoom,
		string(relay.EventJoinRoomFailed):    h.HandleJoinRoomFailed,
		string(relay.EventLeftRoom):          h.HandleLeftRoom,
		string(relay.EventPlayerEntered):     h.HandlePlayerEntered,
		string(relay.EventPlayerLeft):        h.HandlePlayerLeft,
		string(relay.EventMasterSwitched):    h.HandleMasterSwitched,
		string(relay.EventPropertiesUpdated): h.HandlePropertiesUpdated,

		// ACTORS
		string(relay.EventActorInstantiated): h.HandleActorChanged,
		string(relay.EventOwnershipChanged):  h.HandleActorChanged,
		string(relay.EventActorDestroyed):    h.HandleActorDestroyed,

		// STATS
		relay.RPCHandlerKey(roomservice.MethodUpdatePlayerStats):  rpc(h.HandleUpdatePlayerStats),
		relay.RPCHandlerKey(roomservice.MethodRequestStatsUpdate): rpc(h.HandleRequestStatsUpdate),
		relay.RPCHandlerKey(roomservice.MethodAddKill):            rpc(h.HandleAddKill),
		relay.RPCHandlerKey(roomservice.MethodAddBotKill):         rpc(h.HandleAddBotKill),
		relay.RPCHandlerKey(roomservice.MethodResetKillStreak):    rpc(h.HandleResetKillStreak),
		relay.RPCHandlerKey(roomservice.MethodAddMessage):         rpc(h.HandleAddMessage),

		// SESSION
		relay.RPCHandlerKey(roomservice.MethodSyncTimer):     rpc(h.HandleSyncTimer),
		relay.RPCHandlerKey(roomservice.MethodSyncGameState): rpc(h.HandleSyncGameState),
		relay.RPCHandlerKey(roomservice.MethodEndGame):       h.HandleEndGame,

		// BOTS
		relay.RPCHandlerKey(roomservice.MethodInitializeBot):     rpc(h.HandleInitializeBot),
		relay.RPCHandlerKey(roomservice.MethodRequestBotRespawn): rpc(h.HandleRequestBotRespawn),
		relay.RPCHandlerKey(roomservice.MethodBotDamage):         rpc(h.HandleBotDamage),
		relay.RPCHandlerKey(roomservice.MethodProcessBotDeath):   rpc(h.HandleProcessBotDeath),
	}
}
