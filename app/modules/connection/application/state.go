package connectionservice

// State is the supervisor's view of where the peer is in the relay.
type State string

const (
	StateDisconnected       State = "Disconnected"
	StateConnectingToMaster State = "ConnectingToMaster"
	StateConnectedToMaster  State = "ConnectedToMaster"
	StateJoiningLobby       State = "JoiningLobby"
	StateInLobby            State = "InLobby"
	StateJoiningRoom        State = "JoiningRoom"
	StateInRoom             State = "InRoom"
)

// Status lines shown to the player.
const (
	StatusConnecting      = "Connecting to game server..."
	StatusJoiningLobby    = "Connected to game server. Joining lobby..."
	StatusReconnectFailed = "Failed to reconnect. Please restart the game."
)
