package discordrpc

// RPC commands.
const (
	CmdDispatch                 = "DISPATCH"
	CmdAuthorize                = "AUTHORIZE"
	CmdAuthenticate             = "AUTHENTICATE"
	CmdGetGuild                 = "GET_GUILD"
	CmdGetGuilds                = "GET_GUILDS"
	CmdGetChannel               = "GET_CHANNEL"
	CmdGetChannels              = "GET_CHANNELS"
	CmdGetRelationships         = "GET_RELATIONSHIPS"
	CmdSubscribe                = "SUBSCRIBE"
	CmdUnsubscribe              = "UNSUBSCRIBE"
	CmdSetUserVoiceSettings     = "SET_USER_VOICE_SETTINGS"
	CmdSelectVoiceChannel       = "SELECT_VOICE_CHANNEL"
	CmdSelectTextChannel        = "SELECT_TEXT_CHANNEL"
	CmdGetVoiceSettings         = "GET_VOICE_SETTINGS"
	CmdSetVoiceSettings         = "SET_VOICE_SETTINGS"
	CmdSetCertifiedDevices      = "SET_CERTIFIED_DEVICES"
	CmdCaptureShortcut          = "CAPTURE_SHORTCUT"
	CmdSetActivity              = "SET_ACTIVITY"
	CmdSendActivityJoinInvite   = "SEND_ACTIVITY_JOIN_INVITE"
	CmdSendActivityJoinRequest  = "SEND_ACTIVITY_JOIN_REQUEST"
	CmdCloseActivityJoinRequest = "CLOSE_ACTIVITY_JOIN_REQUEST"
	CmdCreateLobby              = "CREATE_LOBBY"
	CmdUpdateLobby              = "UPDATE_LOBBY"
	CmdDeleteLobby              = "DELETE_LOBBY"
	CmdUpdateLobbyMember        = "UPDATE_LOBBY_MEMBER"
	CmdConnectToLobby           = "CONNECT_TO_LOBBY"
	CmdDisconnectFromLobby      = "DISCONNECT_FROM_LOBBY"
	CmdSendToLobby              = "SEND_TO_LOBBY"
)

// RPC events.
const (
	EventReady                 = "READY"
	EventError                 = "ERROR"
	EventRPCError              = "RpcError"
	EventCurrentUserUpdate     = "CURRENT_USER_UPDATE"
	EventGuildStatus           = "GUILD_STATUS"
	EventGuildCreate           = "GUILD_CREATE"
	EventChannelCreate         = "CHANNEL_CREATE"
	EventRelationshipUpdate    = "RELATIONSHIP_UPDATE"
	EventVoiceChannelSelect    = "VOICE_CHANNEL_SELECT"
	EventVoiceStateCreate      = "VOICE_STATE_CREATE"
	EventVoiceStateDelete      = "VOICE_STATE_DELETE"
	EventVoiceStateUpdate      = "VOICE_STATE_UPDATE"
	EventVoiceSettingsUpdate   = "VOICE_SETTINGS_UPDATE"
	EventVoiceConnectionStatus = "VOICE_CONNECTION_STATUS"
	EventSpeakingStart         = "SPEAKING_START"
	EventSpeakingStop          = "SPEAKING_STOP"
	EventActivityJoin          = "ACTIVITY_JOIN"
	EventActivityJoinRequest   = "ACTIVITY_JOIN_REQUEST"
	EventActivitySpectate      = "ACTIVITY_SPECTATE"
	EventActivityInvite        = "ACTIVITY_INVITE"
	EventNotificationCreate    = "NOTIFICATION_CREATE"
	EventMessageCreate         = "MESSAGE_CREATE"
	EventMessageUpdate         = "MESSAGE_UPDATE"
	EventMessageDelete         = "MESSAGE_DELETE"
	EventLobbyDelete           = "LOBBY_DELETE"
	EventLobbyUpdate           = "LOBBY_UPDATE"
	EventLobbyMemberConnect    = "LOBBY_MEMBER_CONNECT"
	EventLobbyMemberDisconnect = "LOBBY_MEMBER_DISCONNECT"
	EventLobbyMemberUpdate     = "LOBBY_MEMBER_UPDATE"
	EventLobbyMessage          = "LOBBY_MESSAGE"
	EventCaptureShortcutChange = "CAPTURE_SHORTCUT_CHANGE"
)

// relationshipTypes indexes relationship type names by their wire value.
var relationshipTypes = []string{
	"NONE",
	"FRIEND",
	"BLOCKED",
	"PENDING_INCOMING",
	"PENDING_OUTGOING",
	"IMPLICIT",
}
