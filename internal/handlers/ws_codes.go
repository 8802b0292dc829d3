// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the lobby socket. These give the
// client a more specific reason than the standard codes.
const (
	BadSubprotocolError = 3000 // client connected with an unsupported subprotocol
	InvalidLobbyIDError = 3003 // target lobby id does not exist or is malformed
	NotEligibleError    = 3004 // player does not meet the lobby's admission gate
)
