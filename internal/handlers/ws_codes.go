// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the room and game handlers, more
// specific than the standard set.
const (
	BadSubprotocolError   = 3000 // Client connected with an unsupported subprotocol.
	InvalidAuthTokenError = 3001 // Auth token invalid or expired before the HTTP response.
	InvalidUserIDError    = 3002 // User ID derived from the token was malformed.
	InvalidRoomIDError    = 3003 // Target room in the WS URL does not exist.
)
