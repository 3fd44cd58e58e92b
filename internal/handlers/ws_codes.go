package handlers

// Custom WebSocket close codes used by the session handler. These give
// clients a more specific reason for closure than the standard codes.
const (
	BadSubprotocolError   = 3000 // client connected with an unsupported subprotocol
	InvalidAuthTokenError = 3001 // auth token was invalid or expired
	SessionFullError      = 3002 // roster already at capacity
	SessionBusyError      = 3003 // a game is already running
)
