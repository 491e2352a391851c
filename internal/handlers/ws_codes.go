// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the presence channel.
const (
	BadSubprotocolError = 3000 // Client connected without the "trivia" subprotocol.
	InvalidMessageError = 3002 // Client sent a frame that is not a known JSON message.
	GameEndedError      = 3004 // The live session ended while the client was connected.
)
