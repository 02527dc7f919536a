// Package connection owns the push transport to the game server.
//
// A Client wraps one gorilla/websocket connection with a read loop and a
// keepalive. A Session sits on top and manages the lifecycle:
//   - exactly one live socket; a new Connect closes the previous one
//   - reconnect after base + attempt*step + jitter, paused while hidden
//   - disconnect grace so transient blips do not flip Connected
//   - Connected and EngineAlive tracked as separate booleans
//
// Session state is owned by a loop.Loop and every callback runs there.
package connection
