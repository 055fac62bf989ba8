package mcpserver

// RelayProtocol documents the message contract between game window agents
// and the hub relay.
const RelayProtocol = `# playtrace Relay Protocol

Injected agents post JSON objects to the hub window with
window.opener.postMessage. The hub page bridge forwards each message to
POST /api/relay with the sender origin in the X-Relay-Origin header.

Every message carries a "type" discriminant. Messages with any other type,
missing fields, or mistyped fields are dropped without a reply.

## playtrace:log

` + "```" + `json
{"type": "playtrace:log", "level": "warn", "message": "low fuel", "source": "Asteroids"}
` + "```" + `

- level: one of log, info, warn, error, debug.
- message: the flattened console arguments.
- source: the title of the sending window.

The hub records the entry as "[<source>] <message>".

## playtrace:note

` + "```" + `json
{"type": "playtrace:note", "key": "asteroids", "title": "Asteroids", "text": "wave 7"}
` + "```" + `

- key: non-empty note key; the catalog id when the title is known.
- title: used only when the hub has no note for key yet.
- text: replaces the hub's text unconditionally.

## Delivery

Best effort. There is no acknowledgement or retry, and messages from one
window arrive in send order.
`
