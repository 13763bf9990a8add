// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package pubsub fans mission updates out to realtime clients.

Each post has two topics: mission:<post>:hud for document snapshots and
mission:<post>:timer for timer transitions. [Hub] delivers in process with a
bounded buffer per subscriber; a slow client misses messages rather than
blocking writers.

[Handler] serves the WebSocket stream. On connect it sends a catch-up
snapshot, then live messages. A client frame {"type":"heartbeat","sentAt":ms}
is answered with the server time so the client can estimate drift.
*/
package pubsub
