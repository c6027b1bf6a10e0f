// Package wsbridge carries the siteos protocol over websockets, so a Controller and
// its guests can run in different processes.
//
// Host implements config.Host. Launching a surface or window asks the configured
// Launcher to start a guest and hands it a one-shot token; the guest dials back with
// that token and the connection becomes the Window the Controller launched. The
// handshake's Origin header is the origin every message on that connection carries.
//
// Guest implements config.Guest on the dialing side.
package wsbridge
