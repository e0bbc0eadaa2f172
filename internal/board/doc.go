// Package board implements the reaction board on top of the
// reconciliation engine.
//
// A source message that collects at least MinStars reactions of the
// configured emoji is mirrored into the board channel. The mirror shows a
// tier emote, the count and a link back to the source channel, an embed of
// the source (and of the message it replies to) and jump buttons. The
// mirror is edited as the count changes and deleted when it drops below
// the threshold or the source disappears.
//
// Components:
//
//   - Config: channel, emoji, threshold and tiers
//   - Handler: turns reaction and deletion notifications into events
//   - Renderer: computes the mirror for a source state
//   - WebhookTransport: posts new mirrors through a channel webhook so they
//     appear under the board persona
//
// Keys are (board channel id, source message id); the board engine runs in
// update-in-place mode with the identity resolver enabled.
package board
