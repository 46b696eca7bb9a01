// Package chat implements the gated conversation between a supplier and the
// visitor who won their request.
//
// A conversation exists only once the request is accepted and accepts
// messages only while the request is accepted or completed. Messages are
// append-only and carry a per-conversation sequence number; clients poll
// with the last sequence they saw and merge without reordering.
package chat
