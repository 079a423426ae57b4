// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package arena provides the node store behind the linked queue.
//
// Nodes are addressed by generation-tagged handles ([Ref]) rather than Go
// pointers, so every node word fits in a single atomic uint64 and a freed
// node can be told apart from a live one. Nodes are never returned to the
// Go heap while the arena is reachable; Free makes them reusable.
package arena
