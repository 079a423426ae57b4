// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package hazard implements a fixed-capacity hazard pointer registry.
//
// Each participating goroutine acquires one [Slot] and publishes the node
// handles it is about to dereference. A reclaimer calls [Registry.Scan]
// and must not free any handle found in the snapshot.
//
// Publication follows the validate-after-publish protocol: a handle read
// from a shared word is stored in the slot, then the shared word is read
// again. Only when both reads agree is the handle protected, because any
// reclaimer that unlinks it afterwards is guaranteed to see the slot.
//
// All operations are lock-free. Slot ownership is claimed with CAS.
package hazard
