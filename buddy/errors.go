// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package buddy

import "errors"

// Sentinel errors returned by allocator operations and stashed on the
// owning Context for callers that prefer a last-error check over an
// explicit return value.
var (
	ErrNotInit      = errors.New("buddy: context not initialized")
	ErrAlreadyInit  = errors.New("buddy: context already initialized")
	ErrInvalid      = errors.New("buddy: invalid argument")
	ErrFault        = errors.New("buddy: invalid internal state")
	ErrInUse        = errors.New("buddy: context busy, foreign blocks outstanding")
	ErrMalloc       = errors.New("buddy: system allocation failed")
	ErrOutOfMemory  = errors.New("buddy: out of memory")
	ErrKeyNotFound  = errors.New("buddy: label not found")
	ErrDoubleFree   = errors.New("buddy: double free")
	ErrNotOwnedHere = errors.New("buddy: block not owned by current context")
)
