// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package api defines the contracts shared between the reactor core and its
// host scheduler: the readiness event mask, the cooperative task transfer
// primitive, the runnable queue, the byte buffer handle, and the common
// error values. The package is interface-only and carries no dependencies.
package api
