// SPDX-License-Identifier: Apache-2.0

package state

import "errors"

// ErrBusy is returned by Acquire when another engine instance holds the
// state lock and the lock was requested in non-blocking mode.
var ErrBusy = errors.New("another engine instance holds the state lock")
