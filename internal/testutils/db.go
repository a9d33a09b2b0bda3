// SPDX-License-Identifier: Apache-2.0

package testutils

import (
	"fmt"

	"github.com/google/uuid"
)

// randomDBName returns a randomly generated database name, prefixed so that
// stray databases left behind by a crashed test run are easy to spot and
// clean up by hand.
func randomDBName() string {
	return fmt.Sprintf("reshape_test_%s", uuid.New().String())
}
