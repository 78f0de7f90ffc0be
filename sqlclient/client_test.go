// SPDX-License-Identifier: GPL-3.0-or-later

package sqlclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpenRejectsInvalidConfigBeforeDialing(t *testing.T) {
	cfg := NewConfig()
	_, err := Open(context.Background(), cfg)
	assert.Error(t, err)
}
