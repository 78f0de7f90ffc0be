// SPDX-License-Identifier: GPL-3.0-or-later

package errclass

import (
	"context"
	"errors"
	"testing"

	upstream "github.com/bassosimone/errclass"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	// Should return empty string for nil error
	assert.Equal(t, "", Classify(nil))

	// Should classify known errors using the upstream package
	assert.Equal(t, upstream.ETIMEDOUT, Classify(context.DeadlineExceeded))

	// Should return the generic tag for unrecognized errors
	assert.Equal(t, upstream.EGENERIC, Classify(errors.New("boom")))
}
