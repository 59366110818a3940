package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	uniqueErr := &pq.Error{Code: "23505", Constraint: "short_links_code_key"}

	assert.True(t, isUniqueViolation(uniqueErr))
	assert.True(t, isUniqueViolation(fmt.Errorf("insert failed: %w", uniqueErr)), "wrapped errors must still match")
	assert.False(t, isUniqueViolation(&pq.Error{Code: "23503"}), "other constraint violations are not conflicts")
	assert.False(t, isUniqueViolation(errors.New("connection refused")))
}
