package common

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NewRunID generates a unique identifier for one batch run.
func NewRunID() string {
	return fmt.Sprintf("run_%s", strings.ReplaceAll(uuid.New().String(), "-", "")[:12])
}
