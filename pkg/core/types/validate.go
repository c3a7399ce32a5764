package types

import (
	"github.com/serenova-ai/serenova/pkg/core"
)

var (
	errEmptyUtterance = core.NewValidationErrorWithParam("message content is required", "message")
	errBadKind        = core.NewValidationErrorWithParam("kind must be chat or call", "kind")
)
