package llm

import "errors"

// ErrCompletionUnavailable reports that the language model could not produce text.
var ErrCompletionUnavailable = errors.New("completion unavailable")
