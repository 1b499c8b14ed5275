package utils

import "github.com/google/uuid"

// GenID returns a new opaque message id.
func GenID() string { return "msg_" + uuid.NewString() }

// GenChatID returns a new opaque chat id.
func GenChatID() string { return "chat_" + uuid.NewString() }

// GenStreamID returns a new opaque stream id.
func GenStreamID() string { return "strm_" + uuid.NewString() }
