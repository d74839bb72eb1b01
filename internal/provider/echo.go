// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"
	"fmt"
	"unicode/utf8"
)

// Echo is an offline provider that answers every request with
// "<role>:<instructions-length>". It makes pipeline runs reproducible
// without network access.
type Echo struct{}

// Generate returns the echo text for req.
func (Echo) Generate(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	return Response{
		Text:         EchoText(req),
		Model:        "echo",
		FinishReason: "stop",
	}, nil
}

// EchoText is the text Echo produces for req.
func EchoText(req Request) string {
	return fmt.Sprintf("%s:%d", req.RoleName, utf8.RuneCountInString(req.Instructions))
}
