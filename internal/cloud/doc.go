// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud is the HTTP transport to the chat completion service.
//
// The client issues one POST per user message with stream set to true and
// hands the raw response body back to the caller, which owns framing and
// decoding (see package sse). A non-2xx status is a hard failure: the body
// is closed unread and a *StatusError is returned.
//
// # Key Types
//
//   - Client: endpoint, optional bearer key, model defaults, rate limit
//   - CompletionRequest: the request body sent to the service
//   - StatusError: non-2xx response, unwraps to ErrAuthFailed and friends
//
// # Usage
//
//	client := cloud.NewClient("http://127.0.0.1:8080").WithModel("gpt-4o-mini")
//	body, err := client.Open(ctx, cloud.CompletionRequest{
//	    ID:             uuid.NewString(),
//	    ConversationID: convID,
//	    Messages:       []cloud.ChatMessage{{Role: "user", Content: "2+2?"}},
//	})
//	if err != nil {
//	    return err
//	}
//	defer body.Close()
package cloud
