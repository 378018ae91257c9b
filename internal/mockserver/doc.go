// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package mockserver is a small streaming completion service for local use
// and end-to-end tests.
//
// # Endpoints
//
//   - POST /v1/chat/completions - streamed answer, one word per frame
//   - GET  /healthz             - health check
//
// The answer to "2+2?" is "4". Any other question is echoed back as
// "You said: <text>".
//
// # Usage
//
//	srv := mockserver.New(mockserver.WithDelay(50 * time.Millisecond))
//	if err := srv.ListenAndServe("127.0.0.1:8080"); err != nil {
//		log.Fatal(err)
//	}
//
// For tests, mount srv.Handler() on an httptest.Server.
package mockserver
