// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package provider connects the agent pipelines to a text generation backend.
//
// A Provider receives one fully rendered agent turn (role identity, objective,
// framing, instructions and the expected output description) and returns
// free-form text. The pipeline runner is the only caller.
//
// # Key Types
//
//   - Provider: the interface the pipeline runner depends on
//   - OpenRouterClient: OpenAI-compatible chat completions over HTTPS
//   - Echo: deterministic offline provider used by --offline and tests
//   - Func: adapter that turns a plain function into a Provider
//
// # Usage
//
//	client := provider.NewOpenRouterClient(apiKey).
//	    WithModel("sonnet").
//	    WithRequestsPerMinute(20)
//	resp, err := client.Generate(ctx, provider.Request{
//	    RoleName:     "Project Planner",
//	    Instructions: "Create a detailed project plan for ...",
//	})
//
// # Security
//
// API keys are never logged. Request logging records only the method, path,
// status and duration; the key is identified by a short SHA-256 fingerprint.
package provider
