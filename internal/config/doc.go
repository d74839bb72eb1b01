// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads and validates crewplan configuration.
//
// # Configuration Precedence
//
// Settings are resolved from (highest first):
//   - Environment variables (OPENROUTER_API_KEY, CREWPLAN_*)
//   - A .env file in the working directory (never overriding the real environment)
//   - The file passed with --config (.toml, .yaml/.yml or .json)
//   - ~/.crewplan/config.toml, then config.yaml, then config.json
//   - Built-in defaults
//
// # Sections
//
//	[provider]  api_key, base_url, model, temperature, timeout_secs,
//	            max_retries, requests_per_minute
//	[cost]      chars_per_unit (4), rate_per_million (9.0)
//	[report]    inline_window (5), export_window (10), output_dir,
//	            format, theme
//
// # Usage
//
//	_ = config.LoadDotEnv()
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	if err := cfg.RequireCredential(); err != nil {
//	    return err
//	}
package config
