// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"
	"testing"
)

func TestEcho(t *testing.T) {
	req := Request{RoleName: "Project Planner", Instructions: "twelve chars"}
	resp, err := Echo{}.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if resp.Text != "Project Planner:12" {
		t.Errorf("Text = %q, want %q", resp.Text, "Project Planner:12")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (Echo{}).Generate(ctx, req); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled Generate() error = %v, want context.Canceled", err)
	}
}

func TestEchoCountsCharacters(t *testing.T) {
	req := Request{RoleName: "Project Planner", Instructions: "สร้างแอป"}
	if got := EchoText(req); got != "Project Planner:8" {
		t.Errorf("EchoText() = %q, want %q", got, "Project Planner:8")
	}
}

func TestFunc(t *testing.T) {
	var p Provider = Func(func(ctx context.Context, req Request) (Response, error) {
		return Response{Text: req.RoleName}, nil
	})
	resp, err := p.Generate(context.Background(), Request{RoleName: "r"})
	if err != nil || resp.Text != "r" {
		t.Errorf("Generate() = %q, %v", resp.Text, err)
	}
}

func TestRequestPrompts(t *testing.T) {
	req := Request{
		RoleName:       "Task Allocator",
		Objective:      "Allocate tasks.",
		Framing:        "You match people to work.",
		Instructions:   "Assign these",
		ExpectedOutput: "A table",
	}

	wantSys := "You are the Task Allocator. Your goal: Allocate tasks.\n\nYou match people to work."
	if got := req.SystemPrompt(); got != wantSys {
		t.Errorf("SystemPrompt() = %q, want %q", got, wantSys)
	}
	if got := req.UserPrompt(); got != "Assign these\n\nExpected output: A table" {
		t.Errorf("UserPrompt() = %q", got)
	}
	if got := (Request{Instructions: "bare"}).UserPrompt(); got != "bare" {
		t.Errorf("UserPrompt() without expected output = %q", got)
	}
	if got := (Request{}).SystemPrompt(); got != "" {
		t.Errorf("empty SystemPrompt() = %q", got)
	}
}

type flaky struct{ transient bool }

func (f flaky) Error() string   { return "flaky" }
func (f flaky) Transient() bool { return f.transient }

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited", fmt.Errorf("wrapped: %w", ErrRateLimited), true},
		{"auth", ErrAuthFailed, false},
		{"canceled", context.Canceled, false},
		{"deadline", fmt.Errorf("x: %w", context.DeadlineExceeded), false},
		{"5xx", &APIError{Status: 503}, true},
		{"4xx", &APIError{Status: 400}, false},
		{"custom transient", fmt.Errorf("x: %w", flaky{true}), true},
		{"custom permanent", flaky{false}, false},
		{"connection refused", fmt.Errorf("request failed: %w", &url.Error{Op: "Post", URL: "http://127.0.0.1:1", Err: &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}}), true},
		{"connection reset", &net.OpError{Op: "read", Net: "tcp", Err: syscall.ECONNRESET}, true},
		{"cancelled request", &url.Error{Op: "Post", URL: "http://x", Err: context.Canceled}, false},
		{"request deadline", &url.Error{Op: "Post", URL: "http://x", Err: context.DeadlineExceeded}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
