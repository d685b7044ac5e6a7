// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command datachat-cli is a terminal client for the DataChat server.
//
// The server is stateless, so this client owns the conversation: it keeps
// the turn history in memory and resends the tail with every question,
// including the structured fields (sql, table, suggestedQuestion, type) the
// server needs to resolve follow-ups and confirmations.
//
// Usage:
//
//	datachat-cli chat
//	datachat-cli chat --server http://localhost:8080
//	datachat-cli ask "top 5 distributors by sales last month"
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/DataChat/services/datachat/conversation"
	"github.com/AleutianAI/DataChat/services/datachat/pipeline"
)

// serverURL holds the --server flag value.
var serverURL string

// historyTail is how many turns ride along with each request; matches the
// server-side truncation limit so nothing is silently dropped.
const historyTail = 20

func main() {
	rootCmd := &cobra.Command{
		Use:   "datachat-cli",
		Short: "Terminal client for the DataChat analytics server",
	}
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "DataChat server base URL")

	askCmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a single question and exit",
		Args:  cobra.MinimumNArgs(1),
		Run:   runAskCommand,
	}

	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation",
		Run:   runChatCommand,
	}

	rootCmd.AddCommand(askCmd, chatCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runAskCommand(_ *cobra.Command, args []string) {
	question := strings.Join(args, " ")
	resp, err := sendChatRequest(question, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	printResponse(resp)
}

func runChatCommand(_ *cobra.Command, _ []string) {
	// Prompts and the banner are for humans; piped stdin gets answers only.
	interactive := isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
	if interactive {
		fmt.Println("DataChat - ask about your sales data. Type 'exit' to quit.")
		fmt.Println("---")
	}

	var history conversation.History
	scanner := bufio.NewScanner(os.Stdin)

	for {
		if interactive {
			fmt.Print("\nYou: ")
		}
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if question == "exit" || question == "quit" {
			fmt.Println("Bye.")
			break
		}

		resp, err := sendChatRequest(question, history.Tail(historyTail))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		printResponse(resp)

		// Grow the history the way the server expects to read it back:
		// the structured fields on the assistant turn are what make the
		// next "yes" or "which table is this from?" resolvable.
		history = append(history,
			conversation.Turn{Role: conversation.RoleUser, Content: question},
			conversation.Turn{
				Role:              conversation.RoleAssistant,
				Content:           resp.Answer,
				SQL:               resp.SQL,
				Table:             resp.Table,
				SuggestedQuestion: resp.SuggestedQuestion,
				Type:              resp.Type,
			})
	}
}

// chatRequest mirrors the server's request body.
type chatRequest struct {
	Question string               `json:"question"`
	History  conversation.History `json:"history"`
}

func sendChatRequest(question string, history conversation.History) (*pipeline.Response, error) {
	body, err := json.Marshal(chatRequest{Question: question, History: history})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	client := &http.Client{Timeout: 120 * time.Second}
	httpResp, err := client.Post(
		strings.TrimSuffix(serverURL, "/")+"/v1/datachat/chat",
		"application/json",
		bytes.NewReader(body),
	)
	if err != nil {
		return nil, fmt.Errorf("reaching server: %w", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var resp pipeline.Response
	if err := json.Unmarshal(raw, &resp); err != nil || resp.Type == "" {
		return nil, fmt.Errorf("server returned %d: %s", httpResp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return &resp, nil
}

func printResponse(resp *pipeline.Response) {
	fmt.Printf("\nDataChat [%s]: %s\n", resp.Type, resp.Answer)
	if resp.RowCount > 0 {
		fmt.Printf("  (%d rows", resp.RowCount)
		if resp.ChartType != "" {
			fmt.Printf(", %s chart available", resp.ChartType)
		}
		fmt.Println(")")
	}
	if resp.SuggestedQuestion != "" {
		fmt.Println("  Reply \"yes\" to run the suggested question.")
	}
}
