// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline orchestrates one conversation turn end to end: intent
// classification, SQL generation, safety validation, execution, result
// shaping, answer composition, and the suggest-and-confirm recovery protocol.
// Every turn resolves to a response envelope; no caller ever sees a raw
// provider or warehouse error.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/DataChat/services/datachat/charts"
	"github.com/AleutianAI/DataChat/services/datachat/conversation"
	"github.com/AleutianAI/DataChat/services/datachat/intent"
	"github.com/AleutianAI/DataChat/services/datachat/safety"
	"github.com/AleutianAI/DataChat/services/datachat/schema"
	"github.com/AleutianAI/DataChat/services/datachat/sqlgen"
	"github.com/AleutianAI/DataChat/services/datachat/store"
	"github.com/AleutianAI/DataChat/services/llm"
)

// Answer composition sampling.
const (
	composeTemperature = 0.7
	composeMaxTokens   = 2500

	// composePromptRowLimit caps how many rows are serialized into the
	// composition prompt.
	composePromptRowLimit = 50

	// conversationalTailTurns bounds the history excerpt in the small-talk
	// persona prompt.
	conversationalTailTurns = 6
	conversationalTruncate  = 200

	// chartAutoMin/Max is the row-count window that triggers chart
	// classification without an explicit request.
	chartAutoMin = 2
	chartAutoMax = 50

	// rawDataRowLimit caps the raw sample attached to explicit chart
	// requests.
	rawDataRowLimit = 100
)

// Orchestrator drives the turn state machine.
//
// Description:
//
//	Stateless across requests: everything a turn needs arrives with the
//	request (question plus resent history) and every derived value
//	(pending suggestion, entity set) is recomputed per turn. Construct one
//	and share it.
//
// Thread Safety: Orchestrator is safe for concurrent use.
type Orchestrator struct {
	provider llm.Client
	executor store.Executor
	schema   *schema.Loader
	logger   *slog.Logger

	// now is the clock; swapped in tests to pin date windows.
	now func() time.Time
}

// New creates an Orchestrator.
//
// Inputs:
//   - provider: Completion backend (usually the providers fallback chain).
//     Must not be nil.
//   - executor: Warehouse executor. May be nil; data questions then resolve
//     to database_error envelopes, which keeps the service answerable for
//     small talk while the warehouse is down.
//   - schemaLoader: Schema description source. Must not be nil.
//   - logger: Structured logger; nil means slog.Default().
func New(provider llm.Client, executor store.Executor, schemaLoader *schema.Loader, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		provider: provider,
		executor: executor,
		schema:   schemaLoader,
		logger:   logger,
		now:      time.Now,
	}
}

// HandleTurn resolves one user turn to a response envelope.
//
// Description:
//
//	Classifies the utterance, routes it through the matching path, and
//	always returns an envelope: handled failures are envelopes with
//	failure types, panics are recovered at this boundary and logged, and
//	only the Status field distinguishes 200-class outcomes from 504
//	(provider timeout) and 500 (recovered panic).
//
// Inputs:
//   - ctx: Request context; carries deadline and trace.
//   - question: The user's message, validated non-empty by the handler.
//   - hist: The resent conversation tail, oldest first.
//
// Outputs:
//   - *Response: Never nil.
//
// Thread Safety: This method is safe for concurrent use.
func (o *Orchestrator) HandleTurn(ctx context.Context, question string, hist conversation.History) (resp *Response) {
	start := time.Now()
	tracer := otel.Tracer("datachat/pipeline")
	ctx, span := tracer.Start(ctx, "pipeline.turn")
	defer span.End()

	it := intent.Classify(question, hist)
	span.SetAttributes(
		attribute.String("turn.intent", it.String()),
		attribute.Int("turn.history_len", len(hist)),
	)

	defer func() {
		if r := recover(); r != nil {
			panicsRecovered.Inc()
			o.logger.Error("panic recovered in turn pipeline",
				slog.Any("panic", r),
				slog.String("intent", it.String()))
			span.SetStatus(codes.Error, "panic")
			resp = respond(TypeError, panicText)
			resp.Status = http.StatusInternalServerError
		}
		turnsTotal.WithLabelValues(it.String(), resp.Type).Inc()
		turnDuration.WithLabelValues(it.String()).Observe(time.Since(start).Seconds())
		span.SetAttributes(attribute.String("turn.response_type", resp.Type))
	}()

	entities := conversation.ExtractEntities(hist)
	pending, _ := hist.Pending()

	switch it {
	case intent.IntentRejection:
		return respond(TypeRejection, rejectionText)

	case intent.IntentMetadata:
		return o.handleMetadata(ctx, question, hist)

	case intent.IntentConversational:
		return o.handleConversational(ctx, question, hist)

	case intent.IntentConfirmation:
		// The confirmed suggestion replaces the user's wording wholesale.
		o.logger.Info("suggestion confirmed",
			slog.String("suggested_question", pending.Question))
		return o.runDataQuery(ctx, span, pending.Question, hist, entities)

	default:
		return o.runDataQuery(ctx, span, question, hist, entities)
	}
}

// ============================================================================
// Metadata and small-talk paths
// ============================================================================

// handleMetadata answers "where did that come from" questions, canned when
// the previous query's table tag is on record, provider-backed otherwise.
func (o *Orchestrator) handleMetadata(ctx context.Context, question string, hist conversation.History) *Response {
	lastSQL, lastTable := hist.LastQueryContext()
	if lastTable == "" && lastSQL != "" {
		lastTable = sqlgen.ExtractTableTag(lastSQL)
	}

	switch lastTable {
	case sqlgen.TablePrimary:
		return respond(TypeMetadata, metadataPrimaryText)
	case sqlgen.TableSecondary:
		return respond(TypeMetadata, metadataSecondaryText)
	case sqlgen.TableProduct:
		return respond(TypeMetadata, metadataProductText)
	case sqlgen.TableDistributor:
		return respond(TypeMetadata, metadataDistributorText)
	}

	if lastSQL == "" {
		return respond(TypeMetadata, metadataUnknownText)
	}

	// A recorded query with no recognized table: let the model explain it
	// against the schema description.
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: "You explain, in two sentences and plain language, which table a SQL query reads and what that data represents.\n\nSchema:\n" + o.schema.Get()},
		{Role: llm.RoleUser, Content: fmt.Sprintf("Question: %s\nQuery: %s", question, lastSQL)},
	}
	answer, err := o.provider.Complete(ctx, messages, llm.Options{Temperature: 0.3, MaxTokens: 300})
	if err != nil || strings.TrimSpace(answer) == "" {
		return respond(TypeMetadata, metadataUnknownText)
	}
	return respond(TypeMetadata, strings.TrimSpace(answer))
}

// handleConversational answers small talk: canned for identity and
// capability questions, persona-prompted completion for the rest, canned
// fallback when the provider is down. Small talk never touches the
// warehouse.
func (o *Orchestrator) handleConversational(ctx context.Context, question string, hist conversation.History) *Response {
	lower := strings.ToLower(question)
	switch {
	case strings.Contains(lower, "who are you") || strings.Contains(lower, "what are you") || strings.Contains(lower, "about yourself"):
		return respond(TypeConversational, identityText)
	case strings.Contains(lower, "what can you do") || strings.HasPrefix(strings.TrimSpace(lower), "help"):
		return respond(TypeConversational, capabilitiesText)
	}

	var sys strings.Builder
	sys.WriteString("You are DataChat, a friendly sales analytics assistant. ")
	sys.WriteString("Reply to the user's message in one or two short sentences. ")
	sys.WriteString("If it hints at a data question, invite them to ask it concretely.")
	if excerpt := hist.Excerpt(conversationalTailTurns, conversationalTruncate); excerpt != "" {
		sys.WriteString("\n\nRecent conversation:\n")
		sys.WriteString(excerpt)
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: sys.String()},
		{Role: llm.RoleUser, Content: question},
	}
	answer, err := o.provider.Complete(ctx, messages, llm.Options{Temperature: 0.7, MaxTokens: 200})
	if err != nil || strings.TrimSpace(answer) == "" {
		if err != nil {
			o.logger.Warn("conversational completion failed",
				slog.String("error", llm.SafeLogString(err.Error())))
		}
		return respond(TypeConversational, conversationalFallbackText)
	}
	return respond(TypeConversational, strings.TrimSpace(answer))
}

// ============================================================================
// Data-query path
// ============================================================================

// runDataQuery is the generation -> safety -> execution -> shaping ->
// composition chain, with failure routing per kind.
func (o *Orchestrator) runDataQuery(ctx context.Context, span trace.Span, question string, hist conversation.History, entities conversation.EntitySet) *Response {
	// Generation.
	dc := sqlgen.NewDateContext(o.now())
	genEntities := entities
	if !intent.IsFollowUp(question, hist) {
		// A self-contained question must not inherit stale filters.
		genEntities = conversation.EntitySet{}
	}
	messages := sqlgen.BuildGenerationMessages(question, hist, genEntities, o.schema.Get(), dc)

	raw, err := o.provider.Complete(ctx, messages, llm.Options{
		Temperature: sqlgen.GenerationTemperature,
		MaxTokens:   sqlgen.GenerationMaxTokens,
	})
	if err != nil {
		if llm.IsTimeout(err) {
			o.logger.Warn("generation timed out", slog.String("provider", o.provider.Name()))
			resp := respond(TypeTimeout, fmt.Sprintf(generationTimeoutText, o.provider.Name()))
			resp.Status = http.StatusGatewayTimeout
			return resp
		}
		o.logger.Warn("SQL generation failed",
			slog.String("error", llm.SafeLogString(err.Error())))
		return o.recoverWithSuggestion(ctx, question, failureGeneration, hist, entities)
	}

	sqlText := sqlgen.CleanSQL(raw)
	if sqlText == "" {
		return o.recoverWithSuggestion(ctx, question, failureGeneration, hist, entities)
	}
	span.SetAttributes(attribute.Int("turn.sql_len", len(sqlText)))

	// Safety.
	if !safety.IsSafe(sqlText) {
		safetyRejections.Inc()
		o.logger.Warn("generated query rejected by safety validator",
			slog.String("table", sqlgen.ExtractTableTag(sqlText)))
		return o.recoverWithSuggestion(ctx, question, failureSafety, hist, entities)
	}

	// Execution.
	if o.executor == nil {
		return respond(TypeDatabaseError, databaseErrorText)
	}
	result, err := o.executor.Query(ctx, sqlText)
	if err != nil {
		if store.ClassifyError(err) == store.FailureSyntax {
			o.logger.Warn("warehouse rejected generated query",
				slog.String("error", llm.SafeLogString(err.Error())))
			resp := o.recoverWithSuggestion(ctx, question, failureSyntax, hist, entities)
			if resp.Type == TypeClarificationNeeded {
				// No usable rephrase; give concrete tips instead.
				return respond(TypeErrorWithSuggestions, errorWithSuggestionsText)
			}
			return resp
		}
		o.logger.Error("warehouse query failed",
			slog.String("error", llm.SafeLogString(err.Error())))
		return respond(TypeDatabaseError, databaseErrorText)
	}

	table := sqlgen.ExtractTableTag(sqlText)
	span.SetAttributes(
		attribute.Int("turn.row_count", result.RowCount),
		attribute.String("turn.table", table),
	)

	if result.RowCount == 0 {
		resp := respond(TypeEmptyResult, "The query ran fine but matched no data. Try widening the time period or checking the spelling of names.")
		resp.SQL = sqlText
		resp.Table = table
		return resp
	}

	// Shape classification. An explicit chart request also gets the raw
	// sample rows so the client can re-shape beyond the descriptor.
	var descriptor *charts.Descriptor
	var rawData []map[string]any
	wants := charts.WantsChart(question)
	if wants {
		rawData = result.Rows
		if len(rawData) > rawDataRowLimit {
			rawData = rawData[:rawDataRowLimit]
		}
	}
	if wants || (result.RowCount >= chartAutoMin && result.RowCount <= chartAutoMax) {
		descriptor = charts.Classify(result.Columns, result.Rows)
		if descriptor != nil {
			if preferred := charts.PreferredKind(question); preferred != "" {
				descriptor.Kind = preferred
			}
			chartsEmitted.WithLabelValues(descriptor.Kind).Inc()
		}
	}

	// Answer composition.
	answer, err := o.composeAnswer(ctx, question, result)
	if err != nil {
		if llm.IsTimeout(err) {
			resp := respond(TypeTimeout, fmt.Sprintf(composeTimeoutText, result.RowCount))
			resp.Status = http.StatusGatewayTimeout
			resp.RowCount = result.RowCount
			resp.SQL = sqlText
			resp.Table = table
			return resp
		}
		o.logger.Warn("answer composition failed, using fallback formatting",
			slog.String("error", llm.SafeLogString(err.Error())))
		resp := respond(TypeFallback, formatRowsFallback(result.Columns, result.Rows))
		resp.RowCount = result.RowCount
		resp.SQL = sqlText
		resp.Table = table
		resp.ChartData = descriptor
		resp.RawData = rawData
		if descriptor != nil {
			resp.ChartType = descriptor.Kind
		}
		return resp
	}

	resp := respond(TypeSuccess, answer)
	resp.RowCount = result.RowCount
	resp.SQL = sqlText
	resp.Table = table
	resp.ChartData = descriptor
	resp.RawData = rawData
	if descriptor != nil {
		resp.ChartType = descriptor.Kind
	}
	return resp
}

// composeAnswer turns rows into the prose answer.
func (o *Orchestrator) composeAnswer(ctx context.Context, question string, result *store.Result) (string, error) {
	rows := result.Rows
	truncated := false
	if len(rows) > composePromptRowLimit {
		rows = rows[:composePromptRowLimit]
		truncated = true
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("serializing rows for composition: %w", err)
	}

	var sys strings.Builder
	sys.WriteString("You are a business intelligence analyst answering a colleague. ")
	sys.WriteString("Summarize the query result for their question in clear, concise prose. ")
	sys.WriteString("Amounts are PKR; format large numbers readably (e.g. PKR 1.2M). ")
	sys.WriteString("Use a short markdown list or table when it helps. Never invent numbers.")
	if truncated {
		fmt.Fprintf(&sys, " Only the first %d of %d rows are shown; say totals reflect the shown rows.", composePromptRowLimit, result.RowCount)
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: sys.String()},
		{Role: llm.RoleUser, Content: fmt.Sprintf("Question: %s\n\nResult rows (%d):\n%s", question, result.RowCount, data)},
	}
	answer, err := o.provider.Complete(ctx, messages, llm.Options{
		Temperature: composeTemperature,
		MaxTokens:   composeMaxTokens,
	})
	if err != nil {
		return "", err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", errors.New("composition returned empty answer")
	}
	return answer, nil
}
