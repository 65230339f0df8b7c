// ABOUTME: MCP resource implementations for health reconciliation.
// ABOUTME: Provides health://today, health://decisions/recent, and health://stale resources.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/harperreed/health/internal/freshness"
	"github.com/harperreed/health/internal/models"
	"github.com/harperreed/health/internal/storage"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) registerResources() {
	// health://today - the reconciled record for today
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         "health://today",
		Name:        "Today's Health Record",
		Description: "Every field of today's record with its source and measurement time",
		MIMEType:    "application/json",
	}, s.handleTodayResource)

	// health://decisions/recent - last 20 audit log entries
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         "health://decisions/recent",
		Name:        "Recent Decisions",
		Description: "The last 20 reconciliation decisions with their reasons",
		MIMEType:    "application/json",
	}, s.handleRecentDecisionsResource)

	// health://stale - fields that need a re-sync
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         "health://stale",
		Name:        "Stale Fields",
		Description: "Fields with no manual or primary-source update within the configured window",
		MIMEType:    "application/json",
	}, s.handleStaleResource)
}

// Resource handlers

func (s *Server) handleTodayResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	out, err := s.record(ctx, s.userID, models.Day(time.Now()))
	if err != nil {
		return nil, err
	}
	return jsonResource("health://today", out)
}

func (s *Server) handleRecentDecisionsResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	events, err := s.repo.ListDecisions(ctx, storage.DecisionFilter{UserID: s.userID, Limit: 20})
	if err != nil {
		return nil, fmt.Errorf("failed to list decisions: %w", err)
	}

	result := map[string]interface{}{
		"user_id":   s.userID,
		"decisions": events,
		"count":     len(events),
	}
	return jsonResource("health://decisions/recent", result)
}

func (s *Server) handleStaleResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	finder := freshness.NewStaleFinder(s.repo, s.engine.Table())
	fields, err := finder.Find(ctx, s.userID, s.staleDays)
	if err != nil {
		return nil, fmt.Errorf("failed to find stale fields: %w", err)
	}

	result := map[string]interface{}{
		"generated_at": time.Now().Format(time.RFC3339),
		"days":         s.staleDays,
		"fields":       fields,
	}
	return jsonResource("health://stale", result)
}

func jsonResource(uri string, v interface{}) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}
