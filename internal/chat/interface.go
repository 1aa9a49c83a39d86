package chat

import (
	"context"
	"omega/internal/models"
)

// ServiceInterface defines the interface for chat service operations
type ServiceInterface interface {
	// Chat runs one gated, memory-aware chat turn
	Chat(ctx context.Context, req *models.ChatRequest) (*models.ChatResponse, error)
}

// Ensure Service implements ServiceInterface
var _ ServiceInterface = (*Service)(nil)
